package live

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/nimbusdesk/voice-core/core/live"

var logger = otelslog.NewLogger(scopeName)
