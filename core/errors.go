package voice

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureUnavailable reports that the microphone could not be
	// acquired, most commonly a denied OS permission.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")

	// ErrNoCaptureClient reports an orchestrator built without a capture
	// client being asked to record.
	ErrNoCaptureClient = errors.New("no capture client configured")

	// ErrNoTranscriber and friends report a turn reaching a pipeline stage
	// that was never configured.
	ErrNoTranscriber = errors.New("no transcriber configured")
	ErrNoLLM         = errors.New("no llm configured")
	ErrNoSynthesizer = errors.New("no synthesizer configured")
)

// ProviderError wraps a failure from an external provider with the pipeline
// stage it interrupted. The stage reads naturally in user-facing messages.
type ProviderError struct {
	Stage string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
