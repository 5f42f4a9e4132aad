// Package events defines the typed event contract emitted by the voice
// pipeline toward the rendering surface.
//
// Event kinds are grouped by namespace:
//
//   - conversation.*: state machine transitions and turn lifecycle
//   - user_input.*:   capture and transcription
//   - assistant.*:    response streaming and playback
//   - session.*:      live duplex connection lifecycle
package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
