// Package vad decides when the user has finished speaking.
//
// The detector consumes one magnitude snapshot per analysis frame and keeps a
// small amount of state: whether speech has started, when the last speech
// frame was seen and when the current silence run began. Once a silence run
// outlasts the configured duration it raises a single turn-complete signal
// and stays latched until [Detector.Reset] re-arms it for the next turn.
package vad

import (
	"sync"
	"time"

	"github.com/nimbusdesk/voice-core/core/audio"
)

const (
	// DefaultSilenceThreshold is the mean bin magnitude (0-255) below which
	// a frame counts as silence.
	DefaultSilenceThreshold = 15
	// DefaultSilenceDuration is how long continuous silence has to last
	// before a turn is considered complete.
	DefaultSilenceDuration = 1500 * time.Millisecond
)

// State is a point-in-time copy of the detector's bookkeeping.
//
// SilenceStartedAt is only non-zero while speech has started and the most
// recent frame was below threshold; any speech frame clears it.
type State struct {
	HasSpeechStarted bool
	LastSpeechAt     time.Time
	SilenceStartedAt time.Time
}

type Detector struct {
	mu sync.Mutex

	silenceThreshold float64
	silenceDuration  time.Duration

	state State
	// triggered latches after a turn-complete fires so a single turn can
	// never raise it twice. Only Reset clears it.
	triggered bool

	onSpeechStarted func()
	onTurnComplete  func()
}

type DetectorOption func(*Detector)

func WithSilenceThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		if threshold > 0 {
			d.silenceThreshold = threshold
		}
	}
}

func WithSilenceDuration(duration time.Duration) DetectorOption {
	return func(d *Detector) {
		if duration > 0 {
			d.silenceDuration = duration
		}
	}
}

func WithSpeechStartedCallback(callback func()) DetectorOption {
	return func(d *Detector) { d.onSpeechStarted = callback }
}

func WithTurnCompleteCallback(callback func()) DetectorOption {
	return func(d *Detector) { d.onTurnComplete = callback }
}

func NewDetector(opts ...DetectorOption) *Detector {
	detector := &Detector{
		silenceThreshold: DefaultSilenceThreshold,
		silenceDuration:  DefaultSilenceDuration,
		onSpeechStarted:  func() {},
		onTurnComplete:   func() {},
	}
	for _, opt := range opts {
		opt(detector)
	}
	return detector
}

// Process consumes one magnitude snapshot. Callbacks fire synchronously on
// the calling goroutine, outside the detector lock.
func (d *Detector) Process(bins []byte) {
	d.ProcessAt(bins, time.Now())
}

// ProcessAt is [Detector.Process] with an explicit frame timestamp.
func (d *Detector) ProcessAt(bins []byte, now time.Time) {
	mean := audio.MeanMagnitude(bins)

	d.mu.Lock()
	var speechStarted, turnComplete bool

	if mean > d.silenceThreshold {
		if !d.state.HasSpeechStarted {
			d.state.HasSpeechStarted = true
			speechStarted = true
		}
		d.state.LastSpeechAt = now
		d.state.SilenceStartedAt = time.Time{}
	} else if d.state.HasSpeechStarted && !d.triggered {
		// Silence before any speech never completes a turn; ambient noise
		// alone must not trigger a transcription round.
		if d.state.SilenceStartedAt.IsZero() {
			d.state.SilenceStartedAt = now
		} else if now.Sub(d.state.SilenceStartedAt) >= d.silenceDuration {
			d.triggered = true
			turnComplete = true
		}
	}
	d.mu.Unlock()

	if speechStarted {
		d.onSpeechStarted()
	}
	if turnComplete {
		d.onTurnComplete()
	}
}

// Reset restores the detector to its initial state and re-arms the
// turn-complete latch. Call it at the start of every listening session.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.state = State{}
	d.triggered = false
	d.mu.Unlock()
}

// Snapshot returns a copy of the current detector state.
func (d *Detector) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
