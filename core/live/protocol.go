package live

import (
	"sync"

	"github.com/nimbusdesk/voice-core/core/audio"
)

// FrameSamples is the fixed outbound frame size. Frames always carry exactly
// this many samples; a partial tail waits for the next capture chunk.
const FrameSamples = 4096

const (
	frameTypeAudio     = "audio"
	frameTypeTurnStart = "turn_start"
	frameTypeTurnEnd   = "turn_end"
)

// frame is the wire message, both directions. Audio is base64-encoded
// little-endian 16-bit PCM.
type frame struct {
	Type      string `json:"type"`
	Audio     string `json:"audio,omitempty"`
	Timestamp int64  `json:"ts,omitempty"`
}

// frameAssembler buffers raw float samples and emits fixed-size PCM frames.
type frameAssembler struct {
	mu      sync.Mutex
	pending []float32
	emit    func(pcm []byte)
}

func (a *frameAssembler) push(samples []float32) {
	a.mu.Lock()
	a.pending = append(a.pending, samples...)

	var frames [][]byte
	for len(a.pending) >= FrameSamples {
		frames = append(frames, audio.Float32ToPCM16(a.pending[:FrameSamples]))
		a.pending = a.pending[FrameSamples:]
	}
	emit := a.emit
	a.mu.Unlock()

	for _, pcm := range frames {
		emit(pcm)
	}
}

func (a *frameAssembler) reset() {
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
}
