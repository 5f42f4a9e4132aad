package voice

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nimbusdesk/voice-core/core/audio"
)

// recorder owns the capture client for the duration of a listening session
// and accumulates everything the microphone produces into one clip.
type recorder struct {
	client CaptureClient

	recording atomic.Bool

	mu     sync.Mutex
	buffer bytes.Buffer

	// onChunk receives every captured chunk while recording, for spectrum
	// analysis fan-out. Set once before the first session.
	onChunk func(pcm []byte)
}

func newRecorder(client CaptureClient) *recorder {
	return &recorder{
		client:  client,
		onChunk: func([]byte) {},
	}
}

// start acquires the microphone and begins accumulating. Calling start while
// already recording is a no-op.
func (r *recorder) start(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNoCaptureClient
	}

	if !r.recording.CompareAndSwap(false, true) {
		return nil
	}

	r.mu.Lock()
	r.buffer.Reset()
	r.mu.Unlock()

	if err := r.client.StartCapture(ctx, r.onAudio); err != nil {
		r.recording.Store(false)
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	return nil
}

// stop releases the microphone and returns the accumulated clip. Returns nil
// when no recording was active, and a clip with no payload when the session
// captured nothing.
func (r *recorder) stop() (*audio.Clip, error) {
	if r == nil || r.client == nil {
		return nil, nil
	}

	if !r.recording.CompareAndSwap(true, false) {
		return nil, nil
	}

	err := r.client.StopCapture()

	r.mu.Lock()
	pcm := make([]byte, r.buffer.Len())
	copy(pcm, r.buffer.Bytes())
	r.buffer.Reset()
	r.mu.Unlock()

	encoding := r.client.EncodingInfo()
	clip := &audio.Clip{
		Bytes:        audio.WrapWAV(pcm, encoding),
		MIMEType:     audio.MIMETypeWAV,
		EncodingInfo: encoding,
	}
	if len(pcm) == 0 {
		clip.Bytes = nil
	}

	if err != nil {
		return clip, fmt.Errorf("failed to release capture device: %w", err)
	}
	return clip, nil
}

func (r *recorder) isRecording() bool {
	return r != nil && r.recording.Load()
}

func (r *recorder) onAudio(pcm []byte) {
	if !r.recording.Load() {
		// The device can flush a trailing chunk after stop; accepting it
		// would bleed into the next turn's clip.
		return
	}

	r.mu.Lock()
	r.buffer.Write(pcm)
	r.mu.Unlock()

	r.onChunk(pcm)
}
