// Package portaudio provides a duplex float32 device client through
// PortAudio. The live session uses it for continuous capture; the playback
// side accepts 16-bit PCM and writes it out in stream-sized chunks.
package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/nimbusdesk/voice-core/core/audio"
)

type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in  []float32
	out []int16

	mu            sync.Mutex
	leftoverAudio []byte
	capturing     bool
	stop          chan struct{}
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]float32, bufferSize)
	out := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, bufferSize, in, out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
		out:        out,
	}, nil
}

// StartCapture begins delivering raw float32 sample chunks on a dedicated
// goroutine until StopCapture or context cancellation.
func (c *Client) StartCapture(ctx context.Context, onSamples func(samples []float32)) error {
	c.mu.Lock()
	if c.capturing {
		c.mu.Unlock()
		return nil
	}
	if err := c.stream.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	c.capturing = true
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
				if err := c.stream.Read(); err != nil {
					continue
				}
				samples := make([]float32, len(c.in))
				copy(samples, c.in)
				onSamples(samples)
			}
		}
	}()
	return nil
}

func (c *Client) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	c.capturing = false
	close(c.stop)

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

// SendAudio buffers 16-bit PCM and writes it to the output in stream-sized
// chunks; a trailing partial chunk waits for the next call.
func (c *Client) SendAudio(pcm []byte) error {
	chunkSize := c.bufferSize * 2

	c.mu.Lock()
	buffered := append(c.leftoverAudio, pcm...)
	c.mu.Unlock()

	offset := 0
	for offset+chunkSize <= len(buffered) {
		binary.Read(bytes.NewReader(buffered[offset:offset+chunkSize]), binary.LittleEndian, c.out)
		if err := c.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to portaudio stream: %w", err)
		}
		offset += chunkSize
	}

	c.mu.Lock()
	c.leftoverAudio = append(c.leftoverAudio[:0], buffered[offset:]...)
	c.mu.Unlock()
	return nil
}

func (c *Client) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leftoverAudio = nil
}

func (c *Client) Close() {
	_ = c.StopCapture()
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
