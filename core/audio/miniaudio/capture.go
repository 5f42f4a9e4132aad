package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/nimbusdesk/voice-core/core/audio"
)

// captureClient owns the microphone device. The delivery callback is swapped
// per recording session; the device itself stays initialized for the life of
// the client.
type captureClient struct {
	mu     sync.Mutex
	device *malgo.Device

	bytesPerFrame int
	onAudio       func(audio []byte)
}

func captureConfig(format malgo.FormatType, channels int) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(audio.DefaultSampleRate)
	config.Capture.Format = format
	config.Capture.Channels = uint32(channels)
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	// 30ms periods keep the spectrum feed responsive without starving the
	// device thread.
	config.PeriodSizeInFrames = uint32(audio.DefaultSampleRate * 30 / 1000)
	config.Periods = 3
	return config
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	format := malgo.FormatS16
	channels := 1
	c.bytesPerFrame = malgo.SampleSizeInBytes(format) * channels

	device, err := malgo.InitDevice(audioContext.Context, captureConfig(format, channels), malgo.DeviceCallbacks{
		Data: c.deliver,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	c.device = device
	return nil
}

// deliver runs on the device thread. It hands the chunk to the current
// session's callback and must never block.
func (c *captureClient) deliver(_, input []byte, frameCount uint32) {
	c.mu.Lock()
	onAudio := c.onAudio
	size := int(frameCount) * c.bytesPerFrame
	c.mu.Unlock()

	if onAudio == nil || size == 0 || len(input) < size {
		return
	}
	onAudio(input[:size])
}

func (c *captureClient) Start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if c.device.IsStarted() {
		return nil
	}

	c.onAudio = onAudio
	if err := c.device.Start(); err != nil {
		c.onAudio = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}
	if !c.device.IsStarted() {
		return nil
	}

	c.onAudio = nil
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.onAudio = nil
	return nil
}
