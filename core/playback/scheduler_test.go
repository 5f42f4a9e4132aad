package playback

import (
	"bytes"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nimbusdesk/voice-core/core/audio"
)

type fakeSink struct {
	mu      sync.Mutex
	writes  [][]byte
	cleared int
}

func (s *fakeSink) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}
}

func (s *fakeSink) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, pcm)
	return nil
}

func (s *fakeSink) ClearBuffer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

type fakeTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	stopped := t.stopped
	t.stopped = true
	return !stopped
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance moves the clock forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := []*fakeTimer{}
	remaining := c.timers[:0]
	for _, timer := range c.timers {
		if !timer.stopped && !timer.deadline.After(c.now) {
			due = append(due, timer)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, timer := range due {
		timer.f()
	}
}

// pcmOfDuration builds a linear16 payload lasting exactly d at 16kHz.
func pcmOfDuration(d time.Duration) []byte {
	samples := int(d.Seconds() * 16000)
	return make([]byte, samples*2)
}

func TestScheduleBuffersBackToBackUnderBurstyArrival(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	s := NewScheduler(sink, WithClock(clock))

	base := clock.Now()
	// Three buffers arrive at once; each must start where the previous ends.
	s.Schedule(pcmOfDuration(100 * time.Millisecond))
	s.Schedule(pcmOfDuration(250 * time.Millisecond))
	s.Schedule(pcmOfDuration(50 * time.Millisecond))

	s.mu.Lock()
	starts := []time.Time{}
	for _, src := range s.active {
		starts = append(starts, src.startAt)
	}
	s.mu.Unlock()
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	want := []time.Time{base, base.Add(100 * time.Millisecond), base.Add(350 * time.Millisecond)}
	for i, start := range starts {
		if !start.Equal(want[i]) {
			t.Fatalf("buffer %d scheduled at %s, want %s", i, start, want[i])
		}
	}
}

func TestScheduleResumesAtCurrentClockAfterIdleGap(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	s := NewScheduler(sink, WithClock(clock))

	s.Schedule(pcmOfDuration(100 * time.Millisecond))
	clock.Advance(time.Second)

	s.Schedule(pcmOfDuration(100 * time.Millisecond))
	s.mu.Lock()
	var latest time.Time
	for _, src := range s.active {
		if src.startAt.After(latest) {
			latest = src.startAt
		}
	}
	s.mu.Unlock()

	if !latest.Equal(clock.Now()) {
		t.Fatalf("expected buffer after idle gap to start at current clock %s, got %s", clock.Now(), latest)
	}
}

func TestSchedulerWritesBuffersToSinkAtStartTime(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	s := NewScheduler(sink, WithClock(clock))

	first := pcmOfDuration(100 * time.Millisecond)
	second := pcmOfDuration(100 * time.Millisecond)
	second[0] = 1
	s.Schedule(first)
	s.Schedule(second)

	clock.Advance(0)
	sink.mu.Lock()
	writes := len(sink.writes)
	sink.mu.Unlock()
	if writes != 1 {
		t.Fatalf("expected only the first buffer written immediately, got %d writes", writes)
	}

	clock.Advance(100 * time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.writes) != 2 {
		t.Fatalf("expected second buffer written at its start time, got %d writes", len(sink.writes))
	}
	if !bytes.Equal(sink.writes[1], second) {
		t.Fatalf("expected second write to carry second buffer")
	}
}

func TestSchedulerDrainSignalFiresOnceWhenSetEmpties(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	drains := 0
	s := NewScheduler(sink, WithClock(clock), WithDrainedCallback(func() { drains++ }))

	s.Schedule(pcmOfDuration(100 * time.Millisecond))
	s.Schedule(pcmOfDuration(100 * time.Millisecond))

	clock.Advance(150 * time.Millisecond)
	if !s.IsPlaying() {
		t.Fatalf("expected scheduler to still be playing mid-stream")
	}
	if drains != 0 {
		t.Fatalf("expected no drain signal while a source is active, got %d", drains)
	}

	clock.Advance(100 * time.Millisecond)
	if s.IsPlaying() {
		t.Fatalf("expected scheduler to be drained")
	}
	if drains != 1 {
		t.Fatalf("expected exactly one drain signal, got %d", drains)
	}
}

func TestSchedulerStopCancelsSourcesAndClearsSink(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	drains := 0
	s := NewScheduler(sink, WithClock(clock), WithDrainedCallback(func() { drains++ }))

	s.Schedule(pcmOfDuration(500 * time.Millisecond))
	s.Stop()

	if s.IsPlaying() {
		t.Fatalf("expected stop to empty the active set")
	}
	sink.mu.Lock()
	cleared := sink.cleared
	sink.mu.Unlock()
	if cleared != 1 {
		t.Fatalf("expected sink buffer cleared once, got %d", cleared)
	}

	clock.Advance(time.Second)
	if drains != 0 {
		t.Fatalf("expected stop to suppress the drain signal, got %d", drains)
	}
}

func TestSchedulerAnalysisTapReceivesScheduledBuffers(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	tapped := make(chan []byte, 4)
	s := NewScheduler(sink, WithClock(clock), WithAnalysisTap(func(pcm []byte) { tapped <- pcm }))

	payload := pcmOfDuration(100 * time.Millisecond)
	s.Schedule(payload)
	clock.Advance(0)

	select {
	case got := <-tapped:
		if !bytes.Equal(got, payload) {
			t.Fatalf("expected tap to receive the scheduled buffer")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected tap to be fed")
	}
}

func TestPlayClipResamplesToSinkRate(t *testing.T) {
	sink := &fakeSink{}
	clock := newFakeClock()
	drains := 0
	s := NewScheduler(sink, WithClock(clock), WithDrainedCallback(func() { drains++ }))

	// One second of audio at half the sink's rate.
	clip := &audio.Clip{
		Bytes:        make([]byte, 8000*2),
		MIMEType:     audio.MIMETypePCM16,
		EncodingInfo: audio.EncodingInfo{SampleRate: 8000, Format: audio.EncodingLinear16},
	}
	if err := s.PlayClip(clip); err != nil {
		t.Fatalf("PlayClip failed: %v", err)
	}

	clock.Advance(0)
	sink.mu.Lock()
	if len(sink.writes) != 1 {
		sink.mu.Unlock()
		t.Fatalf("expected one sink write, got %d", len(sink.writes))
	}
	written := len(sink.writes[0])
	sink.mu.Unlock()
	if written != 16000*2 {
		t.Fatalf("expected payload resampled to the sink rate (%d bytes), got %d", 16000*2, written)
	}

	// The source must play for its real one second duration, not the half
	// second the raw byte count would suggest at the sink rate.
	clock.Advance(900 * time.Millisecond)
	if !s.IsPlaying() {
		t.Fatalf("expected playback still in flight at 900ms")
	}
	clock.Advance(100 * time.Millisecond)
	if s.IsPlaying() || drains != 1 {
		t.Fatalf("expected drain exactly at the clip's duration, playing=%v drains=%d", s.IsPlaying(), drains)
	}
}

func TestDecodeWAVRoundTripsRecorderClip(t *testing.T) {
	info := audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}
	pcm := audio.Float32ToPCM16([]float32{0, 0.25, -0.25, 0.5})
	clip := &audio.Clip{Bytes: audio.WrapWAV(pcm, info), MIMEType: audio.MIMETypeWAV}

	decoded, decodedInfo, err := Decode(clip)
	if err != nil {
		t.Fatalf("expected wav clip to decode, got %v", err)
	}
	if decodedInfo.SampleRate != 16000 {
		t.Fatalf("expected decoded sample rate 16000, got %d", decodedInfo.SampleRate)
	}

	want := audio.PCM16ToFloat32(pcm)
	got := audio.PCM16ToFloat32(decoded)
	if len(got) != len(want) {
		t.Fatalf("expected %d decoded samples, got %d", len(want), len(got))
	}
	for i := range want {
		diff := float64(got[i] - want[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > 2.0/32768 {
			t.Fatalf("sample %d drifted: got %f want %f", i, got[i], want[i])
		}
	}
}

func TestDecodeRawClipPassesThrough(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	clip := &audio.Clip{
		Bytes:        pcm,
		MIMEType:     audio.MIMETypePCM16,
		EncodingInfo: audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingLinear16},
	}

	decoded, info, err := Decode(clip)
	if err != nil {
		t.Fatalf("expected raw clip to pass through, got %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Fatalf("expected payload unchanged, got %v", decoded)
	}
	if info.SampleRate != 24000 {
		t.Fatalf("expected encoding carried through, got %d", info.SampleRate)
	}
}

func TestDecodeEmptyClipErrors(t *testing.T) {
	if _, _, err := Decode(&audio.Clip{}); err == nil {
		t.Fatalf("expected empty clip to error")
	}
}
