// Package playback schedules streamed audio buffers back-to-back on an
// output device.
//
// Buffers can arrive in bursts, faster or slower than real time. The
// scheduler keeps a single timeline offset, nextStartTime, and starts every
// buffer at max(now, nextStartTime) before advancing the offset by the
// buffer's duration. That guarantees playback with no silence gap and no
// overlap regardless of arrival jitter. The set of currently scheduled
// sources doubles as the "is anything still playing" signal; the set
// draining to empty means the model has stopped talking.
package playback

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusdesk/voice-core/core/audio"
)

// Sink is the output device the scheduler owns. Exactly one scheduler writes
// to a sink at a time.
type Sink interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

// Clock abstracts the playback timeline so scheduling arithmetic can be
// tested without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type source struct {
	id       string
	startAt  time.Time
	duration time.Duration

	startTimer Timer
	endTimer   Timer
}

type Scheduler struct {
	mu sync.Mutex

	sink     Sink
	clock    Clock
	encoding audio.EncodingInfo

	nextStartTime time.Time
	active        map[string]*source
	stopped       bool

	// tap receives every scheduled buffer for visualization. It runs on its
	// own goroutine so a slow consumer cannot disturb scheduling.
	tap func(pcm []byte)
	// onDrained fires when the active set empties.
	onDrained func()
}

type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock. Intended for tests.
func WithClock(clock Clock) SchedulerOption {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithAnalysisTap(tap func(pcm []byte)) SchedulerOption {
	return func(s *Scheduler) {
		if tap != nil {
			s.tap = tap
		}
	}
}

func WithDrainedCallback(callback func()) SchedulerOption {
	return func(s *Scheduler) {
		if callback != nil {
			s.onDrained = callback
		}
	}
}

// SetDrainedCallback replaces the drained callback. The scheduler is usually
// built before the component that wants the signal.
func (s *Scheduler) SetDrainedCallback(callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if callback != nil {
		s.onDrained = callback
	}
}

func NewScheduler(sink Sink, opts ...SchedulerOption) *Scheduler {
	scheduler := &Scheduler{
		sink:      sink,
		clock:     wallClock{},
		encoding:  sink.EncodingInfo(),
		active:    map[string]*source{},
		tap:       func([]byte) {},
		onDrained: func() {},
	}
	for _, opt := range opts {
		opt(scheduler)
	}
	return scheduler
}

// Schedule queues a raw buffer to start at max(now, nextStartTime) and
// advances nextStartTime by the buffer's duration.
func (s *Scheduler) Schedule(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	startAt := now
	if s.nextStartTime.After(now) {
		startAt = s.nextStartTime
	}
	duration := s.encoding.Duration(pcm)
	s.nextStartTime = startAt.Add(duration)

	src := &source{
		id:       uuid.NewString(),
		startAt:  startAt,
		duration: duration,
	}
	s.active[src.id] = src

	payload := pcm
	src.startTimer = s.clock.AfterFunc(startAt.Sub(now), func() {
		s.sink.SendAudio(payload)
		go s.tap(payload)
	})
	src.endTimer = s.clock.AfterFunc(startAt.Sub(now)+duration, func() {
		s.finish(src.id)
	})
	s.mu.Unlock()
}

// PlayClip decodes an encoded payload and schedules the resulting samples as
// one buffer. Decoded audio at a different rate than the sink (MP3 synthesis
// commonly comes back at 24-48kHz) is resampled, so both the device output
// and the duration arithmetic stay correct.
func (s *Scheduler) PlayClip(clip *audio.Clip) error {
	pcm, encoding, err := Decode(clip)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.encoding.IsZero() {
		s.encoding = encoding
	}
	sinkRate := s.encoding.SampleRate
	s.mu.Unlock()

	if !encoding.IsZero() && encoding.SampleRate != sinkRate {
		pcm = audio.ResampleLinear16(pcm, encoding.SampleRate, sinkRate)
	}

	s.Schedule(pcm)
	return nil
}

// IsPlaying reports whether any scheduled source has not finished yet.
func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) > 0
}

// Stop cancels every in-flight source, flushes the sink buffer and rewinds
// the timeline. The drained callback does not fire; stopping is not the
// model finishing a sentence. Safe to call repeatedly.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, src := range s.active {
		if src.startTimer != nil {
			src.startTimer.Stop()
		}
		if src.endTimer != nil {
			src.endTimer.Stop()
		}
		delete(s.active, id)
	}
	s.nextStartTime = time.Time{}
	s.mu.Unlock()

	s.sink.ClearBuffer()
}

// Close stops playback and rejects any further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.Stop()
}

func (s *Scheduler) finish(id string) {
	s.mu.Lock()
	if _, ok := s.active[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, id)
	drained := len(s.active) == 0 && !s.stopped
	callback := s.onDrained
	s.mu.Unlock()

	if drained {
		callback()
	}
}
