// Package voice orchestrates a spoken conversation: capture, end-of-turn
// detection, transcription, completion, synthesis and playback.
//
// The orchestrator is a four-state machine (idle, listening, processing,
// speaking). A turn moves listening -> processing -> speaking and lands back
// in idle, or directly in listening when hands-free mode is on. Exactly one
// turn is in flight at a time; a compare-and-swap lock set on entering
// processing drops any duplicate completion trigger until the machine
// reaches idle or listening again.
package voice

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/events"
	"github.com/nimbusdesk/voice-core/core/texttospeech"
	"github.com/nimbusdesk/voice-core/core/vad"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

type Orchestrator struct {
	stateMu sync.Mutex
	state   State

	handsFree atomic.Bool
	// processing is the single-turn lock. Set when a turn enters the
	// processing state, cleared only when the machine reaches idle or
	// re-enters listening.
	processing atomic.Bool
	// generation is bumped by Close; in-flight turns compare it after every
	// await and discard their results when it moved.
	generation atomic.Uint64
	closed     atomic.Bool
	closeOnce  sync.Once

	recorder        *recorder
	detector        *vad.Detector
	detectorOptions []vad.DetectorOption
	transcriber     Transcriber
	llm             LLM
	synthesizer     Synthesizer
	player          Player

	conversation conversationLog

	model            Model
	voice            string
	systemPrompt     string
	reasoningTrigger string

	emit         func(events.Event)
	onInputLevel func(bins []byte)
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	orchestrator := &Orchestrator{
		state:            StateIdle,
		reasoningTrigger: DefaultReasoningTrigger,
		emit:             func(events.Event) {},
		onInputLevel:     func([]byte) {},
	}
	for _, opt := range opts {
		opt(orchestrator)
	}

	detectorOptions := append([]vad.DetectorOption{
		vad.WithSpeechStartedCallback(func() {
			orchestrator.emit(events.NewSpeechStarted())
		}),
		vad.WithTurnCompleteCallback(func() {
			orchestrator.emit(events.NewTurnComplete())
			orchestrator.completeTurn()
		}),
	}, orchestrator.detectorOptions...)
	orchestrator.detector = vad.NewDetector(detectorOptions...)

	if orchestrator.recorder != nil {
		orchestrator.recorder.onChunk = orchestrator.analyzeChunk
	}
	if orchestrator.player != nil {
		orchestrator.player.SetDrainedCallback(orchestrator.playbackDrained)
	}
	return orchestrator
}

func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

func (o *Orchestrator) HandsFree() bool {
	return o.handsFree.Load()
}

func (o *Orchestrator) SetHandsFree(enabled bool) {
	o.handsFree.Store(enabled)
}

func (o *Orchestrator) ToggleHandsFree() bool {
	for {
		current := o.handsFree.Load()
		if o.handsFree.CompareAndSwap(current, !current) {
			return !current
		}
	}
}

// History returns a deep copy of the conversation log.
func (o *Orchestrator) History() []Turn {
	return o.conversation.snapshot()
}

// StartListening acquires the microphone and arms end-of-turn detection.
// Valid from idle, and from speaking, where it cuts playback short. Calling
// it while already listening is a no-op.
func (o *Orchestrator) StartListening(ctx context.Context) error {
	if o.closed.Load() {
		return nil
	}

	o.stateMu.Lock()
	switch o.state {
	case StateListening:
		o.stateMu.Unlock()
		return nil
	case StateProcessing:
		o.stateMu.Unlock()
		return nil
	case StateSpeaking:
		o.stateMu.Unlock()
		o.player.Stop()
		o.generation.Add(1)
		o.processing.Store(false)
	default:
		o.stateMu.Unlock()
	}

	o.detector.Reset()
	if err := o.recorder.start(ctx); err != nil {
		return err
	}

	o.setState(StateListening)
	return nil
}

// StopListening ends the turn manually, exactly as the silence debounce
// would. No-op unless the orchestrator is listening.
func (o *Orchestrator) StopListening() {
	if o.State() != StateListening {
		return
	}
	o.completeTurn()
}

// CancelListening releases the microphone and discards whatever was
// recorded, without running the turn.
func (o *Orchestrator) CancelListening() {
	if o.State() != StateListening {
		return
	}
	if _, err := o.recorder.stop(); err != nil {
		logger.Warn("failed to release capture device", "error", err)
	}
	o.setState(StateIdle)
}

// SendPrompt runs a typed message through the same completion, synthesis
// and playback path as a spoken turn. Dropped when a turn is in flight.
func (o *Orchestrator) SendPrompt(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" || o.closed.Load() {
		return
	}

	// A typed prompt during an open listening session discards the
	// recording; the typed text wins.
	o.CancelListening()

	if !o.processing.CompareAndSwap(false, true) {
		return
	}
	o.setState(StateProcessing)

	generation := o.generation.Load()
	go o.runCompletion(ctx, generation, text)
}

// IsSpeaking reports whether synthesized playback is in flight.
func (o *Orchestrator) IsSpeaking() bool {
	return o.State() == StateSpeaking
}

// Close tears the pipeline down. In-flight provider calls are abandoned;
// their results are discarded when they land. Safe to call repeatedly.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.generation.Add(1)

		if _, err := o.recorder.stop(); err != nil {
			logger.Warn("failed to release capture device", "error", err)
		}
		if o.player != nil {
			o.player.Stop()
		}
		o.setState(StateIdle)
	})
}

// completeTurn is the single entry point for finishing a listening session,
// reached from the silence debounce and from StopListening. The lock makes
// duplicate triggers harmless.
func (o *Orchestrator) completeTurn() {
	if !o.processing.CompareAndSwap(false, true) {
		return
	}
	o.setState(StateProcessing)

	generation := o.generation.Load()
	go o.processTurn(context.Background(), generation)
}

func (o *Orchestrator) processTurn(ctx context.Context, generation uint64) {
	ctx, span := tracer.Start(ctx, "voice.turn")
	defer span.End()

	clip, err := o.recorder.stop()
	if err != nil {
		logger.Warn("failed to release capture device", "error", err)
	}
	if clip == nil || clip.IsEmpty() {
		// Nothing worth transcribing; resume quietly so hands-free mode
		// keeps the microphone hot.
		o.resumeAfterTurn()
		return
	}

	transcript, err := o.transcribe(ctx, clip)
	// Success or failure, a result landing after teardown is discarded, not
	// applied.
	if o.stale(generation) {
		return
	}
	if err != nil {
		o.failTurn(span, err)
		return
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		o.resumeAfterTurn()
		return
	}
	o.emit(events.NewTranscriptFinal(transcript))

	o.runCompletionTraced(ctx, span, generation, transcript)
}

func (o *Orchestrator) runCompletion(ctx context.Context, generation uint64, prompt string) {
	ctx, span := tracer.Start(ctx, "voice.turn")
	defer span.End()
	o.runCompletionTraced(ctx, span, generation, prompt)
}

func (o *Orchestrator) runCompletionTraced(ctx context.Context, span trace.Span, generation uint64, prompt string) {
	prompt, reasoning := detectReasoningRequest(prompt, o.reasoningTrigger)
	if reasoning && !o.model.SupportsReasoning {
		reasoning = false
	}

	o.conversation.append(TurnRoleUser, prompt)
	history := o.conversation.messages()

	turnID := o.conversation.appendInProgress(TurnRoleAssistant)
	response, err := o.generate(ctx, history, reasoning, func(segment string) {
		o.conversation.appendText(turnID, segment)
		o.emit(events.NewResponseSegment(segment))
	})
	if o.stale(generation) {
		return
	}
	if err != nil {
		o.conversation.complete(turnID, nil)
		o.failTurn(span, &ProviderError{Stage: "completion", Err: err})
		return
	}
	o.conversation.complete(turnID, &response)
	o.emit(events.NewResponseFinal(response))

	speech := StripThoughts(response)
	if speech == "" || o.synthesizer == nil || o.player == nil {
		o.resumeAfterTurn()
		return
	}

	var synthesisOptions []texttospeech.SynthesisOption
	if o.voice != "" {
		synthesisOptions = append(synthesisOptions, texttospeech.WithVoice(o.voice))
	}
	clip, err := o.synthesizer.Synthesize(ctx, speech, synthesisOptions...)
	if o.stale(generation) {
		return
	}
	if err != nil {
		o.failTurn(span, &ProviderError{Stage: "synthesis", Err: err})
		return
	}

	o.setState(StateSpeaking)
	o.emit(events.NewPlaybackStarted())
	if err := o.player.PlayClip(clip); err != nil && !o.stale(generation) {
		o.failTurn(span, &ProviderError{Stage: "playback", Err: err})
	}
}

func (o *Orchestrator) transcribe(ctx context.Context, clip *audio.Clip) (string, error) {
	if o.transcriber == nil {
		return "", ErrNoTranscriber
	}
	transcript, err := o.transcriber.Transcribe(ctx, clip)
	if err != nil {
		return "", &ProviderError{Stage: "transcription", Err: err}
	}
	return transcript, nil
}

// playbackDrained is the scheduler's signal that the model stopped talking.
func (o *Orchestrator) playbackDrained() {
	o.emit(events.NewPlaybackEnded())

	if o.closed.Load() || o.State() != StateSpeaking {
		return
	}
	o.resumeAfterTurn()
}

// resumeAfterTurn lands the machine after a turn: back to listening in
// hands-free mode, otherwise idle. Clearing the lock re-arms turn
// completion, so it happens last.
func (o *Orchestrator) resumeAfterTurn() {
	if o.closed.Load() {
		o.processing.Store(false)
		return
	}

	if o.handsFree.Load() && o.recorder != nil && o.recorder.client != nil {
		o.detector.Reset()
		if err := o.recorder.start(context.Background()); err != nil {
			logger.Warn("failed to resume listening", "error", err)
			o.setState(StateIdle)
			o.processing.Store(false)
			return
		}
		o.setState(StateListening)
		o.processing.Store(false)
		return
	}

	o.setState(StateIdle)
	o.processing.Store(false)
}

func (o *Orchestrator) failTurn(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("turn failed", "error", err)

	message := err.Error()
	o.conversation.append(TurnRoleSystem, message)
	o.emit(events.NewTurnFailed(message))

	o.setState(StateIdle)
	o.processing.Store(false)
}

// stale reports whether the orchestrator was closed or reset after this turn
// started. Stale turns drop their results instead of mutating state.
func (o *Orchestrator) stale(generation uint64) bool {
	return o.closed.Load() || o.generation.Load() != generation
}

func (o *Orchestrator) analyzeChunk(pcm []byte) {
	bins := audio.Spectrum(pcm)
	o.onInputLevel(bins)
	o.detector.Process(bins)
}

func (o *Orchestrator) setState(next State) {
	o.stateMu.Lock()
	previous := o.state
	o.state = next
	o.stateMu.Unlock()

	if previous != next {
		o.emit(events.NewStateChanged(string(previous), string(next)))
	}
}
