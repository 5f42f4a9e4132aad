package voice

import (
	"context"

	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/events"
	"github.com/nimbusdesk/voice-core/core/llms"
	"github.com/nimbusdesk/voice-core/core/speechtotext"
	"github.com/nimbusdesk/voice-core/core/texttospeech"
	"github.com/nimbusdesk/voice-core/core/vad"
)

// CaptureClient is a microphone device. StartCapture delivers raw PCM chunks
// on the device's own goroutine until StopCapture.
type CaptureClient interface {
	EncodingInfo() audio.EncodingInfo
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

// Transcriber converts a recorded clip to text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip *audio.Clip, opts ...speechtotext.TranscriptionOption) (string, error)
}

// Synthesizer converts response text to a playable clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error)
}

// LLM is either an [LLMWithStream] or an [LLMWithPrompt]; the orchestrator
// type-switches at generation time.
type LLM any

type LLMWithStream interface {
	PromptWithStream(ctx context.Context, opts ...llms.PromptOption) llms.Stream
}

type LLMWithPrompt interface {
	Prompt(ctx context.Context, opts ...llms.PromptOption) (string, error)
}

// Player schedules synthesized clips on the output device. Satisfied by
// [playback.Scheduler].
type Player interface {
	PlayClip(clip *audio.Clip) error
	IsPlaying() bool
	Stop()
	SetDrainedCallback(callback func())
}

// Model describes the configured completion model.
type Model struct {
	ID string
	// SupportsReasoning gates the spoken trigger phrase; models without the
	// capability treat the phrase as ordinary content.
	SupportsReasoning bool
}

type OrchestratorOption func(*Orchestrator)

func WithCaptureClient(client CaptureClient) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = newRecorder(client)
	}
}

func WithTranscriber(transcriber Transcriber) OrchestratorOption {
	return func(o *Orchestrator) { o.transcriber = transcriber }
}

func WithLLM(client LLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

func WithSynthesizer(synthesizer Synthesizer) OrchestratorOption {
	return func(o *Orchestrator) { o.synthesizer = synthesizer }
}

func WithPlayer(player Player) OrchestratorOption {
	return func(o *Orchestrator) { o.player = player }
}

func WithModel(model Model) OrchestratorOption {
	return func(o *Orchestrator) { o.model = model }
}

func WithVoice(voice string) OrchestratorOption {
	return func(o *Orchestrator) { o.voice = voice }
}

func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithHandsFree starts the orchestrator in hands-free mode: listening
// restarts automatically after each spoken response.
func WithHandsFree(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) { o.handsFree.Store(enabled) }
}

func WithReasoningTrigger(phrase string) OrchestratorOption {
	return func(o *Orchestrator) {
		if phrase != "" {
			o.reasoningTrigger = phrase
		}
	}
}

func WithDetectorOptions(opts ...vad.DetectorOption) OrchestratorOption {
	return func(o *Orchestrator) { o.detectorOptions = append(o.detectorOptions, opts...) }
}

// WithEventHandler registers the sink for pipeline events. Events arrive on
// pipeline goroutines; handlers must not block.
func WithEventHandler(handler func(events.Event)) OrchestratorOption {
	return func(o *Orchestrator) {
		if handler != nil {
			o.emit = handler
		}
	}
}

// WithInputLevelCallback reports the spectrum of every captured chunk, for
// input visualization.
func WithInputLevelCallback(callback func(bins []byte)) OrchestratorOption {
	return func(o *Orchestrator) {
		if callback != nil {
			o.onInputLevel = callback
		}
	}
}
