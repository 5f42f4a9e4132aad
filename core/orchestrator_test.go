package voice

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/events"
	"github.com/nimbusdesk/voice-core/core/llms"
	"github.com/nimbusdesk/voice-core/core/speechtotext"
	"github.com/nimbusdesk/voice-core/core/texttospeech"
)

type fakeCapture struct {
	mu      sync.Mutex
	onAudio func([]byte)
	starts  int
	stops   int
}

func (c *fakeCapture) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16}
}

func (c *fakeCapture) StartCapture(ctx context.Context, onAudio func([]byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAudio = onAudio
	c.starts++
	return nil
}

func (c *fakeCapture) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stops++
	return nil
}

func (c *fakeCapture) feed(pcm []byte) {
	c.mu.Lock()
	onAudio := c.onAudio
	c.mu.Unlock()
	if onAudio != nil {
		onAudio(pcm)
	}
}

type fakeTranscriber struct {
	transcript string
	err        error
	calls      atomic.Int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, clip *audio.Clip, opts ...speechtotext.TranscriptionOption) (string, error) {
	f.calls.Add(1)
	return f.transcript, f.err
}

type fakeLLM struct {
	response string
	err      error

	mu          sync.Mutex
	lastOptions llms.PromptOptions
}

func (f *fakeLLM) Prompt(ctx context.Context, opts ...llms.PromptOption) (string, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	f.mu.Lock()
	f.lastOptions = options
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeLLM) promptOptions() llms.PromptOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOptions
}

type fakeSynthesizer struct {
	err   error
	calls atomic.Int32

	mu       sync.Mutex
	lastText string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastText = text
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Clip{
		Bytes:        make([]byte, 640),
		MIMEType:     audio.MIMETypePCM16,
		EncodingInfo: audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingLinear16},
	}, nil
}

func (f *fakeSynthesizer) synthesizedText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastText
}

type fakePlayer struct {
	mu      sync.Mutex
	clips   int
	drained func()
}

func (p *fakePlayer) PlayClip(clip *audio.Clip) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clips++
	return nil
}

func (p *fakePlayer) IsPlaying() bool { return false }

func (p *fakePlayer) Stop() {}

func (p *fakePlayer) SetDrainedCallback(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drained = callback
}

func (p *fakePlayer) finishPlayback() {
	p.mu.Lock()
	drained := p.drained
	p.mu.Unlock()
	if drained != nil {
		drained()
	}
}

func (p *fakePlayer) playedClips() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clips
}

// speechChunk is loud enough to register as speech in every spectrum bin.
func speechChunk() []byte {
	pcm := make([]byte, 2048)
	for i := 0; i < len(pcm); i += 2 {
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(16000)))
	}
	return pcm
}

func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", description)
}

func TestTurnRunsEndToEnd(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &fakeTranscriber{transcript: "hello there"}
	llm := &fakeLLM{response: "General greeting."}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(llm),
		WithSynthesizer(synthesizer),
		WithPlayer(player),
	)
	defer orchestrator.Close()

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())
	orchestrator.StopListening()

	waitFor(t, "playback to start", func() bool {
		return orchestrator.State() == StateSpeaking
	})
	if got := synthesizer.synthesizedText(); got != "General greeting." {
		t.Fatalf("unexpected synthesized text %q", got)
	}
	if player.playedClips() != 1 {
		t.Fatalf("expected 1 played clip, got %d", player.playedClips())
	}

	player.finishPlayback()
	waitFor(t, "machine to land in idle", func() bool {
		return orchestrator.State() == StateIdle
	})

	turns := orchestrator.History()
	if len(turns) != 2 {
		t.Fatalf("expected user and assistant turns, got %d", len(turns))
	}
	if turns[0].Role != TurnRoleUser || turns[0].Text != "hello there" {
		t.Fatalf("unexpected user turn %+v", turns[0])
	}
	if turns[1].Role != TurnRoleAssistant || turns[1].Text != "General greeting." {
		t.Fatalf("unexpected assistant turn %+v", turns[1])
	}
}

func TestDuplicateTurnTriggersRunOnce(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &fakeTranscriber{transcript: "hello"}
	llm := &fakeLLM{response: "Hi."}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(llm),
		WithSynthesizer(synthesizer),
		WithPlayer(player),
	)
	defer orchestrator.Close()

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			orchestrator.completeTurn()
		}()
	}
	wg.Wait()

	waitFor(t, "the turn to reach playback", func() bool {
		return orchestrator.State() == StateSpeaking
	})
	if calls := transcriber.calls.Load(); calls != 1 {
		t.Fatalf("expected exactly 1 transcription, got %d", calls)
	}
}

func TestEmptyTranscriptResumesListeningHandsFree(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &fakeTranscriber{transcript: "   "}
	synthesizer := &fakeSynthesizer{}

	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(&fakeLLM{response: "unused"}),
		WithSynthesizer(synthesizer),
		WithPlayer(&fakePlayer{}),
		WithHandsFree(true),
	)
	defer orchestrator.Close()

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())
	orchestrator.StopListening()

	waitFor(t, "listening to resume", func() bool {
		return orchestrator.State() == StateListening
	})
	if calls := synthesizer.calls.Load(); calls != 0 {
		t.Fatalf("nothing should be synthesized, got %d calls", calls)
	}
	if turns := orchestrator.History(); len(turns) != 0 {
		t.Fatalf("empty transcript should leave no turns, got %d", len(turns))
	}
}

func TestEmptyTranscriptIdlesInManualMode(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &fakeTranscriber{transcript: ""}

	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(&fakeLLM{response: "unused"}),
	)
	defer orchestrator.Close()

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())
	orchestrator.StopListening()

	waitFor(t, "machine to land in idle", func() bool {
		return orchestrator.State() == StateIdle
	})
}

func TestProviderFailureLandsIdleWithSystemTurn(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &fakeTranscriber{err: errors.New("quota exceeded")}

	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(&fakeLLM{response: "unused"}),
	)
	defer orchestrator.Close()

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())
	orchestrator.StopListening()

	waitFor(t, "machine to land in idle", func() bool {
		return orchestrator.State() == StateIdle
	})

	turns := orchestrator.History()
	if len(turns) != 1 || turns[0].Role != TurnRoleSystem {
		t.Fatalf("expected a single system turn, got %+v", turns)
	}

	// The lock must be clear again; a fresh turn has to be possible.
	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("listening after a failure should work: %v", err)
	}
}

type gatedTranscriber struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedTranscriber) Transcribe(ctx context.Context, clip *audio.Clip, opts ...speechtotext.TranscriptionOption) (string, error) {
	close(g.entered)
	<-g.release
	return "", g.err
}

func TestLateProviderErrorDiscardedAfterClose(t *testing.T) {
	capture := &fakeCapture{}
	transcriber := &gatedTranscriber{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		err:     errors.New("quota exceeded"),
	}

	var failures atomic.Int32
	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(transcriber),
		WithLLM(&fakeLLM{response: "unused"}),
		WithEventHandler(func(event events.Event) {
			if event.Kind() == events.KindTurnFailed {
				failures.Add(1)
			}
		}),
	)

	if err := orchestrator.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening failed: %v", err)
	}
	capture.feed(speechChunk())
	orchestrator.StopListening()

	// Tear down while the provider call is still in flight, then let it
	// return its error.
	<-transcriber.entered
	orchestrator.Close()
	close(transcriber.release)

	// Give the abandoned turn time to land before asserting it changed
	// nothing.
	time.Sleep(50 * time.Millisecond)
	if turns := orchestrator.History(); len(turns) != 0 {
		t.Fatalf("late error must be discarded, got turns %+v", turns)
	}
	if count := failures.Load(); count != 0 {
		t.Fatalf("no failure event should fire after teardown, got %d", count)
	}
	if orchestrator.State() != StateIdle {
		t.Fatalf("closed orchestrator should stay idle, got %s", orchestrator.State())
	}
}

func TestReasoningTriggerRewritesPrompt(t *testing.T) {
	llm := &fakeLLM{response: "<think>pondering</think>Done."}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	orchestrator := NewOrchestrator(
		WithLLM(llm),
		WithSynthesizer(synthesizer),
		WithPlayer(player),
		WithModel(Model{ID: "qwen/qwen3-32b", SupportsReasoning: true}),
	)
	defer orchestrator.Close()

	orchestrator.SendPrompt(context.Background(), "think deeply")

	waitFor(t, "playback to start", func() bool {
		return orchestrator.State() == StateSpeaking
	})

	options := llm.promptOptions()
	if !options.Reasoning {
		t.Fatal("expected reasoning to be requested")
	}
	if len(options.Messages) == 0 || options.Messages[len(options.Messages)-1].Content != substitutedReasoningPrompt {
		t.Fatalf("expected substituted prompt, got %+v", options.Messages)
	}
	if got := synthesizer.synthesizedText(); got != "Done." {
		t.Fatalf("thoughts must not be spoken, got %q", got)
	}
}

func TestReasoningTriggerIgnoredWithoutCapability(t *testing.T) {
	llm := &fakeLLM{response: "Sure."}

	orchestrator := NewOrchestrator(
		WithLLM(llm),
		WithModel(Model{ID: "llama-3.3-70b-versatile"}),
	)
	defer orchestrator.Close()

	orchestrator.SendPrompt(context.Background(), "think deeply about x")

	waitFor(t, "machine to land in idle", func() bool {
		return orchestrator.State() == StateIdle
	})

	options := llm.promptOptions()
	if options.Reasoning {
		t.Fatal("reasoning must not be requested for an incapable model")
	}
}

func TestThoughtOnlyResponseSkipsPlayback(t *testing.T) {
	llm := &fakeLLM{response: "<think>nothing worth saying</think>"}
	synthesizer := &fakeSynthesizer{}
	player := &fakePlayer{}

	orchestrator := NewOrchestrator(
		WithLLM(llm),
		WithSynthesizer(synthesizer),
		WithPlayer(player),
		WithModel(Model{SupportsReasoning: true}),
	)
	defer orchestrator.Close()

	orchestrator.SendPrompt(context.Background(), "hello")

	waitFor(t, "machine to land in idle", func() bool {
		return orchestrator.State() == StateIdle
	})
	if calls := synthesizer.calls.Load(); calls != 0 {
		t.Fatalf("nothing should be synthesized, got %d calls", calls)
	}
}

func TestCaptureReleaseIsSymmetric(t *testing.T) {
	capture := &fakeCapture{}
	orchestrator := NewOrchestrator(
		WithCaptureClient(capture),
		WithTranscriber(&fakeTranscriber{transcript: ""}),
		WithLLM(&fakeLLM{}),
	)

	for i := 0; i < 3; i++ {
		if err := orchestrator.StartListening(context.Background()); err != nil {
			t.Fatalf("StartListening failed: %v", err)
		}
		orchestrator.CancelListening()
	}
	orchestrator.Close()

	capture.mu.Lock()
	defer capture.mu.Unlock()
	if capture.starts != capture.stops {
		t.Fatalf("asymmetric capture lifecycle: %d starts, %d stops", capture.starts, capture.stops)
	}
}
