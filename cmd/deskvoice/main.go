// Command deskvoice is a terminal front-end for the voice pipeline:
// push-to-talk or hands-free conversation against hosted providers, plus a
// duplex live streaming mode.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	voice "github.com/nimbusdesk/voice-core/core"
	"github.com/nimbusdesk/voice-core/core/audio/miniaudio"
	"github.com/nimbusdesk/voice-core/core/audio/portaudio"
	"github.com/nimbusdesk/voice-core/core/events"
	"github.com/nimbusdesk/voice-core/core/live"
	"github.com/nimbusdesk/voice-core/core/llms/groq"
	"github.com/nimbusdesk/voice-core/core/playback"
	deepgramstt "github.com/nimbusdesk/voice-core/core/speechtotext/deepgram"
	"github.com/nimbusdesk/voice-core/core/speechtotext/whisper"
	deepgramtts "github.com/nimbusdesk/voice-core/core/texttospeech/deepgram"
	openaitts "github.com/nimbusdesk/voice-core/core/texttospeech/openai"
)

const defaultModel = "qwen/qwen3-32b"

func main() {
	godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	device, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to open audio device: %w", err)
	}
	defer device.Close()

	scheduler := playback.NewScheduler(device)
	defer scheduler.Close()

	llm, err := groq.NewClient(defaultModel)
	if err != nil {
		return fmt.Errorf("failed to build completion client: %w", err)
	}

	transcriber, err := buildTranscriber()
	if err != nil {
		return err
	}
	synthesizer, err := buildSynthesizer()
	if err != nil {
		return err
	}

	// The program is built after the orchestrator, so events are forwarded
	// through this indirection.
	var program *tea.Program
	forward := func(event events.Event) {
		if program != nil {
			program.Send(pipelineEventMsg{event: event})
		}
	}

	orchestrator := voice.NewOrchestrator(
		voice.WithCaptureClient(device),
		voice.WithTranscriber(transcriber),
		voice.WithLLM(llm),
		voice.WithSynthesizer(synthesizer),
		voice.WithPlayer(scheduler),
		voice.WithModel(voice.Model{ID: defaultModel, SupportsReasoning: true}),
		voice.WithEventHandler(forward),
		voice.WithInputLevelCallback(func(bins []byte) {
			if program != nil {
				program.Send(inputLevelMsg(meanLevel(bins)))
			}
		}),
	)
	defer orchestrator.Close()

	session := buildLiveSession(scheduler, forward)

	program = tea.NewProgram(newModel(orchestrator, session), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func buildTranscriber() (voice.Transcriber, error) {
	if os.Getenv("DEEPGRAM_API_KEY") != "" {
		client, err := deepgramstt.NewTranscriptionClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := whisper.NewClient()
	if err != nil {
		return nil, err
	}
	return client, nil
}

func buildSynthesizer() (voice.Synthesizer, error) {
	if os.Getenv("DEEPGRAM_API_KEY") != "" {
		client, err := deepgramtts.NewClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := openaitts.NewClient()
	if err != nil {
		return nil, err
	}
	return client, nil
}

// buildLiveSession is best-effort; live mode simply stays unavailable when
// the duplex device cannot be opened.
func buildLiveSession(scheduler *playback.Scheduler, forward func(events.Event)) *live.Session {
	duplex, err := portaudio.NewClient(live.FrameSamples)
	if err != nil {
		return nil
	}

	return live.NewSession(
		live.WithEndpoint(os.Getenv("LIVE_ENDPOINT")),
		live.WithCaptureClient(duplex),
		live.WithPlayer(scheduler),
		live.WithEventHandler(forward),
	)
}

func meanLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0.0
	for _, bin := range bins {
		sum += float64(bin)
	}
	return sum / float64(len(bins)) / 255
}
