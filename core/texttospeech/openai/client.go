// Package openai synthesizes speech clips through OpenAI's speech API.
package openai

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/texttospeech"
	goopenai "github.com/sashabaranov/go-openai"
)

const defaultVoice = string(goopenai.VoiceAlloy)

type Client struct {
	client *goopenai.Client
}

func NewClient() (*Client, error) {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("openai api key not found")
	}

	return &Client{client: goopenai.NewClient(apiKey)}, nil
}

func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (*audio.Clip, error) {
	options := texttospeech.SynthesisOptions{Voice: defaultVoice}
	for _, opt := range opts {
		opt(&options)
	}

	resp, err := c.client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.TTSModel1,
		Input:          text,
		Voice:          goopenai.SpeechVoice(options.Voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer resp.Close()

	payload, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	return &audio.Clip{Bytes: payload, MIMEType: audio.MIMETypeMP3}, nil
}
