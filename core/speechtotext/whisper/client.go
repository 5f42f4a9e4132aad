// Package whisper transcribes finished clips through OpenAI's audio API.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/speechtotext"
	goopenai "github.com/sashabaranov/go-openai"
)

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

// Transcribe uploads the clip and returns the recognized text. An empty
// transcript is not an error; silence recognizes as "".
func (c *Client) Transcribe(ctx context.Context, clip *audio.Clip, opts ...speechtotext.TranscriptionOption) (string, error) {
	if clip.IsEmpty() {
		return "", nil
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	resp, err := c.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		Reader:   bytes.NewReader(clip.Bytes),
		FilePath: filenameFor(clip),
		Language: options.Language,
		Prompt:   options.Prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to transcribe clip: %w", err)
	}

	return resp.Text, nil
}

// filenameFor picks a name whose extension matches the clip container; the
// API routes decoding off the extension.
func filenameFor(clip *audio.Clip) string {
	switch clip.MIMEType {
	case audio.MIMETypeMP3:
		return "clip.mp3"
	default:
		return "clip.wav"
	}
}
