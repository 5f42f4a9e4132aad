// Package deepgram transcribes finished clips through Deepgram's
// prerecorded listen API.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest/interfaces"
	"github.com/nimbusdesk/voice-core/core/audio"
	"github.com/nimbusdesk/voice-core/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const listenURL = "https://api.deepgram.com/v1/listen"

type TranscriptionClient struct {
	apiKey string
	model  string
}

func NewTranscriptionClient() (*TranscriptionClient, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	return &TranscriptionClient{apiKey: apiKey, model: "nova-3"}, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, clip *audio.Clip, opts ...speechtotext.TranscriptionOption) (string, error) {
	if clip.IsEmpty() {
		return "", nil
	}

	options := speechtotext.TranscriptionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	requestURL, _ := url.Parse(listenURL)
	queryParams := requestURL.Query()
	queryParams.Set("model", c.model)
	queryParams.Set("smart_format", "true")
	if options.Language != "" {
		queryParams.Set("language", options.Language)
	}
	requestURL.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", requestURL.String(), bytes.NewReader(clip.Bytes))
	if err != nil {
		return "", fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(clip))

	client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach deepgram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("deepgram returned %s: %s", resp.Status, body)
	}

	var response api.PreRecordedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return extractTranscript(&response), nil
}

func extractTranscript(response *api.PreRecordedResponse) string {
	if response.Results == nil || len(response.Results.Channels) == 0 {
		return ""
	}

	alternatives := response.Results.Channels[0].Alternatives
	if len(alternatives) == 0 {
		return ""
	}
	return alternatives[0].Transcript
}

func contentTypeFor(clip *audio.Clip) string {
	if clip.MIMEType != "" {
		return clip.MIMEType
	}
	return audio.MIMETypeWAV
}
