package groq

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/nimbusdesk/voice-core/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	chunkPrefix    = "data:"
	endMessage     = "[DONE]"
)

type Client struct {
	apiKey  string
	model   string
	baseURL string

	systemPrompt string
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.systemPrompt = prompt }
}

func NewClient(model string, opts ...ClientOption) (*Client, error) {
	apiKey, ok := os.LookupEnv("GROQ_API_KEY")
	if !ok {
		return nil, fmt.Errorf("groq api key not found")
	}

	client := &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PromptWithStream prepares a streaming completion over the given history.
// The request is not sent until the stream's chunks are iterated.
func (c *Client) PromptWithStream(_ context.Context, opts ...llms.PromptOption) llms.Stream {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := make([]message, 0, len(options.Messages)+1)
	if c.systemPrompt != "" {
		messages = append(messages, message{Role: "system", Content: c.systemPrompt})
	}
	for _, m := range options.Messages {
		messages = append(messages, message{Role: string(m.Role), Content: m.Content})
	}

	return &Stream{
		apiKey:  c.apiKey,
		model:   c.model,
		url:     c.baseURL + "/chat/completions",
		payload: requestBody{Model: c.model, Messages: messages, Stream: true, reasoning: options.Reasoning},
	}
}

type Stream struct {
	apiKey  string
	model   string
	url     string
	payload requestBody
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.model))
		span.SetAttributes(attribute.Bool("request.reasoning", s.payload.reasoning))

		body := s.payload
		if body.reasoning {
			// raw interleaves <think> markup into the content channel; the
			// orchestrator strips it before synthesis.
			body.ReasoningFormat = "raw"
		}

		requestBodyBytes, err := json.Marshal(body)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, "POST", s.url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		client := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
		resp, err := client.Do(req)
		if err != nil {
			err = fmt.Errorf("error sending request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			if errorBody, err := io.ReadAll(resp.Body); err == nil {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}
			err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			if len(chunk) == 0 {
				continue
			}
			if chunk == endMessage {
				break
			}

			var responseBody streamingResponseBody
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				if !yield(nil, err) {
					return
				}
				continue
			}

			if len(responseBody.Choices) == 0 {
				continue
			}
			choice := responseBody.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(streamContentChunk{
					finishReason: choice.FinishReason,
					content:      choice.Delta.Content,
				}, nil) {
					return
				}
			}

			if choice.Delta.Reasoning != "" {
				if !yield(streamReasoningChunk{
					finishReason: choice.FinishReason,
					reasoning:    choice.Delta.Reasoning,
				}, nil) {
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			err = fmt.Errorf("error reading stream: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		logger.DebugContext(ctx, "completion stream finished", "model", s.model)
	}
}

type streamContentChunk struct {
	finishReason *string
	content      string
}

func (c streamContentChunk) FinishReason() *string { return c.finishReason }
func (c streamContentChunk) Content() string       { return c.content }

type streamReasoningChunk struct {
	finishReason *string
	reasoning    string
}

func (c streamReasoningChunk) FinishReason() *string { return c.finishReason }
func (c streamReasoningChunk) Reasoning() string     { return c.reasoning }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model           string    `json:"model"`
	Messages        []message `json:"messages"`
	Stream          bool      `json:"stream"`
	ReasoningFormat string    `json:"reasoning_format,omitempty"`

	reasoning bool
}

type streamingResponseBody struct {
	Choices []struct {
		Delta struct {
			Role      string `json:"role,omitempty"`
			Content   string `json:"content,omitempty"`
			Reasoning string `json:"reasoning,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}
