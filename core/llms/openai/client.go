// Package openai provides a prompt-based completion client for models that
// do not need token streaming. It rides the go-openai SDK and can target any
// OpenAI-compatible endpoint.
package openai

import (
	"context"
	"fmt"
	"os"

	"github.com/nimbusdesk/voice-core/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client *goopenai.Client
	model  string

	systemPrompt string
}

type ClientOption func(*Client)

func WithSystemPrompt(prompt string) ClientOption {
	return func(c *Client) { c.systemPrompt = prompt }
}

func NewClient(model string, opts ...ClientOption) (*Client, error) {
	apiKey, ok := os.LookupEnv("OPENAI_API_KEY")
	if !ok {
		return nil, fmt.Errorf("openai api key not found")
	}

	client := &Client{
		client: goopenai.NewClient(apiKey),
		model:  model,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Prompt runs a blocking completion over the given history and returns the
// full response text.
func (c *Client) Prompt(ctx context.Context, opts ...llms.PromptOption) (string, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, len(options.Messages)+1)
	if c.systemPrompt != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	for _, m := range options.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned for completion")
	}

	return resp.Choices[0].Message.Content, nil
}
