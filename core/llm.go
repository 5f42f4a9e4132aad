package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimbusdesk/voice-core/core/llms"
)

// generate runs one completion over the prompt history. Streamed chunks are
// forwarded to onSegment in arrival order; the return value is the full
// response text with any out-of-band reasoning folded into <think> markup so
// downstream stripping handles every provider the same way.
func (o *Orchestrator) generate(ctx context.Context, messages []llms.Message, reasoning bool, onSegment func(segment string)) (string, error) {
	if o.systemPrompt != "" {
		messages = append([]llms.Message{{Role: llms.RoleSystem, Content: o.systemPrompt}}, messages...)
	}

	opts := []llms.PromptOption{llms.WithMessages(messages...)}
	if reasoning && o.model.SupportsReasoning {
		opts = append(opts, llms.WithReasoning(true))
	}

	switch client := o.llm.(type) {
	case LLMWithStream:
		return o.generateStreamed(ctx, client, opts, onSegment)
	case LLMWithPrompt:
		response, err := client.Prompt(ctx, opts...)
		if err != nil {
			return "", err
		}
		onSegment(response)
		return response, nil
	case nil:
		return "", ErrNoLLM
	default:
		return "", fmt.Errorf("unsupported llm client type %T", o.llm)
	}
}

func (o *Orchestrator) generateStreamed(ctx context.Context, client LLMWithStream, opts []llms.PromptOption, onSegment func(segment string)) (string, error) {
	var content, reasoning strings.Builder

	stream := client.PromptWithStream(ctx, opts...)
	var streamErr error
	stream.Chunks(ctx)(func(chunk llms.StreamChunk, err error) bool {
		if err != nil {
			streamErr = err
			return false
		}

		switch chunk := chunk.(type) {
		case llms.StreamContentChunk:
			content.WriteString(chunk.Content())
			onSegment(chunk.Content())
		case llms.StreamReasoningChunk:
			reasoning.WriteString(chunk.Reasoning())
		}
		return true
	})
	if streamErr != nil {
		return "", streamErr
	}

	if reasoning.Len() > 0 {
		return "<think>" + reasoning.String() + "</think>" + content.String(), nil
	}
	return content.String(), nil
}
