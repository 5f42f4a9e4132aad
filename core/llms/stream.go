package llms

import "context"

// Stream yields completion chunks in arrival order. The iterator returns
// once the provider flushes the final chunk or an error occurs.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

// StreamContentChunk carries response text. Reasoning models may embed
// <think>...</think> segments inline; stripping them is the caller's job.
type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamReasoningChunk carries out-of-band reasoning text for providers that
// separate it from the response channel.
type StreamReasoningChunk interface {
	StreamChunk
	Reasoning() string
}
