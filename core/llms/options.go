package llms

type PromptOptions struct {
	Messages []Message
	// Reasoning asks the model to think before answering. Only honored by
	// models whose configuration flags the capability.
	Reasoning bool
}

type PromptOption func(*PromptOptions)

func WithMessages(messages ...Message) PromptOption {
	return func(o *PromptOptions) {
		o.Messages = append(o.Messages, messages...)
	}
}

func WithReasoning(enabled bool) PromptOption {
	return func(o *PromptOptions) {
		o.Reasoning = enabled
	}
}
