package speechtotext

type TranscriptionOptions struct {
	// Language hints the expected speech language (BCP-47 tag).
	Language string
	// Prompt biases recognition toward expected vocabulary.
	Prompt string
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithPrompt(prompt string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Prompt = prompt
	}
}
