package texttospeech

type SynthesisOptions struct {
	// Voice selects the provider voice. Empty picks the provider default.
	Voice string
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) {
		o.Voice = voice
	}
}
