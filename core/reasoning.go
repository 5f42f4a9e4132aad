package voice

import (
	"regexp"
	"strings"
)

// DefaultReasoningTrigger is the spoken phrase that switches the next
// completion into reasoning mode.
const DefaultReasoningTrigger = "think deeply"

// substitutedReasoningPrompt replaces a transcript that contained nothing but
// the trigger phrase, so the model still has something to respond to.
const substitutedReasoningPrompt = "Continue."

var thoughtPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThoughts removes <think>...</think> segments from a response before
// synthesis. An unterminated opening tag drops everything after it; a
// truncated stream must not leak raw reasoning into speech.
func StripThoughts(text string) string {
	stripped := thoughtPattern.ReplaceAllString(text, "")
	if start := strings.Index(stripped, "<think>"); start >= 0 {
		stripped = stripped[:start]
	}
	return strings.TrimSpace(stripped)
}

// detectReasoningRequest checks the transcript for the trigger phrase,
// case-insensitively. When found it returns the transcript with the phrase
// removed, falling back to a neutral prompt if nothing else remains.
func detectReasoningRequest(transcript, trigger string) (string, bool) {
	lowered := strings.ToLower(transcript)
	loweredTrigger := strings.ToLower(trigger)

	start := strings.Index(lowered, loweredTrigger)
	if start < 0 {
		return transcript, false
	}

	remainder := strings.TrimSpace(transcript[:start] + transcript[start+len(trigger):])
	if remainder == "" {
		remainder = substitutedReasoningPrompt
	}
	return remainder, true
}
