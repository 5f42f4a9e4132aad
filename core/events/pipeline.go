package events

const (
	KindStateChanged Kind = "conversation.state_changed"
	KindTurnFailed   Kind = "conversation.turn_failed"

	KindSpeechStarted   Kind = "user_input.speech_started"
	KindTurnComplete    Kind = "user_input.turn_complete"
	KindTranscriptFinal Kind = "user_input.transcript_final"

	KindResponseSegment Kind = "assistant.response_segment"
	KindResponseFinal   Kind = "assistant.response_final"
	KindPlaybackStarted Kind = "assistant.playback_started"
	KindPlaybackEnded   Kind = "assistant.playback_ended"

	KindSessionStatusChanged Kind = "session.status_changed"
)

// StateChanged reports an orchestrator state transition.
type StateChanged struct {
	Base
	From string
	To   string
}

func NewStateChanged(from, to string) StateChanged {
	return StateChanged{Base: NewBase(KindStateChanged), From: from, To: to}
}

// TurnFailed reports a turn aborted by a provider or device error. The
// message is already user-presentable.
type TurnFailed struct {
	Base
	Message string
}

func NewTurnFailed(message string) TurnFailed {
	return TurnFailed{Base: NewBase(KindTurnFailed), Message: message}
}

// SpeechStarted reports the first above-threshold frame of a listening
// session.
type SpeechStarted struct {
	Base
}

func NewSpeechStarted() SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted)}
}

// TurnComplete reports the debounced end of user speech.
type TurnComplete struct {
	Base
}

func NewTurnComplete() TurnComplete {
	return TurnComplete{Base: NewBase(KindTurnComplete)}
}

// TranscriptFinal carries the full transcript of the finished user turn.
type TranscriptFinal struct {
	Base
	Transcript string
}

func NewTranscriptFinal(transcript string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Transcript: transcript}
}

// ResponseSegment carries one streamed completion chunk, in arrival order.
type ResponseSegment struct {
	Base
	Segment string
}

func NewResponseSegment(segment string) ResponseSegment {
	return ResponseSegment{Base: NewBase(KindResponseSegment), Segment: segment}
}

// ResponseFinal carries the complete response text after the stream flush.
type ResponseFinal struct {
	Base
	Response string
}

func NewResponseFinal(response string) ResponseFinal {
	return ResponseFinal{Base: NewBase(KindResponseFinal), Response: response}
}

type PlaybackStarted struct {
	Base
}

func NewPlaybackStarted() PlaybackStarted {
	return PlaybackStarted{Base: NewBase(KindPlaybackStarted)}
}

type PlaybackEnded struct {
	Base
}

func NewPlaybackEnded() PlaybackEnded {
	return PlaybackEnded{Base: NewBase(KindPlaybackEnded)}
}

// SessionStatusChanged reports live duplex connection status transitions.
type SessionStatusChanged struct {
	Base
	Status string
}

func NewSessionStatusChanged(status string) SessionStatusChanged {
	return SessionStatusChanged{Base: NewBase(KindSessionStatusChanged), Status: status}
}
