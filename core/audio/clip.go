package audio

// Clip is a finished recording or a synthesized speech payload, still in its
// container encoding (WAV, MP3, or raw linear16).
type Clip struct {
	Bytes    []byte
	MIMEType string
	// EncodingInfo is only meaningful for raw payloads; container formats
	// carry their own header.
	EncodingInfo EncodingInfo
}

const (
	MIMETypeWAV   = "audio/wav"
	MIMETypeMP3   = "audio/mpeg"
	MIMETypePCM16 = "audio/l16"
)

func (c *Clip) IsEmpty() bool {
	return c == nil || len(c.Bytes) == 0
}
