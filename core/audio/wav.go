package audio

import (
	"bytes"
	"encoding/binary"
)

// WrapWAV frames raw linear16 mono PCM in a minimal WAV container so clip
// consumers (transcription uploads, decoders) get a self-describing payload.
func WrapWAV(pcm []byte, info EncodingInfo) []byte {
	var buf bytes.Buffer

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(info.SampleRate))
	byteRate := uint32(info.SampleRate * info.Format.ByteSize())
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(info.Format.ByteSize()))
	binary.Write(&buf, binary.LittleEndian, uint16(info.Format.ByteSize()*8))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
