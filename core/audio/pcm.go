package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// Float32ToPCM16 converts floating-point samples in [-1, 1] to little-endian
// signed 16-bit PCM. Samples outside the representable range are clamped.
//
// Negative samples scale by 32768 and non-negative samples by 32767 so both
// ends of the range land on exact integer values without rounding bias.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}

		var value int16
		if sample < 0 {
			value = int16(sample * 32768)
		} else {
			value = int16(sample * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(value))
	}
	return out
}

// PCM16ToFloat32 converts little-endian signed 16-bit PCM back to
// floating-point samples normalized by 32768. A trailing odd byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		value := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(value) / 32768
	}
	return out
}

// EncodeFrame wraps a raw PCM payload in the transport-safe text
// representation used on the live channel.
func EncodeFrame(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// DecodeFrame reverses [EncodeFrame].
func DecodeFrame(frame string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio frame: %w", err)
	}
	return pcm, nil
}
