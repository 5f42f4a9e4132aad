package audio

import "encoding/binary"

// ResampleLinear16 converts mono little-endian 16-bit PCM between sample
// rates by linear interpolation. Good enough for speech payloads; callers
// needing transparent quality should decode at the target rate instead.
func ResampleLinear16(pcm []byte, fromRate, toRate int) []byte {
	if fromRate <= 0 || toRate <= 0 || fromRate == toRate {
		return pcm
	}

	samples := len(pcm) / 2
	if samples == 0 {
		return nil
	}

	outSamples := int(int64(samples) * int64(toRate) / int64(fromRate))
	out := make([]byte, outSamples*2)
	for i := 0; i < outSamples; i++ {
		pos := float64(i) * float64(fromRate) / float64(toRate)
		idx := int(pos)
		if idx >= samples {
			idx = samples - 1
		}

		current := float64(int16(binary.LittleEndian.Uint16(pcm[idx*2:])))
		value := current
		if idx+1 < samples {
			next := float64(int16(binary.LittleEndian.Uint16(pcm[(idx+1)*2:])))
			frac := pos - float64(idx)
			value = current + (next-current)*frac
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(value)))
	}
	return out
}
