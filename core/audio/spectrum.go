package audio

// SpectrumBins is the number of magnitude bins produced per analysis
// snapshot. Matches what the level meter renders without rescaling.
const SpectrumBins = 32

// Spectrum reduces a little-endian 16-bit PCM chunk to SpectrumBins mean
// magnitude values on a 0-255 scale. Each bin covers a contiguous slice of
// the chunk, so the result approximates an amplitude envelope rather than a
// true frequency transform. The VAD only needs the mean of the bins, which
// is identical either way.
func Spectrum(pcm []byte) []byte {
	bins := make([]byte, SpectrumBins)
	samples := len(pcm) / 2
	if samples == 0 {
		return bins
	}

	perBin := samples / SpectrumBins
	if perBin == 0 {
		perBin = 1
	}

	for bin := 0; bin < SpectrumBins; bin++ {
		start := bin * perBin
		if start >= samples {
			break
		}
		end := start + perBin
		if end > samples {
			end = samples
		}

		var total int64
		for i := start; i < end; i++ {
			value := int64(int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8))
			if value < 0 {
				value = -value
			}
			total += value
		}

		// Scale the 0-32767 mean onto the 0-255 range the detector expects.
		bins[bin] = byte(total / int64(end-start) >> 7)
	}

	return bins
}

// MeanMagnitude averages a set of spectrum bins. This is the scalar the
// voice activity detector thresholds against.
func MeanMagnitude(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}

	var total int
	for _, bin := range bins {
		total += int(bin)
	}
	return float64(total) / float64(len(bins))
}
