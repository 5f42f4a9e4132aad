package audio

import "testing"

func TestResampleLinear16ChangesSampleCountProportionally(t *testing.T) {
	pcm := Float32ToPCM16(make([]float32, 800))

	up := ResampleLinear16(pcm, 8000, 16000)
	if len(up) != len(pcm)*2 {
		t.Fatalf("doubling the rate should double the payload, got %d bytes from %d", len(up), len(pcm))
	}

	down := ResampleLinear16(pcm, 16000, 8000)
	if len(down) != len(pcm)/2 {
		t.Fatalf("halving the rate should halve the payload, got %d bytes from %d", len(down), len(pcm))
	}
}

func TestResampleLinear16PreservesConstantSignal(t *testing.T) {
	samples := make([]float32, 100)
	for i := range samples {
		samples[i] = 0.5
	}

	out := PCM16ToFloat32(ResampleLinear16(Float32ToPCM16(samples), 16000, 24000))
	for i, sample := range out {
		diff := float64(sample - 0.5)
		if diff < 0 {
			diff = -diff
		}
		if diff > 2.0/32768 {
			t.Fatalf("sample %d drifted on a constant signal: %f", i, sample)
		}
	}
}

func TestResampleLinear16SameRatePassesThrough(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	out := ResampleLinear16(pcm, 16000, 16000)
	if &out[0] != &pcm[0] {
		t.Fatalf("matching rates should return the payload untouched")
	}
}
