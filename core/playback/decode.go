package playback

import (
	"bytes"
	"fmt"
	"io"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/nimbusdesk/voice-core/core/audio"
)

// Decode turns an encoded clip into raw linear16 mono samples plus the
// encoding the decoder reported. Raw clips pass through untouched.
func Decode(clip *audio.Clip) ([]byte, audio.EncodingInfo, error) {
	if clip.IsEmpty() {
		return nil, audio.EncodingInfo{}, fmt.Errorf("cannot decode empty clip")
	}

	switch clip.MIMEType {
	case audio.MIMETypePCM16:
		info := clip.EncodingInfo
		if info.IsZero() {
			info = audio.GetDefaultEncodingInfo()
		}
		return clip.Bytes, info, nil

	case audio.MIMETypeMP3:
		streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip.Bytes)))
		if err != nil {
			return nil, audio.EncodingInfo{}, fmt.Errorf("failed to decode mp3 clip: %w", err)
		}
		defer streamer.Close()
		return drain(streamer, format)

	case audio.MIMETypeWAV, "":
		streamer, format, err := wav.Decode(io.NopCloser(bytes.NewReader(clip.Bytes)))
		if err != nil {
			return nil, audio.EncodingInfo{}, fmt.Errorf("failed to decode wav clip: %w", err)
		}
		defer streamer.Close()
		return drain(streamer, format)
	}

	return nil, audio.EncodingInfo{}, fmt.Errorf("unsupported clip type %q", clip.MIMEType)
}

func drain(streamer beep.Streamer, format beep.Format) ([]byte, audio.EncodingInfo, error) {
	samples := make([][2]float64, 512)
	mono := []float32{}
	for {
		n, ok := streamer.Stream(samples)
		for _, sample := range samples[:n] {
			mono = append(mono, float32((sample[0]+sample[1])/2))
		}
		if !ok {
			break
		}
	}

	info := audio.EncodingInfo{SampleRate: int(format.SampleRate), Format: audio.EncodingLinear16}
	return audio.Float32ToPCM16(mono), info, nil
}
