package wav

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ResamplePCM converts 16-bit mono PCM from srcRate to dstRate. The TTS
// service normally returns 24 kHz audio; when the response MIME type
// reports another rate, the chunk is brought to the canonical rate here
// instead of failing the episode.
func ResamplePCM(pcm []byte, srcRate, dstRate int) ([]byte, error) {
	if srcRate == dstRate {
		return pcm, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("wav: create resampler: %w", err)
	}

	n := len(pcm) / 2
	input := make([]float64, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		input[i] = float64(s) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("wav: resample: %w", err)
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		v := s
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		sample := int16(v * 32767.0)
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out, nil
}
