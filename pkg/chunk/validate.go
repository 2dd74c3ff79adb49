package chunk

import (
	"fmt"

	"github.com/voxloom/voxloom/pkg/wav"
)

// Rendered-chunk acceptance bounds.
const (
	MinBytes       = 1024
	MinSeconds     = 1.0
	MaxSeconds     = 300.0
	silenceCheckAt = 3.0 // silence scan applies above this duration
)

// ValidateRendered accepts or rejects one rendered chunk. Rejection means
// the synthesis attempt is retried; it never means publishing a degraded
// chunk. The extended-silence scan is the main catch for renders where the
// model emitted silence instead of speech.
func ValidateRendered(wavBytes []byte, duration float64) error {
	if len(wavBytes) < MinBytes {
		return fmt.Errorf("chunk: rendered audio too small (%d bytes)", len(wavBytes))
	}
	if duration < MinSeconds || duration > MaxSeconds {
		return fmt.Errorf("chunk: rendered duration %.1fs outside [%.0fs, %.0fs]",
			duration, MinSeconds, MaxSeconds)
	}
	if err := wav.CheckMagic(wavBytes); err != nil {
		return fmt.Errorf("chunk: rendered audio is not a WAV: %w", err)
	}
	if duration > silenceCheckAt && wav.HasExtendedSilence(wavBytes) {
		return fmt.Errorf("chunk: rendered audio contains over 5s of continuous silence")
	}
	return nil
}
