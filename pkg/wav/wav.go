// Package wav handles the canonical waveform format of the pipeline:
// 16-bit little-endian PCM, mono, 24 kHz, wrapped in the 44-byte
// RIFF/WAVE/fmt /data header. It builds and parses headers, validates
// rendered chunks, concatenates chunk PCM into one file, and scans for the
// extended silence that signals a latent synthesis failure.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Canonical output format.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16

	// HeaderSize is the canonical RIFF/WAVE/fmt /data header length.
	HeaderSize = 44
)

var (
	ErrTooShort  = errors.New("wav: data shorter than header")
	ErrBadHeader = errors.New("wav: not a RIFF/WAVE header")
)

// Header describes a parsed WAV header.
type Header struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataLen    int
}

// Duration returns the audio length in seconds.
func (h Header) Duration() float64 {
	bytesPerSec := h.SampleRate * h.Channels * h.BitDepth / 8
	if bytesPerSec == 0 {
		return 0
	}
	return float64(h.DataLen) / float64(bytesPerSec)
}

// EncodeHeader builds the 44-byte header for dataLen bytes of PCM.
func EncodeHeader(dataLen, sampleRate, channels, bitDepth int) []byte {
	h := make([]byte, HeaderSize)
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], uint16(bitDepth))
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	return h
}

// FromPCM wraps raw PCM in a canonical-format file at the given rate.
func FromPCM(pcm []byte, sampleRate int) []byte {
	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, EncodeHeader(len(pcm), sampleRate, Channels, BitDepth)...)
	return append(out, pcm...)
}

// ParseHeader reads the canonical 44-byte header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTooShort
	}
	if err := CheckMagic(b); err != nil {
		return Header{}, err
	}
	return Header{
		SampleRate: int(binary.LittleEndian.Uint32(b[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(b[22:24])),
		BitDepth:   int(binary.LittleEndian.Uint16(b[34:36])),
		DataLen:    int(binary.LittleEndian.Uint32(b[40:44])),
	}, nil
}

// CheckMagic verifies the RIFF and WAVE magic bytes.
func CheckMagic(b []byte) error {
	if len(b) < 12 {
		return ErrTooShort
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return ErrBadHeader
	}
	return nil
}

// Data returns the PCM payload after the canonical header.
func Data(b []byte) ([]byte, error) {
	if len(b) < HeaderSize {
		return nil, ErrTooShort
	}
	return b[HeaderSize:], nil
}

// Duration computes the audio length in seconds from the file's header.
func Duration(b []byte) (float64, error) {
	h, err := ParseHeader(b)
	if err != nil {
		return 0, err
	}
	return h.Duration(), nil
}

// Concat joins complete WAV chunks into one file. The sample rate comes
// from the first chunk's header; headers of chunks 2..N are stripped and
// their PCM appended. The output header is sized to the combined payload.
func Concat(chunks [][]byte) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, errors.New("wav: no chunks to concatenate")
	}
	first, err := ParseHeader(chunks[0])
	if err != nil {
		return nil, fmt.Errorf("wav: chunk 0: %w", err)
	}

	total := 0
	for i, c := range chunks {
		if len(c) < HeaderSize {
			return nil, fmt.Errorf("wav: chunk %d: %w", i, ErrTooShort)
		}
		if err := CheckMagic(c); err != nil {
			return nil, fmt.Errorf("wav: chunk %d: %w", i, err)
		}
		total += len(c) - HeaderSize
	}

	out := make([]byte, 0, HeaderSize+total)
	out = append(out, EncodeHeader(total, first.SampleRate, first.Channels, first.BitDepth)...)
	for _, c := range chunks {
		out = append(out, c[HeaderSize:]...)
	}
	return out, nil
}

// Silence scan parameters.
const (
	silenceWindow     = 100 // ms per RMS window
	silenceFloorDB    = -45.0
	silenceLimitSec   = 5.0
	silenceSampleStep = 5 // fast mode: measure every Nth window
)

// HasExtendedSilence reports whether the file contains at least
// silenceLimitSec of continuous audio below silenceFloorDB.
//
// PCM samples are scanned in 100 ms RMS windows. In fast mode only every
// fifth window is measured; a measured window stands in for the stride it
// leads, so a run of consecutive quiet measurements spanning more than the
// limit trips the detector. The scan exits on the first such run. This is
// the primary detector for TTS renders that emitted silence instead of
// speech.
func HasExtendedSilence(b []byte) bool {
	h, err := ParseHeader(b)
	if err != nil {
		return false
	}
	pcm := b[HeaderSize:]
	if h.BitDepth != 16 || h.Channels < 1 {
		return false
	}

	samplesPerWindow := h.SampleRate * h.Channels * silenceWindow / 1000
	bytesPerWindow := samplesPerWindow * 2
	if bytesPerWindow == 0 {
		return false
	}
	numWindows := len(pcm) / bytesPerWindow

	// Each measured window represents silenceSampleStep windows of audio.
	strideSec := float64(silenceWindow*silenceSampleStep) / 1000.0
	needed := int(math.Ceil(silenceLimitSec / strideSec))

	run := 0
	for w := 0; w < numWindows; w += silenceSampleStep {
		start := w * bytesPerWindow
		if rmsDB(pcm[start:start+bytesPerWindow]) < silenceFloorDB {
			run++
			if run >= needed {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// rmsDB computes the RMS level of 16-bit little-endian PCM in dBFS.
func rmsDB(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return -math.MaxFloat64
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms <= 0 {
		return -math.MaxFloat64
	}
	return 20 * math.Log10(rms)
}
