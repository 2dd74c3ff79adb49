package wav_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/voxloom/voxloom/pkg/wav"
)

// tone generates seconds of a 440 Hz sine at the given amplitude.
func tone(t *testing.T, seconds float64, amplitude float64) []byte {
	t.Helper()
	n := int(seconds * wav.SampleRate)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := amplitude * math.Sin(2*math.Pi*440*float64(i)/wav.SampleRate)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767)))
	}
	return pcm
}

func silence(t *testing.T, seconds float64) []byte {
	t.Helper()
	return make([]byte, int(seconds*wav.SampleRate)*2)
}

func TestHeaderRoundTrip(t *testing.T) {
	pcm := tone(t, 1.5, 0.5)
	file := wav.FromPCM(pcm, wav.SampleRate)

	h, err := wav.ParseHeader(file)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.SampleRate != 24000 || h.Channels != 1 || h.BitDepth != 16 {
		t.Fatalf("header = %+v", h)
	}
	if h.DataLen != len(pcm) {
		t.Fatalf("DataLen = %d, want %d", h.DataLen, len(pcm))
	}
	if got := h.Duration(); math.Abs(got-1.5) > 0.001 {
		t.Fatalf("Duration = %v, want 1.5", got)
	}
}

func TestCheckMagicRejectsGarbage(t *testing.T) {
	if err := wav.CheckMagic([]byte("RIFFxxxxMP3 ")); err == nil {
		t.Error("non-WAVE bytes accepted")
	}
	if err := wav.CheckMagic([]byte("shrt")); err == nil {
		t.Error("short buffer accepted")
	}
}

func TestConcatLengthsAndHeader(t *testing.T) {
	chunks := [][]byte{
		wav.FromPCM(tone(t, 1, 0.5), wav.SampleRate),
		wav.FromPCM(tone(t, 2, 0.4), wav.SampleRate),
		wav.FromPCM(tone(t, 0.5, 0.6), wav.SampleRate),
	}
	var wantData int
	for _, c := range chunks {
		wantData += len(c) - wav.HeaderSize
	}

	out, err := wav.Concat(chunks)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	h, err := wav.ParseHeader(out)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.DataLen != wantData {
		t.Fatalf("DataLen = %d, want %d", h.DataLen, wantData)
	}
	if len(out) != wav.HeaderSize+wantData {
		t.Fatalf("len(out) = %d, want %d", len(out), wav.HeaderSize+wantData)
	}
	// RIFF ChunkSize must match 36 + data length.
	riffSize := int(binary.LittleEndian.Uint32(out[4:8]))
	if riffSize != 36+wantData {
		t.Fatalf("RIFF size = %d, want %d", riffSize, 36+wantData)
	}
	if got := h.Duration(); math.Abs(got-3.5) > 0.001 {
		t.Fatalf("combined duration = %v, want 3.5", got)
	}
}

func TestConcatRejectsEmptyAndBadChunks(t *testing.T) {
	if _, err := wav.Concat(nil); err == nil {
		t.Error("empty chunk list accepted")
	}
	good := wav.FromPCM(tone(t, 1, 0.5), wav.SampleRate)
	if _, err := wav.Concat([][]byte{good, []byte("not a wav")}); err == nil {
		t.Error("corrupt second chunk accepted")
	}
}

func TestHasExtendedSilenceDetectsLongGap(t *testing.T) {
	// 1 s speech, 6.5 s silence, 1 s speech: the gap exceeds the 5 s limit.
	pcm := append(tone(t, 1, 0.5), silence(t, 6.5)...)
	pcm = append(pcm, tone(t, 1, 0.5)...)
	if !wav.HasExtendedSilence(wav.FromPCM(pcm, wav.SampleRate)) {
		t.Fatal("6.5s gap not detected")
	}
}

func TestHasExtendedSilenceAcceptsNormalPauses(t *testing.T) {
	// Short pauses between sentences are normal speech.
	pcm := tone(t, 2, 0.5)
	pcm = append(pcm, silence(t, 1.5)...)
	pcm = append(pcm, tone(t, 2, 0.5)...)
	pcm = append(pcm, silence(t, 2)...)
	pcm = append(pcm, tone(t, 2, 0.5)...)
	if wav.HasExtendedSilence(wav.FromPCM(pcm, wav.SampleRate)) {
		t.Fatal("normal pauses flagged as extended silence")
	}
}

func TestHasExtendedSilenceAllSilent(t *testing.T) {
	if !wav.HasExtendedSilence(wav.FromPCM(silence(t, 8), wav.SampleRate)) {
		t.Fatal("fully silent chunk not detected")
	}
}

func TestResamplePCMSameRateIsIdentity(t *testing.T) {
	pcm := tone(t, 1, 0.5)
	out, err := wav.ResamplePCM(pcm, 24000, 24000)
	if err != nil {
		t.Fatalf("ResamplePCM: %v", err)
	}
	if len(out) != len(pcm) {
		t.Fatalf("identity resample changed length: %d vs %d", len(out), len(pcm))
	}
}
