package chunk_test

import (
	"strings"
	"testing"

	"github.com/voxloom/voxloom/pkg/chunk"
)

func TestSplitRespectsBudget(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		sb.WriteString("Host: ")
		sb.WriteString(strings.Repeat("word ", 20))
		sb.WriteString("\n")
	}
	chunks := chunk.Split(sb.String(), 1200)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 1200 {
			t.Errorf("chunk %d has %d runes, over budget", i, n)
		}
	}
}

func TestSplitNeverCutsMidLine(t *testing.T) {
	lines := []string{
		"Host: first line of the conversation here.",
		"Expert: second line with a bit more detail attached.",
		"Host: third line closing the topic.",
	}
	script := strings.Join(lines, "\n")
	chunks := chunk.Split(script, 90)

	var reassembled []string
	for _, c := range chunks {
		reassembled = append(reassembled, strings.Split(c, "\n")...)
	}
	if len(reassembled) != len(lines) {
		t.Fatalf("line count changed: %d vs %d", len(reassembled), len(lines))
	}
	for i, l := range reassembled {
		if strings.TrimSpace(l) != lines[i] {
			t.Errorf("line %d altered: %q", i, l)
		}
	}
}

func TestSplitOversizedLineAtSentences(t *testing.T) {
	long := strings.Repeat("This is a sentence. ", 30) // ~600 runes
	chunks := chunk.Split(long, 200)
	if len(chunks) < 3 {
		t.Fatalf("expected sentence-level splits, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(strings.TrimSpace(c), ".") {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, c)
		}
		if len([]rune(c)) > 200 {
			t.Errorf("chunk %d over budget", i)
		}
	}
}

func TestSplitOversizedSentenceEmittedWhole(t *testing.T) {
	sentence := strings.Repeat("word ", 100) + "end."
	chunks := chunk.Split(sentence, 100)
	if len(chunks) != 1 {
		t.Fatalf("single unbreakable sentence must stay whole, got %d chunks", len(chunks))
	}
}

func TestSplitShortScriptSingleChunk(t *testing.T) {
	script := "Host: hello.\nExpert: hi there."
	chunks := chunk.Split(script, 1200)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestSplitPreservesOrder(t *testing.T) {
	var lines []string
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 50))
	}
	script := strings.Join(lines, "\n")
	chunks := chunk.Split(script, 300)
	joined := strings.Join(chunks, "\n")
	if strings.ReplaceAll(joined, "\n", "") != strings.ReplaceAll(script, "\n", "") {
		t.Fatal("split lost or reordered content")
	}
}
