// Package chunk splits a script into synthesizable spans, drives their
// parallel rendering with a circuit breaker, validates every rendered span,
// and reassembles the results in script order.
package chunk

import (
	"strings"
	"unicode"
)

// MaxCharsPerChunk bounds one synthesis span. Tuned for Hebrew, whose
// diacritized text expands well past the raw script length.
const MaxCharsPerChunk = 1200

// Split cuts the script into ordered chunks of at most maxChars runes.
//
// A running buffer accumulates whole lines; a line is never cut in two.
// When the next line would overflow the budget, the buffer is flushed,
// preferring a cut at the most recent blank line or speaker boundary in
// its second half so chunks tend to start on a speaker turn. A single line
// longer than the budget is split at sentence boundaries; a single
// sentence longer than the budget is emitted whole.
func Split(script string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = MaxCharsPerChunk
	}
	lines := strings.Split(script, "\n")

	var chunks []string
	var buf []string
	bufLen := 0

	flush := func() {
		if bufLen == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			chunks = append(chunks, text)
		}
		buf = buf[:0]
		bufLen = 0
	}

	for _, line := range lines {
		n := len([]rune(line))
		if n > maxChars {
			flush()
			chunks = append(chunks, splitLongLine(line, maxChars)...)
			continue
		}
		if bufLen > 0 && bufLen+1+n > maxChars {
			// Prefer cutting at a boundary inside the buffer rather
			// than exactly here, so the next chunk opens cleanly.
			if cut := boundaryCut(buf); cut > 0 {
				head := strings.TrimSpace(strings.Join(buf[:cut], "\n"))
				if head != "" {
					chunks = append(chunks, head)
				}
				rest := append([]string{}, buf[cut:]...)
				buf = buf[:0]
				bufLen = 0
				for _, l := range rest {
					buf = append(buf, l)
					bufLen += len([]rune(l)) + 1
				}
			} else {
				flush()
			}
		}
		buf = append(buf, line)
		bufLen += n + 1
	}
	flush()
	return chunks
}

// boundaryCut returns the index after the last blank line or before the
// last speaker line in the second half of buf, or 0 when no boundary helps.
func boundaryCut(buf []string) int {
	for i := len(buf) - 1; i > len(buf)/2; i-- {
		if strings.TrimSpace(buf[i]) == "" {
			return i
		}
		if isSpeakerLine(buf[i]) {
			return i
		}
	}
	return 0
}

// isSpeakerLine reports whether the line opens a new speaker turn, i.e.
// starts with a short role label followed by a colon ("Host:", "Tech
// Expert:").
func isSpeakerLine(line string) bool {
	line = strings.TrimSpace(line)
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > 40 {
		return false
	}
	label := line[:idx]
	for _, r := range label {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// sentenceEnders terminate a sentence for long-line splitting. The sof
// pasuq covers pointed Hebrew text.
var sentenceEnders = []rune{'.', '!', '?', '׃'}

func isSentenceEnd(r rune) bool {
	for _, e := range sentenceEnders {
		if r == e {
			return true
		}
	}
	return false
}

// splitLongLine breaks an oversized line at sentence boundaries. Sentences
// are greedily packed into spans up to maxChars; a single oversized
// sentence is emitted whole rather than cut mid-phrase.
func splitLongLine(line string, maxChars int) []string {
	runes := []rune(line)
	var sentences []string
	start := 0
	for i, r := range runes {
		if isSentenceEnd(r) {
			sentences = append(sentences, strings.TrimSpace(string(runes[start:i+1])))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}

	var out []string
	var buf strings.Builder
	for _, s := range sentences {
		n := len([]rune(s))
		bl := len([]rune(buf.String()))
		if bl > 0 && bl+1+n > maxChars {
			out = append(out, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s)
	}
	if buf.Len() > 0 {
		out = append(out, buf.String())
	}
	return out
}
