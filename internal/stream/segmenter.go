package stream

import "strings"

// Flush thresholds. Fragments like "Ok." sound awkward in isolation and
// waste a synthesis call, so a unit must clear both bars.
const (
	DefaultMinChars = 20
	DefaultMinWords = 4
)

var sentenceTerminators = ".!?"

// Segmenter turns a growing text buffer into flushable sentence units.
// Push appends a chunk and reports whether the buffer now holds a
// complete unit; Flush drains whatever remains at end of stream.
type Segmenter struct {
	buf      strings.Builder
	minChars int
	minWords int
}

// NewSegmenter creates a segmenter with the default thresholds
func NewSegmenter() *Segmenter {
	return NewSegmenterWithThresholds(DefaultMinChars, DefaultMinWords)
}

// NewSegmenterWithThresholds creates a segmenter with custom thresholds
func NewSegmenterWithThresholds(minChars, minWords int) *Segmenter {
	return &Segmenter{minChars: minChars, minWords: minWords}
}

// Push appends chunk to the buffer. If the prefix up to the last
// sentence terminator meets both thresholds, it is consumed and
// returned; the remainder stays buffered for the next sentence.
func (s *Segmenter) Push(chunk string) (string, bool) {
	s.buf.WriteString(chunk)

	text := s.buf.String()
	idx := strings.LastIndexAny(text, sentenceTerminators)
	if idx < 0 {
		return "", false
	}

	candidate := text[:idx+1]
	if !s.meetsThresholds(candidate) {
		return "", false
	}

	s.buf.Reset()
	s.buf.WriteString(text[idx+1:])
	return strings.TrimSpace(candidate), true
}

// Flush returns any remaining buffered text if it meets the thresholds.
// Shorter trailing fragments are dropped: their text has already been
// delivered as text events, only audio is skipped.
func (s *Segmenter) Flush() (string, bool) {
	text := s.buf.String()
	s.buf.Reset()

	if !s.meetsThresholds(text) {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// Pending returns the current buffered length in bytes
func (s *Segmenter) Pending() int {
	return s.buf.Len()
}

func (s *Segmenter) meetsThresholds(text string) bool {
	trimmed := strings.TrimSpace(text)
	return len(trimmed) >= s.minChars && len(strings.Fields(trimmed)) >= s.minWords
}
