// Package chunk implements the text splitting capability consumed by the
// knowledge-base ingestion pipeline.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// Splitter is the consumed capability: split text into size-bounded,
// overlapping pieces. Implementations must be deterministic for identical
// inputs and must not drop characters other than to honor the size/overlap
// contract at chunk boundaries.
type Splitter interface {
	Split(text string, size, overlap int) []string
}

// Piece is a splitter output that additionally records its byte offsets
// into the original text, used by the KB builder to populate Chunk.SourceOffset.
type Piece struct {
	Content string
	Start   int
	End     int
}

// separators in descending split priority: paragraph break, line break,
// sentence boundary, word boundary. Hard cut is the fallback when none are
// found.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// RecursiveSplitter is the default Chunker: a character-based splitter
// that prefers to break at a paragraph, then a line, then a sentence,
// then a word boundary before falling back to a
// hard cut at the size limit.
type RecursiveSplitter struct{}

// NewRecursiveSplitter constructs the default splitter. It carries no
// state; a value type would do equally well, but a constructor keeps the
// call sites consistent with the rest of the package.
func NewRecursiveSplitter() *RecursiveSplitter {
	return &RecursiveSplitter{}
}

var _ Splitter = (*RecursiveSplitter)(nil)

// Split implements Splitter, discarding offsets. Use SplitWithOffsets when
// the caller needs Chunk.SourceOffset.
func (s *RecursiveSplitter) Split(text string, size, overlap int) []string {
	pieces := s.SplitWithOffsets(text, size, overlap)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Content
	}
	return out
}

// SplitWithOffsets produces the same pieces as Split plus the byte range
// each piece occupied in text.
func (s *RecursiveSplitter) SplitWithOffsets(text string, size, overlap int) []Piece {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var pieces []Piece
	pos := 0
	for pos < len(text) {
		end := pos + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = bestBreak(text, pos, end)
		}
		end = runeSafe(text, end)
		if end <= pos {
			end = runeSafe(text, minInt(pos+1, len(text)))
		}

		pieces = append(pieces, Piece{Content: text[pos:end], Start: pos, End: end})

		if end >= len(text) {
			break
		}
		next := runeSafe(text, end-overlap)
		if next <= pos {
			next = end
		}
		pos = next
	}
	return pieces
}

// bestBreak looks for the highest-priority separator inside text[start:limit]
// and returns the index just past it. Falls back to limit (hard cut) if no
// separator is found.
func bestBreak(text string, start, limit int) int {
	window := text[start:limit]
	for _, sep := range separators {
		if idx := strings.LastIndex(window, sep); idx > 0 {
			return start + idx + len(sep)
		}
	}
	return limit
}

// runeSafe nudges end backward until it does not split a multi-byte rune.
func runeSafe(text string, end int) int {
	for end > 0 && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
