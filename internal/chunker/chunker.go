// Package chunker splits normalized text into bounded, overlapping chunks.
//
// The splitter is greedy and single-pass: it accumulates lines until the
// size target is reached, prefers splitting on blank lines (paragraph
// boundaries) and chapter markers, and carries a bounded tail of lines
// into the next chunk so context survives the boundary.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/knowd/internal/textnorm"
)

// Chunk is a contiguous span of a document's normalized text.
type Chunk struct {
	// Index is the ordinal position within the document.
	Index int
	// Text is the chunk content.
	Text string
	// Chapter is the structural label in effect ("Chapter 12"), if any.
	Chapter string
	// ChapterNumber is the parsed heading number, 0 when unlabeled.
	ChapterNumber int
}

// Splitter produces chunks from normalized text.
type Splitter struct {
	size    int
	overlap int
	markers *textnorm.MarkerSet
}

// New creates a splitter. size is the soft chunk budget in characters,
// overlap the maximum characters of trailing lines carried into the next
// chunk on a natural split.
func New(size, overlap int, markers *textnorm.MarkerSet) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{size: size, overlap: overlap, markers: markers}
}

// Split chunks the text. Chunks cover the input in order with no gaps;
// each stays within the size budget except when no blank-line boundary
// exists and the split is forced. Chapter metadata is inherited by every
// chunk until a newer marker supersedes it.
func (s *Splitter) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks  []Chunk
		buf     []string
		bufLen  int
		current textnorm.Marker
	)

	flush := func(m textnorm.Marker) {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body == "" {
			return
		}
		chunks = append(chunks, Chunk{
			Index:         len(chunks),
			Text:          body,
			Chapter:       m.Label,
			ChapterNumber: m.Number,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		if marker, ok := s.markers.MatchLine(line); ok {
			// A new heading closes the running chunk early once it holds
			// a meaningful amount of text, keeping chapters from bleeding
			// into each other. The closed chunk keeps the old label.
			if bufLen > s.size/2 {
				flush(current)
				buf = buf[:0]
				bufLen = 0
			}
			current = marker
		}

		buf = append(buf, line)
		bufLen += len(line) + 1

		if bufLen >= s.size {
			rest, restLen := s.splitBuffer(buf, &chunks, current)
			buf = rest
			bufLen = restLen
		}
	}

	flush(current)
	return chunks
}

// splitBuffer closes the full buffer as a chunk, preferring a blank-line
// boundary past the midpoint. It returns the carried-over lines for the
// next buffer and their total length.
func (s *Splitter) splitBuffer(buf []string, chunks *[]Chunk, m textnorm.Marker) ([]string, int) {
	at := s.findBlankLine(buf)
	if at < 0 {
		// Forced split: no paragraph boundary inside the buffer. Emit
		// everything and start clean, without overlap.
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		if body != "" {
			*chunks = append(*chunks, Chunk{
				Index:         len(*chunks),
				Text:          body,
				Chapter:       m.Label,
				ChapterNumber: m.Number,
			})
		}
		return nil, 0
	}

	body := strings.TrimSpace(strings.Join(buf[:at], "\n"))
	if body != "" {
		*chunks = append(*chunks, Chunk{
			Index:         len(*chunks),
			Text:          body,
			Chapter:       m.Label,
			ChapterNumber: m.Number,
		})
	}

	// Carry a bounded tail of the emitted lines as overlap, then the
	// remainder after the blank line.
	carried := s.overlapTail(buf[:at])
	rest := append(carried, buf[at+1:]...)
	restLen := 0
	for _, line := range rest {
		restLen += len(line) + 1
	}
	return rest, restLen
}

// findBlankLine returns the index of the last blank line at or past the
// buffer's character midpoint, or -1 if none exists. Splitting at the
// last boundary keeps chunks close to the size target; the midpoint
// floor prevents degenerate slivers.
func (s *Splitter) findBlankLine(buf []string) int {
	total := 0
	for _, line := range buf {
		total += len(line) + 1
	}

	at := -1
	pos := 0
	for i, line := range buf {
		if pos >= total/2 && strings.TrimSpace(line) == "" {
			at = i
		}
		pos += len(line) + 1
	}
	return at
}

// overlapTail returns the longest suffix of lines whose total length fits
// the overlap budget. When even the last line alone is too long, a
// rune-aligned suffix of it is carried so a natural split still overlaps.
func (s *Splitter) overlapTail(lines []string) []string {
	if s.overlap == 0 || len(lines) == 0 {
		return nil
	}
	size := 0
	start := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		size += len(lines[i]) + 1
		if size > s.overlap {
			break
		}
		start = i
	}
	if start == len(lines) {
		last := lines[len(lines)-1]
		cut := len(last) - s.overlap
		for cut < len(last) && !utf8.RuneStart(last[cut]) {
			cut++
		}
		if cut == len(last) {
			return nil
		}
		return []string{last[cut:]}
	}
	tail := lines[start:]
	out := make([]string, len(tail))
	copy(out, tail)
	return out
}
