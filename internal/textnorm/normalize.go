// Package textnorm cleans raw extracted text before chunking.
//
// Extraction output carries artifacts: control characters, byte-order
// marks, repeated whitespace, stray page numbers. The normalizer strips
// those while preserving line structure, and isolates chapter/section
// headings on their own lines so the chunker can use them as split hints.
//
// Normalization is idempotent: Normalize(Normalize(x)) == Normalize(x).
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// punctuationWhitelist lists the punctuation runes preserved when
// stripping non-printable characters.
const punctuationWhitelist = `.,;:!?¿¡'"()[]{}<>-–—_/\|@#$%&*+=~^` + "`"

var (
	multiDots   = regexp.MustCompile(`\.{3,}`)
	multiDashes = regexp.MustCompile(`-{2,}`)
	spaceRuns   = regexp.MustCompile(`[ \t]+`)
	// numericLine matches a standalone page-number artifact.
	numericLine = regexp.MustCompile(`^\d{1,3}$`)
)

// Normalizer cleans raw document text.
type Normalizer struct {
	markers *MarkerSet
}

// New creates a normalizer using the given marker set.
func New(markers *MarkerSet) *Normalizer {
	return &Normalizer{markers: markers}
}

// Markers returns the marker set the normalizer isolates.
func (n *Normalizer) Markers() *MarkerSet {
	return n.markers
}

// Normalize cleans raw extracted text. Empty or whitespace-only input
// yields an empty string; that is a no-op, not an error.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = stripArtifacts(text)
	text = n.markers.isolate(text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blanks := 0
	for _, line := range lines {
		line = spaceRuns.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)
		line = multiDots.ReplaceAllString(line, "...")
		line = multiDashes.ReplaceAllString(line, "--")

		// Page-number heuristic: a line holding nothing but a short
		// number is an extraction artifact, not content.
		if numericLine.MatchString(line) {
			continue
		}

		if line == "" {
			blanks++
			if len(out) == 0 || blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}

	// Trim trailing blank lines.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}

// stripArtifacts removes control characters and non-printable runes,
// keeping newlines, letters, digits, spaces, and whitelisted punctuation.
func stripArtifacts(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteRune(r)
		case r == '\uFEFF' || r == '\u200B': // BOM, zero-width space
			continue
		case unicode.IsControl(r):
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '\t':
			b.WriteRune(r)
		case strings.ContainsRune(punctuationWhitelist, r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return b.String()
}
