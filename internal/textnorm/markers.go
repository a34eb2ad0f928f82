package textnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// markerKeywords maps a language code to the structural keywords that open
// a chapter or section heading ("Chapter 12", "Capítulo 12"). The sets are
// configuration: adding a language means adding an entry here, not logic.
var markerKeywords = map[string][]string{
	"en": {"chapter", "section", "part", "unit"},
	"es": {"capítulo", "capitulo", "sección", "seccion", "tema", "parte", "unidad"},
}

// Marker is a recognized chapter/section heading.
type Marker struct {
	// Label is the heading text as it appears, e.g. "Chapter 12".
	Label string
	// Number is the parsed heading number.
	Number int
}

// MarkerSet recognizes chapter/section markers for a set of languages.
type MarkerSet struct {
	pattern     *regexp.Regexp
	linePattern *regexp.Regexp
}

// NewMarkerSet builds a marker set for the given language selector.
// Accepted values: a single code ("en", "es") or codes joined with '+'
// ("en+es"). Unknown codes fall back to the English set.
func NewMarkerSet(language string) *MarkerSet {
	var keywords []string
	for _, lang := range strings.Split(language, "+") {
		if kws, ok := markerKeywords[strings.TrimSpace(lang)]; ok {
			keywords = append(keywords, kws...)
		}
	}
	if len(keywords) == 0 {
		keywords = markerKeywords["en"]
	}

	for i, kw := range keywords {
		keywords[i] = regexp.QuoteMeta(kw)
	}
	alternation := strings.Join(keywords, "|")

	return &MarkerSet{
		pattern:     regexp.MustCompile(fmt.Sprintf(`(?i)\b(%s)\s+(\d{1,4})\b`, alternation)),
		linePattern: regexp.MustCompile(fmt.Sprintf(`(?i)^(%s)\s+(\d{1,4})$`, alternation)),
	}
}

// MatchLine reports whether the trimmed line is exactly a marker heading.
func (m *MarkerSet) MatchLine(line string) (Marker, bool) {
	trimmed := strings.TrimSpace(line)
	groups := m.linePattern.FindStringSubmatch(trimmed)
	if groups == nil {
		return Marker{}, false
	}
	n, err := strconv.Atoi(groups[2])
	if err != nil {
		return Marker{}, false
	}
	return Marker{Label: trimmed, Number: n}, true
}

// isolate inserts line breaks around marker occurrences so each marker
// ends up alone on its own line. Markers already at line boundaries are
// left untouched, keeping the operation idempotent.
func (m *MarkerSet) isolate(text string) string {
	locs := m.pattern.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 2*len(locs))
	prev := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		b.WriteString(text[prev:start])
		if start > 0 && text[start-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(text[start:end])
		if end < len(text) && text[end] != '\n' {
			b.WriteByte('\n')
		}
		prev = end
	}
	b.WriteString(text[prev:])
	return b.String()
}
