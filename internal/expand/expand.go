// Package expand generates lexical query variants to widen recall.
//
// Expansion is pattern-driven: a declarative table pairs detection
// patterns with variant generators. It is a best-effort recall booster,
// never a semantic reformulation: variants only restate the same
// reference with different words, they never alter intent.
package expand

import (
	"fmt"
	"regexp"
	"strings"
)

// maxVariants caps the expansion set, original query included.
const maxVariants = 5

// rule pairs a detection pattern with a variant generator. The generator
// receives the regexp submatches and returns candidate variants.
type rule struct {
	pattern  *regexp.Regexp
	generate func(groups []string) []string
}

// sectionVariantKeywords lists, per language selector, the keywords used
// to restate a numbered-section reference. Order matters: earlier
// entries survive the variant cap.
var sectionVariantKeywords = map[string][]string{
	"en":    {"chapter", "section", "part", "unit"},
	"es":    {"capítulo", "capitulo", "sección", "tema", "parte"},
	"en+es": {"capítulo", "chapter", "capitulo", "sección", "tema", "section", "parte"},
}

// aboutParaphrases restates "what is this about"-style questions.
var aboutParaphrases = map[string][]string{
	"en":    {"document summary", "main topics overview", "introduction contents"},
	"es":    {"resumen del documento", "temas principales", "introducción contenido"},
	"en+es": {"document summary", "resumen del documento", "main topics overview", "temas principales"},
}

// domainSynonyms maps a detected domain keyword to its lexical synonyms.
var domainSynonyms = map[string][]string{
	"manual":        {"guide", "guía", "handbook"},
	"guide":         {"manual", "handbook"},
	"guía":          {"manual", "guide"},
	"documentation": {"docs", "manual", "reference"},
	"tutorial":      {"guide", "walkthrough", "lesson"},
}

// Expander produces ordered, deduplicated query variants.
type Expander struct {
	rules []rule
}

// New builds an expander for the given language selector ("en", "es",
// "en+es"). Unknown selectors fall back to "en+es".
func New(language string) *Expander {
	sectionKeywords, ok := sectionVariantKeywords[language]
	if !ok {
		sectionKeywords = sectionVariantKeywords["en+es"]
	}
	paraphrases, ok := aboutParaphrases[language]
	if !ok {
		paraphrases = aboutParaphrases["en+es"]
	}

	sectionPattern := regexp.MustCompile(
		`(?i)\b(chapter|section|part|unit|cap[ií]tulo|secci[oó]n|tema|parte|unidad)\s+(\d{1,4})\b`)
	aboutPattern := regexp.MustCompile(
		`(?i)\b(what\s+is|what\s+does|what.*about|contain|qu[eé]\s+es|de\s+qu[eé]\s+trata|contiene)\b`)

	var domainAlternation []string
	for kw := range domainSynonyms {
		domainAlternation = append(domainAlternation, regexp.QuoteMeta(kw))
	}
	domainPattern := regexp.MustCompile(
		`(?i)\b(` + strings.Join(domainAlternation, "|") + `)\b`)

	return &Expander{rules: []rule{
		{
			pattern: sectionPattern,
			generate: func(groups []string) []string {
				number := groups[2]
				variants := make([]string, 0, len(sectionKeywords))
				for _, kw := range sectionKeywords {
					variants = append(variants, fmt.Sprintf("%s %s", kw, number))
				}
				return variants
			},
		},
		{
			pattern: aboutPattern,
			generate: func([]string) []string {
				return paraphrases
			},
		},
		{
			pattern: domainPattern,
			generate: func(groups []string) []string {
				return domainSynonyms[strings.ToLower(groups[1])]
			},
		},
	}}
}

// Expand returns the query's variants: the original always first, at most
// maxVariants entries, deduplicated case-insensitively in order.
func (e *Expander) Expand(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	candidates := []string{query}
	for _, r := range e.rules {
		groups := r.pattern.FindStringSubmatch(query)
		if groups == nil {
			continue
		}
		candidates = append(candidates, r.generate(groups)...)
	}

	seen := make(map[string]struct{}, len(candidates))
	variants := make([]string, 0, maxVariants)
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, strings.TrimSpace(c))
		if len(variants) == maxVariants {
			break
		}
	}
	return variants
}
