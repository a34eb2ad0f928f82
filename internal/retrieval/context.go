package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// maxScoreSummaryEntries caps how many sources the similarity summary
// line names.
const maxScoreSummaryEntries = 5

// Source describes one chunk that contributed to an assembled context.
type Source struct {
	Filename    string  `json:"filename"`
	ChunkIndex  int     `json:"chunk_index"`
	Score       float64 `json:"similarity_score"`
	ContentType string  `json:"content_type,omitempty"`
}

// Bundle is an assembled grounding context ready to hand to a language
// model.
type Bundle struct {
	Context          string   `json:"context"`
	ContextCount     int      `json:"context_count"`
	SimilarityScores string   `json:"similarity_scores"`
	Sources          []Source `json:"sources"`
}

// GetContext searches the knowledge base and assembles a context string
// under the maxChars budget. An empty knowledge base, or a degraded
// search, yields an empty bundle, never an error.
func (e *Engine) GetContext(ctx context.Context, query string, maxChunks, maxChars int, threshold float32) *Bundle {
	// Over-fetch so that grouping and budgeting have material to choose
	// from; the budget below is what actually limits the output.
	results := e.Search(ctx, query, 2*maxChunks, threshold, true)
	if len(results) == 0 {
		return &Bundle{SimilarityScores: "No relevant sources found"}
	}

	groups := groupByFile(results)

	var (
		parts   []string
		sources []Source
		chars   int
	)
assemble:
	for _, group := range groups {
		for _, r := range group {
			part := fmt.Sprintf("[Document %d - %s]\n%s\n",
				len(parts)+1, r.Payload.Filename, r.Payload.Content)
			// Every part after the first costs one extra byte for the
			// join separator below.
			cost := len(part)
			if len(parts) > 0 {
				cost++
			}
			if chars+cost > maxChars && len(parts) > 0 {
				break assemble
			}
			parts = append(parts, part)
			chars += cost
			sources = append(sources, Source{
				Filename:    r.Payload.Filename,
				ChunkIndex:  r.Payload.ChunkIndex,
				Score:       roundScore(r.Score),
				ContentType: r.Payload.ContentType,
			})
			if len(parts) >= maxChunks {
				break assemble
			}
		}
	}

	return &Bundle{
		Context:          strings.Join(parts, "\n"),
		ContextCount:     len(sources),
		SimilarityScores: summarizeScores(sources),
		Sources:          sources,
	}
}

// groupByFile buckets results per filename, preserving the score order
// of the files themselves, and sorts each bucket by chunk index so that
// chunks from one document read in document order.
func groupByFile(results []Result) [][]Result {
	order := make([]string, 0, len(results))
	byFile := make(map[string][]Result)
	for _, r := range results {
		name := r.Payload.Filename
		if _, seen := byFile[name]; !seen {
			order = append(order, name)
		}
		byFile[name] = append(byFile[name], r)
	}

	groups := make([][]Result, 0, len(order))
	for _, name := range order {
		group := byFile[name]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Payload.ChunkIndex < group[j].Payload.ChunkIndex
		})
		groups = append(groups, group)
	}
	return groups
}

func summarizeScores(sources []Source) string {
	if len(sources) == 0 {
		return "No relevant sources found"
	}
	n := len(sources)
	if n > maxScoreSummaryEntries {
		n = maxScoreSummaryEntries
	}
	entries := make([]string, n)
	for i := 0; i < n; i++ {
		entries[i] = fmt.Sprintf("%s (%.3f)", sources[i].Filename, sources[i].Score)
	}
	return "Similarity scores: " + strings.Join(entries, ", ")
}

func roundScore(score float32) float64 {
	return math.Round(float64(score)*1000) / 1000
}
