package server

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/knowd/internal/retrieval"
)

// Debug search tuning. The thresholds sweep from strict to the engine's
// relaxation floor so retrieval problems show up as a count gradient.
const (
	debugSearchThreshold = 0.3
	debugContextChars    = 2000
	debugFloorThreshold  = 0.1
	debugPreviewChars    = 200
	debugTopResults      = 3
)

var debugThresholds = []float32{0.7, 0.5, 0.3, 0.2, 0.1}

// DebugResponse is the response body for POST /api/v1/knowledge/debug.
type DebugResponse struct {
	Query       string             `json:"query"`
	RawResults  []retrieval.Result `json:"raw_results"`
	ContextData *retrieval.Bundle  `json:"context_data"`
	DebugInfo   DebugInfo          `json:"debug_info"`
}

// DebugInfo summarizes a result set's score distribution.
type DebugInfo struct {
	TotalResults int     `json:"total_results"`
	ScoreRange   string  `json:"score_range"`
	AvgScore     float64 `json:"avg_score"`
}

// ComprehensiveDebugResponse is the response body for
// POST /api/v1/knowledge/debug-comprehensive.
type ComprehensiveDebugResponse struct {
	OriginalQuery  string          `json:"original_query"`
	QueryExpansion []string        `json:"query_expansion"`
	ThresholdTests []ThresholdTest `json:"threshold_tests"`
	BestResults    []DebugResult   `json:"best_results"`
	Analysis       DebugAnalysis   `json:"analysis"`
}

// ThresholdTest reports what a single threshold returned for the
// original query, expansion disabled.
type ThresholdTest struct {
	Threshold    float32        `json:"threshold"`
	ResultsCount int            `json:"results_count"`
	ScoreRange   string         `json:"score_range"`
	AvgScore     float64        `json:"avg_score"`
	TopResults   []DebugPreview `json:"top_results"`
}

// DebugPreview is a truncated view of one retrieved chunk.
type DebugPreview struct {
	Filename       string  `json:"filename"`
	Score          float32 `json:"score"`
	ContentPreview string  `json:"content_preview"`
}

// DebugResult is one fully expanded retrieval hit.
type DebugResult struct {
	Filename    string      `json:"filename"`
	ChunkIndex  int         `json:"chunk_index"`
	Score       float32     `json:"score"`
	SearchQuery string      `json:"search_query"`
	Content     string      `json:"content"`
	ChapterInfo ChapterInfo `json:"chapter_info"`
}

// ChapterInfo carries the structural metadata of a chunk.
type ChapterInfo struct {
	CurrentChapter string `json:"current_chapter,omitempty"`
	ChapterNumber  int    `json:"chapter_number,omitempty"`
}

// DebugAnalysis aggregates statistics over the best result set.
type DebugAnalysis struct {
	TotalResults         int              `json:"total_results"`
	ScoreStatistics      *ScoreStatistics `json:"score_statistics,omitempty"`
	FilenameDistribution map[string]int   `json:"filename_distribution,omitempty"`
	ChapterDistribution  map[string]int   `json:"chapter_distribution,omitempty"`
	ContentAnalysis      *ContentAnalysis `json:"content_analysis,omitempty"`
	Issue                string           `json:"issue,omitempty"`
}

// ScoreStatistics describes the similarity score distribution.
type ScoreStatistics struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Avg    float64 `json:"avg"`
	Median float64 `json:"median"`
}

// ContentAnalysis describes the retrieved chunk texts.
type ContentAnalysis struct {
	AvgContentLength    float64 `json:"avg_content_length"`
	ContentWithChapters int     `json:"content_with_chapters"`
	ContentWithNumbers  int     `json:"content_with_numbers"`
}

// handleDebug runs one search at a lowered threshold and returns the raw
// hits next to the assembled context, so a missing answer can be traced
// to either retrieval or assembly.
func (s *Server) handleDebug(c echo.Context) error {
	query := c.FormValue("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := formInt(c, "limit", 5)

	ctx := c.Request().Context()
	results := s.engine.Search(ctx, query, limit, debugSearchThreshold, true)
	if results == nil {
		results = []retrieval.Result{}
	}
	bundle := s.engine.GetContext(ctx, query, limit, debugContextChars,
		float32(s.rag.ScoreThreshold))

	return c.JSON(http.StatusOK, DebugResponse{
		Query:       query,
		RawResults:  results,
		ContextData: bundle,
		DebugInfo: DebugInfo{
			TotalResults: len(results),
			ScoreRange:   scoreRange(results),
			AvgScore:     avgScore(results),
		},
	})
}

// handleDebugComprehensive sweeps the threshold ladder with expansion
// off, then fetches the best obtainable results with expansion on, and
// reports distribution statistics over them.
func (s *Server) handleDebugComprehensive(c echo.Context) error {
	query := c.FormValue("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	limit := formInt(c, "limit", 15)
	testThresholds := formBool(c, "test_thresholds", true)

	ctx := c.Request().Context()
	resp := ComprehensiveDebugResponse{
		OriginalQuery:  query,
		QueryExpansion: s.engine.Expand(query),
		ThresholdTests: []ThresholdTest{},
		BestResults:    []DebugResult{},
	}

	if testThresholds {
		for _, th := range debugThresholds {
			results := s.engine.Search(ctx, query, limit, th, false)
			test := ThresholdTest{
				Threshold:    th,
				ResultsCount: len(results),
				ScoreRange:   scoreRange(results),
				AvgScore:     avgScore(results),
				TopResults:   []DebugPreview{},
			}
			for _, r := range results[:min(len(results), debugTopResults)] {
				test.TopResults = append(test.TopResults, DebugPreview{
					Filename:       r.Payload.Filename,
					Score:          r.Score,
					ContentPreview: contentPreview(r.Payload.Content),
				})
			}
			resp.ThresholdTests = append(resp.ThresholdTests, test)
		}
	}

	best := s.engine.Search(ctx, query, limit, debugFloorThreshold, true)
	for _, r := range best {
		resp.BestResults = append(resp.BestResults, DebugResult{
			Filename:    r.Payload.Filename,
			ChunkIndex:  r.Payload.ChunkIndex,
			Score:       r.Score,
			SearchQuery: r.Query,
			Content:     r.Payload.Content,
			ChapterInfo: ChapterInfo{
				CurrentChapter: r.Payload.Chapter,
				ChapterNumber:  r.Payload.ChapterNumber,
			},
		})
	}
	resp.Analysis = analyzeResults(best)

	return c.JSON(http.StatusOK, resp)
}

func analyzeResults(results []retrieval.Result) DebugAnalysis {
	if len(results) == 0 {
		return DebugAnalysis{
			Issue: "No results found even with very low threshold",
		}
	}

	scores := make([]float64, len(results))
	files := make(map[string]int)
	chapters := make(map[string]int)
	var contentLen, withChapters, withNumbers int
	for i, r := range results {
		scores[i] = float64(r.Score)
		files[r.Payload.Filename]++
		if r.Payload.Chapter != "" {
			chapters[r.Payload.Chapter]++
			withChapters++
		}
		contentLen += len(r.Payload.Content)
		if containsDigit(r.Payload.Content) {
			withNumbers++
		}
	}

	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	sum := 0.0
	for _, sc := range sorted {
		sum += sc
	}

	analysis := DebugAnalysis{
		TotalResults: len(results),
		ScoreStatistics: &ScoreStatistics{
			Min:    sorted[0],
			Max:    sorted[len(sorted)-1],
			Avg:    sum / float64(len(sorted)),
			Median: sorted[len(sorted)/2],
		},
		FilenameDistribution: files,
		ContentAnalysis: &ContentAnalysis{
			AvgContentLength:    float64(contentLen) / float64(len(results)),
			ContentWithChapters: withChapters,
			ContentWithNumbers:  withNumbers,
		},
	}
	if len(chapters) > 0 {
		analysis.ChapterDistribution = chapters
	}
	return analysis
}

// scoreRange formats the min and max scores of a result set, which is
// already sorted by descending score.
func scoreRange(results []retrieval.Result) string {
	if len(results) == 0 {
		return "No results"
	}
	return fmt.Sprintf("%.3f - %.3f",
		results[len(results)-1].Score, results[0].Score)
}

func avgScore(results []retrieval.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += float64(r.Score)
	}
	return sum / float64(len(results))
}

func contentPreview(content string) string {
	if len(content) <= debugPreviewChars {
		return content
	}
	cut := debugPreviewChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func formBool(c echo.Context, field string, fallback bool) bool {
	v := c.FormValue(field)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
