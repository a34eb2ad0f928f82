// Package retrieval implements the read path: multi-variant,
// multi-threshold similarity search and character-budgeted context
// assembly.
package retrieval

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/expand"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// floorThreshold is the lowest score threshold the relaxation loop will
// try before giving up on a query variant.
const floorThreshold = 0.1

// relaxationSteps are subtracted from the requested threshold, in order,
// until a variant produces results.
var relaxationSteps = []float32{0, 0.1, 0.2}

// Result is one retrieved chunk with its similarity score and the query
// variant that produced it.
type Result struct {
	ID      string              `json:"id"`
	Score   float32             `json:"similarity_score"`
	Query   string              `json:"search_query"`
	Payload vectorstore.Payload `json:"payload"`
}

// Engine orchestrates query expansion, embedding, and vector search.
type Engine struct {
	store    vectorstore.Store
	embedder embeddings.Provider
	expander *expand.Expander
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(store vectorstore.Store, embedder embeddings.Provider, expander *expand.Expander, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, embedder: embedder, expander: expander, logger: logger}
}

// Expand returns the query variants the engine would search for query,
// the original first.
func (e *Engine) Expand(query string) []string {
	return e.expander.Expand(query)
}

// Search retrieves up to limit deduplicated chunks for the query.
//
// Failures on the read path degrade to an empty slice rather than an
// error: a chat-style caller must always be able to fall back to a "no
// relevant information" answer. The collapse is deliberate; errors are
// logged, not returned.
func (e *Engine) Search(ctx context.Context, query string, limit int, threshold float32, useExpansion bool) []Result {
	results, err := e.search(ctx, query, limit, threshold, useExpansion)
	if err != nil {
		e.logger.Warn("search degraded to empty results",
			zap.String("query", query), zap.Error(err))
		return nil
	}
	return results
}

func (e *Engine) search(ctx context.Context, query string, limit int, threshold float32, useExpansion bool) ([]Result, error) {
	if query == "" || limit <= 0 {
		return nil, nil
	}

	variants := []string{query}
	if useExpansion {
		variants = e.expander.Expand(query)
	}

	// Dedup across variants is by exact content text, not by id: two
	// points could in principle carry identical text. The higher score
	// wins.
	best := make(map[string]Result)
	for _, variant := range variants {
		found, err := e.searchVariant(ctx, variant, limit, threshold)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			prev, ok := best[r.Payload.Content]
			if !ok || r.Score > prev.Score {
				best[r.Payload.Content] = r
			}
		}
	}

	pool := make([]Result, 0, len(best))
	for _, r := range best {
		pool = append(pool, r)
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// searchVariant embeds one query variant and searches with graceful
// threshold relaxation: the requested threshold first, then two lowered
// attempts floored at floorThreshold. The first non-empty result set
// wins.
func (e *Engine) searchVariant(ctx context.Context, variant string, limit int, threshold float32) ([]Result, error) {
	vector, err := e.embedder.EmbedQuery(ctx, variant)
	if err != nil {
		return nil, err
	}

	tried := float32(-1)
	for _, step := range relaxationSteps {
		th := threshold - step
		if th < floorThreshold {
			th = floorThreshold
		}
		if th == tried {
			break
		}
		tried = th

		found, err := e.store.Search(ctx, vector, limit, th, nil)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			results := make([]Result, len(found))
			for i, f := range found {
				results[i] = Result{
					ID:      f.ID,
					Score:   f.Score,
					Query:   variant,
					Payload: f.Payload,
				}
			}
			return results, nil
		}
	}
	return nil, nil
}
