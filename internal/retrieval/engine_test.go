package retrieval_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/expand"
	"github.com/fyrsmithlabs/knowd/internal/retrieval"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

// fakeEmbedder returns a fixed vector for any input.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

// fakeStore serves scripted results filtered by the requested threshold,
// mimicking score-threshold semantics of the real store.
type fakeStore struct {
	results   []vectorstore.SearchResult
	searchErr error
	searches  []float32
}

func (f *fakeStore) EnsureCollection(context.Context) error { return nil }

func (f *fakeStore) Upsert(context.Context, []vectorstore.Point) error { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, limit int, threshold float32, _ *vectorstore.Filter) ([]vectorstore.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.searches = append(f.searches, threshold)

	var out []vectorstore.SearchResult
	for _, r := range f.results {
		if r.Score >= threshold {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Scroll(context.Context, *vectorstore.Filter, int, string) ([]vectorstore.StoredPoint, string, error) {
	return nil, "", nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }

func (f *fakeStore) CollectionInfo(context.Context) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{}, nil
}

func (f *fakeStore) Close() error { return nil }

func result(id, content, filename string, chunk int, score float32) vectorstore.SearchResult {
	return vectorstore.SearchResult{
		ID:    id,
		Score: score,
		Payload: vectorstore.Payload{
			Content:     content,
			Filename:    filename,
			ChunkIndex:  chunk,
			ContentType: "text",
		},
	}
}

func newEngine(store vectorstore.Store) *retrieval.Engine {
	return retrieval.NewEngine(store, &fakeEmbedder{}, expand.New("en+es"), zap.NewNop())
}

func TestSearch_ReturnsSortedResults(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "alpha", "doc.txt", 0, 0.6),
		result("b", "bravo", "doc.txt", 1, 0.9),
		result("c", "charlie", "other.txt", 0, 0.7),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.3, false)
	require.Len(t, got, 3)
	assert.Equal(t, "bravo", got[0].Payload.Content)
	assert.Equal(t, "charlie", got[1].Payload.Content)
	assert.Equal(t, "alpha", got[2].Payload.Content)
}

func TestSearch_HonorsLimit(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "alpha", "doc.txt", 0, 0.6),
		result("b", "bravo", "doc.txt", 1, 0.9),
		result("c", "charlie", "other.txt", 0, 0.7),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 2, 0.3, false)
	assert.Len(t, got, 2)
}

func TestSearch_DeduplicatesByContent(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "same text", "doc.txt", 0, 0.6),
		result("b", "same text", "copy.txt", 0, 0.8),
		result("c", "unique text", "doc.txt", 1, 0.7),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.3, true)
	require.Len(t, got, 2)
	// The higher-scoring duplicate survives.
	assert.Equal(t, "same text", got[0].Payload.Content)
	assert.Equal(t, float32(0.8), got[0].Score)
}

func TestSearch_RelaxesThreshold(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "low score match", "doc.txt", 0, 0.45),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.6, false)
	require.Len(t, got, 1)
	assert.Equal(t, "low score match", got[0].Payload.Content)
	// Tried the requested threshold first, then relaxed.
	require.GreaterOrEqual(t, len(store.searches), 2)
	assert.InDelta(t, 0.6, float64(store.searches[0]), 1e-6)
	assert.InDelta(t, 0.5, float64(store.searches[1]), 1e-6)
}

func TestSearch_ThresholdFloor(t *testing.T) {
	store := &fakeStore{}
	e := newEngine(store)

	e.Search(context.Background(), "kubernetes ingress", 10, 0.15, false)
	for _, th := range store.searches {
		assert.GreaterOrEqual(t, th, float32(0.1))
	}
	// 0.15 then the 0.1 floor; the clamped repeat is not retried.
	assert.Len(t, store.searches, 2)
}

func TestSearch_StopsRelaxingOnFirstHit(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "good match", "doc.txt", 0, 0.9),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.6, false)
	require.Len(t, got, 1)
	assert.Len(t, store.searches, 1)
}

func TestSearch_ExpansionMergesVariants(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "chapter five content", "book.pdf", 4, 0.8),
	}}
	e := newEngine(store)

	got := e.Search(context.Background(), "capítulo 5", 10, 0.3, true)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].Query)
}

func TestSearch_ErrorDegradesToEmpty(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("connection refused")}
	e := newEngine(store)

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.3, false)
	assert.Empty(t, got)
}

func TestSearch_EmbedderErrorDegradesToEmpty(t *testing.T) {
	e := retrieval.NewEngine(&fakeStore{}, &fakeEmbedder{err: errors.New("quota exceeded")},
		expand.New("en+es"), zap.NewNop())

	got := e.Search(context.Background(), "kubernetes ingress", 10, 0.3, false)
	assert.Empty(t, got)
}

func TestExpand_OriginalVariantFirst(t *testing.T) {
	e := newEngine(&fakeStore{})

	variants := e.Expand("capítulo 5")
	require.NotEmpty(t, variants)
	assert.Equal(t, "capítulo 5", variants[0])
}

func TestSearch_EmptyQuery(t *testing.T) {
	e := newEngine(&fakeStore{})

	assert.Empty(t, e.Search(context.Background(), "", 10, 0.3, true))
	assert.Empty(t, e.Search(context.Background(), "query", 0, 0.3, true))
}
