package retrieval_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

func TestGetContext_EmptyKnowledgeBase(t *testing.T) {
	e := newEngine(&fakeStore{})

	bundle := e.GetContext(context.Background(), "anything at all", 8, 6000, 0.3)
	require.NotNil(t, bundle)
	assert.Empty(t, bundle.Context)
	assert.Zero(t, bundle.ContextCount)
	assert.Empty(t, bundle.Sources)
	assert.Equal(t, "No relevant sources found", bundle.SimilarityScores)
}

func TestGetContext_AssemblesChunks(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "first chunk of the guide", "guide.pdf", 0, 0.9),
		result("b", "second chunk of the guide", "guide.pdf", 1, 0.8),
		result("c", "notes content", "notes.txt", 0, 0.7),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 6000, 0.3)
	require.Equal(t, 3, bundle.ContextCount)
	require.Len(t, bundle.Sources, 3)

	assert.Contains(t, bundle.Context, "[Document 1 - guide.pdf]")
	assert.Contains(t, bundle.Context, "[Document 2 - guide.pdf]")
	assert.Contains(t, bundle.Context, "[Document 3 - notes.txt]")
	assert.Contains(t, bundle.Context, "first chunk of the guide")

	assert.Equal(t, "guide.pdf", bundle.Sources[0].Filename)
	assert.Equal(t, 0.9, bundle.Sources[0].Score)
}

func TestGetContext_GroupsByFileInChunkOrder(t *testing.T) {
	// Chunk 3 scores higher than chunk 1 of the same file; assembly must
	// still present them in document order.
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "later passage", "doc.txt", 3, 0.9),
		result("b", "earlier passage", "doc.txt", 1, 0.6),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 6000, 0.3)
	require.Equal(t, 2, bundle.ContextCount)

	earlier := strings.Index(bundle.Context, "earlier passage")
	later := strings.Index(bundle.Context, "later passage")
	require.GreaterOrEqual(t, earlier, 0)
	require.GreaterOrEqual(t, later, 0)
	assert.Less(t, earlier, later)

	assert.Equal(t, 1, bundle.Sources[0].ChunkIndex)
	assert.Equal(t, 3, bundle.Sources[1].ChunkIndex)
}

func TestGetContext_RespectsCharBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", long, "doc.txt", 0, 0.9),
		result("b", long, "doc.txt", 1, 0.8),
		result("c", long, "doc.txt", 2, 0.7),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 500, 0.3)
	// Only the first chunk fits; nothing is ever truncated mid-chunk.
	assert.Equal(t, 1, bundle.ContextCount)
	assert.LessOrEqual(t, len(bundle.Context), 500)
	assert.Contains(t, bundle.Context, long)
}

func TestGetContext_BudgetCountsJoinSeparators(t *testing.T) {
	// Each labeled part is exactly 123 bytes; three parts sum to 369 but
	// joining them adds two separator bytes on top.
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", strings.Repeat("a", 100), "f1.txt", 0, 0.9),
		result("b", strings.Repeat("b", 100), "f2.txt", 0, 0.8),
		result("c", strings.Repeat("c", 100), "f3.txt", 0, 0.7),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 369, 0.3)
	assert.Equal(t, 2, bundle.ContextCount)
	assert.LessOrEqual(t, len(bundle.Context), 369)

	bundle = e.GetContext(context.Background(), "kubernetes ingress", 8, 371, 0.3)
	assert.Equal(t, 3, bundle.ContextCount)
	assert.Equal(t, 371, len(bundle.Context))
}

func TestGetContext_RespectsMaxChunks(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "one", "doc.txt", 0, 0.9),
		result("b", "two", "doc.txt", 1, 0.8),
		result("c", "three", "doc.txt", 2, 0.7),
		result("d", "four", "doc.txt", 3, 0.6),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 2, 6000, 0.3)
	assert.Equal(t, 2, bundle.ContextCount)
}

func TestGetContext_ScoresSummary(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "alpha", "guide.pdf", 0, 0.812),
		result("b", "bravo", "notes.txt", 0, 0.5),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 6000, 0.3)
	assert.True(t, strings.HasPrefix(bundle.SimilarityScores, "Similarity scores: "))
	assert.Contains(t, bundle.SimilarityScores, "guide.pdf (0.812)")
	assert.Contains(t, bundle.SimilarityScores, "notes.txt (0.500)")
}

func TestGetContext_ScoresRoundedToThreeDecimals(t *testing.T) {
	store := &fakeStore{results: []vectorstore.SearchResult{
		result("a", "alpha", "doc.txt", 0, 0.87654),
	}}
	e := newEngine(store)

	bundle := e.GetContext(context.Background(), "kubernetes ingress", 8, 6000, 0.3)
	require.Len(t, bundle.Sources, 1)
	assert.Equal(t, 0.877, bundle.Sources[0].Score)
}
