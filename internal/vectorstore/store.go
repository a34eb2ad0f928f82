// Package vectorstore persists embedding points and performs similarity
// search over them.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrStore indicates the store is unreachable or rejected an operation.
	ErrStore = errors.New("vector store failure")

	// ErrCollectionNotFound is returned when the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// Payload carries the chunk and document metadata replicated onto every
// stored point. Known fields are typed; anything else a writer attaches
// lands in Extra.
type Payload struct {
	Content       string `json:"content"`
	Filename      string `json:"filename"`
	ChunkIndex    int    `json:"chunk_index"`
	TotalChunks   int    `json:"total_chunks"`
	ContentHash   string `json:"content_hash"`
	ContentType   string `json:"content_type"`
	Chapter       string `json:"chapter,omitempty"`
	ChapterNumber int    `json:"chapter_number,omitempty"`

	// Extra holds open-ended string metadata not covered by the fixed
	// field set.
	Extra map[string]string `json:"extra,omitempty"`
}

// Point pairs one chunk's vector with its payload. IDs are UUIDs and are
// never reused after deletion.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// StoredPoint is a point read back without its vector.
type StoredPoint struct {
	ID      string
	Payload Payload
}

// SearchResult is a retrieved point plus its similarity score in [0, 1],
// higher meaning more similar.
type SearchResult struct {
	ID      string
	Score   float32
	Payload Payload
}

// Filter restricts operations to points whose payload matches every
// non-empty field exactly. Both fields carry keyword payload indexes.
type Filter struct {
	Filename    string
	ContentHash string
}

// CollectionInfo contains metadata about the collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount int    `json:"point_count"`
	VectorSize int    `json:"vector_size"`
	Distance   string `json:"distance"`
}

// Store is the interface for vector storage operations.
//
// Implementations own the persisted points exclusively; callers reference
// them only through these operations and never cache points across calls.
type Store interface {
	// EnsureCollection idempotently creates the collection and its
	// payload indexes if absent.
	EnsureCollection(ctx context.Context) error

	// Upsert writes or overwrites points by identifier. Partial failure
	// is possible and surfaced as an error from the underlying store.
	Upsert(ctx context.Context, points []Point) error

	// Search returns at most limit points with score >= threshold,
	// ordered by descending similarity.
	Search(ctx context.Context, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchResult, error)

	// Scroll pages through points matching the filter. The returned
	// cursor resumes the scan; an empty cursor means exhausted.
	Scroll(ctx context.Context, filter *Filter, pageSize int, cursor string) ([]StoredPoint, string, error)

	// Delete removes points by id. Absent ids are a no-op.
	Delete(ctx context.Context, ids []string) error

	// CollectionInfo returns point count and vector configuration.
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)

	// Close releases the store connection.
	Close() error
}
