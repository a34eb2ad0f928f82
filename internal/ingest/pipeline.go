// Package ingest turns an uploaded document into embedding points in the
// vector store.
//
// The pipeline runs once per uploaded file: format check, text
// extraction, normalization, chunking, batch embedding, upsert. Duplicate
// filename policy is the HTTP layer's concern; the pipeline writes
// whatever it is handed. There is no rollback of points already upserted
// when a later step of the same batch fails, an accepted at-least-once
// hazard.
package ingest

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/chunker"
	"github.com/fyrsmithlabs/knowd/internal/embeddings"
	"github.com/fyrsmithlabs/knowd/internal/textnorm"
	"github.com/fyrsmithlabs/knowd/internal/vectorstore"
)

var (
	// ErrUnsupportedFormat is returned for extensions outside the
	// allow-list, before any processing.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrEmptyDocument is returned when extraction and cleaning yield
	// no usable text. No partial index entries are created.
	ErrEmptyDocument = errors.New("no usable text extracted from document")
)

// Result reports what one ingestion wrote.
type Result struct {
	Filename      string `json:"filename"`
	ChunksCreated int    `json:"chunks_created"`
	VectorsStored int    `json:"vectors_stored"`
	ContentHash   string `json:"content_hash"`
	ContentType   string `json:"content_type"`
}

// Pipeline orchestrates normalizer, chunker, embedder, and store for the
// write path.
type Pipeline struct {
	store      vectorstore.Store
	embedder   embeddings.Provider
	normalizer *textnorm.Normalizer
	splitter   *chunker.Splitter
	logger     *zap.Logger
}

// New creates an ingestion pipeline.
func New(store vectorstore.Store, embedder embeddings.Provider, normalizer *textnorm.Normalizer, splitter *chunker.Splitter, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		normalizer: normalizer,
		splitter:   splitter,
		logger:     logger,
	}
}

// Ingest processes one uploaded document and stores one point per chunk.
func (p *Pipeline) Ingest(ctx context.Context, filename string, raw []byte) (*Result, error) {
	contentType, ok := contentTypeFor(filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %s)",
			ErrUnsupportedFormat, filename, strings.Join(SupportedExtensions(), ", "))
	}

	text, err := extractText(filename, raw)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", filename, err)
	}

	normalized := p.normalizer.Normalize(text)
	chunks := p.splitter.Split(normalized)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, filename)
	}

	p.logger.Info("chunked document",
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	hash := md5.Sum(raw)
	contentHash := hex.EncodeToString(hash[:])

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:     uuid.New().String(),
			Vector: vectors[i],
			Payload: vectorstore.Payload{
				Content:       c.Text,
				Filename:      filename,
				ChunkIndex:    c.Index,
				TotalChunks:   len(chunks),
				ContentHash:   contentHash,
				ContentType:   contentType,
				Chapter:       c.Chapter,
				ChapterNumber: c.ChapterNumber,
			},
		}
	}

	if err := p.store.Upsert(ctx, points); err != nil {
		return nil, fmt.Errorf("storing %s: %w", filename, err)
	}

	p.logger.Info("ingested document",
		zap.String("filename", filename),
		zap.String("content_hash", contentHash),
		zap.Int("vectors_stored", len(points)))

	return &Result{
		Filename:      filename,
		ChunksCreated: len(chunks),
		VectorsStored: len(points),
		ContentHash:   contentHash,
		ContentType:   contentType,
	}, nil
}
