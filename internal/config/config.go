// Package config provides configuration loading for knowd.
//
// Configuration is loaded from a YAML file with environment variable
// overrides. This package covers server, logging, vector store, provider,
// and retrieval settings.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid configuration values.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the complete knowd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Qdrant    QdrantConfig    `koanf:"qdrant"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Chat      ChatConfig      `koanf:"chat"`
	RAG       RAGConfig       `koanf:"rag"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format selects the encoder: "json" or "console".
	Format string `koanf:"format"`
}

// QdrantConfig holds the vector store connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey string `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`

	// Collection is the knowledge base collection name.
	// Must match ^[a-z0-9_]{1,64}$.
	Collection string `koanf:"collection"`

	// VectorSize is the embedding dimensionality. Must match the
	// embedding model output (1536 for text-embedding-3-small).
	VectorSize uint64 `koanf:"vector_size"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// ChatConfig holds completion provider settings.
type ChatConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

// RAGConfig holds chunking and retrieval parameters.
type RAGConfig struct {
	ChunkSize      int     `koanf:"chunk_size"`
	ChunkOverlap   int     `koanf:"chunk_overlap"`
	ScoreThreshold float64 `koanf:"score_threshold"`
	MaxChunks      int     `koanf:"max_chunks"`
	MaxChars       int     `koanf:"max_chars"`

	// Language selects the chapter-marker and query-expansion keyword
	// set: "en", "es", or "en+es" for both.
	Language string `koanf:"language"`
}

// applyDefaults sets default values for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334 // gRPC port, not the 6333 REST port
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "knowledge_base"
	}
	if cfg.Qdrant.VectorSize == 0 {
		cfg.Qdrant.VectorSize = 1536
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gpt-4.1-nano"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.ScoreThreshold == 0 {
		cfg.RAG.ScoreThreshold = 0.3
	}
	if cfg.RAG.MaxChunks == 0 {
		cfg.RAG.MaxChunks = 8
	}
	if cfg.RAG.MaxChars == 0 {
		cfg.RAG.MaxChars = 6000
	}
	if cfg.RAG.Language == "" {
		cfg.RAG.Language = "en+es"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", ErrInvalidConfig, c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.Logging.Format)
	}
	if c.Qdrant.Port <= 0 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("%w: invalid qdrant port: %d", ErrInvalidConfig, c.Qdrant.Port)
	}
	if c.Qdrant.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk_size)", ErrInvalidConfig)
	}
	if c.RAG.ScoreThreshold < 0 || c.RAG.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold must be in [0, 1]", ErrInvalidConfig)
	}
	return nil
}
