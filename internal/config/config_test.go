package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowd/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "knowledge_base", cfg.Qdrant.Collection)
	assert.Equal(t, uint64(1536), cfg.Qdrant.VectorSize)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1000, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 0.3, cfg.RAG.ScoreThreshold)
	assert.Equal(t, 8, cfg.RAG.MaxChunks)
	assert.Equal(t, 6000, cfg.RAG.MaxChars)
	assert.Equal(t, "en+es", cfg.RAG.Language)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowd.yaml")
	content := `
server:
  port: 9100
qdrant:
  host: qdrant.example.com
  collection: docs_index
rag:
  chunk_size: 500
  chunk_overlap: 50
  language: es
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "qdrant.example.com", cfg.Qdrant.Host)
	assert.Equal(t, "docs_index", cfg.Qdrant.Collection)
	assert.Equal(t, 500, cfg.RAG.ChunkSize)
	assert.Equal(t, 50, cfg.RAG.ChunkOverlap)
	assert.Equal(t, "es", cfg.RAG.Language)
	// Untouched sections keep their defaults.
	assert.Equal(t, 6334, cfg.Qdrant.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600))

	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("QDRANT_API_KEY", "secret-key")
	t.Setenv("RAG_CHUNK_OVERLAP", "150")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "secret-key", cfg.Qdrant.APIKey)
	assert.Equal(t, 150, cfg.RAG.ChunkOverlap)
}

func TestLoad_UnrelatedEnvIsIgnored(t *testing.T) {
	// A bare LOGGING would replace the whole logging section with a
	// scalar if it leaked into the tree; DATABASE_URL is outside every
	// known section.
	t.Setenv("LOGGING", "debug")
	t.Setenv("DATABASE_URL", "postgres://elsewhere/app")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := config.Load("/nonexistent/knowd.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Server:  config.ServerConfig{Port: 8000},
			Logging: config.LoggingConfig{Level: "info", Format: "json"},
			Qdrant:  config.QdrantConfig{Host: "localhost", Port: 6334, Collection: "kb", VectorSize: 1536},
			RAG:     config.RAGConfig{ChunkSize: 1000, ChunkOverlap: 200, ScoreThreshold: 0.3, MaxChunks: 8, MaxChars: 6000},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"valid", func(*config.Config) {}, false},
		{"bad server port", func(c *config.Config) { c.Server.Port = -1 }, true},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, true},
		{"bad qdrant port", func(c *config.Config) { c.Qdrant.Port = 70000 }, true},
		{"zero vector size", func(c *config.Config) { c.Qdrant.VectorSize = 0 }, true},
		{"zero chunk size", func(c *config.Config) { c.RAG.ChunkSize = 0 }, true},
		{"overlap exceeds size", func(c *config.Config) { c.RAG.ChunkOverlap = 1000 }, true},
		{"threshold above one", func(c *config.Config) { c.RAG.ScoreThreshold = 1.5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, config.ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
