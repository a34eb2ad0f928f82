package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envSections are the config sections an environment variable may
// address. Variables outside these namespaces never reach the tree.
var envSections = map[string]bool{
	"server":    true,
	"logging":   true,
	"qdrant":    true,
	"embedding": true,
	"chat":      true,
	"rag":       true,
}

// Load loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (SERVER_PORT, QDRANT_HOST, RAG_CHUNK_SIZE, ...)
//  2. YAML config file (configPath, optional)
//  3. Hardcoded defaults
//
// Environment variables use underscore separators and map onto config keys
// by splitting on the first underscore:
//
//	SERVER_PORT        -> server.port
//	QDRANT_API_KEY     -> qdrant.api_key
//	RAG_CHUNK_OVERLAP  -> rag.chunk_overlap
//	EMBEDDING_MODEL    -> embedding.model
//
// Only variables whose first segment names a known config section are
// mapped; everything else in the process environment is ignored.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			f, err := os.Open(configPath)
			if err != nil {
				return nil, fmt.Errorf("opening config file: %w", err)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				return nil, fmt.Errorf("stat config file: %w", err)
			}
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("%w: config file exceeds %d bytes", ErrInvalidConfig, maxConfigFileSize)
			}

			content, err := io.ReadAll(f)
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}

			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
			}
		}
	}

	// Override with environment variables. Split on the first underscore
	// only: the section name never contains one, field names may.
	// Returning "" drops the variable, which keeps unrelated ambient
	// environment (PATH, HOME, DATABASE_URL, ...) out of the config tree.
	if err := k.Load(env.Provider("", ".", func(s string) string {
		lower := strings.ToLower(s)
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 || !envSections[parts[0]] {
			return ""
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
