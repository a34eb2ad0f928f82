package vectorstore

import (
	"sync"

	"go.uber.org/zap"
)

// Lazy wraps a QdrantStore behind one-time initialization. The connection
// is shared process-wide across all requests and established on first
// use; there is no mid-process teardown. Safe for concurrent use.
type Lazy struct {
	config QdrantConfig
	logger *zap.Logger

	once  sync.Once
	store *QdrantStore
	err   error
}

// NewLazy prepares a lazily-connected store handle. No connection is made
// until Get is called.
func NewLazy(config QdrantConfig, logger *zap.Logger) *Lazy {
	return &Lazy{config: config, logger: logger}
}

// Get returns the shared store, connecting on first call. A failed
// connect is sticky: every subsequent call returns the same error.
func (l *Lazy) Get() (*QdrantStore, error) {
	l.once.Do(func() {
		l.store, l.err = NewQdrantStore(l.config, l.logger)
	})
	return l.store, l.err
}

// Close closes the underlying store if it was ever connected.
func (l *Lazy) Close() error {
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}
