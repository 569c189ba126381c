package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultProbeTimeout bounds the one-time availability probe.
	DefaultProbeTimeout = 2 * time.Second

	// DefaultEmbedTimeout bounds a single embedding call. A timed-out call
	// degrades exactly like an unavailable backend.
	DefaultEmbedTimeout = 10 * time.Second

	// DefaultCacheSize is the number of embedding vectors kept in memory.
	DefaultCacheSize = 512
)

// LazyBackend wraps an Embedder with an initialize-exactly-once availability
// probe, per-call timeouts, and an LRU cache of computed vectors keyed by
// content hash. Concurrent first calls share a single probe; Available can
// be called at any time and never blocks longer than the probe timeout.
type LazyBackend struct {
	embedder     Embedder
	probeTimeout time.Duration
	embedTimeout time.Duration

	initOnce  sync.Once
	available atomic.Bool

	cache *lru.Cache[string, []float32]
}

// LazyBackendOption is a functional option for configuring LazyBackend.
type LazyBackendOption func(*LazyBackend)

// WithProbeTimeout sets the timeout for the one-time availability probe.
func WithProbeTimeout(d time.Duration) LazyBackendOption {
	return func(b *LazyBackend) {
		if d > 0 {
			b.probeTimeout = d
		}
	}
}

// WithEmbedTimeout sets the timeout for a single embedding call.
func WithEmbedTimeout(d time.Duration) LazyBackendOption {
	return func(b *LazyBackend) {
		if d > 0 {
			b.embedTimeout = d
		}
	}
}

// WithCacheSize sets the embedding cache capacity.
func WithCacheSize(n int) LazyBackendOption {
	return func(b *LazyBackend) {
		if n > 0 {
			cache, err := lru.New[string, []float32](n)
			if err == nil {
				b.cache = cache
			}
		}
	}
}

// NewLazyBackend creates a backend around the given embedder. The embedder
// is not contacted until the first Available or Embed call.
func NewLazyBackend(e Embedder, opts ...LazyBackendOption) *LazyBackend {
	cache, _ := lru.New[string, []float32](DefaultCacheSize)
	b := &LazyBackend{
		embedder:     e,
		probeTimeout: DefaultProbeTimeout,
		embedTimeout: DefaultEmbedTimeout,
		cache:        cache,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Available reports whether the embedding backend is loaded and usable.
// The first call performs the probe; later calls return the cached result.
func (b *LazyBackend) Available() bool {
	b.initOnce.Do(b.probe)
	return b.available.Load()
}

func (b *LazyBackend) probe() {
	if b.embedder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.probeTimeout)
	defer cancel()

	if err := b.embedder.Ping(ctx); err != nil {
		slog.Debug("embedding backend unavailable", "model", b.embedder.ModelName(), "error", err)
		return
	}

	b.available.Store(true)
	slog.Info("embedding backend ready", "model", b.embedder.ModelName(), "dimension", b.embedder.Dimension())
}

// Embed returns the embedding vector for text, consulting the cache first.
// It returns ErrBackendUnavailable when the backend is not usable or the
// call times out.
func (b *LazyBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if !b.Available() {
		return nil, ErrBackendUnavailable
	}

	key := contentHash(text)
	if vec, ok := b.cache.Get(key); ok {
		return vec, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, b.embedTimeout)
	defer cancel()

	vec, err := b.embedder.Embed(embedCtx, text)
	if err != nil {
		if embedCtx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, fmt.Errorf("embed text: %w", err)
	}

	b.cache.Add(key, vec)
	return vec, nil
}

// contentHash returns a short SHA256-based cache key for text content.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h[:16])
}

// Ensure LazyBackend implements Backend.
var _ Backend = (*LazyBackend)(nil)
