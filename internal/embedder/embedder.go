// Package embedder provides text embedding backends for semantic re-ranking.
package embedder

import (
	"context"
	"errors"
)

// ErrBackendUnavailable is returned by Embed when the embedding backend is
// not usable. Callers should check Available before calling Embed rather
// than relying on this error to detect absence.
var ErrBackendUnavailable = errors.New("embedding backend unavailable")

// Embedder defines the interface for text embedding services.
type Embedder interface {
	// Embed generates an embedding vector for a single text input.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Ping checks whether the embedding service is reachable and the
	// configured model is usable.
	Ping(ctx context.Context) error

	// Dimension returns the dimensionality of the embedding vectors.
	Dimension() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}

// Backend is the capability surface the retrieval pipeline consumes.
// Available is a pure probe: it never returns an error and never blocks
// indefinitely.
type Backend interface {
	Available() bool
	Embed(ctx context.Context, text string) ([]float32, error)
}
