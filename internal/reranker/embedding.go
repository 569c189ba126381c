package reranker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hanlab/memoryd/internal/embedder"
	"github.com/hanlab/memoryd/internal/repository"
)

// EmbeddingReranker orders candidates by cosine similarity between the
// query vector and each candidate's content vector.
type EmbeddingReranker struct {
	backend embedder.Backend
}

// NewEmbeddingReranker creates an embedding-based reranker on the given backend.
func NewEmbeddingReranker(backend embedder.Backend) *EmbeddingReranker {
	return &EmbeddingReranker{backend: backend}
}

// Available reports whether the underlying embedding backend is usable.
func (r *EmbeddingReranker) Available() bool {
	return r.backend != nil && r.backend.Available()
}

// Rerank returns the top limit candidates ordered by descending similarity
// to the query, each annotated with a semantic score in [0, 1]. Ties keep
// the original lexical-relevance order (stable sort). When the backend is
// unavailable, or any embedding call degrades, it returns the input
// truncated to limit in its original order with reranked=false and never
// an error.
func (r *EmbeddingReranker) Rerank(ctx context.Context, query string, candidates []*repository.Memory, limit int) (results []ScoredMemory, reranked bool) {
	if limit <= 0 || len(candidates) == 0 {
		return []ScoredMemory{}, false
	}
	if !r.Available() {
		return passthrough(candidates, limit), false
	}

	queryVec, err := r.backend.Embed(ctx, query)
	if err != nil {
		slog.Debug("embedding rerank degraded", "stage", "query", "error", err)
		return passthrough(candidates, limit), false
	}

	scored := make([]ScoredMemory, len(candidates))
	for i, c := range candidates {
		vec, err := r.backend.Embed(ctx, c.Content)
		if err != nil {
			slog.Debug("embedding rerank degraded", "stage", "candidate", "id", c.ID, "error", err)
			return passthrough(candidates, limit), false
		}
		cos := embedder.CosineSimilarity(queryVec, vec)
		scored[i] = ScoredMemory{
			Memory:        c,
			SemanticScore: embedder.SemanticScore(cos),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].SemanticScore > scored[j].SemanticScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, true
}

// passthrough truncates candidates to limit in their original order,
// without semantic scores.
func passthrough(candidates []*repository.Memory, limit int) []ScoredMemory {
	n := len(candidates)
	if n > limit {
		n = limit
	}
	out := make([]ScoredMemory, n)
	for i := 0; i < n; i++ {
		out[i] = ScoredMemory{Memory: candidates[i]}
	}
	return out
}
