// Package reranker provides re-ranking strategies for lexical search candidates.
//
// Two strategies exist. The embedding re-ranker orders candidates locally by
// cosine similarity against the query vector and degrades to the original
// lexical order when the backend is unavailable. The Claude path defers the
// ranking decision to an external reasoning agent: it renders a prompt and
// returns immediately; the eventual index selection re-enters through
// ApplySelection.
//
// # Trade-offs
//
//   - Embedding: one local vector per candidate plus one for the query,
//     bounded by the backend timeout. No external round trip.
//   - Claude: no latency inside this process, but the final ordering is
//     only as good as the external agent's answer.
package reranker

import "github.com/hanlab/memoryd/internal/repository"

// MaxCandidates caps the candidate pool handed to any re-ranking strategy,
// regardless of the requested result limit.
const MaxCandidates = 20

// ScoredMemory is a candidate annotated with a semantic score in [0, 1].
type ScoredMemory struct {
	*repository.Memory
	SemanticScore float64
}
