package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanlab/memoryd/internal/repository"
	"github.com/hanlab/memoryd/internal/reranker"
)

// Mode tags the provenance of a search response. It is always present and
// always one of the constants below.
type Mode string

const (
	// ModeFTSOnly: plain lexical results, either because re-ranking was
	// disabled or the candidate pool was no larger than the limit.
	ModeFTSOnly Mode = "fts5_only"

	// ModeFTSFallback: embedding re-rank was requested but the backend was
	// unavailable; lexical order preserved.
	ModeFTSFallback Mode = "fts5_fallback"

	// ModeClaudeRerank: the ranking decision is deferred to an external
	// agent; the response carries candidates and a rerank prompt instead
	// of results.
	ModeClaudeRerank Mode = "claude_rerank"

	// ModeEmbeddingRerank: results ordered by embedding cosine similarity,
	// each annotated with a semantic score.
	ModeEmbeddingRerank Mode = "embedding_rerank"

	// ModeFallback: an unrecognized rerank mode was requested; lexical
	// order preserved. Never an error.
	ModeFallback Mode = "fallback"
)

// Requested rerank modes. Any other value falls back tolerantly.
const (
	RerankNone      = "none"
	RerankClaude    = "claude"
	RerankEmbedding = "embedding"
)

// SemanticSearchRequest is the retrieval cascade input.
type SemanticSearchRequest struct {
	Query      string                   `json:"query"`
	Project    string                   `json:"project"`
	Limit      int                      `json:"limit"`
	RerankMode string                   `json:"rerank_mode"`
	Filters    repository.SearchFilters `json:"-"`
}

// Result is a single memory record in a search response, optionally
// annotated with a semantic score in [0, 1].
type Result struct {
	ID            uuid.UUID `json:"id"`
	Project       string    `json:"project"`
	Category      string    `json:"category"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Importance    int       `json:"importance"`
	BranchFlow    string    `json:"branch_flow,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	SemanticScore *float64  `json:"semantic_score,omitempty"`
}

// SearchResponse is the retrieval cascade envelope. Mode is always set.
// Results is present (possibly empty) for every mode except claude_rerank,
// which carries Candidates and RerankPrompt instead.
type SearchResponse struct {
	Mode         Mode     `json:"mode"`
	Results      []Result `json:"results,omitzero"`
	Candidates   []Result `json:"candidates,omitzero"`
	RerankPrompt string   `json:"rerank_prompt,omitempty"`
}

// SemanticSearch runs the hybrid retrieval cascade: lexical candidate
// generation, mode dispatch, optional re-ranking, and assembly. Expected
// degradation conditions (empty query, unavailable backend, insufficient
// candidates, unknown mode) are reported through the mode tag, never as
// errors; only collaborator faults propagate.
func (s *MemoryService) SemanticSearch(ctx context.Context, req SemanticSearchRequest) (*SearchResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return &SearchResponse{Mode: ModeFTSOnly, Results: []Result{}}, nil
	}

	// Over-fetch so re-ranking has a pool to work with, then cap the pool.
	fetch := limit
	if fetch < reranker.MaxCandidates {
		fetch = reranker.MaxCandidates
	}
	pool, err := s.repo.Search(ctx, query, req.Project, fetch, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	if len(pool) > reranker.MaxCandidates {
		pool = pool[:reranker.MaxCandidates]
	}

	switch {
	case req.RerankMode == RerankNone:
		// Re-ranking explicitly disabled.
		return assemble(ModeFTSOnly, truncate(pool, limit)), nil

	case len(pool) <= limit:
		// Re-ranking a pool no larger than the limit is a no-op; skip it.
		return assemble(ModeFTSOnly, pool), nil

	case req.RerankMode == RerankClaude:
		return &SearchResponse{
			Mode:         ModeClaudeRerank,
			Candidates:   toResults(pool),
			RerankPrompt: reranker.BuildRerankPrompt(query, pool, limit),
		}, nil

	case req.RerankMode == RerankEmbedding:
		scored, reranked := s.reranker.Rerank(ctx, query, pool, limit)
		if reranked {
			return scoredResponse(ModeEmbeddingRerank, scored), nil
		}
		return scoredResponse(ModeFTSFallback, scored), nil

	default:
		return assemble(ModeFallback, truncate(pool, limit)), nil
	}
}

// ApplySelectionRequest carries the second phase of the deferred rerank
// protocol: the candidate IDs in prompt order and the externally chosen
// indices.
type ApplySelectionRequest struct {
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Selected     []int       `json:"selected"`
	Limit        int         `json:"limit"`
}

// ApplySelection resolves an external rerank decision against the stored
// records. Indices are validated against the candidate list, duplicates
// dropped, the selection order preserved, and the result capped at limit.
// Candidates deleted since the prompt was built are skipped.
func (s *MemoryService) ApplySelection(ctx context.Context, req ApplySelectionRequest) ([]Result, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	candidates := make([]*repository.Memory, len(req.CandidateIDs))
	for i, id := range req.CandidateIDs {
		mem, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve candidate %s: %w", id, err)
		}
		candidates[i] = mem
	}

	return toResults(reranker.ApplySelection(candidates, req.Selected, limit)), nil
}

func truncate(pool []*repository.Memory, limit int) []*repository.Memory {
	if len(pool) > limit {
		return pool[:limit]
	}
	return pool
}

func assemble(mode Mode, memories []*repository.Memory) *SearchResponse {
	return &SearchResponse{Mode: mode, Results: toResults(memories)}
}

func scoredResponse(mode Mode, scored []reranker.ScoredMemory) *SearchResponse {
	results := make([]Result, len(scored))
	for i, sm := range scored {
		results[i] = toResult(sm.Memory)
		if mode == ModeEmbeddingRerank {
			score := sm.SemanticScore
			results[i].SemanticScore = &score
		}
	}
	return &SearchResponse{Mode: mode, Results: results}
}

func toResults(memories []*repository.Memory) []Result {
	results := make([]Result, len(memories))
	for i, m := range memories {
		results[i] = toResult(m)
	}
	return results
}

func toResult(m *repository.Memory) Result {
	return Result{
		ID:         m.ID,
		Project:    m.Project,
		Category:   m.Category,
		Title:      m.Title,
		Content:    m.Content,
		Importance: m.Importance,
		BranchFlow: m.BranchFlow,
		CreatedAt:  m.CreatedAt,
	}
}
