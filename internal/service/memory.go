// Package service implements memory storage and the hybrid retrieval cascade.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanlab/memoryd/internal/embedder"
	"github.com/hanlab/memoryd/internal/repository"
	"github.com/hanlab/memoryd/internal/reranker"
)

// ErrInvalidArgument marks request validation failures.
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultSearchLimit is used when a request does not specify a limit.
const DefaultSearchLimit = 5

// MemoryService implements memory storage and retrieval.
type MemoryService struct {
	repo         repository.MemoryRepository
	reranker     *reranker.EmbeddingReranker
	defaultLimit int
}

// MemoryServiceOption is a functional option for configuring MemoryService.
type MemoryServiceOption func(*MemoryService)

// WithDefaultLimit sets the search limit applied when requests omit one.
func WithDefaultLimit(n int) MemoryServiceOption {
	return func(s *MemoryService) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// NewMemoryService creates a new MemoryService. The embedding backend may
// report unavailable at any time; the retrieval cascade degrades instead of
// failing.
func NewMemoryService(repo repository.MemoryRepository, backend embedder.Backend, opts ...MemoryServiceOption) *MemoryService {
	s := &MemoryService{
		repo:         repo,
		reranker:     reranker.NewEmbeddingReranker(backend),
		defaultLimit: DefaultSearchLimit,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StoreRequest carries a new memory record. Importance defaults to 3 and is
// clamped to [1, 5].
type StoreRequest struct {
	Project    string `json:"project"`
	Category   string `json:"category"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Importance int    `json:"importance"`
	BranchFlow string `json:"branch_flow"`
}

// Store validates and persists a new memory record, returning it with its
// assigned identifier. Each call creates a new record; there is no
// idempotency or deduplication guarantee.
func (s *MemoryService) Store(ctx context.Context, req StoreRequest) (*repository.Memory, error) {
	if strings.TrimSpace(req.Project) == "" {
		return nil, fmt.Errorf("%w: project is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}

	importance := req.Importance
	if importance == 0 {
		importance = 3
	}
	if importance < 1 {
		importance = 1
	}
	if importance > 5 {
		importance = 5
	}

	mem := &repository.Memory{
		ID:         uuid.New(),
		Project:    strings.TrimSpace(req.Project),
		Category:   strings.TrimSpace(req.Category),
		Title:      strings.TrimSpace(req.Title),
		Content:    req.Content,
		Importance: importance,
		BranchFlow: strings.TrimSpace(req.BranchFlow),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, mem); err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	return mem, nil
}

// Get retrieves a memory record by ID.
func (s *MemoryService) Get(ctx context.Context, id uuid.UUID) (*repository.Memory, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves memory records for a project, newest first.
func (s *MemoryService) List(ctx context.Context, project string, limit, offset int) ([]*repository.Memory, int, error) {
	if strings.TrimSpace(project) == "" {
		return nil, 0, fmt.Errorf("%w: project is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, project, limit, offset)
}

// Delete removes a memory record.
func (s *MemoryService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Search performs a plain lexical search with filters, no re-ranking.
func (s *MemoryService) Search(ctx context.Context, query, project string, limit int, filters repository.SearchFilters) ([]*repository.Memory, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if strings.TrimSpace(query) == "" {
		return []*repository.Memory{}, nil
	}
	results, err := s.repo.Search(ctx, query, project, limit, filters)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return results, nil
}
