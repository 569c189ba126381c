// Package repository defines the memory record domain model and data access interfaces.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Memory represents a single stored knowledge unit. Records are immutable
// once written; every store call creates a new record.
type Memory struct {
	ID         uuid.UUID `json:"id"`
	Project    string    `json:"project"`
	Category   string    `json:"category"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"`             // 1 (low) to 5 (critical)
	BranchFlow string    `json:"branch_flow,omitempty"`  // optional flow tag; empty means unset (stored as NULL)
	CreatedAt  time.Time `json:"created_at"`
}

// SearchFilters narrows lexical search results. Zero values mean "no filter".
type SearchFilters struct {
	Category   string
	BranchFlow string // matches records whose branch_flow is NULL or equal to this value
}

// MemoryRepository defines operations for memory persistence and lexical search
type MemoryRepository interface {
	Create(ctx context.Context, mem *Memory) error
	GetByID(ctx context.Context, id uuid.UUID) (*Memory, error)
	List(ctx context.Context, project string, limit, offset int) ([]*Memory, int, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Search performs full-text search over title and content, returning
	// records in relevance order. An empty query returns an empty slice
	// without error. Filters are applied inside the query so every result
	// already satisfies them.
	Search(ctx context.Context, query, project string, limit int, filters SearchFilters) ([]*Memory, error)

	// Count returns the number of records stored for a project.
	Count(ctx context.Context, project string) (int, error)
}
