package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hanlab/memoryd/internal/repository"
)

func newTestRepo(t *testing.T) *MemoryRepo {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewMemoryRepo(db)
}

func storeMemory(t *testing.T, repo *MemoryRepo, project, category, title, content, branchFlow string) *repository.Memory {
	t.Helper()

	mem := &repository.Memory{
		ID:         uuid.New(),
		Project:    project,
		Category:   category,
		Title:      title,
		Content:    content,
		Importance: 3,
		BranchFlow: branchFlow,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := repo.Create(context.Background(), mem); err != nil {
		t.Fatalf("create memory: %v", err)
	}
	return mem
}

func TestMemoryRepo_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)

	mem := storeMemory(t, repo, "proj", "knowledge", "JWT rotation", "Rotate signing keys quarterly", "flow.auth")

	got, err := repo.GetByID(context.Background(), mem.ID)
	if err != nil {
		t.Fatalf("get memory: %v", err)
	}
	if got.ID != mem.ID {
		t.Errorf("id mismatch: %s vs %s", got.ID, mem.ID)
	}
	if got.Title != mem.Title || got.Content != mem.Content {
		t.Error("title/content mismatch after round trip")
	}
	if got.BranchFlow != "flow.auth" {
		t.Errorf("expected branch flow preserved, got %q", got.BranchFlow)
	}
	if !got.CreatedAt.Equal(mem.CreatedAt) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, mem.CreatedAt)
	}
}

func TestMemoryRepo_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepo_EmptyBranchStoredAsNull(t *testing.T) {
	repo := newTestRepo(t)

	mem := storeMemory(t, repo, "proj", "knowledge", "Shared note", "No branch", "")

	got, err := repo.GetByID(context.Background(), mem.ID)
	if err != nil {
		t.Fatalf("get memory: %v", err)
	}
	if got.BranchFlow != "" {
		t.Errorf("expected empty branch flow, got %q", got.BranchFlow)
	}
}

func TestMemoryRepo_ListPagination(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 5; i++ {
		storeMemory(t, repo, "proj", "knowledge", "note", "content", "")
	}
	storeMemory(t, repo, "other", "knowledge", "note", "content", "")

	memories, total, err := repo.List(context.Background(), "proj", 3, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(memories) != 3 {
		t.Errorf("expected page of 3, got %d", len(memories))
	}

	rest, _, err := repo.List(context.Background(), "proj", 3, 3)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 2 {
		t.Errorf("expected 2 remaining, got %d", len(rest))
	}
}

func TestMemoryRepo_Delete(t *testing.T) {
	repo := newTestRepo(t)

	mem := storeMemory(t, repo, "proj", "knowledge", "ephemeral note", "to be removed", "")

	if err := repo.Delete(context.Background(), mem.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetByID(context.Background(), mem.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// The FTS entry must be gone too.
	results, err := repo.Search(context.Background(), "ephemeral", "proj", 10, repository.SearchFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no search hits after delete, got %d", len(results))
	}

	if err := repo.Delete(context.Background(), mem.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestMemoryRepo_Search(t *testing.T) {
	repo := newTestRepo(t)

	storeMemory(t, repo, "proj", "knowledge", "JWT auth tokens", "Auth tokens use RS256 and rotate quarterly", "")
	storeMemory(t, repo, "proj", "pattern", "Database pooling", "Connection pool sized at 20", "")
	storeMemory(t, repo, "other", "knowledge", "JWT auth elsewhere", "Auth in another project", "")

	results, err := repo.Search(context.Background(), "auth tokens", "proj", 10, repository.SearchFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].Title != "JWT auth tokens" {
		t.Errorf("unexpected hit %q", results[0].Title)
	}
}

func TestMemoryRepo_SearchStemming(t *testing.T) {
	repo := newTestRepo(t)

	storeMemory(t, repo, "proj", "knowledge", "Caching strategy", "Responses are cached for five minutes", "")

	// Porter stemming: "caches" matches "cached"/"caching".
	results, err := repo.Search(context.Background(), "caches", "proj", 10, repository.SearchFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected stemmed match, got %d hits", len(results))
	}
}

func TestMemoryRepo_SearchEmptyQuery(t *testing.T) {
	repo := newTestRepo(t)

	storeMemory(t, repo, "proj", "knowledge", "note", "content", "")

	results, err := repo.Search(context.Background(), "   ", "proj", 10, repository.SearchFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no hits for empty query, got %d", len(results))
	}
}

func TestMemoryRepo_SearchCategoryFilter(t *testing.T) {
	repo := newTestRepo(t)

	storeMemory(t, repo, "proj", "knowledge", "auth note", "auth details", "")
	pattern := storeMemory(t, repo, "proj", "pattern", "auth pattern", "auth middleware layout", "")

	results, err := repo.Search(context.Background(), "auth", "proj", 10,
		repository.SearchFilters{Category: "pattern"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(results))
	}
	if results[0].ID != pattern.ID {
		t.Errorf("expected the pattern record, got %q", results[0].Title)
	}
}

func TestMemoryRepo_SearchBranchFilter(t *testing.T) {
	repo := newTestRepo(t)

	authScoped := storeMemory(t, repo, "proj", "knowledge", "auth branch note", "auth details", "flow.auth")
	storeMemory(t, repo, "proj", "knowledge", "user branch note", "auth details for users", "flow.user")
	shared := storeMemory(t, repo, "proj", "knowledge", "shared auth note", "auth details shared", "")

	// Branch filter matches records on that branch plus unscoped records.
	results, err := repo.Search(context.Background(), "auth", "proj", 10,
		repository.SearchFilters{BranchFlow: "flow.auth"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(results))
	}

	ids := map[uuid.UUID]bool{}
	for _, m := range results {
		ids[m.ID] = true
	}
	if !ids[authScoped.ID] || !ids[shared.ID] {
		t.Error("expected the branch-scoped and unscoped records")
	}
}

func TestMemoryRepo_SearchQuoteInjection(t *testing.T) {
	repo := newTestRepo(t)

	storeMemory(t, repo, "proj", "knowledge", "quoting", `content with "quotes" inside`, "")

	// FTS5 operators in user input must not break the MATCH expression.
	if _, err := repo.Search(context.Background(), `"quotes" AND NOT (`, "proj", 10,
		repository.SearchFilters{}); err != nil {
		t.Errorf("quoted query must not error: %v", err)
	}
}

func TestMemoryRepo_SearchLimit(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 10; i++ {
		storeMemory(t, repo, "proj", "knowledge", "auth note", "auth content", "")
	}

	results, err := repo.Search(context.Background(), "auth", "proj", 4, repository.SearchFilters{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 hits, got %d", len(results))
	}
}

func TestMemoryRepo_Count(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 3; i++ {
		storeMemory(t, repo, "proj", "knowledge", "note", "content", "")
	}
	storeMemory(t, repo, "other", "knowledge", "note", "content", "")

	count, err := repo.Count(context.Background(), "proj")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestBuildMatchExpr(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"single term", "auth", `"auth"`},
		{"multiple terms", "auth tokens", `"auth" OR "tokens"`},
		{"quotes escaped", `say "hi"`, `"say" OR """hi"""`},
		{"empty", "", ""},
		{"whitespace only", "  \t ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildMatchExpr(tt.query); got != tt.expected {
				t.Errorf("buildMatchExpr(%q) = %q, expected %q", tt.query, got, tt.expected)
			}
		})
	}
}
