package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hanlab/memoryd/internal/repository"
)

// MemoryRepo implements repository.MemoryRepository
type MemoryRepo struct {
	db *DB
}

// NewMemoryRepo creates a new memory repository
func NewMemoryRepo(db *DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

// Create inserts a new memory record and its FTS index entry.
func (r *MemoryRepo) Create(ctx context.Context, mem *repository.Memory) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var branchFlow any
	if mem.BranchFlow != "" {
		branchFlow = mem.BranchFlow
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories (id, project, category, title, content, importance, branch_flow, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, mem.ID.String(), mem.Project, mem.Category, mem.Title, mem.Content,
		mem.Importance, branchFlow, mem.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO memories_fts (title, content, id) VALUES (?, ?, ?)
	`, mem.Title, mem.Content, mem.ID.String())
	if err != nil {
		return fmt.Errorf("insert fts entry: %w", err)
	}

	return tx.Commit()
}

// GetByID retrieves a memory record by ID
func (r *MemoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Memory, error) {
	row := r.db.SQL.QueryRowContext(ctx, `
		SELECT id, project, category, title, content, importance, branch_flow, created_at
		FROM memories
		WHERE id = ?
	`, id.String())

	mem, err := scanMemory(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return mem, nil
}

// List retrieves memory records for a project, newest first, with pagination.
func (r *MemoryRepo) List(ctx context.Context, project string, limit, offset int) ([]*repository.Memory, int, error) {
	var total int
	if err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE project = ?`, project).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count memories: %w", err)
	}

	rows, err := r.db.SQL.QueryContext(ctx, `
		SELECT id, project, category, title, content, importance, branch_flow, created_at
		FROM memories
		WHERE project = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, project, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	memories, err := collectMemories(rows)
	if err != nil {
		return nil, 0, err
	}
	return memories, total, nil
}

// Delete removes a memory record and its FTS entry.
func (r *MemoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories_fts WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete fts entry: %w", err)
	}

	return tx.Commit()
}

// Search performs FTS5 full-text search with BM25 ranking, applying project,
// category, and branch filters inside the query. The branch filter matches
// records whose branch_flow is NULL or equal to the given value. An empty
// query returns an empty slice without touching the index.
func (r *MemoryRepo) Search(ctx context.Context, query, project string, limit int, filters repository.SearchFilters) ([]*repository.Memory, error) {
	match := buildMatchExpr(query)
	if match == "" {
		return []*repository.Memory{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	where := ""
	args := []any{match, project}

	if filters.Category != "" {
		where += " AND m.category = ?"
		args = append(args, filters.Category)
	}
	if filters.BranchFlow != "" {
		where += " AND (m.branch_flow IS NULL OR m.branch_flow = ?)"
		args = append(args, filters.BranchFlow)
	}

	args = append(args, limit)

	rows, err := r.db.SQL.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.project, m.category, m.title, m.content, m.importance, m.branch_flow, m.created_at
		FROM memories_fts f
		JOIN memories m ON m.id = f.id
		WHERE memories_fts MATCH ? AND m.project = ?%s
		ORDER BY f.rank
		LIMIT ?`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// Count returns the number of records stored for a project.
func (r *MemoryRepo) Count(ctx context.Context, project string) (int, error) {
	var count int
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE project = ?`, project).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return count, nil
}

// buildMatchExpr turns a free-form query into a safe FTS5 MATCH expression.
// Each term is double-quoted so user input cannot inject FTS5 operators;
// terms are ORed to keep candidate recall high, BM25 rank handles precision.
func buildMatchExpr(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*repository.Memory, error) {
	var (
		mem        repository.Memory
		idStr      string
		branchFlow sql.NullString
		createdAt  int64
	)
	if err := row.Scan(&idStr, &mem.Project, &mem.Category, &mem.Title, &mem.Content,
		&mem.Importance, &branchFlow, &createdAt); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse memory id %q: %w", idStr, err)
	}
	mem.ID = id
	mem.BranchFlow = branchFlow.String
	mem.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &mem, nil
}

func collectMemories(rows *sql.Rows) ([]*repository.Memory, error) {
	memories := []*repository.Memory{}
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return memories, nil
}

// Ensure MemoryRepo implements the interface
var _ repository.MemoryRepository = (*MemoryRepo)(nil)
