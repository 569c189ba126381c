package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hanlab/memoryd/internal/auth"
	"github.com/hanlab/memoryd/internal/embedder"
	"github.com/hanlab/memoryd/internal/repository"
	"github.com/hanlab/memoryd/internal/service"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	memories   *service.MemoryService
	backend    embedder.Backend
	jwtManager *auth.JWTManager
	apiKey     string
	logger     *slog.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(memories *service.MemoryService, backend embedder.Backend, jwtManager *auth.JWTManager, apiKey string, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		memories:   memories,
		backend:    backend,
		jwtManager: jwtManager,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Readiness reports readiness, including embedding backend availability.
// The backend being down does not make the service unready; retrieval
// degrades to lexical-only ordering.
func (h *Handlers) Readiness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ready",
		"embedding_available": h.backend != nil && h.backend.Available(),
	})
}

type tokenRequest struct {
	APIKey  string `json:"api_key"`
	Project string `json:"project"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// IssueToken exchanges the service API key for a JWT, optionally scoped to
// a project.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.apiKey == "" || req.APIKey != h.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	token, err := h.jwtManager.GenerateToken(req.Project)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// StoreMemory persists a new memory record.
func (h *Handlers) StoreMemory(w http.ResponseWriter, r *http.Request) {
	var req service.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mem, err := h.memories.Store(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": mem.ID.String()})
}

// GetMemory returns a single memory record by ID.
func (h *Handlers) GetMemory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	mem, err := h.memories.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, mem)
}

// ListMemories returns records for a project, newest first.
func (h *Handlers) ListMemories(w http.ResponseWriter, r *http.Request) {
	project := r.URL.Query().Get("project")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	memories, total, err := h.memories.List(r.Context(), project, limit, offset)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"memories": memories,
		"total":    total,
	})
}

// DeleteMemory removes a record.
func (h *Handlers) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory id")
		return
	}

	if err := h.memories.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Search performs a plain lexical search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := repository.SearchFilters{
		Category:   q.Get("category"),
		BranchFlow: q.Get("branch_flow"),
	}

	results, err := h.memories.Search(r.Context(), q.Get("q"), q.Get("project"), queryInt(r, "limit", 0), filters)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type semanticSearchBody struct {
	Query      string `json:"query"`
	Project    string `json:"project"`
	Limit      int    `json:"limit"`
	RerankMode string `json:"rerank_mode"`
	Category   string `json:"category"`
	BranchFlow string `json:"branch_flow"`
}

// SemanticSearch runs the hybrid retrieval cascade.
func (h *Handlers) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	var body semanticSearchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.memories.SemanticSearch(r.Context(), service.SemanticSearchRequest{
		Query:      body.Query,
		Project:    body.Project,
		Limit:      body.Limit,
		RerankMode: body.RerankMode,
		Filters: repository.SearchFilters{
			Category:   body.Category,
			BranchFlow: body.BranchFlow,
		},
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ApplySelection resolves an externally produced rerank selection.
func (h *Handlers) ApplySelection(w http.ResponseWriter, r *http.Request) {
	var req service.ApplySelectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.memories.ApplySelection(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
