// Package api exposes the versioning engine over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/draftsync/internal/auth"
	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/resolution"
)

// Handler serves the document versioning endpoints.
type Handler struct {
	resolver *resolution.Service
	logger   zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(resolver *resolution.Service, logger zerolog.Logger) *Handler {
	return &Handler{resolver: resolver, logger: logger}
}

// Routes registers the versioning endpoints on a fresh mux.
func (h *Handler) Routes(ingest, export http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents/{id}/changes", h.handleApplyChanges)
	mux.HandleFunc("POST /documents/{id}/rollback", h.handleRollback)
	mux.HandleFunc("GET /documents/{id}/history", h.handleHistory)
	mux.HandleFunc("GET /documents/{id}/conflicts", h.handleListConflicts)
	mux.HandleFunc("GET /conflicts/{id}", h.handleGetConflict)
	mux.HandleFunc("POST /conflicts/{id}/resolution", h.handleResolveConflict)
	if ingest != nil {
		mux.Handle("POST /documents/{id}/changes/import", ingest)
	}
	if export != nil {
		mux.Handle("GET /documents/{id}/history.csv", export)
		mux.Handle("GET /documents/{id}/conflicts.csv", export)
	}
	return AuthorMiddleware(mux)
}

type applyChangesPayload struct {
	AuthorID    string           `json:"authorId"`
	BaseVersion int64            `json:"baseVersion"`
	Changes     domain.ChangeSet `json:"changes"`
}

func (h *Handler) handleApplyChanges(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	documentID := r.PathValue("id")

	var payload applyChangesPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	if err := payload.Changes.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if payload.BaseVersion < 0 {
		http.Error(w, "baseVersion must not be negative", http.StatusBadRequest)
		return
	}

	authorID := auth.ResolveAuthor(r.Context(), payload.AuthorID)
	if authorID == "" {
		http.Error(w, "authorId is required", http.StatusBadRequest)
		return
	}
	result, err := h.resolver.ApplyChanges(r.Context(), documentID, authorID, payload.Changes, payload.BaseVersion)
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		// The write did not land; a pending conflict needs a human.
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

type rollbackPayload struct {
	AuthorID      string `json:"authorId"`
	TargetVersion int64  `json:"targetVersion"`
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	documentID := r.PathValue("id")

	var payload rollbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	authorID := auth.ResolveAuthor(r.Context(), payload.AuthorID)
	version, err := h.resolver.RollbackToVersion(r.Context(), documentID, payload.TargetVersion, authorID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	versions, err := h.resolver.GetVersionHistory(r.Context(), documentID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (h *Handler) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")

	pendingOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("pending")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "pending must be a boolean", http.StatusBadRequest)
			return
		}
		pendingOnly = parsed
	}

	conflicts, err := h.resolver.ListConflicts(r.Context(), documentID, pendingOnly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflicts)
}

func (h *Handler) handleGetConflict(w http.ResponseWriter, r *http.Request) {
	conflictID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid conflict id: %v", err), http.StatusBadRequest)
		return
	}

	conflict, err := h.resolver.GetConflict(r.Context(), conflictID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conflict)
}

type resolvePayload struct {
	AuthorID      string           `json:"authorId"`
	Strategy      string           `json:"strategy"`
	MergedContent domain.ChangeSet `json:"mergedContent,omitempty"`
}

func (h *Handler) handleResolveConflict(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	conflictID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid conflict id: %v", err), http.StatusBadRequest)
		return
	}

	var payload resolvePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	strategy, err := domain.ParseManualStrategy(payload.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	authorID := auth.ResolveAuthor(r.Context(), payload.AuthorID)
	outcome, err := h.resolver.ResolveConflictManually(r.Context(), conflictID, authorID, strategy, payload.MergedContent)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrConflictNotFound),
		errors.Is(err, domain.ErrTargetVersionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflictAlreadyResolved),
		errors.Is(err, domain.ErrVersionMismatch):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrMissingMergedContent):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
