package export

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

type Handler struct {
	service *Service
}

// NewHTTPHandler serves CSV downloads of history and conflict audits.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch {
	case strings.HasSuffix(r.URL.Path, "/history.csv"):
		h.handleHistory(w, r)
	case strings.HasSuffix(r.URL.Path, "/conflicts.csv"):
		h.handleConflicts(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func documentFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.PathValue("id")); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("documentId"))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	documentID := documentFromRequest(r)
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", documentID+"-history.csv"))
	if _, err := h.service.WriteHistoryCSV(r.Context(), w, documentID, limit); err != nil {
		// Headers already sent; nothing more we can do than log via middleware.
		return
	}
}

func (h *Handler) handleConflicts(w http.ResponseWriter, r *http.Request) {
	documentID := documentFromRequest(r)
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}

	pendingOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("pending")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "pending must be a boolean", http.StatusBadRequest)
			return
		}
		pendingOnly = parsed
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", documentID+"-conflicts.csv"))
	if _, err := h.service.WriteConflictsCSV(r.Context(), w, documentID, pendingOnly); err != nil {
		return
	}
}
