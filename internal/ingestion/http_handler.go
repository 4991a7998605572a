package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/draftsync/internal/auth"
	"github.com/rpattn/draftsync/internal/domain"
)

// Handler exposes ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	documentID := strings.TrimSpace(r.PathValue("id"))
	if documentID == "" {
		documentID = strings.TrimSpace(r.FormValue("documentId"))
	}
	if documentID == "" {
		http.Error(w, "documentId is required", http.StatusBadRequest)
		return
	}

	authorID := auth.ResolveAuthor(r.Context(), r.FormValue("authorId"))
	if authorID == "" {
		http.Error(w, "authorId is required", http.StatusBadRequest)
		return
	}

	var baseVersion int64
	if raw := strings.TrimSpace(r.FormValue("baseVersion")); raw != "" {
		baseVersion, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || baseVersion < 0 {
			http.Error(w, fmt.Sprintf("invalid base version: %q", raw), http.StatusBadRequest)
			return
		}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	req := Request{
		DocumentID:  documentID,
		AuthorID:    authorID,
		BaseVersion: baseVersion,
		FileName:    header.Filename,
		Data:        bytes.NewReader(data),
	}

	summary, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, domain.ErrVersionMismatch) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
