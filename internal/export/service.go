// Package export writes version history and conflict audit trails as CSV.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/repository"
)

var historyHeader = []string{"version", "author_id", "created_at", "rollback", "changes"}

var conflictHeader = []string{"conflict_id", "base_version", "state", "created_at", "writers", "strategy", "resolved_by", "resolved_at"}

// Service renders audit exports from the version and conflict stores.
type Service struct {
	versions  repository.VersionRepository
	conflicts repository.ConflictRepository
}

// NewService creates a new export service.
func NewService(versions repository.VersionRepository, conflicts repository.ConflictRepository) *Service {
	return &Service{versions: versions, conflicts: conflicts}
}

// WriteHistoryCSV streams a document's version history, newest first.
func (s *Service) WriteHistoryCSV(ctx context.Context, w io.Writer, documentID string, limit int) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, errors.New("document id is required")
	}

	versions, err := s.versions.List(ctx, documentID, limit)
	if err != nil {
		return 0, fmt.Errorf("list versions: %w", err)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(historyHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	rows := make([]string, len(historyHeader))
	written := 0
	for _, version := range versions {
		rows[0] = strconv.FormatInt(version.Version, 10)
		rows[1] = version.AuthorID
		rows[2] = version.CreatedAt.UTC().Format(time.RFC3339)
		rows[3] = strconv.FormatBool(version.IsRollback())
		rows[4] = formatChanges(version.Changes)
		if err := csvWriter.Write(rows); err != nil {
			return written, fmt.Errorf("write version row: %w", err)
		}
		written++
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return written, fmt.Errorf("flush rows: %w", err)
	}
	return written, nil
}

// WriteConflictsCSV streams a document's conflict audit trail.
func (s *Service) WriteConflictsCSV(ctx context.Context, w io.Writer, documentID string, pendingOnly bool) (int, error) {
	if strings.TrimSpace(documentID) == "" {
		return 0, errors.New("document id is required")
	}

	conflicts, err := s.conflicts.ListByDocument(ctx, documentID, pendingOnly)
	if err != nil {
		return 0, fmt.Errorf("list conflicts: %w", err)
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(conflictHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	rows := make([]string, len(conflictHeader))
	written := 0
	for _, conflict := range conflicts {
		rows[0] = conflict.ID.String()
		rows[1] = strconv.FormatInt(conflict.BaseVersion, 10)
		rows[2] = string(conflict.State)
		rows[3] = conflict.CreatedAt.UTC().Format(time.RFC3339)
		rows[4] = joinWriters(conflict.Changes)
		rows[5], rows[6], rows[7] = "", "", ""
		if conflict.Resolution != nil {
			rows[5] = string(conflict.Resolution.Strategy)
			rows[6] = conflict.Resolution.ResolvedBy
			rows[7] = conflict.Resolution.ResolvedAt.UTC().Format(time.RFC3339)
		}
		if err := csvWriter.Write(rows); err != nil {
			return written, fmt.Errorf("write conflict row: %w", err)
		}
		written++
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return written, fmt.Errorf("flush rows: %w", err)
	}
	return written, nil
}

func joinWriters(changes []domain.ConflictingChange) string {
	writers := make([]string, 0, len(changes))
	for _, change := range changes {
		writers = append(writers, change.AuthorID)
	}
	return strings.Join(writers, ";")
}

func formatChanges(changes domain.ChangeSet) string {
	if len(changes) == 0 {
		return ""
	}
	encoded, err := json.Marshal(changes)
	if err != nil {
		return fmt.Sprintf("%v", changes)
	}
	return string(encoded)
}
