package resolution

import (
	"context"
	"fmt"

	"github.com/rpattn/draftsync/internal/domain"
)

// DefaultHistoryLimit bounds GetVersionHistory when no limit is given.
const DefaultHistoryLimit = 50

// RollbackToVersion re-creates a past version's content as a new,
// forward-only version. History before the rollback is untouched; in
// storage the rollback is an ordinary version with a rollback-shaped
// payload.
func (s *Service) RollbackToVersion(ctx context.Context, documentID string, targetVersion int64, authorID string) (domain.DocumentVersion, error) {
	if documentID == "" {
		return domain.DocumentVersion{}, fmt.Errorf("documentId is required")
	}
	if authorID == "" {
		return domain.DocumentVersion{}, fmt.Errorf("authorId is required")
	}
	if targetVersion < 1 {
		return domain.DocumentVersion{}, domain.ErrTargetVersionNotFound
	}

	target, err := s.versions.Get(ctx, documentID, targetVersion)
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("read version %d of %s: %w", targetVersion, documentID, err)
	}
	if target == nil {
		return domain.DocumentVersion{}, domain.ErrTargetVersionNotFound
	}

	tip, err := s.versions.GetLatest(ctx, documentID)
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("read tip for %s: %w", documentID, err)
	}
	if tip == nil {
		return domain.DocumentVersion{}, domain.ErrTargetVersionNotFound
	}

	payload := domain.NewRollbackChangeSet(tip.Version, targetVersion, target.Changes)
	version, err := s.versions.Commit(ctx, documentID, tip.Version, payload, authorID)
	if err != nil {
		return domain.DocumentVersion{}, fmt.Errorf("commit rollback for %s: %w", documentID, err)
	}

	s.logger.Info().
		Str("document_id", documentID).
		Str("author_id", authorID).
		Int64("from_version", tip.Version).
		Int64("to_version", targetVersion).
		Int64("version", version.Version).
		Msg("document rolled back")
	return version, nil
}

// GetVersionHistory returns up to limit versions of the document ordered
// by version descending. A non-positive limit applies the default.
func (s *Service) GetVersionHistory(ctx context.Context, documentID string, limit int) ([]domain.DocumentVersion, error) {
	if documentID == "" {
		return nil, fmt.Errorf("documentId is required")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	versions, err := s.versions.List(ctx, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions for %s: %w", documentID, err)
	}
	return versions, nil
}
