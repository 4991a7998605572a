package resolution

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/draftsync/internal/domain"
)

// ResolveOutcome reports what a manual resolution committed.
type ResolveOutcome struct {
	Version    domain.DocumentVersion `json:"version"`
	Resolution domain.Resolution      `json:"resolution"`
}

// ResolveConflictManually applies a human decision to a pending conflict.
// keep-mine accepts the challenger's (rejected) change, keep-theirs the
// persisted tip's change, and merge requires caller-supplied content. The
// resolved content is committed as a new version against the current tip
// and the set-once resolution is attached to the conflict.
func (s *Service) ResolveConflictManually(ctx context.Context, conflictID uuid.UUID, authorID string, strategy domain.ManualStrategy, mergedContent domain.ChangeSet) (ResolveOutcome, error) {
	if authorID == "" {
		return ResolveOutcome{}, fmt.Errorf("authorId is required")
	}

	conflict, err := s.conflicts.GetByID(ctx, conflictID)
	if err != nil {
		return ResolveOutcome{}, fmt.Errorf("read conflict %s: %w", conflictID, err)
	}
	if conflict == nil {
		return ResolveOutcome{}, domain.ErrConflictNotFound
	}
	if conflict.Resolved {
		return ResolveOutcome{}, domain.ErrConflictAlreadyResolved
	}

	var content domain.ChangeSet
	switch strategy {
	case domain.ManualKeepMine:
		challenger, err := conflict.Challenger()
		if err != nil {
			return ResolveOutcome{}, err
		}
		content = challenger.Changes
	case domain.ManualKeepTheirs:
		persisted, err := conflict.Persisted()
		if err != nil {
			return ResolveOutcome{}, err
		}
		content = persisted.Changes
	case domain.ManualMerge:
		if len(mergedContent) == 0 {
			return ResolveOutcome{}, domain.ErrMissingMergedContent
		}
		content = mergedContent
	default:
		return ResolveOutcome{}, fmt.Errorf("unknown manual strategy %q", strategy)
	}

	tip, err := s.versions.GetLatest(ctx, conflict.DocumentID)
	if err != nil {
		return ResolveOutcome{}, fmt.Errorf("read tip for %s: %w", conflict.DocumentID, err)
	}
	if tip == nil {
		return ResolveOutcome{}, fmt.Errorf("conflict %s references document %s with no versions", conflictID, conflict.DocumentID)
	}

	version, err := s.versions.Commit(ctx, conflict.DocumentID, tip.Version, content, authorID)
	if err != nil {
		return ResolveOutcome{}, fmt.Errorf("commit resolved version for %s: %w", conflict.DocumentID, err)
	}

	resolution := domain.Resolution{
		ResolvedBy: authorID,
		ResolvedAt: s.now(),
	}
	switch strategy {
	case domain.ManualKeepMine, domain.ManualKeepTheirs:
		resolution.Strategy = domain.StrategyOverride
		resolution.SelectedVersion = version.Version
	case domain.ManualMerge:
		resolution.Strategy = domain.StrategyManual
		resolution.MergedChanges = content
	}

	if err := s.conflicts.AttachResolution(ctx, conflictID, resolution); err != nil {
		// The version is committed; an unattached resolution must not
		// masquerade as success.
		s.logger.Error().
			Err(err).
			Str("conflict_id", conflictID.String()).
			Int64("version", version.Version).
			Msg("resolved version committed but resolution attach failed")
		return ResolveOutcome{}, fmt.Errorf("attach resolution to %s: %w", conflictID, err)
	}

	s.logger.Info().
		Str("document_id", conflict.DocumentID).
		Str("conflict_id", conflictID.String()).
		Str("author_id", authorID).
		Str("resolution", resolution.Describe()).
		Int64("version", version.Version).
		Msg("conflict resolved manually")
	return ResolveOutcome{Version: version, Resolution: resolution}, nil
}
