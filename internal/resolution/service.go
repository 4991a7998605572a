// Package resolution implements the versioned draft conflict-resolution
// engine: optimistic-concurrency writes, automatic merge and override
// heuristics, manual resolution of pending conflicts, and forward-only
// rollback. Storage is delegated to the repository contracts; the engine
// holds no authoritative state of its own.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/repository"
)

// Service orchestrates version creation and conflict handling for draft
// documents. All operations are synchronous and safe for concurrent use;
// correctness under racing writers rests on the repository's atomic
// conditional commit, not on any lock held here.
type Service struct {
	versions  repository.VersionRepository
	conflicts repository.ConflictRepository
	detector  *Detector
	merger    *Merger
	logger    zerolog.Logger
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithDetector overrides the conflict detector, e.g. to change the
// trivial-field allow-list.
func WithDetector(detector *Detector) Option {
	return func(s *Service) {
		if detector != nil {
			s.detector = detector
		}
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
			s.merger = s.merger.WithClock(now)
		}
	}
}

// NewService creates the conflict-resolution service.
func NewService(versions repository.VersionRepository, conflicts repository.ConflictRepository, opts ...Option) *Service {
	service := &Service{
		versions:  versions,
		conflicts: conflicts,
		detector:  NewDetector(),
		merger:    NewMerger(),
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// ApplyResult is the discriminated outcome of ApplyChanges. A conflict is
// an expected, modeled outcome, not an error: Success is false and
// Conflict carries the pending record. Auto-resolved conflicts report
// Success true with the resolved Conflict attached for auditing.
type ApplyResult struct {
	Success  bool                    `json:"success"`
	Version  *domain.DocumentVersion `json:"version,omitempty"`
	Conflict *domain.Conflict        `json:"conflict,omitempty"`
}

// ApplyChanges commits a writer's change set against the base version
// they observed. A matching base (or a first write) commits directly; a
// stale base triggers conflict detection and automatic resolution.
func (s *Service) ApplyChanges(ctx context.Context, documentID, authorID string, changes domain.ChangeSet, baseVersion int64) (ApplyResult, error) {
	if documentID == "" {
		return ApplyResult{}, fmt.Errorf("documentId is required")
	}
	if authorID == "" {
		return ApplyResult{}, fmt.Errorf("authorId is required")
	}
	if err := changes.Validate(); err != nil {
		return ApplyResult{}, err
	}
	if baseVersion < 0 {
		return ApplyResult{}, fmt.Errorf("baseVersion must not be negative")
	}

	tip, err := s.versions.GetLatest(ctx, documentID)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("read tip for %s: %w", documentID, err)
	}

	if tip == nil || tip.Version == baseVersion {
		expected := int64(0)
		if tip != nil {
			expected = tip.Version
		}
		version, err := s.versions.Commit(ctx, documentID, expected, changes, authorID)
		if err == nil {
			s.logger.Info().
				Str("document_id", documentID).
				Str("author_id", authorID).
				Int64("version", version.Version).
				Msg("changes committed")
			return ApplyResult{Success: true, Version: &version}, nil
		}
		if !errors.Is(err, domain.ErrVersionMismatch) {
			return ApplyResult{}, fmt.Errorf("commit version for %s: %w", documentID, err)
		}
		// Another writer advanced the tip between the read and the
		// conditional commit. Re-read and handle as a conflict.
		tip, err = s.versions.GetLatest(ctx, documentID)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("read tip for %s: %w", documentID, err)
		}
		if tip == nil {
			return ApplyResult{}, fmt.Errorf("document %s: commit rejected but no tip exists", documentID)
		}
	}

	return s.resolveCompetingWrite(ctx, *tip, documentID, authorID, changes, baseVersion)
}

// resolveCompetingWrite builds a conflict between the persisted tip's
// change and the incoming rejected change, then walks the resolution
// precedence: disjoint auto-merge, trivial override, manual deferral.
func (s *Service) resolveCompetingWrite(ctx context.Context, tip domain.DocumentVersion, documentID, authorID string, changes domain.ChangeSet, baseVersion int64) (ApplyResult, error) {
	now := s.now()
	persisted := domain.ConflictingChange{
		AuthorID:    tip.AuthorID,
		BaseVersion: tip.Version - 1,
		Changes:     tip.Changes,
		OccurredAt:  tip.CreatedAt,
	}
	incoming := domain.ConflictingChange{
		AuthorID:    authorID,
		BaseVersion: baseVersion,
		Changes:     changes,
		OccurredAt:  now,
	}
	conflict := domain.NewConflict(documentID, baseVersion, persisted, incoming, now)

	if s.detector.CanMergeAutomatically(tip.Changes, changes) {
		merged := s.merger.Merge(tip.Changes, changes)
		version, err := s.versions.Commit(ctx, documentID, tip.Version, merged, domain.SystemResolver)
		if err == nil {
			return s.finishAutoResolution(ctx, conflict, domain.Resolution{
				Strategy:      domain.StrategyMerge,
				MergedChanges: merged,
				ResolvedBy:    domain.SystemResolver,
				ResolvedAt:    now,
			}, &version)
		}
		if !errors.Is(err, domain.ErrVersionMismatch) {
			return ApplyResult{}, fmt.Errorf("commit merged version for %s: %w", documentID, err)
		}
		// The tip moved again while merging; fall through and let a
		// human untangle it against the conflict snapshot.
	} else {
		tipTrivial := s.detector.IsTrivialChange(tip.Changes)
		incomingTrivial := s.detector.IsTrivialChange(changes)
		switch {
		case tipTrivial && !incomingTrivial:
			// The persisted change is cosmetic; the incoming edit wins.
			version, err := s.versions.Commit(ctx, documentID, tip.Version, changes, authorID)
			if err == nil {
				return s.finishAutoResolution(ctx, conflict, domain.Resolution{
					Strategy:        domain.StrategyOverride,
					SelectedVersion: version.Version,
					ResolvedBy:      domain.SystemResolver,
					ResolvedAt:      now,
				}, &version)
			}
			if !errors.Is(err, domain.ErrVersionMismatch) {
				return ApplyResult{}, fmt.Errorf("commit override version for %s: %w", documentID, err)
			}
		case !tipTrivial && incomingTrivial:
			// The persisted change wins; the cosmetic edit is dropped
			// without advancing the document.
			return s.finishAutoResolution(ctx, conflict, domain.Resolution{
				Strategy:        domain.StrategyOverride,
				SelectedVersion: tip.Version,
				ResolvedBy:      domain.SystemResolver,
				ResolvedAt:      now,
			}, &tip)
		}
	}

	inserted, err := s.conflicts.Insert(ctx, conflict)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("persist conflict for %s: %w", documentID, err)
	}
	s.logger.Warn().
		Str("document_id", documentID).
		Str("conflict_id", inserted.ID.String()).
		Int64("base_version", baseVersion).
		Int64("tip_version", tip.Version).
		Msg("conflict pending manual resolution")
	return ApplyResult{Success: false, Conflict: &inserted}, nil
}

// finishAutoResolution persists the conflict already carrying its
// automatic resolution and reports the successful outcome.
func (s *Service) finishAutoResolution(ctx context.Context, conflict domain.Conflict, resolution domain.Resolution, version *domain.DocumentVersion) (ApplyResult, error) {
	conflict.Resolution = &resolution
	conflict.Resolved = true
	conflict.State = domain.ConflictStateAutoResolved

	inserted, err := s.conflicts.Insert(ctx, conflict)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("document_id", conflict.DocumentID).
			Msg("failed to record auto-resolved conflict")
		return ApplyResult{}, fmt.Errorf("persist resolved conflict for %s: %w", conflict.DocumentID, err)
	}

	s.logger.Info().
		Str("document_id", conflict.DocumentID).
		Str("conflict_id", inserted.ID.String()).
		Str("resolution", resolution.Describe()).
		Int64("version", version.Version).
		Msg("conflict resolved automatically")
	return ApplyResult{Success: true, Version: version, Conflict: &inserted}, nil
}

// GetConflict returns a conflict by id, or ErrConflictNotFound.
func (s *Service) GetConflict(ctx context.Context, id uuid.UUID) (*domain.Conflict, error) {
	conflict, err := s.conflicts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read conflict %s: %w", id, err)
	}
	if conflict == nil {
		return nil, domain.ErrConflictNotFound
	}
	return conflict, nil
}

// ListConflicts returns a document's conflicts, newest first. With
// pendingOnly set, only unresolved conflicts are returned.
func (s *Service) ListConflicts(ctx context.Context, documentID string, pendingOnly bool) ([]domain.Conflict, error) {
	if documentID == "" {
		return nil, fmt.Errorf("documentId is required")
	}
	return s.conflicts.ListByDocument(ctx, documentID, pendingOnly)
}
