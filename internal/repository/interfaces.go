package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/draftsync/internal/domain"
)

// VersionRepository defines the narrow contract the resolution engine
// requires from version storage. Commit is the single atomic
// compare-and-commit primitive: the tip read and the conditional insert
// happen as one operation at the storage boundary, never as two calls.
type VersionRepository interface {
	// GetLatest returns the document's tip version, or nil when the
	// document has never been written.
	GetLatest(ctx context.Context, documentID string) (*domain.DocumentVersion, error)

	// Commit appends version expectedPriorVersion+1 iff the current tip
	// equals expectedPriorVersion (0 for a first write). A stale base
	// yields domain.ErrVersionMismatch and writes nothing.
	Commit(ctx context.Context, documentID string, expectedPriorVersion int64, changes domain.ChangeSet, authorID string) (domain.DocumentVersion, error)

	// Get returns one specific version, or nil when it does not exist.
	Get(ctx context.Context, documentID string, version int64) (*domain.DocumentVersion, error)

	// List returns up to limit versions ordered by version descending.
	List(ctx context.Context, documentID string, limit int) ([]domain.DocumentVersion, error)
}

// ConflictRepository stores conflict records and their eventual
// resolution.
type ConflictRepository interface {
	Insert(ctx context.Context, conflict domain.Conflict) (domain.Conflict, error)

	// GetByID returns nil when the conflict does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conflict, error)

	// AttachResolution marks the conflict resolved exactly once. It
	// returns domain.ErrConflictNotFound for unknown ids and
	// domain.ErrConflictAlreadyResolved when a resolution is present.
	AttachResolution(ctx context.Context, id uuid.UUID, resolution domain.Resolution) error

	// ListByDocument returns the document's conflicts, newest first,
	// optionally restricted to unresolved ones.
	ListByDocument(ctx context.Context, documentID string, pendingOnly bool) ([]domain.Conflict, error)
}
