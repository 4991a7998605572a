package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/draftsync/internal/domain"
)

// MemoryVersionRepository is a mutex-guarded VersionRepository used by
// tests and by the memory storage mode. Commit honors the same
// compare-and-commit semantics as the Postgres implementation.
type MemoryVersionRepository struct {
	mu       sync.Mutex
	versions map[string][]domain.DocumentVersion
	now      func() time.Time
}

// NewMemoryVersionRepository creates an empty in-memory version store.
func NewMemoryVersionRepository() *MemoryVersionRepository {
	return &MemoryVersionRepository{
		versions: make(map[string][]domain.DocumentVersion),
		now:      time.Now,
	}
}

// WithClock overrides the commit timestamp source, for tests.
func (r *MemoryVersionRepository) WithClock(now func() time.Time) *MemoryVersionRepository {
	r.now = now
	return r
}

func (r *MemoryVersionRepository) GetLatest(_ context.Context, documentID string) (*domain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[documentID]
	if len(history) == 0 {
		return nil, nil
	}
	tip := history[len(history)-1]
	return &tip, nil
}

func (r *MemoryVersionRepository) Commit(_ context.Context, documentID string, expectedPriorVersion int64, changes domain.ChangeSet, authorID string) (domain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[documentID]
	tip := int64(len(history))
	if tip != expectedPriorVersion {
		return domain.DocumentVersion{}, domain.ErrVersionMismatch
	}

	version := domain.DocumentVersion{
		ID:         uuid.New(),
		DocumentID: documentID,
		Version:    tip + 1,
		Changes:    changes.Clone(),
		AuthorID:   authorID,
		CreatedAt:  r.now(),
	}
	r.versions[documentID] = append(history, version)
	return version, nil
}

func (r *MemoryVersionRepository) Get(_ context.Context, documentID string, version int64) (*domain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[documentID]
	if version < 1 || version > int64(len(history)) {
		return nil, nil
	}
	found := history[version-1]
	return &found, nil
}

func (r *MemoryVersionRepository) List(_ context.Context, documentID string, limit int) ([]domain.DocumentVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := r.versions[documentID]
	result := make([]domain.DocumentVersion, 0, limit)
	for i := len(history) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, history[i])
	}
	return result, nil
}

// MemoryConflictRepository is a mutex-guarded ConflictRepository used by
// tests and by the memory storage mode.
type MemoryConflictRepository struct {
	mu        sync.Mutex
	conflicts map[uuid.UUID]domain.Conflict
	order     []uuid.UUID
}

// NewMemoryConflictRepository creates an empty in-memory conflict store.
func NewMemoryConflictRepository() *MemoryConflictRepository {
	return &MemoryConflictRepository{
		conflicts: make(map[uuid.UUID]domain.Conflict),
	}
}

func (r *MemoryConflictRepository) Insert(_ context.Context, conflict domain.Conflict) (domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflicts[conflict.ID] = conflict
	r.order = append(r.order, conflict.ID)
	return conflict, nil
}

func (r *MemoryConflictRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conflict, ok := r.conflicts[id]
	if !ok {
		return nil, nil
	}
	return &conflict, nil
}

func (r *MemoryConflictRepository) AttachResolution(_ context.Context, id uuid.UUID, resolution domain.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conflict, ok := r.conflicts[id]
	if !ok {
		return domain.ErrConflictNotFound
	}
	if conflict.Resolved {
		return domain.ErrConflictAlreadyResolved
	}

	conflict.Resolution = &resolution
	conflict.Resolved = true
	conflict.State = domain.ConflictStateResolved
	r.conflicts[id] = conflict
	return nil
}

func (r *MemoryConflictRepository) ListByDocument(_ context.Context, documentID string, pendingOnly bool) ([]domain.Conflict, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := []domain.Conflict{}
	for i := len(r.order) - 1; i >= 0; i-- {
		conflict := r.conflicts[r.order[i]]
		if conflict.DocumentID != documentID {
			continue
		}
		if pendingOnly && conflict.Resolved {
			continue
		}
		result = append(result, conflict)
	}
	return result, nil
}
