package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/draftsync/internal/domain"
)

func TestMemoryCommitSequencesVersions(t *testing.T) {
	repo := NewMemoryVersionRepository()
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		version, err := repo.Commit(ctx, "doc-1", i, domain.ChangeSet{"title": domain.Set("v")}, "alice")
		if err != nil {
			t.Fatalf("commit %d returned error: %v", i, err)
		}
		if version.Version != i+1 {
			t.Fatalf("expected version %d, got %d", i+1, version.Version)
		}
	}

	tip, err := repo.GetLatest(ctx, "doc-1")
	if err != nil {
		t.Fatalf("get latest returned error: %v", err)
	}
	if tip == nil || tip.Version != 3 {
		t.Fatalf("expected tip version 3, got %+v", tip)
	}
}

func TestMemoryCommitRejectsStaleBase(t *testing.T) {
	repo := NewMemoryVersionRepository()
	ctx := context.Background()

	if _, err := repo.Commit(ctx, "doc-1", 0, domain.ChangeSet{"title": domain.Set("a")}, "alice"); err != nil {
		t.Fatalf("first commit returned error: %v", err)
	}

	_, err := repo.Commit(ctx, "doc-1", 0, domain.ChangeSet{"title": domain.Set("b")}, "bob")
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}

	versions, err := repo.List(ctx, "doc-1", 10)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("stale commit must not write; found %d versions", len(versions))
	}
}

func TestMemoryCommitRejectsFutureBase(t *testing.T) {
	repo := NewMemoryVersionRepository()

	_, err := repo.Commit(context.Background(), "doc-1", 5, domain.ChangeSet{"title": domain.Set("a")}, "alice")
	if !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("expected version mismatch for future base, got %v", err)
	}
}

func TestMemoryGetAndList(t *testing.T) {
	repo := NewMemoryVersionRepository()
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		if _, err := repo.Commit(ctx, "doc-1", i, domain.ChangeSet{"n": domain.Set(i)}, "alice"); err != nil {
			t.Fatalf("commit returned error: %v", err)
		}
	}

	v2, err := repo.Get(ctx, "doc-1", 2)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if v2 == nil || v2.Version != 2 {
		t.Fatalf("expected version 2, got %+v", v2)
	}

	missing, err := repo.Get(ctx, "doc-1", 9)
	if err != nil {
		t.Fatalf("get returned error: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing version, got %+v", missing)
	}

	versions, err := repo.List(ctx, "doc-1", 3)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	if versions[0].Version != 5 || versions[2].Version != 3 {
		t.Fatalf("expected descending order 5..3, got %d..%d", versions[0].Version, versions[2].Version)
	}
}

func TestMemoryAttachResolutionIsSetOnce(t *testing.T) {
	repo := NewMemoryConflictRepository()
	ctx := context.Background()

	conflict, err := repo.Insert(ctx, domain.Conflict{
		ID:         uuid.New(),
		DocumentID: "doc-1",
		State:      domain.ConflictStatePendingManual,
	})
	if err != nil {
		t.Fatalf("insert returned error: %v", err)
	}

	resolution := domain.Resolution{
		Strategy:        domain.StrategyOverride,
		SelectedVersion: 2,
		ResolvedBy:      "alice",
	}
	if err := repo.AttachResolution(ctx, conflict.ID, resolution); err != nil {
		t.Fatalf("attach returned error: %v", err)
	}

	err = repo.AttachResolution(ctx, conflict.ID, resolution)
	if !errors.Is(err, domain.ErrConflictAlreadyResolved) {
		t.Fatalf("expected already-resolved error, got %v", err)
	}

	err = repo.AttachResolution(ctx, uuid.New(), resolution)
	if !errors.Is(err, domain.ErrConflictNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestMemoryListByDocumentFiltersPending(t *testing.T) {
	repo := NewMemoryConflictRepository()
	ctx := context.Background()

	pending := domain.Conflict{ID: uuid.New(), DocumentID: "doc-1", State: domain.ConflictStatePendingManual}
	resolved := domain.Conflict{ID: uuid.New(), DocumentID: "doc-1", State: domain.ConflictStateResolved, Resolved: true}
	other := domain.Conflict{ID: uuid.New(), DocumentID: "doc-2", State: domain.ConflictStatePendingManual}

	for _, c := range []domain.Conflict{pending, resolved, other} {
		if _, err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("insert returned error: %v", err)
		}
	}

	all, err := repo.ListByDocument(ctx, "doc-1", false)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 conflicts for doc-1, got %d", len(all))
	}

	onlyPending, err := repo.ListByDocument(ctx, "doc-1", true)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	if len(onlyPending) != 1 || onlyPending[0].ID != pending.ID {
		t.Fatalf("expected only the pending conflict, got %+v", onlyPending)
	}
}
