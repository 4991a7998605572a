package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/rpattn/draftsync/internal/domain"
	"github.com/rpattn/draftsync/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.MemoryVersionRepository, *repository.MemoryConflictRepository) {
	t.Helper()
	versions := repository.NewMemoryVersionRepository()
	conflicts := repository.NewMemoryConflictRepository()
	service := NewService(versions, conflicts, WithClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
	return service, versions, conflicts
}

// seedVersions commits count sequential versions authored by "seed".
func seedVersions(t *testing.T, service *Service, documentID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		changes := domain.ChangeSet{"body": domain.Set(i)}
		result, err := service.ApplyChanges(context.Background(), documentID, "seed", changes, int64(i))
		if err != nil {
			t.Fatalf("seed commit %d returned error: %v", i, err)
		}
		if !result.Success {
			t.Fatalf("seed commit %d unexpectedly conflicted", i)
		}
	}
}

func TestApplyChangesFirstWriteCreatesVersionOne(t *testing.T) {
	service, _, _ := newTestService(t)

	result, err := service.ApplyChanges(context.Background(), "doc-1", "alice",
		domain.ChangeSet{"title": domain.Set("Draft")}, 0)
	if err != nil {
		t.Fatalf("apply returned error: %v", err)
	}
	if !result.Success || result.Version == nil || result.Version.Version != 1 {
		t.Fatalf("expected version 1, got %+v", result)
	}
	if result.Conflict != nil {
		t.Fatalf("first write must not conflict")
	}
}

func TestApplyChangesMatchingBaseAdvancesTip(t *testing.T) {
	service, _, conflicts := newTestService(t)
	seedVersions(t, service, "doc-1", 3)

	result, err := service.ApplyChanges(context.Background(), "doc-1", "alice",
		domain.ChangeSet{"title": domain.Set("X")}, 3)
	if err != nil {
		t.Fatalf("apply returned error: %v", err)
	}
	if !result.Success || result.Version.Version != 4 {
		t.Fatalf("expected new tip 4, got %+v", result)
	}

	pending, err := conflicts.ListByDocument(context.Background(), "doc-1", false)
	if err != nil {
		t.Fatalf("list conflicts returned error: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("matching base must not create a conflict, found %d", len(pending))
	}
}

func TestApplyChangesVersionsAreContiguous(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 6)

	history, err := service.GetVersionHistory(context.Background(), "doc-1", 0)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("expected 6 versions, got %d", len(history))
	}
	for i, version := range history {
		expected := int64(6 - i)
		if version.Version != expected {
			t.Fatalf("expected version %d at index %d, got %d", expected, i, version.Version)
		}
	}
}

// Scenario A from the conflict test plan: overlapping non-trivial edits
// against a stale base defer to a human.
func TestApplyChangesOverlappingEditsPendManualResolution(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 3)

	first, err := service.ApplyChanges(context.Background(), "doc-1", "userA",
		domain.ChangeSet{"title": domain.Set("X")}, 3)
	if err != nil || !first.Success || first.Version.Version != 4 {
		t.Fatalf("userA write failed: %+v, %v", first, err)
	}

	second, err := service.ApplyChanges(context.Background(), "doc-1", "userB",
		domain.ChangeSet{"title": domain.Set("Y")}, 3)
	if err != nil {
		t.Fatalf("userB apply returned error: %v", err)
	}
	if second.Success {
		t.Fatalf("stale overlapping write must not succeed")
	}
	conflict := second.Conflict
	if conflict == nil {
		t.Fatalf("expected a pending conflict")
	}
	if conflict.State != domain.ConflictStatePendingManual || conflict.Resolved {
		t.Fatalf("expected pending manual state, got %+v", conflict)
	}
	if len(conflict.Changes) != 2 {
		t.Fatalf("conflict must reference both competing changes, got %d", len(conflict.Changes))
	}
	if conflict.Changes[0].AuthorID != "userA" || conflict.Changes[1].AuthorID != "userB" {
		t.Fatalf("conflict must hold persisted change first, challenger second: %+v", conflict.Changes)
	}
	if conflict.BaseVersion != 3 {
		t.Fatalf("expected base version 3, got %d", conflict.BaseVersion)
	}

	tip, err := service.GetVersionHistory(context.Background(), "doc-1", 1)
	if err != nil || len(tip) != 1 {
		t.Fatalf("history read failed: %v", err)
	}
	if tip[0].Version != 4 {
		t.Fatalf("pending conflict must not advance the tip, got %d", tip[0].Version)
	}
}

// Scenario B: disjoint edits against a stale base are merged and
// committed automatically.
func TestApplyChangesDisjointEditsAutoMerge(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 3)

	first, err := service.ApplyChanges(context.Background(), "doc-1", "userA",
		domain.ChangeSet{"price": domain.Set(100)}, 3)
	if err != nil || !first.Success {
		t.Fatalf("userA write failed: %+v, %v", first, err)
	}

	second, err := service.ApplyChanges(context.Background(), "doc-1", "userB",
		domain.ChangeSet{"notes": domain.Set("ok")}, 3)
	if err != nil {
		t.Fatalf("userB apply returned error: %v", err)
	}
	if !second.Success || second.Version.Version != 5 {
		t.Fatalf("expected auto-merged tip 5, got %+v", second)
	}

	merged := second.Version.Changes
	if merged["price"].Value != 100 || merged["notes"].Value != "ok" {
		t.Fatalf("merged version lost data: %+v", merged)
	}
	if merged[MergedMarkerField].Value != true {
		t.Fatalf("merged version missing merge marker")
	}

	conflict := second.Conflict
	if conflict == nil || conflict.State != domain.ConflictStateAutoResolved || !conflict.Resolved {
		t.Fatalf("expected auto-resolved conflict, got %+v", conflict)
	}
	if conflict.Resolution == nil || conflict.Resolution.Strategy != domain.StrategyMerge {
		t.Fatalf("expected merge resolution, got %+v", conflict.Resolution)
	}
	if conflict.Resolution.ResolvedBy != domain.SystemResolver {
		t.Fatalf("automatic resolutions must be attributed to the system")
	}
}

func TestApplyChangesTrivialTipIsOverridden(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 3)

	// Tip change is cosmetic only.
	first, err := service.ApplyChanges(context.Background(), "doc-1", "userA",
		domain.ChangeSet{"style": domain.Set("compact"), "layout": domain.Set("two-column")}, 3)
	if err != nil || !first.Success {
		t.Fatalf("userA write failed: %+v, %v", first, err)
	}

	// Overlapping key prevents auto-merge; the non-trivial side wins.
	second, err := service.ApplyChanges(context.Background(), "doc-1", "userB",
		domain.ChangeSet{"style": domain.Set("wide"), "budget": domain.Set(1200)}, 3)
	if err != nil {
		t.Fatalf("userB apply returned error: %v", err)
	}
	if !second.Success || second.Version.Version != 5 {
		t.Fatalf("expected override commit at version 5, got %+v", second)
	}
	if second.Version.AuthorID != "userB" {
		t.Fatalf("override version must carry the winning author")
	}
	resolution := second.Conflict.Resolution
	if resolution == nil || resolution.Strategy != domain.StrategyOverride || resolution.SelectedVersion != 5 {
		t.Fatalf("expected override resolution selecting version 5, got %+v", resolution)
	}
}

func TestApplyChangesTrivialChallengerIsDropped(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 3)

	first, err := service.ApplyChanges(context.Background(), "doc-1", "userA",
		domain.ChangeSet{"title": domain.Set("Final"), "style": domain.Set("serif")}, 3)
	if err != nil || !first.Success {
		t.Fatalf("userA write failed: %+v, %v", first, err)
	}

	second, err := service.ApplyChanges(context.Background(), "doc-1", "userB",
		domain.ChangeSet{"style": domain.Set("sans")}, 3)
	if err != nil {
		t.Fatalf("userB apply returned error: %v", err)
	}
	if !second.Success {
		t.Fatalf("trivial challenger must resolve automatically, got %+v", second)
	}
	if second.Version.Version != 4 {
		t.Fatalf("dropping a trivial challenger must not advance the tip, got %d", second.Version.Version)
	}
	resolution := second.Conflict.Resolution
	if resolution == nil || resolution.Strategy != domain.StrategyOverride || resolution.SelectedVersion != 4 {
		t.Fatalf("expected override resolution selecting the tip, got %+v", resolution)
	}

	history, err := service.GetVersionHistory(context.Background(), "doc-1", 10)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 versions, got %d", len(history))
	}
}

func TestApplyChangesBothTrivialOverlappingDefersToManual(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 1)

	first, err := service.ApplyChanges(context.Background(), "doc-1", "userA",
		domain.ChangeSet{"style": domain.Set("serif")}, 1)
	if err != nil || !first.Success {
		t.Fatalf("userA write failed: %+v, %v", first, err)
	}

	second, err := service.ApplyChanges(context.Background(), "doc-1", "userB",
		domain.ChangeSet{"style": domain.Set("sans")}, 1)
	if err != nil {
		t.Fatalf("userB apply returned error: %v", err)
	}
	if second.Success || second.Conflict == nil || second.Conflict.State != domain.ConflictStatePendingManual {
		t.Fatalf("two trivial overlapping edits must defer to a human, got %+v", second)
	}
}

func TestApplyChangesValidatesInput(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.ApplyChanges(ctx, "", "alice", domain.ChangeSet{"a": domain.Set(1)}, 0); err == nil {
		t.Fatalf("empty document id must be rejected")
	}
	if _, err := service.ApplyChanges(ctx, "doc-1", "", domain.ChangeSet{"a": domain.Set(1)}, 0); err == nil {
		t.Fatalf("empty author id must be rejected")
	}
	if _, err := service.ApplyChanges(ctx, "doc-1", "alice", nil, 0); err == nil {
		t.Fatalf("nil change set must be rejected")
	}
	if _, err := service.ApplyChanges(ctx, "doc-1", "alice", domain.ChangeSet{}, 0); err == nil {
		t.Fatalf("empty change set must be rejected")
	}
	if _, err := service.ApplyChanges(ctx, "doc-1", "alice", domain.ChangeSet{"a": domain.Set(1)}, -1); err == nil {
		t.Fatalf("negative base version must be rejected")
	}
}

// racingVersionRepository sneaks a competing commit in front of the first
// conditional commit, reproducing the read/commit race window.
type racingVersionRepository struct {
	*repository.MemoryVersionRepository
	raced bool
}

func (r *racingVersionRepository) Commit(ctx context.Context, documentID string, expected int64, changes domain.ChangeSet, authorID string) (domain.DocumentVersion, error) {
	if !r.raced {
		r.raced = true
		if _, err := r.MemoryVersionRepository.Commit(ctx, documentID, expected, domain.ChangeSet{"notes": domain.Set("sneaky")}, "racer"); err != nil {
			return domain.DocumentVersion{}, err
		}
	}
	return r.MemoryVersionRepository.Commit(ctx, documentID, expected, changes, authorID)
}

func TestApplyChangesLostRaceBecomesConflict(t *testing.T) {
	versions := &racingVersionRepository{MemoryVersionRepository: repository.NewMemoryVersionRepository()}
	conflicts := repository.NewMemoryConflictRepository()
	service := NewService(versions, conflicts)

	// The base looks current, but a racer lands first; the write is
	// disjoint from the racer's, so it auto-merges.
	result, err := service.ApplyChanges(context.Background(), "doc-1", "alice",
		domain.ChangeSet{"title": domain.Set("Draft")}, 0)
	if err != nil {
		t.Fatalf("apply returned error: %v", err)
	}
	if !result.Success || result.Version.Version != 2 {
		t.Fatalf("expected auto-merged version 2 after losing the race, got %+v", result)
	}
	if result.Conflict == nil || result.Conflict.State != domain.ConflictStateAutoResolved {
		t.Fatalf("expected an auto-resolved conflict record, got %+v", result.Conflict)
	}
}
