package resolution

import (
	"context"
	"errors"
	"testing"

	"github.com/rpattn/draftsync/internal/domain"
)

// Scenario C: rolling back to version 2 with tip 5 appends version 6 and
// leaves all prior history untouched.
func TestRollbackAppendsForwardOnlyVersion(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 5)
	ctx := context.Background()

	version, err := service.RollbackToVersion(ctx, "doc-1", 2, "admin")
	if err != nil {
		t.Fatalf("rollback returned error: %v", err)
	}
	if version.Version != 6 {
		t.Fatalf("expected rollback to commit version 6, got %d", version.Version)
	}
	if !version.IsRollback() {
		t.Fatalf("rollback payload missing rollback type: %+v", version.Changes)
	}
	if version.Changes[domain.RollbackFieldFromVersion].Value != int64(5) {
		t.Fatalf("expected fromVersion 5, got %v", version.Changes[domain.RollbackFieldFromVersion].Value)
	}
	if version.Changes[domain.RollbackFieldToVersion].Value != int64(2) {
		t.Fatalf("expected toVersion 2, got %v", version.Changes[domain.RollbackFieldToVersion].Value)
	}

	snapshot, ok := version.Changes[domain.RollbackFieldContent].Value.(domain.ChangeSet)
	if !ok {
		t.Fatalf("rollback content must snapshot the target change set, got %T", version.Changes[domain.RollbackFieldContent].Value)
	}
	if snapshot["body"].Value != 1 {
		t.Fatalf("expected snapshot of version 2's changes, got %+v", snapshot)
	}

	history, err := service.GetVersionHistory(ctx, "doc-1", 10)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if len(history) != 6 {
		t.Fatalf("history must grow by exactly one, got %d entries", len(history))
	}
	// Version 2 is unchanged; history is descending so it sits at index 4.
	if history[4].Version != 2 || history[4].Changes["body"].Value != 1 {
		t.Fatalf("rollback must not rewrite version 2: %+v", history[4])
	}
}

func TestRollbackUnknownTargetFails(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 2)
	ctx := context.Background()

	_, err := service.RollbackToVersion(ctx, "doc-1", 7, "admin")
	if !errors.Is(err, domain.ErrTargetVersionNotFound) {
		t.Fatalf("expected target not found, got %v", err)
	}
	_, err = service.RollbackToVersion(ctx, "doc-1", 0, "admin")
	if !errors.Is(err, domain.ErrTargetVersionNotFound) {
		t.Fatalf("expected target not found for version 0, got %v", err)
	}
	_, err = service.RollbackToVersion(ctx, "doc-missing", 1, "admin")
	if !errors.Is(err, domain.ErrTargetVersionNotFound) {
		t.Fatalf("expected target not found for unwritten document, got %v", err)
	}
}

func TestGetVersionHistoryAppliesDefaultLimit(t *testing.T) {
	service, _, _ := newTestService(t)
	seedVersions(t, service, "doc-1", 60)

	history, err := service.GetVersionHistory(context.Background(), "doc-1", 0)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if len(history) != DefaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultHistoryLimit, len(history))
	}
	if history[0].Version != 60 {
		t.Fatalf("expected newest version first, got %d", history[0].Version)
	}
}
