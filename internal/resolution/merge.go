package resolution

import (
	"time"

	"github.com/rpattn/draftsync/internal/domain"
)

// Merge metadata keys stamped onto automatically merged change sets.
const (
	MergedMarkerField = "_merged"
	MergedAtField     = "_mergedAt"
)

// Merger produces merged change sets for disjoint competing edits.
type Merger struct {
	now func() time.Time
}

// NewMerger creates a merger using the wall clock.
func NewMerger() *Merger {
	return &Merger{now: time.Now}
}

// WithClock overrides the merge timestamp source, for tests.
func (m *Merger) WithClock(now func() time.Time) *Merger {
	m.now = now
	return m
}

// Merge returns the union of both change sets tagged with merge metadata.
// Callers must have established disjointness first; on a key collision the
// second set wins, which never happens under the precondition.
func (m *Merger) Merge(a, b domain.ChangeSet) domain.ChangeSet {
	merged := make(domain.ChangeSet, len(a)+len(b)+2)
	for field, op := range a {
		merged[field] = op
	}
	for field, op := range b {
		merged[field] = op
	}
	merged[MergedMarkerField] = domain.Set(true)
	merged[MergedAtField] = domain.Set(m.now().UTC().Format(time.RFC3339Nano))
	return merged
}
