package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictState tracks where a conflict sits in its lifecycle. The
// transient CREATED state never persists: a conflict is stored either
// already auto-resolved or pending manual review.
type ConflictState string

const (
	ConflictStateAutoResolved  ConflictState = "auto_resolved"
	ConflictStatePendingManual ConflictState = "pending_manual"
	ConflictStateResolved      ConflictState = "resolved"
)

// ConflictingChange is a snapshot of one competing writer's attempt.
type ConflictingChange struct {
	AuthorID    string    `json:"author_id"`
	BaseVersion int64     `json:"base_version"`
	Changes     ChangeSet `json:"changes"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Conflict records a write whose declared base version no longer matched
// the document tip at commit time. Changes holds every competing change in
// arrival order: the persisted tip's change first, challengers after it.
type Conflict struct {
	ID          uuid.UUID           `json:"id"`
	DocumentID  string              `json:"document_id"`
	BaseVersion int64               `json:"base_version"`
	Changes     []ConflictingChange `json:"changes"`
	Resolution  *Resolution         `json:"resolution,omitempty"`
	State       ConflictState       `json:"state"`
	Resolved    bool                `json:"resolved"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewConflict builds an unresolved conflict between the persisted tip's
// change and the incoming rejected change.
func NewConflict(documentID string, baseVersion int64, persisted, incoming ConflictingChange, now time.Time) Conflict {
	return Conflict{
		ID:          uuid.New(),
		DocumentID:  documentID,
		BaseVersion: baseVersion,
		Changes:     []ConflictingChange{persisted, incoming},
		State:       ConflictStatePendingManual,
		CreatedAt:   now,
	}
}

// Persisted returns the change belonging to the currently committed tip.
func (c Conflict) Persisted() (ConflictingChange, error) {
	if len(c.Changes) == 0 {
		return ConflictingChange{}, fmt.Errorf("conflict %s has no competing changes", c.ID)
	}
	return c.Changes[0], nil
}

// Challenger returns the most recent rejected change.
func (c Conflict) Challenger() (ConflictingChange, error) {
	if len(c.Changes) < 2 {
		return ConflictingChange{}, fmt.Errorf("conflict %s has no challenger change", c.ID)
	}
	return c.Changes[len(c.Changes)-1], nil
}

// ResolutionStrategy discriminates how a conflict was settled.
type ResolutionStrategy string

const (
	// StrategyMerge marks an automatic disjoint-key merge.
	StrategyMerge ResolutionStrategy = "merge"
	// StrategyOverride marks one side winning outright, automatically
	// (trivial-change override) or by a keep-mine / keep-theirs decision.
	StrategyOverride ResolutionStrategy = "override"
	// StrategyManual marks human-supplied merged content.
	StrategyManual ResolutionStrategy = "manual"
)

// SystemResolver is recorded as ResolvedBy for automatic resolutions.
const SystemResolver = "system"

// Resolution is the immutable outcome attached to a conflict. A conflict
// transitions at most once from unresolved to resolved.
type Resolution struct {
	Strategy        ResolutionStrategy `json:"strategy"`
	MergedChanges   ChangeSet          `json:"merged_changes,omitempty"`
	SelectedVersion int64              `json:"selected_version,omitempty"`
	ResolvedBy      string             `json:"resolved_by"`
	ResolvedAt      time.Time          `json:"resolved_at"`
}

// Describe renders a short human-readable summary of the outcome. The
// switch is exhaustive over ResolutionStrategy.
func (r Resolution) Describe() string {
	switch r.Strategy {
	case StrategyMerge:
		return fmt.Sprintf("auto-merged %d fields by %s", len(r.MergedChanges), r.ResolvedBy)
	case StrategyOverride:
		return fmt.Sprintf("override to version %d by %s", r.SelectedVersion, r.ResolvedBy)
	case StrategyManual:
		return fmt.Sprintf("manually merged %d fields by %s", len(r.MergedChanges), r.ResolvedBy)
	default:
		return fmt.Sprintf("unknown strategy %q", r.Strategy)
	}
}

// Validate rejects resolutions whose payload does not match the strategy.
func (r Resolution) Validate() error {
	switch r.Strategy {
	case StrategyMerge, StrategyManual:
		if len(r.MergedChanges) == 0 {
			return fmt.Errorf("%s resolution requires merged changes", r.Strategy)
		}
	case StrategyOverride:
		if r.SelectedVersion < 1 {
			return fmt.Errorf("override resolution requires a selected version")
		}
	default:
		return fmt.Errorf("unknown resolution strategy %q", r.Strategy)
	}
	if r.ResolvedBy == "" {
		return fmt.Errorf("resolution requires a resolver identity")
	}
	return nil
}

// ManualStrategy is the human-chosen way to settle a pending conflict.
type ManualStrategy string

const (
	ManualKeepMine   ManualStrategy = "keep-mine"
	ManualKeepTheirs ManualStrategy = "keep-theirs"
	ManualMerge      ManualStrategy = "merge"
)

// ParseManualStrategy maps external input onto the typed strategy set.
func ParseManualStrategy(value string) (ManualStrategy, error) {
	switch ManualStrategy(value) {
	case ManualKeepMine:
		return ManualKeepMine, nil
	case ManualKeepTheirs:
		return ManualKeepTheirs, nil
	case ManualMerge:
		return ManualMerge, nil
	default:
		return "", fmt.Errorf("unknown resolution strategy %q", value)
	}
}
