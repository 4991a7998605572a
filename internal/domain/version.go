package domain

import (
	"time"

	"github.com/google/uuid"
)

// DocumentVersion is one immutable entry in a document's edit history.
// Versions for a document form a contiguous sequence starting at 1 and are
// never updated or deleted once committed.
type DocumentVersion struct {
	ID         uuid.UUID `json:"id"`
	DocumentID string    `json:"document_id"`
	Version    int64     `json:"version"`
	Changes    ChangeSet `json:"changes"`
	AuthorID   string    `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rollback payload field names. A rollback version is an ordinary version
// whose change set carries this shape; history before it is untouched.
const (
	RollbackFieldType        = "type"
	RollbackFieldFromVersion = "fromVersion"
	RollbackFieldToVersion   = "toVersion"
	RollbackFieldContent     = "content"

	RollbackType = "rollback"
)

// NewRollbackChangeSet builds the change payload for a rollback version:
// the tip it supersedes, the version it restores, and a snapshot of the
// restored version's changes.
func NewRollbackChangeSet(fromVersion, toVersion int64, snapshot ChangeSet) ChangeSet {
	return ChangeSet{
		RollbackFieldType:        Set(RollbackType),
		RollbackFieldFromVersion: Set(fromVersion),
		RollbackFieldToVersion:   Set(toVersion),
		RollbackFieldContent:     Set(snapshot.Clone()),
	}
}

// IsRollback reports whether the version's payload has the rollback shape.
func (v DocumentVersion) IsRollback() bool {
	op, ok := v.Changes[RollbackFieldType]
	if !ok || op.Kind != ChangeKindSet {
		return false
	}
	value, ok := op.Value.(string)
	return ok && value == RollbackType
}
