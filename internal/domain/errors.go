package domain

import "errors"

// Expected control-flow signals and caller mistakes. Storage failures are
// not modeled here: repositories wrap underlying errors with context and
// propagate them as-is.
var (
	// ErrVersionMismatch signals that a conditional commit lost the race:
	// the document tip moved past the writer's declared base version. It
	// is the trigger for conflict creation, not a failure.
	ErrVersionMismatch = errors.New("document tip does not match expected version")

	// ErrConflictNotFound signals a resolution request against an unknown
	// conflict id.
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrConflictAlreadyResolved rejects a second resolution attempt;
	// resolutions are set-once.
	ErrConflictAlreadyResolved = errors.New("conflict is already resolved")

	// ErrMissingMergedContent rejects a merge resolution submitted without
	// merged content.
	ErrMissingMergedContent = errors.New("merge resolution requires merged content")

	// ErrTargetVersionNotFound rejects a rollback to a version that does
	// not exist for the document.
	ErrTargetVersionNotFound = errors.New("target version not found")
)
