package resolution

import (
	"strings"

	"github.com/rpattn/draftsync/internal/domain"
)

// defaultTrivialFields is the allow-list of non-semantic fields that are
// safe to override without human review.
var defaultTrivialFields = []string{
	"formatting",
	"style",
	"layout",
	"theme",
	"metadata",
	"display_order",
	"color_scheme",
}

// Detector decides whether two competing change sets can be reconciled
// without a human. The checks are syntactic: only top-level keys are
// compared, never nested values.
type Detector struct {
	trivialFields map[string]struct{}
}

// NewDetector builds a detector with the default trivial-field allow-list.
func NewDetector() *Detector {
	return NewDetectorWithTrivialFields(defaultTrivialFields)
}

// NewDetectorWithTrivialFields builds a detector with a custom allow-list.
func NewDetectorWithTrivialFields(fields []string) *Detector {
	trivial := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		trivial[strings.ToLower(strings.TrimSpace(field))] = struct{}{}
	}
	return &Detector{trivialFields: trivial}
}

// CanMergeAutomatically reports whether the key sets of the two change
// sets are disjoint, meaning no field was edited by both writers.
func (d *Detector) CanMergeAutomatically(a, b domain.ChangeSet) bool {
	return a.DisjointWith(b)
}

// IsTrivialChange reports whether every edited field belongs to the
// trivial allow-list. Underscore-prefixed keys are engine metadata and
// count as trivial. An empty change set is not trivial; it is invalid
// input upstream.
func (d *Detector) IsTrivialChange(changes domain.ChangeSet) bool {
	if len(changes) == 0 {
		return false
	}
	for field := range changes {
		if strings.HasPrefix(field, "_") {
			continue
		}
		if _, ok := d.trivialFields[strings.ToLower(field)]; !ok {
			return false
		}
	}
	return true
}
