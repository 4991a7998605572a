package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ChangeKind discriminates the operation applied to a single field.
type ChangeKind string

const (
	ChangeKindSet    ChangeKind = "set"
	ChangeKindDelete ChangeKind = "delete"
)

// ChangeOp is one field-level edit: either a value assignment or a deletion.
type ChangeOp struct {
	Kind  ChangeKind `json:"op"`
	Value any        `json:"value,omitempty"`
}

// Set builds a value-assignment operation.
func Set(value any) ChangeOp {
	return ChangeOp{Kind: ChangeKindSet, Value: value}
}

// Delete builds a field-removal operation.
func Delete() ChangeOp {
	return ChangeOp{Kind: ChangeKindDelete}
}

// ChangeSet is a field-keyed edit set. Keys are top-level document field
// names; disjointness and triviality checks operate on these keys only.
type ChangeSet map[string]ChangeOp

// Validate checks that the change set is usable as a write payload.
func (c ChangeSet) Validate() error {
	if c == nil {
		return fmt.Errorf("change set is required")
	}
	if len(c) == 0 {
		return fmt.Errorf("change set must contain at least one field edit")
	}
	for field, op := range c {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("change set contains an empty field name")
		}
		switch op.Kind {
		case ChangeKindSet, ChangeKindDelete:
		default:
			return fmt.Errorf("field %q has unknown change kind %q", field, op.Kind)
		}
		if op.Kind == ChangeKindDelete && op.Value != nil {
			return fmt.Errorf("field %q is a delete but carries a value", field)
		}
	}
	return nil
}

// Keys returns the edited field names in sorted order.
func (c ChangeSet) Keys() []string {
	keys := make([]string, 0, len(c))
	for key := range c {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// DisjointWith reports whether no field is edited by both change sets.
func (c ChangeSet) DisjointWith(other ChangeSet) bool {
	for key := range c {
		if _, ok := other[key]; ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the change set.
func (c ChangeSet) Clone() ChangeSet {
	if c == nil {
		return nil
	}
	out := make(ChangeSet, len(c))
	for key, op := range c {
		out[key] = op
	}
	return out
}

// UnmarshalJSON validates the tagged operation shape while decoding.
func (op *ChangeOp) UnmarshalJSON(data []byte) error {
	type rawOp struct {
		Kind  ChangeKind `json:"op"`
		Value any        `json:"value"`
	}
	var raw rawOp
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Kind {
	case ChangeKindSet:
		op.Kind = ChangeKindSet
		op.Value = raw.Value
	case ChangeKindDelete:
		op.Kind = ChangeKindDelete
		op.Value = nil
	default:
		return fmt.Errorf("unknown change op %q", raw.Kind)
	}
	return nil
}

// AsJSONB serializes the change set for storage.
func (c ChangeSet) AsJSONB() (json.RawMessage, error) {
	if c == nil {
		c = ChangeSet{}
	}
	return json.Marshal(c)
}

// ChangeSetFromJSONB decodes a stored change set.
func ChangeSetFromJSONB(data json.RawMessage) (ChangeSet, error) {
	var c ChangeSet
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return c, nil
}
