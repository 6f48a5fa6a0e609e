package engine

import (
	"fmt"
	"strings"
)

// ConstructKind records how a destination node came to exist.
//
// The kind is fixed when the node's provenance record is created and never
// changes afterwards.
type ConstructKind int

const (
	// ConstructUntracked marks a node first seen as the target of a
	// replacement. Only replace events create untracked records.
	ConstructUntracked ConstructKind = iota

	// ConstructCreate is a freshly created node.
	ConstructCreate

	// ConstructClone is a copy of an existing origin node.
	ConstructClone

	// ConstructMove is an existing node moved to a new position.
	ConstructMove
)

var constructKindNames = [...]string{
	ConstructUntracked: "Untracked",
	ConstructCreate:    "Create",
	ConstructClone:     "Clone",
	ConstructMove:      "Move",
}

func (k ConstructKind) String() string {
	if k < 0 || int(k) >= len(constructKindNames) {
		return fmt.Sprintf("ConstructKind(%d)", int(k))
	}
	return constructKindNames[k]
}

// ParseConstructKind parses a construct kind name, ignoring case.
func ParseConstructKind(s string) (ConstructKind, error) {
	for k, name := range constructKindNames {
		if strings.EqualFold(s, name) {
			return ConstructKind(k), nil
		}
	}
	return 0, fmt.Errorf("invalid construct kind %q: must be create, clone, move, or untracked", s)
}

// UpdateKind is the disposition of a node's debug location, either the one
// the policy expects or the one the transformation declared.
type UpdateKind int

const (
	// UpdateNone means nothing was declared.
	UpdateNone UpdateKind = iota
	UpdatePreserve
	UpdateMerge
	UpdateDrop

	// UpdateAny is the tolerant expectation for untracked nodes. It is never
	// declared by a transformation.
	UpdateAny
)

var updateKindNames = [...]string{
	UpdateNone:     "None",
	UpdatePreserve: "Preserve",
	UpdateMerge:    "Merge",
	UpdateDrop:     "Drop",
	UpdateAny:      "Any",
}

func (k UpdateKind) String() string {
	if k < 0 || int(k) >= len(updateKindNames) {
		return fmt.Sprintf("UpdateKind(%d)", int(k))
	}
	return updateKindNames[k]
}

// Declarable reports whether a transformation may declare k explicitly.
func (k UpdateKind) Declarable() bool {
	switch k {
	case UpdatePreserve, UpdateMerge, UpdateDrop:
		return true
	default:
		return false
	}
}

// ParseUpdateKind parses an update kind name, ignoring case.
func ParseUpdateKind(s string) (UpdateKind, error) {
	for k, name := range updateKindNames {
		if strings.EqualFold(s, name) {
			return UpdateKind(k), nil
		}
	}
	return 0, fmt.Errorf("invalid update kind %q: must be preserve, merge, drop, none, or any", s)
}
