package instrument

import (
	"slices"
	"strings"

	"github.com/roach88/dlsan/internal/config"
)

// calleeKind classifies a called function by the hook it needs.
type calleeKind int

const (
	calleeNone calleeKind = iota
	calleeCreate
	calleeClone
	calleeMove
	calleeInsert
	calleeReplace
	calleePreserve
	calleeMerge
	calleeDrop
)

// matcher resolves callee names against the configured tables.
type matcher struct {
	tables config.InstrumentConfig
}

// isCreate reports whether name creates an instruction. Table entries with
// a "::" are prefixes of qualified names (so "PHINode::Create" also matches
// template or overloaded spellings); bare entries are type names and match
// exactly.
func (m matcher) isCreate(name string) bool {
	for _, entry := range m.tables.Create {
		if strings.Contains(entry, "::") {
			if strings.HasPrefix(name, entry) {
				return true
			}
		} else if name == entry {
			return true
		}
	}
	return false
}

func (m matcher) classify(name string) calleeKind {
	t := m.tables
	switch {
	case m.isCreate(name):
		return calleeCreate
	case slices.Contains(t.Clone, name):
		return calleeClone
	case slices.Contains(t.Move, name):
		return calleeMove
	case slices.Contains(t.Replace, name):
		return calleeReplace
	case slices.Contains(t.Preserve, name):
		return calleePreserve
	case slices.Contains(t.Merge, name):
		return calleeMerge
	case slices.Contains(t.Drop, name):
		return calleeDrop
	case slices.Contains(t.Insert, name):
		return calleeInsert
	default:
		return calleeNone
	}
}

func (m matcher) isPassEntry(name string) bool {
	return m.tables.PassEntrySuffix != "" && strings.HasSuffix(name, m.tables.PassEntrySuffix)
}
