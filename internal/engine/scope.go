package engine

import (
	"sync"

	"github.com/google/uuid"
)

// ScopeIDGenerator names checking scopes so that reports from many runs can
// be told apart in the verdict history.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type ScopeIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 scope IDs.
//
// Stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined scope IDs in order.
//
// Panics when the IDs run out, which catches a test that opened more scopes
// than it declared.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined ID.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all scope IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
