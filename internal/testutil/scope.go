package testutil

// DefaultScopeID is used by FixedScopeGenerator when no ID is given.
const DefaultScopeID = "test-scope-default"

// FixedScopeGenerator names every checking scope the same.
//
// Golden reports embed the scope ID, so a fixed ID keeps them byte-identical
// across runs. Unlike engine.FixedGenerator, which returns IDs in sequence
// and panics when they run out, this generator never runs out.
//
// Thread-safety: FixedScopeGenerator is stateless and safe for concurrent use.
type FixedScopeGenerator struct {
	id string
}

// NewFixedScopeGenerator creates a generator that always returns id, or
// DefaultScopeID if id is empty.
func NewFixedScopeGenerator(id string) *FixedScopeGenerator {
	if id == "" {
		id = DefaultScopeID
	}
	return &FixedScopeGenerator{id: id}
}

// Generate returns the fixed scope ID.
//
// Implements engine.ScopeIDGenerator.
func (g *FixedScopeGenerator) Generate() string {
	return g.id
}
