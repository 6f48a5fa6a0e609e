package engine

import "slices"

// Provenance is the accumulated history of one destination node.
//
// INVARIANTS:
//   - ConstructKind never changes after the record is created
//   - ReplacedInRegion and InsertedInRegion start true and are only ever
//     AND-folded, so they never go from false back to true
//   - ReplacedCount only increases
//   - ReplaceSites is sorted and free of duplicates
type Provenance struct {
	ConstructKind ConstructKind
	ConstructSite int

	// ReplacedCount is the number of nodes this destination replaced. A move
	// counts as replacing exactly one.
	ReplacedCount int

	// ReplacedInRegion is the AND of every replace and move dominance result.
	ReplacedInRegion bool

	// InsertedInRegion is the AND of every insertion dominance result.
	// Only clones are tracked on insertion.
	InsertedInRegion bool

	ReplaceSites  []int
	InsertionSite int

	// UpdateKind and UpdateSite hold the last explicit declaration.
	UpdateKind UpdateKind
	UpdateSite int
}

// record is the checker-owned bookkeeping behind a Provenance.
type record struct {
	node   Node
	origin Node // clones only
	label  string
	prov   Provenance
}

func newRecord(n Node, kind ConstructKind, site Site) *record {
	return &record{
		node:  n,
		label: site.Dst,
		prov: Provenance{
			ConstructKind:    kind,
			ConstructSite:    site.Line,
			ReplacedInRegion: true,
			InsertedInRegion: true,
		},
	}
}

func (r *record) moveAt(inRegion bool) {
	r.prov.ReplacedInRegion = r.prov.ReplacedInRegion && inRegion
	r.prov.ReplacedCount++
}

func (r *record) replaceAt(line int, inRegion bool) {
	r.moveAt(inRegion)
	if i, found := slices.BinarySearch(r.prov.ReplaceSites, line); !found {
		r.prov.ReplaceSites = slices.Insert(r.prov.ReplaceSites, i, line)
	}
}

func (r *record) insertAt(line int, inRegion bool) {
	r.prov.InsertedInRegion = r.prov.InsertedInRegion && inRegion
	r.prov.InsertionSite = line
}

func (r *record) declare(kind UpdateKind, line int) {
	r.prov.UpdateKind = kind
	r.prov.UpdateSite = line
}

// snapshot returns a copy that shares nothing with the record.
func (r *record) snapshot() Provenance {
	p := r.prov
	p.ReplaceSites = slices.Clone(r.prov.ReplaceSites)
	return p
}

// blameLines lists the source lines a failing verdict is charged to.
func (r *record) blameLines() []int {
	lines := make([]int, 0, len(r.prov.ReplaceSites)+2)
	if r.prov.ConstructKind != ConstructUntracked {
		lines = append(lines, r.prov.ConstructSite)
	}
	lines = append(lines, r.prov.ReplaceSites...)
	if r.prov.ConstructKind == ConstructClone && r.prov.InsertionSite > 0 {
		lines = append(lines, r.prov.InsertionSite)
	}
	slices.Sort(lines)
	return slices.Compact(lines)
}
