package ir

import (
	"fmt"

	"github.com/roach88/dlsan/internal/engine"
)

// This file computes dominator and post-dominator trees with the iterative
// algorithm of Cooper, Harvey and Kennedy ("A Simple, Fast Dominance
// Algorithm").

// DomTree implements engine.DomProvider for Func.
//
// Blocks unreachable from the entry are dominated by nothing. Blocks from
// which no exit is reachable (infinite loops) are post-dominated by nothing.
type DomTree struct {
	fn    *Func
	idom  []int // immediate dominator by block ID; -1 unreachable
	ipdom []int // immediate post-dominator by block ID; -1 unreachable
}

// NewDomTree returns an empty provider; trees are built by Recompute.
func NewDomTree() *DomTree {
	return &DomTree{}
}

// Recompute implements engine.DomProvider.
func (t *DomTree) Recompute(fn engine.Function) {
	f, ok := fn.(*Func)
	if !ok {
		panic(fmt.Sprintf("ir: DomTree cannot compute dominators for %T", fn))
	}
	t.fn = f

	n := len(f.blocks)
	entry := []int{}
	if n > 0 {
		entry = append(entry, 0)
	}
	var exits []int
	for _, b := range f.blocks {
		if len(b.succs) == 0 {
			exits = append(exits, b.ID)
		}
	}

	t.idom = computeIdom(n, entry,
		func(id int) []*Block { return f.blocks[id].succs },
		func(id int) []*Block { return f.blocks[id].preds })
	t.ipdom = computeIdom(n, exits,
		func(id int) []*Block { return f.blocks[id].preds },
		func(id int) []*Block { return f.blocks[id].succs })
}

// Release implements engine.DomProvider.
func (t *DomTree) Release() {
	t.fn = nil
	t.idom = nil
	t.ipdom = nil
}

// Dominates implements engine.DomProvider. Within one block, a dominates b
// when it comes first.
func (t *DomTree) Dominates(a, b engine.Node) bool {
	ai, bi, ok := t.instrs(a, b)
	if !ok {
		return false
	}
	if ai.block == bi.block {
		return ai.Index() < bi.Index()
	}
	return treeDominates(t.idom, ai.block.ID, bi.block.ID)
}

// PostDominates implements engine.DomProvider. Within one block, a
// post-dominates b when it comes last.
func (t *DomTree) PostDominates(a, b engine.Node) bool {
	ai, bi, ok := t.instrs(a, b)
	if !ok {
		return false
	}
	if ai.block == bi.block {
		return ai.Index() > bi.Index()
	}
	return treeDominates(t.ipdom, ai.block.ID, bi.block.ID)
}

// BlockDominates reports whether block a dominates block b.
func (t *DomTree) BlockDominates(a, b *Block) bool {
	return a == b && t.idom[a.ID] >= 0 || treeDominates(t.idom, a.ID, b.ID)
}

// BlockPostDominates reports whether block a post-dominates block b.
func (t *DomTree) BlockPostDominates(a, b *Block) bool {
	return a == b && t.ipdom[a.ID] >= 0 || treeDominates(t.ipdom, a.ID, b.ID)
}

func (t *DomTree) instrs(a, b engine.Node) (*Instr, *Instr, bool) {
	ai, ok1 := a.(*Instr)
	bi, ok2 := b.(*Instr)
	if !ok1 || !ok2 || ai.block == nil || bi.block == nil || t.fn == nil {
		return nil, nil, false
	}
	if ai.block.fn != t.fn || bi.block.fn != t.fn {
		return nil, nil, false
	}
	return ai, bi, true
}

// treeDominates reports whether a strictly dominates b in the tree given by
// idom. The virtual root is the index len(idom)-1.
func treeDominates(idom []int, a, b int) bool {
	root := len(idom) - 1
	if idom[b] < 0 || idom[a] < 0 || a == b {
		return false
	}
	for x := idom[b]; x != root; x = idom[x] {
		if x == a {
			return true
		}
	}
	return false
}

// computeIdom returns immediate dominators over n blocks plus a virtual root
// (index n) whose successors are roots. Unreachable blocks get -1.
func computeIdom(n int, roots []int, succs, preds func(int) []*Block) []int {
	root := n
	idom := make([]int, n+1)
	for i := range idom {
		idom[i] = -1
	}
	idom[root] = root

	order, postnum := postorder(n, roots, succs)

	isRoot := make([]bool, n)
	for _, r := range roots {
		isRoot[r] = true
	}
	predsOf := func(id int) []int {
		var ps []int
		if isRoot[id] {
			ps = append(ps, root)
		}
		for _, p := range preds(id) {
			ps = append(ps, p.ID)
		}
		return ps
	}

	for changed := true; changed; {
		changed = false
		// Reverse postorder, skipping the virtual root which comes last.
		for i := len(order) - 2; i >= 0; i-- {
			b := order[i]
			newIdom := -1
			for _, p := range predsOf(b) {
				if idom[p] < 0 {
					continue
				}
				if newIdom < 0 {
					newIdom = p
					continue
				}
				newIdom = intersect(p, newIdom, postnum, idom)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return idom
}

// intersect finds the closest common dominator of b and c.
// It requires a postorder numbering of all the blocks.
func intersect(b, c int, postnum []int, idom []int) int {
	for b != c {
		if postnum[b] < postnum[c] {
			b = idom[b]
		} else {
			c = idom[c]
		}
	}
	return b
}

// postorder computes a DFS postorder from the virtual root. Unreachable
// blocks do not appear and keep postnum -1.
func postorder(n int, roots []int, succs func(int) []*Block) ([]int, []int) {
	type blockAndIndex struct {
		id    int
		index int // number of successor edges already explored
	}

	root := n
	postnum := make([]int, n+1)
	for i := range postnum {
		postnum[i] = -1
	}
	seen := make([]bool, n+1)
	next := func(id, i int) (int, bool) {
		if id == root {
			if i < len(roots) {
				return roots[i], true
			}
			return 0, false
		}
		s := succs(id)
		if i < len(s) {
			return s[i].ID, true
		}
		return 0, false
	}

	order := make([]int, 0, n+1)
	s := []blockAndIndex{{id: root}}
	seen[root] = true
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		if bb, ok := next(x.id, x.index); ok {
			s[tos].index++
			if !seen[bb] {
				seen[bb] = true
				s = append(s, blockAndIndex{id: bb})
			}
			continue
		}
		s = s[:tos]
		postnum[x.id] = len(order)
		order = append(order, x.id)
	}
	return order, postnum
}
