package engine

import "reflect"

// NodeID is a stable identifier for a node within one function.
type NodeID int64

// Node is one instruction-like unit of the IR under transformation.
//
// The checker never inspects a node beyond its identity and the block that
// currently holds it.
type Node interface {
	ID() NodeID

	// Block returns the block holding the node, or nil if it is detached.
	Block() Block
}

// Block is a basic block of the IR under transformation.
type Block interface {
	Func() Function

	// Placeholder materializes a transient node inside the block so that a
	// dominance query can be asked about the block as a whole. The release
	// func removes it again; the placeholder must never outlive that call.
	Placeholder() (Node, func())
}

// Function is compared by identity only.
type Function interface {
	Name() string
}

// DomProvider computes dominator and post-dominator trees for a function.
//
// The checker calls Recompute before every query because the function is
// being mutated while the transformation runs.
type DomProvider interface {
	Recompute(fn Function)

	// Dominates reports whether every path from entry to b passes through a.
	Dominates(a, b Node) bool

	// PostDominates reports whether every path from b to exit passes through a.
	PostDominates(a, b Node) bool

	// Release drops the computed trees.
	Release()
}

// Site identifies where in the transformation's source an event was fired.
// Labels are free-form and only make reports easier to read.
type Site struct {
	Line int
	Dst  string
	Src  string
}

func asNode(v any) (Node, bool) {
	n, ok := v.(Node)
	if !ok || isNil(n) {
		return nil, false
	}
	return n, true
}

// asPosition resolves v to a node, materializing a placeholder when v is a
// whole block. The returned release func must always be called.
func asPosition(v any) (Node, func(), bool) {
	switch p := v.(type) {
	case Node:
		if isNil(p) {
			return nil, nil, false
		}
		return p, func() {}, true
	case Block:
		if isNil(p) {
			return nil, nil, false
		}
		n, release := p.Placeholder()
		return n, release, true
	default:
		return nil, nil, false
	}
}

// isNil catches typed nil pointers stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
