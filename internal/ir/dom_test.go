package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diamond builds
//
//	entry -> then, else -> join -> exit
func diamond(t *testing.T) (*Func, map[string]*Block) {
	t.Helper()
	f := NewFunc("diamond")
	bs := map[string]*Block{}
	for _, name := range []string{"entry", "then", "else", "join", "exit"} {
		bs[name] = f.NewBlock(name)
	}
	bs["entry"].AddEdge(bs["then"])
	bs["entry"].AddEdge(bs["else"])
	bs["then"].AddEdge(bs["join"])
	bs["else"].AddEdge(bs["join"])
	bs["join"].AddEdge(bs["exit"])
	return f, bs
}

func TestDomTree_Diamond(t *testing.T) {
	f, bs := diamond(t)
	dt := NewDomTree()
	dt.Recompute(f)

	tests := []struct {
		a, b    string
		dom     bool
		postdom bool
	}{
		{"entry", "then", true, false},
		{"entry", "join", true, false},
		{"entry", "exit", true, false},
		{"then", "join", false, false},
		{"then", "else", false, false},
		{"join", "then", false, true},
		{"join", "entry", false, true},
		{"exit", "entry", false, true},
		{"join", "exit", true, false},
		{"then", "entry", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.dom, dt.BlockDominates(bs[tt.a], bs[tt.b]), "dominates")
			assert.Equal(t, tt.postdom, dt.BlockPostDominates(bs[tt.a], bs[tt.b]), "post-dominates")
		})
	}
}

func TestDomTree_Loop(t *testing.T) {
	// entry -> preheader -> header <-> body, header -> exit
	f := NewFunc("loop")
	entry := f.NewBlock("entry")
	pre := f.NewBlock("preheader")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")
	entry.AddEdge(pre)
	pre.AddEdge(header)
	header.AddEdge(body)
	body.AddEdge(header)
	header.AddEdge(exit)

	dt := NewDomTree()
	dt.Recompute(f)

	assert.True(t, dt.BlockDominates(pre, body))
	assert.True(t, dt.BlockDominates(header, body))
	assert.False(t, dt.BlockDominates(body, header))
	assert.True(t, dt.BlockPostDominates(header, body))
	assert.True(t, dt.BlockPostDominates(header, pre))
	assert.False(t, dt.BlockPostDominates(body, pre))
	assert.True(t, dt.BlockPostDominates(exit, body))
}

func TestDomTree_Unreachable(t *testing.T) {
	f := NewFunc("f")
	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")
	exit := f.NewBlock("exit")
	entry.AddEdge(exit)
	dead.AddEdge(exit)

	dt := NewDomTree()
	dt.Recompute(f)

	assert.False(t, dt.BlockDominates(entry, dead))
	assert.False(t, dt.BlockDominates(dead, exit))
	assert.False(t, dt.BlockDominates(dead, dead))
	assert.True(t, dt.BlockPostDominates(exit, dead))
}

func TestDomTree_InstructionOrderWithinBlock(t *testing.T) {
	f := NewFunc("f")
	b := f.NewBlock("entry")
	x := f.NewInstr("x")
	y := f.NewInstr("y")
	b.Append(x)
	b.Append(y)

	dt := NewDomTree()
	dt.Recompute(f)

	assert.True(t, dt.Dominates(x, y))
	assert.False(t, dt.Dominates(y, x))
	assert.True(t, dt.PostDominates(y, x))
	assert.False(t, dt.PostDominates(x, y))
	assert.False(t, dt.Dominates(x, x))
}

func TestDomTree_InstructionsAcrossBlocks(t *testing.T) {
	f, bs := diamond(t)
	x := f.NewInstr("x")
	y := f.NewInstr("y")
	bs["entry"].Append(x)
	bs["then"].Append(y)

	dt := NewDomTree()
	dt.Recompute(f)

	assert.True(t, dt.Dominates(x, y))
	assert.False(t, dt.PostDominates(y, x))
}

func TestDomTree_DetachedOrForeign(t *testing.T) {
	f, bs := diamond(t)
	x := f.NewInstr("x")
	bs["entry"].Append(x)
	detached := f.NewInstr("d")

	g := NewFunc("g")
	gb := g.NewBlock("entry")
	foreign := g.NewInstr("z")
	gb.Append(foreign)

	dt := NewDomTree()
	dt.Recompute(f)

	assert.False(t, dt.Dominates(x, detached))
	assert.False(t, dt.Dominates(x, foreign))
	assert.False(t, dt.PostDominates(foreign, x))
}

func TestDomTree_RecomputeAfterMutation(t *testing.T) {
	f := NewFunc("f")
	a := f.NewBlock("a")
	b := f.NewBlock("b")
	c := f.NewBlock("c")
	a.AddEdge(c)

	dt := NewDomTree()
	dt.Recompute(f)
	assert.True(t, dt.BlockDominates(a, c))

	a.AddEdge(b)
	b.AddEdge(c)
	dt.Recompute(f)
	assert.True(t, dt.BlockDominates(a, b))
	assert.False(t, dt.BlockDominates(b, c))
}

func TestDomTree_Release(t *testing.T) {
	f, bs := diamond(t)
	x := f.NewInstr("x")
	y := f.NewInstr("y")
	bs["entry"].Append(x)
	bs["join"].Append(y)

	dt := NewDomTree()
	dt.Recompute(f)
	require.True(t, dt.Dominates(x, y))

	dt.Release()
	assert.False(t, dt.Dominates(x, y), "released trees answer nothing")
}

func TestDomTree_RecomputeRejectsForeignFunction(t *testing.T) {
	dt := NewDomTree()
	assert.Panics(t, func() { dt.Recompute(fakeFunction{}) })
}

type fakeFunction struct{}

func (fakeFunction) Name() string { return "fake" }
