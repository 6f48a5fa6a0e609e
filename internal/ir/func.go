package ir

import (
	"fmt"
	"slices"

	"github.com/roach88/dlsan/internal/engine"
)

// Func is a function: an ordered list of blocks, the first being the entry.
//
// Func is a deliberately small mutable CFG. It supports the mutations a
// transformation performs that matter to debug-location checking: creating,
// cloning, inserting, moving and erasing instructions.
type Func struct {
	name   string
	blocks []*Block
	byName map[string]*Block
	nextID engine.NodeID
}

// NewFunc creates an empty function.
func NewFunc(name string) *Func {
	return &Func{
		name:   name,
		byName: make(map[string]*Block),
	}
}

// Name implements engine.Function.
func (f *Func) Name() string {
	return f.name
}

// Blocks returns the function's blocks in creation order.
func (f *Func) Blocks() []*Block {
	return f.blocks
}

// Entry returns the entry block, or nil for an empty function.
func (f *Func) Entry() *Block {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// NewBlock appends a new, empty block. The first block created is the entry.
func (f *Func) NewBlock(name string) *Block {
	b := &Block{
		ID:   len(f.blocks),
		name: name,
		fn:   f,
	}
	f.blocks = append(f.blocks, b)
	if name != "" {
		f.byName[name] = b
	}
	return b
}

// LookupBlock returns the named block, or nil.
func (f *Func) LookupBlock(name string) *Block {
	return f.byName[name]
}

// NewInstr creates a detached instruction owned by f.
func (f *Func) NewInstr(name string) *Instr {
	f.nextID++
	return &Instr{id: f.nextID, name: name, fn: f}
}

// Block is a basic block.
type Block struct {
	ID     int
	name   string
	fn     *Func
	instrs []*Instr
	succs  []*Block
	preds  []*Block
}

// Name returns the block's name.
func (b *Block) Name() string {
	return b.name
}

// Func implements engine.Block.
func (b *Block) Func() engine.Function {
	return b.fn
}

// Instrs returns the block's instructions in order.
func (b *Block) Instrs() []*Instr {
	return b.instrs
}

// Succs returns the block's successors.
func (b *Block) Succs() []*Block {
	return b.succs
}

// Preds returns the block's predecessors.
func (b *Block) Preds() []*Block {
	return b.preds
}

// AddEdge adds a control-flow edge b -> to.
func (b *Block) AddEdge(to *Block) {
	b.succs = append(b.succs, to)
	to.preds = append(to.preds, b)
}

// Append places a detached instruction at the end of b.
func (b *Block) Append(i *Instr) {
	i.mustBeDetached()
	i.block = b
	b.instrs = append(b.instrs, i)
}

// Placeholder implements engine.Block. The placeholder is appended to the
// block and removed again by the returned func.
func (b *Block) Placeholder() (engine.Node, func()) {
	p := b.fn.NewInstr("")
	b.Append(p)
	return p, p.Erase
}

func (b *Block) String() string {
	return b.name
}

// Instr is an instruction.
type Instr struct {
	id    engine.NodeID
	name  string
	fn    *Func
	block *Block
}

// ID implements engine.Node.
func (i *Instr) ID() engine.NodeID {
	return i.id
}

// Block implements engine.Node. It returns nil for a detached instruction.
func (i *Instr) Block() engine.Block {
	if i.block == nil {
		return nil
	}
	return i.block
}

// Parent returns the block holding i, or nil.
func (i *Instr) Parent() *Block {
	return i.block
}

// Name returns the instruction's name.
func (i *Instr) Name() string {
	return i.name
}

// Index returns the position of i in its block, or -1 if detached.
func (i *Instr) Index() int {
	if i.block == nil {
		return -1
	}
	return slices.Index(i.block.instrs, i)
}

// Clone returns a detached copy of i with a new identity.
func (i *Instr) Clone(name string) *Instr {
	return i.fn.NewInstr(name)
}

// InsertBefore places a detached instruction immediately before pos.
func (i *Instr) InsertBefore(pos *Instr) {
	i.mustBeDetached()
	i.insertAt(pos.block, pos.Index())
}

// InsertAfter places a detached instruction immediately after pos.
func (i *Instr) InsertAfter(pos *Instr) {
	i.mustBeDetached()
	i.insertAt(pos.block, pos.Index()+1)
}

// MoveBefore moves i, attached or not, to immediately before pos.
func (i *Instr) MoveBefore(pos *Instr) {
	i.Erase()
	i.InsertBefore(pos)
}

// MoveAfter moves i, attached or not, to immediately after pos.
func (i *Instr) MoveAfter(pos *Instr) {
	i.Erase()
	i.InsertAfter(pos)
}

// MoveTo moves i to the end of b.
func (i *Instr) MoveTo(b *Block) {
	i.Erase()
	b.Append(i)
}

// Erase detaches i from its block. Erasing a detached instruction is a no-op.
func (i *Instr) Erase() {
	if i.block == nil {
		return
	}
	idx := i.Index()
	i.block.instrs = slices.Delete(i.block.instrs, idx, idx+1)
	i.block = nil
}

func (i *Instr) insertAt(b *Block, idx int) {
	if b == nil {
		panic(fmt.Sprintf("ir: insert of %s relative to a detached instruction", i))
	}
	i.block = b
	b.instrs = slices.Insert(b.instrs, idx, i)
}

func (i *Instr) mustBeDetached() {
	if i.block != nil {
		panic(fmt.Sprintf("ir: %s is already in block %s", i, i.block))
	}
}

func (i *Instr) String() string {
	if i.name != "" {
		return "%" + i.name
	}
	return fmt.Sprintf("%%%d", i.id)
}
