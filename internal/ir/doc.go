// Package ir is a small mutable control-flow-graph IR used to drive the
// checker outside a real compiler.
//
// Func, Block and Instr implement the engine's Function, Block and Node
// interfaces; DomTree implements DomProvider. The harness replays scenario
// files against this IR, and the package doubles as the reference for
// adapting the checker to another IR.
//
// Instruction identity is stable: cloning creates a new ID, moving keeps it.
package ir
