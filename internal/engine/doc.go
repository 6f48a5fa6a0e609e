// Package engine implements the debug-location runtime checker.
//
// An instrumented compiler transformation reports what it does to the IR:
// which instructions it creates, clones and moves, which instructions they
// replace, where clones are inserted, and what it does with each new
// instruction's debug location. The checker keeps one provenance record per
// destination node and, when the checking scope ends, compares the declared
// disposition with the one a fixed dominance-based policy expects.
//
// ARCHITECTURE:
//
//	instrumented pass ──Track*──▶ Checker ──queries──▶ oracle ──▶ DomProvider
//	                                 │
//	                              Finish
//	                                 ▼
//	                  Report ──▶ verdict log, ReportSink(s)
//
// The IR itself and the dominator computation are supplied by the caller
// through the Node, Block, Function and DomProvider interfaces. Package ir
// provides a reference implementation.
//
// POLICY:
//
// A destination keeps its debug location only while it stays in the
// dominant region of everything it displaces. A node is in the dominant
// region of a source when it is in the same block, is dominated by it, or
// is post-dominated by it. Leaving the region of one source means drop;
// leaving the region of one of several sources means merge. See
// ExpectedKind for the full table.
//
// CONCURRENCY:
//
// A Checker belongs to one transformation run and is not safe for
// concurrent use. Every call runs to completion before returning; dominance
// is recomputed from scratch on every query because the function is being
// mutated between calls.
package engine
