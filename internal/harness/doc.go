// Package harness replays scripted IR transformations through the checker.
//
// A scenario is a YAML file describing one function's control-flow graph
// and a list of steps. Each step both mutates the reference IR and fires the
// tracking event an instrumented transformation would fire at that point:
//
//	name: licm-hoist
//	description: hoisting into a post-dominated block keeps the location
//	pass: LICMPass
//	function:
//	  name: foo
//	  blocks:
//	    - {name: entry, instrs: [e], succs: [body]}
//	    - {name: body, instrs: [i]}
//	steps:
//	  - {op: move, node: i, before: e, line: 20}
//	  - {op: update, node: i, kind: Drop, line: 30}
//	expect:
//	  - {node: i, status: fail, expected: Preserve}
//
// Move and insert events fire before the IR is changed, as the hooks do in
// an instrumented pass; the other events fire after.
//
// Runs are deterministic by default: scope IDs are fixed, sequence numbers come from a
// testutil.DeterministicClock, and logs are discarded unless a logger is
// supplied. RunWithGolden compares the verdict log with a golden file in
// testdata/golden.
package harness
