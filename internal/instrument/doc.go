// Package instrument inserts the checker's tracking hooks into C++ sources
// of LLVM transformation passes.
//
// Sources are parsed with tree-sitter. Every hook is an edit (an insertion
// or a replacement of a byte range) collected during one walk of the tree
// and applied back-to-front, so earlier offsets stay valid while later ones
// are rewritten. Duplicate edits, same offset and same text, are collapsed.
//
// WHAT GETS INSTRUMENTED:
//
//   - the runtime header, after the first #include
//   - a file-local checker pointer, after the first using declaration
//   - in each pass entry (by default any function whose name ends in
//     "Pass::run"): checker construction at the top of the body and a check
//     plus teardown before every return
//   - everywhere else: calls and new expressions that create, clone, move,
//     insert or replace instructions, and calls that set, merge or drop a
//     debug location
//
// A file that already carries all hook markers is skipped. The output is
// checked for the markers again before it is written.
package instrument
