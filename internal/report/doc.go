// Package report renders and persists checker reports outside the engine.
//
// Three outputs exist for a finished scope:
//   - the verdict log, an append-only text file shared by every scope of a
//     compiler run (OpenLog)
//   - canonical JSON, used for machine-readable CLI output and for the
//     content digest stored with each scope (MarshalReport, Digest)
//   - the filtered log, a grouped and sorted view of a verdict log (Filter)
package report
