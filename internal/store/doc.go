// Package store persists checker reports in SQLite so that results can be
// compared across compiler runs.
//
// Each finished scope is one row in scopes plus its verdicts, per-line
// failures and event trace, all written in a single transaction. Rows are
// ordered by a logical sequence assigned at insert time; wall-clock time is
// never stored.
//
// Store implements engine.ReportSink and can be handed to a checker with
// engine.WithSink.
package store
