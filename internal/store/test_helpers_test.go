package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/dlsan/internal/engine"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport builds a report with one verdict of each status.
func createTestReport(scopeID, pass string) *engine.Report {
	return &engine.Report{
		ScopeID:  scopeID,
		Pass:     pass,
		Function: "foo",
		Module:   "test.ll",
		Events:   4,
		Verdicts: []engine.Verdict{
			{
				Node: 3, Label: "I", Pass: pass, Status: engine.StatusFail, Expected: engine.UpdatePreserve,
				Provenance: engine.Provenance{
					ConstructKind: engine.ConstructMove, ConstructSite: 20,
					ReplacedCount: 1, ReplacedInRegion: true, InsertedInRegion: true,
					UpdateKind: engine.UpdateDrop, UpdateSite: 30,
				},
			},
			{
				Node: 5, Label: "NewI", Pass: pass, Status: engine.StatusPass, Expected: engine.UpdateMerge,
				Provenance: engine.Provenance{
					ConstructKind: engine.ConstructCreate, ConstructSite: 5,
					ReplacedCount: 2, InsertedInRegion: true, ReplaceSites: []int{40, 41},
					UpdateKind: engine.UpdateMerge, UpdateSite: 50,
				},
			},
			{
				Node: 8, Label: "Old", Pass: pass, Status: engine.StatusWarn, Expected: engine.UpdateAny,
				Provenance: engine.Provenance{
					ConstructKind: engine.ConstructUntracked, ConstructSite: 55,
					ReplacedCount: 1, ReplacedInRegion: true, InsertedInRegion: true, ReplaceSites: []int{55},
				},
			},
		},
		Failures: []engine.LineFailure{
			{Line: 20, Kinds: []engine.KindCount{{Kind: engine.UpdatePreserve, Count: 1}}},
		},
		Trace: []engine.Event{
			{Seq: 1, Op: engine.EventConstruct, Node: 3, Line: 20, Kind: "Move", InRegion: true},
			{Seq: 2, Op: engine.EventConstruct, Node: 5, Line: 5, Kind: "Create", InRegion: true},
			{Seq: 3, Op: engine.EventReplace, Node: 5, Line: 40, InRegion: false},
			{Seq: 4, Op: engine.EventUpdate, Node: 3, Line: 30, Kind: "Drop", InRegion: true},
		},
		Passed: 1,
		Failed: 1,
		Warned: 1,
	}
}

func writeTestScope(t *testing.T, s *Store, scopeID string) *engine.Report {
	t.Helper()
	r := createTestReport(scopeID, "LICMPass")
	if err := s.WriteReport(context.Background(), r); err != nil {
		t.Fatalf("WriteReport() failed: %v", err)
	}
	return r
}
