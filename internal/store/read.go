package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/dlsan/internal/engine"
)

// Scope is the stored summary of one checking scope.
type Scope struct {
	ID       string
	Seq      int64
	Pass     string
	Function string
	Module   string
	Events   int64
	Passed   int
	Failed   int
	Warned   int
	Digest   string
}

// LineTotal is the number of failures charged to one source line of a pass
// with one expected kind, summed over stored scopes.
type LineTotal struct {
	Pass  string
	Line  int
	Kind  engine.UpdateKind
	Count int
}

// ReadScopes returns stored scopes in insertion order. An empty pass
// returns every scope.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadScopes(ctx context.Context, pass string) ([]Scope, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, pass, function, module, events, passed, failed, warned, digest
		FROM scopes
		WHERE ? = '' OR pass = ?
		ORDER BY seq ASC
	`, pass, pass)
	if err != nil {
		return nil, fmt.Errorf("query scopes: %w", err)
	}
	defer rows.Close()

	scopes := []Scope{}
	for rows.Next() {
		var sc Scope
		if err := rows.Scan(&sc.ID, &sc.Seq, &sc.Pass, &sc.Function, &sc.Module,
			&sc.Events, &sc.Passed, &sc.Failed, &sc.Warned, &sc.Digest); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		scopes = append(scopes, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scopes: %w", err)
	}
	return scopes, nil
}

// ReadScope returns one scope. Returns sql.ErrNoRows (wrapped) if the scope
// does not exist.
func (s *Store) ReadScope(ctx context.Context, scopeID string) (Scope, error) {
	var sc Scope
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, pass, function, module, events, passed, failed, warned, digest
		FROM scopes
		WHERE id = ?
	`, scopeID).Scan(&sc.ID, &sc.Seq, &sc.Pass, &sc.Function, &sc.Module,
		&sc.Events, &sc.Passed, &sc.Failed, &sc.Warned, &sc.Digest)
	if err != nil {
		return Scope{}, fmt.Errorf("read scope %s: %w", scopeID, err)
	}
	return sc, nil
}

// ReadVerdicts returns a scope's verdicts in report order.
func (s *Store) ReadVerdicts(ctx context.Context, scopeID string) ([]engine.Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.node, v.label, v.status, v.expected, v.provenance, s.pass
		FROM verdicts v
		JOIN scopes s ON v.scope_id = s.id
		WHERE v.scope_id = ?
		ORDER BY v.ord ASC
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	verdicts := []engine.Verdict{}
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return verdicts, nil
}

func scanVerdict(rows *sql.Rows) (engine.Verdict, error) {
	var (
		v        engine.Verdict
		node     int64
		status   string
		expected string
		prov     string
	)
	if err := rows.Scan(&node, &v.Label, &status, &expected, &prov, &v.Pass); err != nil {
		return engine.Verdict{}, fmt.Errorf("scan verdict: %w", err)
	}

	kind, err := engine.ParseUpdateKind(expected)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("scan verdict: %w", err)
	}
	p, err := unmarshalProvenance(prov)
	if err != nil {
		return engine.Verdict{}, fmt.Errorf("scan verdict: %w", err)
	}

	v.Node = engine.NodeID(node)
	v.Status = engine.Status(status)
	v.Expected = kind
	v.Provenance = p
	return v, nil
}

// ReadEvents returns a scope's event trace ordered by sequence number.
func (s *Store) ReadEvents(ctx context.Context, scopeID string) ([]engine.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op, node, line, kind, in_region
		FROM events
		WHERE scope_id = ?
		ORDER BY seq ASC
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		var (
			e        engine.Event
			op       string
			node     int64
			inRegion int
		)
		if err := rows.Scan(&e.Seq, &op, &node, &e.Line, &e.Kind, &inRegion); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Op = engine.EventOp(op)
		e.Node = engine.NodeID(node)
		e.InRegion = inRegion != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// FailureTotals sums failures per pass, source line and expected kind over
// every stored scope. An empty pass covers all passes.
//
// Results are ordered by pass, line, then kind.
func (s *Store) FailureTotals(ctx context.Context, pass string) ([]LineTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.pass, f.line, f.kind, SUM(f.count)
		FROM failures f
		JOIN scopes s ON f.scope_id = s.id
		WHERE ? = '' OR s.pass = ?
		GROUP BY s.pass, f.line, f.kind
	`, pass, pass)
	if err != nil {
		return nil, fmt.Errorf("query failure totals: %w", err)
	}
	defer rows.Close()

	totals := []LineTotal{}
	for rows.Next() {
		var (
			t    LineTotal
			kind string
		)
		if err := rows.Scan(&t.Pass, &t.Line, &kind, &t.Count); err != nil {
			return nil, fmt.Errorf("scan failure total: %w", err)
		}
		if t.Kind, err = engine.ParseUpdateKind(kind); err != nil {
			return nil, fmt.Errorf("scan failure total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failure totals: %w", err)
	}

	slices.SortFunc(totals, func(a, b LineTotal) int {
		switch {
		case a.Pass != b.Pass:
			if a.Pass < b.Pass {
				return -1
			}
			return 1
		case a.Line != b.Line:
			return a.Line - b.Line
		default:
			return int(a.Kind) - int(b.Kind)
		}
	})
	return totals, nil
}
