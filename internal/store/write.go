package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/dlsan/internal/engine"
	"github.com/roach88/dlsan/internal/report"
)

// WriteReport stores a finished scope with its verdicts, failures and event
// trace in one transaction.
//
// Writing the same scope ID twice is a no-op: the first write wins, so a
// checker that finishes once and is replayed into the store again does not
// duplicate rows.
func (s *Store) WriteReport(ctx context.Context, r *engine.Report) error {
	digest, err := report.Digest(r)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scopes
		(id, seq, pass, function, module, events, passed, failed, warned, digest)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM scopes), ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ScopeID,
		r.Pass,
		r.Function,
		r.Module,
		r.Events,
		r.Passed,
		r.Failed,
		r.Warned,
		digest,
	)
	if err != nil {
		return fmt.Errorf("write report: scope: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("write report: scope: %w", err)
	} else if n == 0 {
		return nil
	}

	if err := writeVerdicts(ctx, tx, r); err != nil {
		return err
	}
	if err := writeFailures(ctx, tx, r); err != nil {
		return err
	}
	if err := writeEvents(ctx, tx, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}

func writeVerdicts(ctx context.Context, tx *sql.Tx, r *engine.Report) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verdicts
		(scope_id, ord, node, label, status, expected, construct_kind, construct_site, update_kind, update_site, provenance)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write verdicts: %w", err)
	}
	defer stmt.Close()

	for i, v := range r.Verdicts {
		prov, err := marshalProvenance(v)
		if err != nil {
			return fmt.Errorf("write verdicts: %w", err)
		}
		p := v.Provenance
		if _, err := stmt.ExecContext(ctx,
			r.ScopeID,
			i,
			int64(v.Node),
			v.Label,
			string(v.Status),
			v.Expected.String(),
			p.ConstructKind.String(),
			p.ConstructSite,
			p.UpdateKind.String(),
			p.UpdateSite,
			prov,
		); err != nil {
			return fmt.Errorf("write verdicts: node %d: %w", v.Node, err)
		}
	}
	return nil
}

func writeFailures(ctx context.Context, tx *sql.Tx, r *engine.Report) error {
	for _, f := range r.Failures {
		for _, kc := range f.Kinds {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO failures (scope_id, line, kind, count)
				VALUES (?, ?, ?, ?)
			`, r.ScopeID, f.Line, kc.Kind.String(), kc.Count); err != nil {
				return fmt.Errorf("write failures: line %d: %w", f.Line, err)
			}
		}
	}
	return nil
}

func writeEvents(ctx context.Context, tx *sql.Tx, r *engine.Report) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (scope_id, seq, op, node, line, kind, in_region)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	defer stmt.Close()

	for _, e := range r.Trace {
		if _, err := stmt.ExecContext(ctx,
			r.ScopeID,
			e.Seq,
			string(e.Op),
			int64(e.Node),
			e.Line,
			e.Kind,
			boolToInt(e.InRegion),
		); err != nil {
			return fmt.Errorf("write events: seq %d: %w", e.Seq, err)
		}
	}
	return nil
}
