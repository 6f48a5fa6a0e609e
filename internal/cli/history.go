package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/dlsan/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string // overrides store.path
	Pass     string // only scopes of this pass
	Scope    string // show one scope in detail
}

// ScopeSummary is one stored scope in JSON output.
type ScopeSummary struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Pass     string `json:"pass"`
	Function string `json:"function"`
	Module   string `json:"module"`
	Events   int64  `json:"events"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Warned   int    `json:"warned"`
	Digest   string `json:"digest"`
}

// LineTotalSummary is one failure total in JSON output.
type LineTotalSummary struct {
	Pass  string `json:"pass"`
	Line  int    `json:"line"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// HistoryResult is the JSON payload of the history listing.
type HistoryResult struct {
	Scopes   []ScopeSummary     `json:"scopes"`
	Failures []LineTotalSummary `json:"failures"`
}

// EventSummary is one trace event in JSON output.
type EventSummary struct {
	Seq      int64  `json:"seq"`
	Op       string `json:"op"`
	Node     int64  `json:"node"`
	Line     int    `json:"line"`
	Kind     string `json:"kind,omitempty"`
	InRegion bool   `json:"in_region"`
}

// ScopeDetail is the JSON payload of history --scope.
type ScopeDetail struct {
	Scope    ScopeSummary   `json:"scope"`
	Verdicts []string       `json:"verdicts"`
	Events   []EventSummary `json:"events"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the verdict history database",
		Long: `List checking scopes stored by "dlsan check --db" and the failures
charged to each source line of a pass, summed over all stored scopes.

With --scope, show one scope's verdicts and its event trace instead.

Examples:
  dlsan history --db dlsan.db
  dlsan history --db dlsan.db --pass LICMPass
  dlsan history --db dlsan.db --scope 0190a1b2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "verdict history database (overrides store.path)")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "only scopes of this pass")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "show one scope in detail")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		dbPath = cfg.Store.Path
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no database: pass --db or set store.path")
	}
	// Opening would create an empty database.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", dbPath))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Scope != "" {
		return showScope(ctx, opts, cmd, st)
	}
	return listScopes(ctx, opts, cmd, st)
}

func listScopes(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command, st *store.Store) error {
	scopes, err := st.ReadScopes(ctx, opts.Pass)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read scopes", err)
	}
	totals, err := st.FailureTotals(ctx, opts.Pass)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read failure totals", err)
	}

	if opts.Format == "json" {
		result := HistoryResult{
			Scopes:   make([]ScopeSummary, len(scopes)),
			Failures: make([]LineTotalSummary, len(totals)),
		}
		for i, s := range scopes {
			result.Scopes[i] = summarizeScope(s)
		}
		for i, t := range totals {
			result.Failures[i] = LineTotalSummary{Pass: t.Pass, Line: t.Line, Kind: t.Kind.String(), Count: t.Count}
		}
		return opts.formatter(cmd).JSON("ok", result)
	}

	w := cmd.OutOrStdout()
	if len(scopes) == 0 {
		fmt.Fprintln(w, "No scopes recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tPASS\tFUNCTION\tMODULE\tPASSED\tWARNED\tFAILED")
	for _, s := range scopes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			s.ID, s.Pass, s.Function, s.Module, s.Passed, s.Warned, s.Failed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(totals) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nFailures by line:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PASS\tLINE\tEXPECTED\tCOUNT")
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", t.Pass, t.Line, t.Kind, t.Count)
	}
	return tw.Flush()
}

func showScope(ctx context.Context, opts *HistoryOptions, cmd *cobra.Command, st *store.Store) error {
	s, err := st.ReadScope(ctx, opts.Scope)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scope not found: %s", opts.Scope))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read scope", err)
	}
	verdicts, err := st.ReadVerdicts(ctx, s.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read verdicts", err)
	}
	events, err := st.ReadEvents(ctx, s.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if opts.Format == "json" {
		detail := ScopeDetail{
			Scope:    summarizeScope(s),
			Verdicts: make([]string, len(verdicts)),
			Events:   make([]EventSummary, len(events)),
		}
		for i, v := range verdicts {
			detail.Verdicts[i] = v.String()
		}
		for i, e := range events {
			detail.Events[i] = EventSummary{
				Seq: e.Seq, Op: string(e.Op), Node: int64(e.Node),
				Line: e.Line, Kind: e.Kind, InRegion: e.InRegion,
			}
		}
		return opts.formatter(cmd).JSON("ok", detail)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Scope %s: @%s (%s), pass %s\n", s.ID, s.Function, s.Module, s.Pass)
	fmt.Fprintf(w, "%d passed, %d warned, %d failed, %d events\n\n", s.Passed, s.Warned, s.Failed, s.Events)
	for _, v := range verdicts {
		fmt.Fprintln(w, v.String())
	}
	if len(events) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nEvents:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tOP\tNODE\tLINE\tKIND\tIN REGION")
	for _, e := range events {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%t\n", e.Seq, e.Op, e.Node, e.Line, e.Kind, e.InRegion)
	}
	return tw.Flush()
}

func summarizeScope(s store.Scope) ScopeSummary {
	return ScopeSummary{
		ID: s.ID, Seq: s.Seq, Pass: s.Pass, Function: s.Function, Module: s.Module,
		Events: s.Events, Passed: s.Passed, Failed: s.Failed, Warned: s.Warned, Digest: s.Digest,
	}
}
