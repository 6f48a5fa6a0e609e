package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dlsan/internal/engine"
	"github.com/roach88/dlsan/internal/ir"
	"github.com/roach88/dlsan/internal/store"
	"github.com/roach88/dlsan/internal/testutil"
)

// Options configure a scenario run. The zero value runs quietly with a
// fixed scope ID.
type Options struct {
	// Logger receives the checker's trace. Default: discard.
	Logger *slog.Logger

	// ScopeIDs names the scope. Default: testutil.FixedScopeGenerator.
	ScopeIDs engine.ScopeIDGenerator

	// Log, if set, also receives the verdict log block. It is not closed.
	Log io.Writer

	// Sinks receive the finished report.
	Sinks []engine.ReportSink

	// Clock stamps the trace. Default: a fresh testutil.DeterministicClock,
	// so every run is numbered from 1.
	Clock engine.Sequencer
}

// Harness replays one scenario against a fresh function.
type Harness struct {
	scenario *Scenario
	fn       *ir.Func
	nodes    map[string]*ir.Instr
	checker  *engine.Checker
	store    *store.Store
	logger   *slog.Logger
}

// Run executes a scenario with default options.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the function from the scenario's CFG
//  2. Open a checker over it, writing to a fresh in-memory store
//  3. Replay the steps, firing one tracking event per step
//  4. Finish the scope and read the stored verdicts back
//  5. Compare the report with the scenario's expectations
//
// An error is returned when the scenario cannot be replayed (for example a
// step names an unknown node). A fatal checker error is not an error of the
// run: it is recorded in Result.Fatal and checked against expect_error.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	scopeIDs := opts.ScopeIDs
	if scopeIDs == nil {
		scopeIDs = testutil.NewFixedScopeGenerator("")
	}
	clock := opts.Clock
	if clock == nil {
		clock = testutil.NewDeterministicClock()
	}

	h := &Harness{
		scenario: scenario,
		nodes:    map[string]*ir.Instr{},
		store:    st,
		logger:   logger,
	}
	if err := h.buildFunction(); err != nil {
		return nil, err
	}

	var logBuf bytes.Buffer
	var logW io.Writer = &logBuf
	if opts.Log != nil {
		logW = io.MultiWriter(&logBuf, opts.Log)
	}

	module := scenario.Module
	if module == "" {
		module = scenario.Name
	}

	checkerOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithModule(module),
		engine.WithScopeID(scopeIDs),
		engine.WithSequencer(clock),
		engine.WithLog(nopCloser{logW}),
		engine.WithSink(st),
	}
	for _, s := range opts.Sinks {
		checkerOpts = append(checkerOpts, engine.WithSink(s))
	}
	h.checker = engine.New(h.fn, ir.NewDomTree(), scenario.Pass, checkerOpts...)
	defer h.checker.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		err := h.executeStep(step)
		if err == nil {
			continue
		}
		if engine.IsFatal(err) {
			result.Fatal = err
			h.logger.Debug("scenario aborted", "step", i, "error", err)
			break
		}
		return nil, fmt.Errorf("steps[%d] (%s %s): %w", i, step.Op, step.Node, err)
	}
	for name, n := range h.nodes {
		result.Nodes[name] = n.ID()
	}

	if result.Fatal == nil {
		rep, err := h.checker.Finish(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to finish scope: %w", err)
		}
		result.Report = rep
		result.Log = logBuf.String()

		if err := h.verifyStored(ctx, rep, result); err != nil {
			return nil, err
		}
	}

	evaluateExpectations(scenario, result)
	return result, nil
}

func (h *Harness) buildFunction() error {
	spec := h.scenario.Function
	h.fn = ir.NewFunc(spec.Name)

	for _, bs := range spec.Blocks {
		b := h.fn.NewBlock(bs.Name)
		for _, name := range bs.Instrs {
			n := h.fn.NewInstr(name)
			b.Append(n)
			h.nodes[name] = n
		}
	}
	for _, bs := range spec.Blocks {
		from := h.fn.LookupBlock(bs.Name)
		for _, succ := range bs.Succs {
			from.AddEdge(h.fn.LookupBlock(succ))
		}
	}
	return nil
}

func (h *Harness) executeStep(s Step) error {
	site := engine.Site{Line: s.Line, Dst: s.Node}

	switch s.Op {
	case OpCreate:
		if _, exists := h.nodes[s.Node]; exists {
			return fmt.Errorf("node %q already exists", s.Node)
		}
		n := h.fn.NewInstr(s.Node)
		h.nodes[s.Node] = n
		if err := h.checker.TrackConstruct(n, nil, engine.ConstructCreate, site); err != nil {
			return err
		}
		if s.Before != "" || s.After != "" || s.Block != "" {
			return h.place(n, s, false)
		}
		return nil

	case OpClone:
		if _, exists := h.nodes[s.Node]; exists {
			return fmt.Errorf("node %q already exists", s.Node)
		}
		origin, err := h.node(s.From)
		if err != nil {
			return err
		}
		c := origin.Clone(s.Node)
		h.nodes[s.Node] = c
		site.Src = s.From
		return h.checker.TrackConstruct(c, origin, engine.ConstructClone, site)

	case OpMove:
		n, err := h.node(s.Node)
		if err != nil {
			return err
		}
		pos, err := h.position(s)
		if err != nil {
			return err
		}
		site.Src = positionName(s)
		if err := h.checker.TrackConstruct(n, pos, engine.ConstructMove, site); err != nil {
			return err
		}
		return h.place(n, s, true)

	case OpInsert:
		n, err := h.node(s.Node)
		if err != nil {
			return err
		}
		pos, err := h.position(s)
		if err != nil {
			return err
		}
		site.Src = positionName(s)
		if err := h.checker.TrackInsert(n, pos, site); err != nil {
			return err
		}
		return h.place(n, s, false)

	case OpReplace:
		dst, err := h.node(s.Node)
		if err != nil {
			return err
		}
		src, err := h.node(s.Src)
		if err != nil {
			return err
		}
		site.Src = s.Src
		return h.checker.TrackReplace(dst, src, site)

	case OpErase:
		n, err := h.node(s.Node)
		if err != nil {
			return err
		}
		n.Erase()
		return nil

	case OpUpdate:
		n, err := h.node(s.Node)
		if err != nil {
			return err
		}
		kind, err := engine.ParseUpdateKind(s.Kind)
		if err != nil {
			return err
		}
		return h.checker.TrackUpdate(n, kind, site)

	default:
		return fmt.Errorf("unknown op %q", s.Op)
	}
}

func (h *Harness) node(name string) (*ir.Instr, error) {
	n, ok := h.nodes[name]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", name)
	}
	return n, nil
}

// position resolves a step's position to an instruction or a block, the
// two forms the checker accepts.
func (h *Harness) position(s Step) (any, error) {
	switch {
	case s.Before != "":
		return h.node(s.Before)
	case s.After != "":
		return h.node(s.After)
	default:
		b := h.fn.LookupBlock(s.Block)
		if b == nil {
			return nil, fmt.Errorf("unknown block %q", s.Block)
		}
		return b, nil
	}
}

// place puts n at the step's position. Attached nodes may only be placed by
// a move.
func (h *Harness) place(n *ir.Instr, s Step, move bool) error {
	if n.Parent() != nil && !move {
		return fmt.Errorf("node %q is already placed in block %s", s.Node, n.Parent())
	}
	pos, err := h.position(s)
	if err != nil {
		return err
	}
	if p, ok := pos.(*ir.Instr); ok {
		if p == n {
			return fmt.Errorf("node %q cannot be placed relative to itself", s.Node)
		}
		if p.Parent() == nil {
			return fmt.Errorf("position %q is not placed in any block", positionName(s))
		}
	}

	n.Erase()
	switch p := pos.(type) {
	case *ir.Instr:
		if s.Before != "" {
			n.InsertBefore(p)
		} else {
			n.InsertAfter(p)
		}
	case *ir.Block:
		p.Append(n)
	}
	return nil
}

func positionName(s Step) string {
	switch {
	case s.Before != "":
		return s.Before
	case s.After != "":
		return s.After
	default:
		return s.Block
	}
}

// verifyStored reads the scope back from the store and records a mismatch
// with the in-memory report as an expectation failure.
func (h *Harness) verifyStored(ctx context.Context, rep *engine.Report, result *Result) error {
	stored, err := h.store.ReadVerdicts(ctx, rep.ScopeID)
	if err != nil {
		return fmt.Errorf("failed to read stored verdicts: %w", err)
	}
	if len(stored) != len(rep.Verdicts) {
		result.AddError(fmt.Sprintf("store: %d verdicts stored, report has %d", len(stored), len(rep.Verdicts)))
		return nil
	}
	for i := range stored {
		if got, want := stored[i].String(), rep.Verdicts[i].String(); got != want {
			result.AddError(fmt.Sprintf("store: verdict %d stored as %q, report has %q", i, got, want))
		}
	}
	return nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
