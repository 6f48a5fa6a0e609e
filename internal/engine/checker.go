package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// ReportSink receives the report of a finished scope. The checker borrows
// sinks and never closes them.
type ReportSink interface {
	WriteReport(ctx context.Context, r *Report) error
}

// Checker is one checking scope: typically one function, loop or loop nest
// transformation run.
//
// The checker is single-threaded. Every tracking call runs to completion
// before returning and nothing happens in the background.
//
// Resources owned by the scope (the verdict log and the dominance trees)
// are released by Close. Finish and every fatal error call Close; callers
// should still `defer chk.Close()` so that early returns release them too.
type Checker struct {
	pass     string
	function Function
	module   string
	scopeID  string

	oracle *oracle
	clock  Sequencer
	logger *slog.Logger

	// Arena of records in first-seen order, indexed by node ID.
	records []*record
	index   map[NodeID]int
	trace   []Event

	log   io.WriteCloser
	sinks []ReportSink

	closed   bool
	fatal    error
	finished *Report
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the logger used for event traces and warnings.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = l
	}
}

// WithSequencer stamps events with sequence numbers from s instead of a
// fresh Clock. Sharing one sequencer orders events across scopes.
func WithSequencer(s Sequencer) Option {
	return func(c *Checker) {
		c.clock = s
	}
}

// WithModule sets the module name shown in report headers.
func WithModule(name string) Option {
	return func(c *Checker) {
		c.module = name
	}
}

// WithScopeID names the scope with an ID from gen.
// Default: UUIDv7Generator.
func WithScopeID(gen ScopeIDGenerator) Option {
	return func(c *Checker) {
		c.scopeID = gen.Generate()
	}
}

// WithLog makes the checker append verdict lines to w when the scope
// finishes. The checker owns w and closes it when the scope ends.
func WithLog(w io.WriteCloser) Option {
	return func(c *Checker) {
		c.log = w
	}
}

// WithSink adds a sink that receives the report when the scope finishes.
func WithSink(s ReportSink) Option {
	return func(c *Checker) {
		c.sinks = append(c.sinks, s)
	}
}

// New opens a checking scope over fn for the named pass.
//
// The checker owns provider until the scope ends.
func New(fn Function, provider DomProvider, pass string, opts ...Option) *Checker {
	c := &Checker{
		pass:     pass,
		function: fn,
		oracle:   &oracle{provider: provider},
		clock:    NewClock(),
		index:    make(map[NodeID]int),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.scopeID == "" {
		c.scopeID = UUIDv7Generator{}.Generate()
	}

	return c
}

// ScopeID returns the identifier of this checking scope.
func (c *Checker) ScopeID() string {
	return c.scopeID
}

// Provenance returns a snapshot of the record for n, if one exists.
func (c *Checker) Provenance(n Node) (Provenance, bool) {
	r := c.lookup(n)
	if r == nil {
		return Provenance{}, false
	}
	return r.snapshot(), true
}

// Finish ends the scope: it builds the report, appends it to the log, hands
// it to every sink and releases the scope's resources.
//
// Finish is idempotent. Later calls return the same report without writing
// it again. After a fatal error Finish returns ErrScopeClosed.
func (c *Checker) Finish(ctx context.Context) (*Report, error) {
	if c.finished != nil {
		return c.finished, nil
	}
	if c.fatal != nil {
		return nil, fmt.Errorf("%w: %v", ErrScopeClosed, c.fatal)
	}
	if c.closed {
		return nil, ErrScopeClosed
	}

	rep := c.Report()
	c.finished = rep

	var errs []error
	if c.log != nil {
		if _, err := io.WriteString(c.log, rep.Log()); err != nil {
			errs = append(errs, fmt.Errorf("append verdict log: %w", err))
		}
	}
	for _, s := range c.sinks {
		if err := s.WriteReport(ctx, rep); err != nil {
			errs = append(errs, fmt.Errorf("write report: %w", err))
		}
	}
	if err := c.Close(); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("scope finished",
		"scope", c.scopeID,
		"function", c.function.Name(),
		"passed", rep.Passed,
		"failed", rep.Failed,
		"warned", rep.Warned)

	return rep, errors.Join(errs...)
}

// Close releases the scope's resources. It is safe to call more than once.
func (c *Checker) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.oracle.release()

	if c.log != nil {
		if err := c.log.Close(); err != nil {
			return fmt.Errorf("close verdict log: %w", err)
		}
	}
	return nil
}

// abort records a fatal error and tears the scope down.
func (c *Checker) abort(err *FatalError) error {
	c.fatal = err
	c.logger.Error("checking scope aborted",
		"scope", c.scopeID,
		"code", err.Code,
		"line", err.Line,
		"error", err.Message)
	if closeErr := c.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

func (c *Checker) lookup(n Node) *record {
	i, ok := c.index[n.ID()]
	if !ok {
		return nil
	}
	return c.records[i]
}

func (c *Checker) insert(r *record) {
	c.index[r.node.ID()] = len(c.records)
	c.records = append(c.records, r)
}
