package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EventOp names a tracking event in the scope trace.
type EventOp string

const (
	EventConstruct EventOp = "construct"
	EventReplace   EventOp = "replace"
	EventInsert    EventOp = "insert"
	EventUpdate    EventOp = "update"
)

// Event is one entry of a scope's event trace.
type Event struct {
	Seq  int64
	Op   EventOp
	Node NodeID
	Line int

	// Kind is the construct kind (construct) or declared kind (update).
	Kind string

	// InRegion is the dominance result folded by move, replace and insert.
	InRegion bool
}

// Status is the outcome of checking one node.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"

	// StatusWarn is reported for untracked nodes, whose expectation is Any.
	StatusWarn Status = "warn"
)

// Verdict is the checked outcome for one tracked node.
type Verdict struct {
	Node       NodeID
	Label      string
	Pass       string
	Status     Status
	Expected   UpdateKind
	Provenance Provenance
}

// String renders the verdict in the log line format:
//
//	fail: Preserve [Construct: 12, Move; Replace: -; Update: 30, Drop; Pass: LICMPass]
func (v Verdict) String() string {
	p := v.Provenance

	replace := "-"
	if len(p.ReplaceSites) > 0 {
		sites := make([]string, len(p.ReplaceSites))
		for i, s := range p.ReplaceSites {
			sites[i] = strconv.Itoa(s)
		}
		replace = strings.Join(sites, ", ")
	}

	update := "-"
	if p.UpdateKind != UpdateNone {
		update = strconv.Itoa(p.UpdateSite)
	}

	return fmt.Sprintf("%s: %s [Construct: %d, %s; Replace: %s; Update: %s, %s; Pass: %s]",
		v.Status, v.Expected,
		p.ConstructSite, p.ConstructKind,
		replace,
		update, p.UpdateKind,
		v.Pass)
}

// KindCount is one element of a per-line multiset of expected kinds.
type KindCount struct {
	Kind  UpdateKind
	Count int
}

// LineFailure lists, for one source line of the transformation, the kinds
// that would have been correct at the nodes that failed there. A line inside
// a loop may need different kinds on different iterations.
type LineFailure struct {
	Line  int
	Kinds []KindCount
}

func (f LineFailure) String() string {
	parts := make([]string, len(f.Kinds))
	for i, kc := range f.Kinds {
		parts[i] = fmt.Sprintf("%s:%d", kc.Kind, kc.Count)
	}
	return fmt.Sprintf("%d (%s)", f.Line, strings.Join(parts, ", "))
}

// Report is the outcome of one checking scope.
type Report struct {
	ScopeID  string
	Pass     string
	Function string
	Module   string

	// Events is the number of tracking events the scope received.
	Events int64

	Verdicts []Verdict
	Failures []LineFailure
	Trace    []Event

	Passed int
	Failed int
	Warned int
}

// OK reports whether no verdict failed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Lines renders the verdicts in log line format, one per node.
func (r *Report) Lines() []string {
	lines := make([]string, len(r.Verdicts))
	for i, v := range r.Verdicts {
		lines[i] = v.String()
	}
	return lines
}

// Log renders the block appended to the verdict log for this scope. An
// empty scope renders nothing.
func (r *Report) Log() string {
	if len(r.Verdicts) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Checker] Start checking @%s (%s):\n", r.Function, r.Module)
	for _, line := range r.Lines() {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "[Checker] Fail! %s\n", f)
	}
	b.WriteString("[Checker] Finish checking.\n")
	return b.String()
}

// Report checks every record against the policy.
//
// Report only reads the scope's state: calling it again without new events
// yields an identical report.
func (c *Checker) Report() *Report {
	rep := &Report{
		ScopeID:  c.scopeID,
		Pass:     c.pass,
		Function: c.function.Name(),
		Module:   c.module,
		Events:   int64(len(c.trace)),
		Verdicts: make([]Verdict, 0, len(c.records)),
		Trace:    slices.Clone(c.trace),
	}

	failures := make(map[int]map[UpdateKind]int)

	for _, r := range c.records {
		v := Verdict{
			Node:       r.node.ID(),
			Label:      r.label,
			Pass:       c.pass,
			Expected:   ExpectedKind(r.prov),
			Provenance: r.snapshot(),
		}

		switch {
		case v.Expected == UpdateAny:
			v.Status = StatusWarn
			rep.Warned++
		case r.prov.UpdateKind != UpdateNone && r.prov.UpdateKind == v.Expected:
			v.Status = StatusPass
			rep.Passed++
		default:
			v.Status = StatusFail
			rep.Failed++
			for _, line := range r.blameLines() {
				if failures[line] == nil {
					failures[line] = make(map[UpdateKind]int)
				}
				failures[line][v.Expected]++
			}
		}

		rep.Verdicts = append(rep.Verdicts, v)
	}

	rep.Failures = sortFailures(failures)
	return rep
}

func sortFailures(failures map[int]map[UpdateKind]int) []LineFailure {
	out := make([]LineFailure, 0, len(failures))
	for line, kinds := range failures {
		f := LineFailure{Line: line}
		for kind, n := range kinds {
			f.Kinds = append(f.Kinds, KindCount{Kind: kind, Count: n})
		}
		slices.SortFunc(f.Kinds, func(a, b KindCount) int { return int(a.Kind) - int(b.Kind) })
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b LineFailure) int { return a.Line - b.Line })
	return out
}
