package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/dlsan/internal/engine"
)

// ExpectationError describes one unmet expectation.
type ExpectationError struct {
	Subject  string // what was checked, e.g. "node i" or "failures"
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Subject, e.Expected, e.Actual)
}

// evaluateExpectations compares a run with the scenario and records every
// mismatch on the result.
func evaluateExpectations(s *Scenario, result *Result) {
	for _, err := range checkExpectations(s, result) {
		result.AddError(err.Error())
	}
}

func checkExpectations(s *Scenario, result *Result) []error {
	if s.ExpectError != "" {
		code := string(engine.FatalCode(result.Fatal))
		if code != s.ExpectError {
			return []error{&ExpectationError{
				Subject:  "fatal error",
				Expected: s.ExpectError,
				Actual:   orNone(code),
			}}
		}
		return nil
	}

	if result.Fatal != nil {
		return []error{&ExpectationError{
			Subject:  "run",
			Expected: "no fatal error",
			Actual:   result.Fatal.Error(),
		}}
	}

	var errs []error
	for _, e := range s.Expect {
		if err := checkNode(e, result); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Failures != nil {
		if err := checkFailures(s.Failures, result.Report.Failures); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkNode(e NodeExpectation, result *Result) error {
	subject := "node " + e.Node

	id, ok := result.Nodes[e.Node]
	if !ok {
		return &ExpectationError{Subject: subject, Expected: "a known node", Actual: "unknown node"}
	}

	i := slices.IndexFunc(result.Report.Verdicts, func(v engine.Verdict) bool { return v.Node == id })
	if i < 0 {
		return &ExpectationError{Subject: subject, Expected: "status " + e.Status, Actual: "no verdict"}
	}
	v := result.Report.Verdicts[i]

	if string(v.Status) != e.Status {
		return &ExpectationError{Subject: subject, Expected: "status " + e.Status, Actual: fmt.Sprintf("%q", v.String())}
	}
	if e.Expected != "" && !strings.EqualFold(v.Expected.String(), e.Expected) {
		return &ExpectationError{Subject: subject, Expected: "expected kind " + e.Expected, Actual: fmt.Sprintf("%q", v.String())}
	}
	return nil
}

func checkFailures(want []FailureExpectation, got []engine.LineFailure) error {
	wantLines := make([]string, len(want))
	for i, f := range want {
		wantLines[i] = fmt.Sprintf("%d (%s)", f.Line, strings.Join(f.Kinds, ", "))
	}
	gotLines := make([]string, len(got))
	for i, f := range got {
		gotLines[i] = f.String()
	}

	if !slices.Equal(wantLines, gotLines) {
		return &ExpectationError{
			Subject:  "failures",
			Expected: "[" + strings.Join(wantLines, "; ") + "]",
			Actual:   "[" + strings.Join(gotLines, "; ") + "]",
		}
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
