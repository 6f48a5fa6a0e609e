package harness

import "github.com/roach88/dlsan/internal/engine"

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success: every expectation held and the run
	// ended the way the scenario said it would.
	Pass bool `json:"pass"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Report is nil when the run aborted with a fatal error.
	Report *engine.Report `json:"-"`

	// Log is the verdict log block the scope produced.
	Log string `json:"log"`

	// Fatal is the fatal error that aborted the run, if any.
	Fatal error `json:"-"`

	// Nodes maps scenario node names to IDs.
	Nodes map[string]engine.NodeID `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
		Nodes:  map[string]engine.NodeID{},
	}
}

// AddError adds an expectation failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
