package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dlsan/internal/engine"
)

// Scenario is one scripted transformation of one function.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pass is the transformation name shown in verdict lines.
	Pass string `yaml:"pass"`

	// Module is shown in the verdict log header. Defaults to the scenario
	// name.
	Module string `yaml:"module,omitempty"`

	Function FunctionSpec `yaml:"function"`

	Steps []Step `yaml:"steps"`

	// Expect lists per-node verdict expectations. Nodes not listed are not
	// checked.
	Expect []NodeExpectation `yaml:"expect,omitempty"`

	// Failures, when present, must equal the report's aggregated failures.
	Failures []FailureExpectation `yaml:"failures,omitempty"`

	// ExpectError names the fatal error code the run must abort with.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// FunctionSpec describes the CFG. The first block is the entry.
type FunctionSpec struct {
	Name   string      `yaml:"name"`
	Blocks []BlockSpec `yaml:"blocks"`
}

// BlockSpec is one basic block with its initial instructions.
type BlockSpec struct {
	Name   string   `yaml:"name"`
	Instrs []string `yaml:"instrs,omitempty"`
	Succs  []string `yaml:"succs,omitempty"`
}

// Step is one IR mutation plus its tracking event.
//
// Position fields (before, after, block) are mutually exclusive; exactly one
// is required by move and insert and at most one is allowed on create.
type Step struct {
	Op string `yaml:"op"`

	// Node is the destination: the node created, cloned, moved, inserted,
	// replacing, erased or updated.
	Node string `yaml:"node"`

	// From is the clone origin.
	From string `yaml:"from,omitempty"`

	// Src is the node being replaced.
	Src string `yaml:"src,omitempty"`

	Before string `yaml:"before,omitempty"`
	After  string `yaml:"after,omitempty"`
	Block  string `yaml:"block,omitempty"`

	// Kind is the declared update kind.
	Kind string `yaml:"kind,omitempty"`

	// Line is the transformation source line reported with the event.
	Line int `yaml:"line,omitempty"`
}

// Step operations.
const (
	OpCreate  = "create"
	OpClone   = "clone"
	OpMove    = "move"
	OpInsert  = "insert"
	OpReplace = "replace"
	OpErase   = "erase"
	OpUpdate  = "update"
)

// NodeExpectation is the expected verdict for one node.
type NodeExpectation struct {
	Node     string `yaml:"node"`
	Status   string `yaml:"status"`
	Expected string `yaml:"expected,omitempty"`
}

// FailureExpectation is one aggregated failure line, with kinds written as
// "<Kind>:<count>" in enum order, e.g. ["Preserve:1", "Drop:2"].
type FailureExpectation struct {
	Line  int      `yaml:"line"`
	Kinds []string `yaml:"kinds"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// Node names are resolved at run time, since steps create new nodes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Pass == "" {
		return fmt.Errorf("pass is required")
	}
	if err := validateFunction(&s.Function); err != nil {
		return err
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, e := range s.Expect {
		if e.Node == "" {
			return fmt.Errorf("expect[%d]: node is required", i)
		}
		switch engine.Status(e.Status) {
		case engine.StatusPass, engine.StatusFail, engine.StatusWarn:
		default:
			return fmt.Errorf("expect[%d]: status must be pass, fail, or warn, got %q", i, e.Status)
		}
		if e.Expected != "" {
			if _, err := engine.ParseUpdateKind(e.Expected); err != nil {
				return fmt.Errorf("expect[%d]: %w", i, err)
			}
		}
	}

	for i, f := range s.Failures {
		if f.Line <= 0 {
			return fmt.Errorf("failures[%d]: line must be positive", i)
		}
		if len(f.Kinds) == 0 {
			return fmt.Errorf("failures[%d]: kinds is required", i)
		}
	}

	if s.ExpectError != "" && (len(s.Expect) > 0 || len(s.Failures) > 0) {
		return fmt.Errorf("expect_error cannot be combined with expect or failures")
	}

	return nil
}

func validateFunction(f *FunctionSpec) error {
	if f.Name == "" {
		return fmt.Errorf("function.name is required")
	}
	if len(f.Blocks) == 0 {
		return fmt.Errorf("function.blocks is required and must be non-empty")
	}

	blocks := make([]string, 0, len(f.Blocks))
	instrs := map[string]bool{}
	for i, b := range f.Blocks {
		if b.Name == "" {
			return fmt.Errorf("function.blocks[%d]: name is required", i)
		}
		if slices.Contains(blocks, b.Name) {
			return fmt.Errorf("function.blocks[%d]: duplicate block %q", i, b.Name)
		}
		blocks = append(blocks, b.Name)
		for _, name := range b.Instrs {
			if instrs[name] {
				return fmt.Errorf("function.blocks[%d]: duplicate instruction %q", i, name)
			}
			instrs[name] = true
		}
	}
	for i, b := range f.Blocks {
		for _, succ := range b.Succs {
			if !slices.Contains(blocks, succ) {
				return fmt.Errorf("function.blocks[%d]: unknown successor %q", i, succ)
			}
		}
	}
	return nil
}

func validateStep(i int, s *Step) error {
	if s.Node == "" {
		return fmt.Errorf("steps[%d]: node is required", i)
	}

	positions := 0
	for _, p := range []string{s.Before, s.After, s.Block} {
		if p != "" {
			positions++
		}
	}

	switch s.Op {
	case OpCreate:
		if positions > 1 {
			return fmt.Errorf("steps[%d]: create takes at most one of before, after, block", i)
		}
	case OpClone:
		if s.From == "" {
			return fmt.Errorf("steps[%d]: from is required for clone", i)
		}
	case OpMove, OpInsert:
		if positions != 1 {
			return fmt.Errorf("steps[%d]: %s requires exactly one of before, after, block", i, s.Op)
		}
	case OpReplace:
		if s.Src == "" {
			return fmt.Errorf("steps[%d]: src is required for replace", i)
		}
	case OpErase:
		return nil
	case OpUpdate:
		kind, err := engine.ParseUpdateKind(s.Kind)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if !kind.Declarable() {
			return fmt.Errorf("steps[%d]: kind must be Preserve, Merge, or Drop, got %q", i, s.Kind)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, s.Op)
	}

	if s.Line <= 0 {
		return fmt.Errorf("steps[%d]: line must be positive for %s", i, s.Op)
	}
	return nil
}
