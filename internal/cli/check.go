package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dlsan/internal/engine"
	"github.com/roach88/dlsan/internal/harness"
	"github.com/roach88/dlsan/internal/report"
	"github.com/roach88/dlsan/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
	Database string // overrides store.path
	LogFile  string // overrides log.dir/log.file
	NoLog    bool   // do not append to the verdict log
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name    string   `json:"name"`
	Pass    bool     `json:"pass"`
	ScopeID string   `json:"scope_id,omitempty"`
	Verdict string   `json:"verdict,omitempty"` // "ok", "fail" or the fatal error code
	Errors  []string `json:"errors,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios>",
		Short: "Replay transformation scenarios through the checker",
		Long: `Replay YAML transformation scenarios through the checker.

<scenarios> is a scenario file or a directory searched recursively for
.yaml and .yml files. Each scenario's verdicts are compared with its
expectations and, when golden/<name>.golden exists next to it, with the
golden verdict log. Verdict blocks are appended to the verdict log and,
when a database is configured, written to the verdict history.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad config, etc.)

Examples:
  dlsan check ./scenarios
  dlsan check ./scenarios --filter "licm-*"
  dlsan check ./scenarios --update
  dlsan check ./scenarios --db dlsan.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "verdict history database (overrides store.path)")
	cmd.Flags().StringVar(&opts.LogFile, "log", "", "verdict log file (overrides log.dir and log.file)")
	cmd.Flags().BoolVar(&opts.NoLog, "no-log", false, "do not append to the verdict log")

	return cmd
}

func runChecks(opts *CheckOptions, target string, cmd *cobra.Command) error {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios not found: %s", target))
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	scenarioFiles, err := findScenarioFiles(target, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	out := opts.formatter(cmd)
	if len(scenarioFiles) == 0 {
		if opts.Format == "json" {
			return out.JSON("ok", CheckResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	runOpts := harness.Options{
		Logger:   slog.Default(),
		ScopeIDs: engine.UUIDv7Generator{},
		// One clock orders events across all scenarios of the run.
		Clock: engine.NewClock(),
	}

	if !opts.NoLog {
		logPath := opts.LogFile
		if logPath == "" {
			logPath = cfg.LogPath()
		}
		logFile, err := report.OpenLog(logPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open verdict log", err)
		}
		defer logFile.Close()
		runOpts.Log = logFile
		out.VerboseLog("appending verdicts to %s", logPath)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Sinks = append(runOpts.Sinks, st)
		out.VerboseLog("writing verdicts to %s", dbPath)
	}

	result := CheckResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, scenarioFile := range scenarioFiles {
		res := runScenario(ctx, cmd, opts, scenarioFile, runOpts)
		result.Scenarios = append(result.Scenarios, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	return outputCheck(cmd, opts, result)
}

// findScenarioFiles finds all YAML scenario files at path.
func findScenarioFiles(path string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(ctx context.Context, cmd *cobra.Command, opts *CheckOptions, scenarioFile string, runOpts harness.Options) ScenarioResult {
	out := opts.formatter(cmd)
	fail := func(name string, errs ...string) ScenarioResult {
		out.Text("✗ %s", name)
		for _, e := range errs {
			out.Text("  %s", e)
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return fail(filepath.Base(scenarioFile), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.RunWithOptions(ctx, scenario, runOpts)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	res := ScenarioResult{Name: scenario.Name, Verdict: verdictOf(result)}
	if result.Report != nil {
		res.ScopeID = result.Report.ScopeID
	}

	goldenPath := goldenFilePath(scenarioFile)
	switch {
	case opts.Update && result.Report != nil:
		if err := updateGoldenFile(goldenPath, result); err != nil {
			return fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		out.VerboseLog("updated %s", goldenPath)
	case result.Report != nil:
		match, found, err := compareWithGolden(goldenPath, result)
		if err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if found && !match {
			result.AddError("verdict log does not match golden file (run with --update to regenerate)")
		}
	}

	if !result.Pass {
		r := fail(scenario.Name, result.Errors...)
		r.ScopeID, r.Verdict = res.ScopeID, res.Verdict
		return r
	}

	out.Text("✓ %s", scenario.Name)
	if opts.Verbose && result.Log != "" {
		io.WriteString(out.GetErrWriter(), result.Log)
	}
	res.Pass = true
	return res
}

func verdictOf(result *harness.Result) string {
	switch {
	case result.Fatal != nil:
		return string(engine.FatalCode(result.Fatal))
	case result.Report != nil && !result.Report.OK():
		return "fail"
	default:
		return "ok"
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the verdict log block as the golden file.
func updateGoldenFile(goldenPath string, result *harness.Result) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, []byte(result.Log), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the verdict log block with the golden file.
// found is false when there is no golden file.
func compareWithGolden(goldenPath string, result *harness.Result) (match, found bool, err error) {
	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return false, false, nil
	}
	if err != nil {
		return false, true, fmt.Errorf("failed to read golden file: %w", err)
	}
	return string(golden) == result.Log, true, nil
}

// outputCheck prints the summary and sets the exit status.
func outputCheck(cmd *cobra.Command, opts *CheckOptions, result CheckResult) error {
	out := opts.formatter(cmd)

	if opts.Format == "json" {
		status := "ok"
		if result.Failed > 0 {
			status = "error"
		}
		if err := out.JSON(status, result); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
