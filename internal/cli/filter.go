package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dlsan/internal/report"
)

// FilterOptions holds flags for the filter command.
type FilterOptions struct {
	*RootOptions
	Color bool
}

// FilterOutput is the JSON payload of the filter command.
type FilterOutput struct {
	Lines  []string `json:"lines"`
	Passed int      `json:"passed"`
	Warned int      `json:"warned"`
	Failed int      `json:"failed"`
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter [log]",
		Short: "Summarize a verdict log",
		Long: `Print the distinct verdict lines of a verdict log.

Lines are grouped by status: passes sorted, then warnings sorted, then
failures ordered by the line they were constructed at. Without [log], the
configured verdict log is read.

Examples:
  dlsan filter
  dlsan filter /tmp/dlsan/dlsan.log --color
  dlsan filter dlsan.log --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runFilter(opts, path, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Color, "color", false, "color status tags")

	return cmd
}

func runFilter(opts *FilterOptions, path string, cmd *cobra.Command) error {
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return err
		}
		path = cfg.LogPath()
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("verdict log not found: %s", path))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open verdict log", err)
	}
	defer f.Close()

	if opts.Format != "json" {
		if _, err := report.Filter(f, cmd.OutOrStdout(), report.FilterOptions{Color: opts.Color}); err != nil {
			return WrapExitError(ExitCommandError, "failed to read verdict log", err)
		}
		return nil
	}

	var buf bytes.Buffer
	res, err := report.Filter(f, &buf, report.FilterOptions{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read verdict log", err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if buf.Len() == 0 {
		lines = []string{}
	}
	return opts.formatter(cmd).Success(FilterOutput{
		Lines:  lines,
		Passed: res.Passed,
		Warned: res.Warned,
		Failed: res.Failed,
	})
}
