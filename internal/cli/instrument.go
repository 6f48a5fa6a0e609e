package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dlsan/internal/instrument"
)

// InstrumentOptions holds flags for the instrument command.
type InstrumentOptions struct {
	*RootOptions
	Output string // overrides instrument.output_dir
}

// InstrumentedFile is the outcome for one source file.
type InstrumentedFile struct {
	Path     string   `json:"path"`
	Output   string   `json:"output,omitempty"`
	Status   string   `json:"status"` // "instrumented", "skipped" or "failed"
	Edits    int      `json:"edits,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// InstrumentResult holds the outcome for every file.
type InstrumentResult struct {
	Files        []InstrumentedFile `json:"files"`
	Instrumented int                `json:"instrumented"`
	Skipped      int                `json:"skipped"`
	Failed       int                `json:"failed"`
}

// NewInstrumentCommand creates the instrument command.
func NewInstrumentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InstrumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "instrument <path>",
		Short: "Insert tracking hooks into LLVM pass sources",
		Long: `Insert the checker's tracking hooks into C++ pass sources.

<path> is a .cpp file or a directory whose .cpp files (not recursive) are
instrumented. Sources are never modified in place: instrumented copies are
written to the output directory under their original names. Files that are
already instrumented are skipped.

The callees recognized as creating, cloning, moving, inserting, replacing
and updating debug locations come from the instrument section of the
configuration.

Examples:
  dlsan instrument llvm/lib/Transforms/Scalar/LICM.cpp
  dlsan instrument llvm/lib/Transforms/Scalar -o ./instrumented
  dlsan instrument LICM.cpp --config dlsan.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstrument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output directory (overrides instrument.output_dir)")

	return cmd
}

func runInstrument(opts *InstrumentOptions, target string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	files, err := instrument.Targets(target)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find sources", err)
	}

	out := opts.formatter(cmd)
	if len(files) == 0 {
		if opts.Format == "json" {
			return out.JSON("ok", InstrumentResult{Files: []InstrumentedFile{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No file to instrument.")
		return nil
	}

	outDir := opts.Output
	if outDir == "" {
		outDir = cfg.Instrument.OutputDir
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	in := instrument.New(cfg.Instrument, instrument.WithLogger(slog.Default()))

	result := InstrumentResult{Files: make([]InstrumentedFile, 0, len(files))}
	for _, path := range files {
		f := instrumentFile(ctx, in, path, outDir)
		switch f.Status {
		case "instrumented":
			result.Instrumented++
			out.Text("✓ %s -> %s (%d edits)", f.Path, f.Output, f.Edits)
			for _, w := range f.Warnings {
				out.Text("  warning: %s", w)
			}
		case "skipped":
			result.Skipped++
			out.Text("- %s (already instrumented)", f.Path)
		default:
			result.Failed++
			out.Text("✗ %s", f.Path)
			out.Text("  %s", f.Error)
		}
		result.Files = append(result.Files, f)
	}

	if opts.Format == "json" {
		status := "ok"
		if result.Failed > 0 {
			status = "error"
		}
		if err := out.JSON(status, result); err != nil {
			return err
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed instrumentation", result.Failed))
	}
	return nil
}

func instrumentFile(ctx context.Context, in *instrument.Instrumenter, path, outDir string) InstrumentedFile {
	f := InstrumentedFile{Path: path}

	res, err := in.InstrumentFile(ctx, path, outDir)
	if errors.Is(err, instrument.ErrAlreadyInstrumented) {
		f.Status = "skipped"
		return f
	}
	if err != nil {
		f.Status = "failed"
		f.Error = err.Error()
		return f
	}

	f.Status = "instrumented"
	f.Output = res.Path
	f.Edits = res.Edits
	for _, w := range res.Warnings {
		f.Warnings = append(f.Warnings, w.String())
	}
	return f
}
