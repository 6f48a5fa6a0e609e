package instrument

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// Targets lists the C++ sources at path: path itself if it is a .cpp file,
// or the .cpp files directly inside it if it is a directory.
func Targets(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if filepath.Ext(path) != ".cpp" {
			return nil, nil
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".cpp" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	slices.Sort(files)
	return files, nil
}

// InstrumentFile instruments the file at path and writes the result to
// outDir under the same base name. outDir is created if needed. Nothing is
// written when instrumentation fails or the file is already instrumented.
func (in *Instrumenter) InstrumentFile(ctx context.Context, path, outDir string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	name := filepath.Base(path)
	res, err := in.Instrument(ctx, src, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	res.Path = filepath.Join(outDir, name)
	if err := os.WriteFile(res.Path, res.Output, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write instrumented source: %w", err)
	}
	return res, nil
}
