package report

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogFile is the verdict log name used when none is configured.
const DefaultLogFile = "dlsan.log"

// OpenLog opens path for appending, creating it and its parent directories
// as needed. Several scopes, and several compiler processes, append to the
// same log; each scope writes its block with a single write.
func OpenLog(path string) (*os.File, error) {
	if path == "" {
		path = DefaultLogFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open verdict log: %w", err)
	}
	return f, nil
}
