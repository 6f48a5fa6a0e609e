// Package config loads dlsan's CUE configuration.
//
// The embedded default.cue defines the #Config schema with defaults. A user
// file is unified with the schema, so it only needs the fields it changes
// and cannot introduce unknown ones:
//
//	log: dir: "/tmp/dlsan"
//	store: path: "dlsan.db"
//	instrument: drop: ["dropLocation"]
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed default.cue
var defaultSchema []byte

// Config is the decoded configuration.
type Config struct {
	Log        LogConfig        `json:"log"`
	Store      StoreConfig      `json:"store"`
	Instrument InstrumentConfig `json:"instrument"`
}

// LogConfig places the verdict log.
type LogConfig struct {
	Dir  string `json:"dir"`
	File string `json:"file"`
}

// StoreConfig places the verdict history database.
type StoreConfig struct {
	Path string `json:"path"`
}

// InstrumentConfig holds the instrumenter's callee tables.
type InstrumentConfig struct {
	OutputDir       string   `json:"output_dir"`
	PassEntrySuffix string   `json:"pass_entry_suffix"`
	Create          []string `json:"create"`
	Clone           []string `json:"clone"`
	Move            []string `json:"move"`
	Insert          []string `json:"insert"`
	Replace         []string `json:"replace"`
	Preserve        []string `json:"preserve"`
	Merge           []string `json:"merge"`
	Drop            []string `json:"drop"`
}

// LogPath is the verdict log file path.
func (c *Config) LogPath() string {
	return filepath.Join(c.Log.Dir, c.Log.File)
}

// Default returns the configuration with every field at its default.
func Default() (*Config, error) {
	return Parse(nil, "")
}

// Load reads the user configuration at path. An empty path yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies CUE source with the schema and decodes the result. filename
// is only used in error positions.
func Parse(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(defaultSchema, cue.Filename("default.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(data) > 0 {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, formatCUEError(filename, err)
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(filename, err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// formatCUEError flattens a CUE error list into one error that keeps every
// message with its position.
func formatCUEError(filename string, err error) error {
	if filename == "" {
		filename = "config"
	}
	return fmt.Errorf("invalid %s: %s", filename, cueerrors.Details(err, nil))
}
