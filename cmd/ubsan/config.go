// config.go loads the optional ubsan.toml tool configuration.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/kolkov/ubsan/cmd/ubsan/instrument"
)

// configFileName is looked up in the source directory and its parents.
const configFileName = "ubsan.toml"

// toolConfig is the on-disk tool configuration. Every check defaults to
// enabled and the runtime abort policy defaults to on; an absent file means
// "check everything, abort on error".
type toolConfig struct {
	Checks  checksConfig  `toml:"checks"`
	Runtime runtimeConfig `toml:"runtime"`
}

// checksConfig selects which expression classes the instrumenter rewrites.
type checksConfig struct {
	// Arithmetic covers + - * and unary negation on int operands.
	Arithmetic bool `toml:"arithmetic"`

	// Division covers / and %.
	Division bool `toml:"division"`

	// Shifts covers << and >>.
	Shifts bool `toml:"shifts"`

	// Bounds covers index expressions.
	Bounds bool `toml:"bounds"`
}

// runtimeConfig is baked into the generated init() of instrumented code.
type runtimeConfig struct {
	// Abort is the process-wide abort policy for policy-fatal traps.
	Abort bool `toml:"abort"`
}

// defaultToolConfig returns the everything-on configuration.
func defaultToolConfig() *toolConfig {
	return &toolConfig{
		Checks: checksConfig{
			Arithmetic: true,
			Division:   true,
			Shifts:     true,
			Bounds:     true,
		},
		Runtime: runtimeConfig{Abort: true},
	}
}

// loadToolConfig walks up from dir looking for ubsan.toml and decodes it.
// A missing file yields the defaults; a malformed file is an error rather
// than a silent fallback.
func loadToolConfig(dir string) (*toolConfig, error) {
	cfg := defaultToolConfig()

	path, ok := findConfigFile(dir)
	if !ok {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// options maps the tool configuration onto instrumenter options.
func (c *toolConfig) options() instrument.Options {
	return instrument.Options{
		Arithmetic: c.Checks.Arithmetic,
		Division:   c.Checks.Division,
		Shifts:     c.Checks.Shifts,
		Bounds:     c.Checks.Bounds,
		Abort:      c.Runtime.Abort,
	}
}

// findConfigFile walks up from dir to the filesystem root.
func findConfigFile(dir string) (string, bool) {
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
