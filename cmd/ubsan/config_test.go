// config_test.go tests ubsan.toml loading.
package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadToolConfig_Defaults verifies the everything-on defaults when no
// config file exists.
func TestLoadToolConfig_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadToolConfig(dir)
	if err != nil {
		t.Fatalf("loadToolConfig() failed: %v", err)
	}

	if !cfg.Checks.Arithmetic || !cfg.Checks.Division || !cfg.Checks.Shifts || !cfg.Checks.Bounds {
		t.Errorf("default config should enable all checks: %+v", cfg.Checks)
	}
	if !cfg.Runtime.Abort {
		t.Errorf("default config should enable abort policy")
	}
}

// TestLoadToolConfig_PartialFile verifies unset keys keep their defaults.
func TestLoadToolConfig_PartialFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[checks]
shifts = false

[runtime]
abort = false
`
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := loadToolConfig(dir)
	if err != nil {
		t.Fatalf("loadToolConfig() failed: %v", err)
	}

	if cfg.Checks.Shifts {
		t.Errorf("shifts should be disabled")
	}
	if cfg.Runtime.Abort {
		t.Errorf("abort should be disabled")
	}
	if !cfg.Checks.Arithmetic || !cfg.Checks.Division || !cfg.Checks.Bounds {
		t.Errorf("unset checks should stay enabled: %+v", cfg.Checks)
	}
}

// TestLoadToolConfig_ParentDirectory verifies the upward search.
func TestLoadToolConfig_ParentDirectory(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "cmd", "app")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("Failed to create nested dirs: %v", err)
	}

	content := "[checks]\nbounds = false\n"
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := loadToolConfig(nested)
	if err != nil {
		t.Fatalf("loadToolConfig() failed: %v", err)
	}
	if cfg.Checks.Bounds {
		t.Errorf("config from parent directory not applied")
	}
}

// TestLoadToolConfig_Malformed verifies a broken file is an error, not a
// silent fallback to defaults.
func TestLoadToolConfig_Malformed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte("[checks\nbroken"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := loadToolConfig(dir); err == nil {
		t.Error("expected error for malformed config, got nil")
	}
}

// TestToolConfig_Options verifies the mapping onto instrumenter options.
func TestToolConfig_Options(t *testing.T) {
	cfg := &toolConfig{
		Checks:  checksConfig{Arithmetic: true, Shifts: true},
		Runtime: runtimeConfig{Abort: false},
	}

	opts := cfg.options()
	if !opts.Arithmetic || opts.Division || !opts.Shifts || opts.Bounds {
		t.Errorf("options() mapping wrong: %+v", opts)
	}
	if opts.Abort {
		t.Errorf("options() should carry the abort policy through")
	}
}
