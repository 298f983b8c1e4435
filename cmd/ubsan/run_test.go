// run_test.go tests the 'ubsan run' command plumbing.
package main

import (
	"strings"
	"testing"
)

// TestParseRunArgs_SimpleFile tests parsing a single source file.
func TestParseRunArgs_SimpleFile(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"main.go"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if len(config.sourceFiles) != 1 || config.sourceFiles[0] != "main.go" {
		t.Errorf("Expected [main.go], got %v", config.sourceFiles)
	}
	if len(programArgs) != 0 {
		t.Errorf("Expected no program args, got %v", programArgs)
	}
}

// TestParseRunArgs_FileWithArgs tests source file + program arguments.
func TestParseRunArgs_FileWithArgs(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"main.go", "arg1", "arg2", "--flag=value"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if len(config.sourceFiles) != 1 || config.sourceFiles[0] != "main.go" {
		t.Errorf("Expected [main.go], got %v", config.sourceFiles)
	}

	expectedArgs := []string{"arg1", "arg2", "--flag=value"}
	if len(programArgs) != len(expectedArgs) {
		t.Fatalf("Expected %d program args, got %d", len(expectedArgs), len(programArgs))
	}
	for i, expected := range expectedArgs {
		if programArgs[i] != expected {
			t.Errorf("Arg %d: expected %q, got %q", i, expected, programArgs[i])
		}
	}
}

// TestParseRunArgs_MultipleFilesWithArgs tests multiple files + args.
func TestParseRunArgs_MultipleFilesWithArgs(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"main.go", "helper.go", "arg1", "--flag"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if len(config.sourceFiles) != 2 {
		t.Errorf("Expected 2 source files, got %d", len(config.sourceFiles))
	}

	expectedArgs := []string{"arg1", "--flag"}
	if len(programArgs) != len(expectedArgs) {
		t.Errorf("Expected %d program args, got %d: %v", len(expectedArgs), len(programArgs), programArgs)
	}
}

// TestParseRunArgs_BuildFlags tests build flags before source files.
func TestParseRunArgs_BuildFlags(t *testing.T) {
	config, programArgs, err := parseRunArgs([]string{"-tags", "debug", "main.go", "arg1"})
	if err != nil {
		t.Fatalf("parseRunArgs() error: %v", err)
	}

	if len(config.buildFlags) != 2 {
		t.Errorf("Expected 2 build flags, got %d: %v", len(config.buildFlags), config.buildFlags)
	}
	if len(config.sourceFiles) != 1 || config.sourceFiles[0] != "main.go" {
		t.Errorf("Expected [main.go], got %v", config.sourceFiles)
	}
	if len(programArgs) != 1 || programArgs[0] != "arg1" {
		t.Errorf("Expected [arg1], got %v", programArgs)
	}
}

// TestParseRunArgs_NoFiles tests error when no files specified.
func TestParseRunArgs_NoFiles(t *testing.T) {
	_, _, err := parseRunArgs([]string{})
	if err == nil {
		t.Fatal("Expected error for no files, got nil")
	}
	if !strings.Contains(err.Error(), "no source files") {
		t.Errorf("Expected 'no source files' error, got: %v", err)
	}
}

// TestParseRunArgs_NoGoFiles tests error when only non-.go files.
func TestParseRunArgs_NoGoFiles(t *testing.T) {
	_, _, err := parseRunArgs([]string{"README.md", "config.json"})
	if err == nil {
		t.Fatal("Expected error for no .go files, got nil")
	}
	if !strings.Contains(err.Error(), "no Go source files") {
		t.Errorf("Expected 'no Go source files' error, got: %v", err)
	}
}

// TestExecuteBinary_NotFound tests the failure path for a missing binary.
func TestExecuteBinary_NotFound(t *testing.T) {
	code := executeBinary("/nonexistent/binary", nil)
	if code == 0 {
		t.Error("Expected non-zero exit code for missing binary")
	}
}
