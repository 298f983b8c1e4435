// run.go implements the 'ubsan run' command.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	ubsanruntime "github.com/kolkov/ubsan/cmd/ubsan/runtime"
)

// runCommand implements the 'ubsan run' command.
//
// This command instruments Go source files, builds them temporarily, and
// immediately executes the resulting binary with UB checks. It acts as a
// drop-in replacement for 'go run'.
//
// Flow:
//  1. Parse arguments (source files + program arguments)
//  2. Build instrumented binary to temp location
//  3. Execute binary with program arguments
//  4. Forward stdin/stdout/stderr
//  5. Return program's exit code
//
// Example:
//
//	ubsan run main.go
//	ubsan run main.go arg1 arg2
//	ubsan run main.go --program-flag=value
func runCommand(args []string) {
	config, programArgs, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tempBinary, err := buildTemporary(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.Remove(tempBinary) }() // Best effort cleanup

	// An instrumented program that hits a policy-fatal trap in abort mode
	// terminates with a non-zero status; forward it unchanged.
	exitCode := executeBinary(tempBinary, programArgs)
	os.Exit(exitCode)
}

// parseRunArgs separates source files from program arguments.
//
// The 'go run' command format is:
//
//	go run [build flags] [-exec xprog] package [arguments...]
//
// Supported here:
//
//	ubsan run file.go [arguments...]
//	ubsan run file1.go file2.go [arguments...]
//
// Build flags (if any) come before source files. Everything after source
// files are program arguments.
func parseRunArgs(args []string) (*buildConfig, []string, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no source files specified")
	}

	// Find where source files end and program args begin.
	// Strategy: first non-.go file after seeing at least one .go file.
	var sourceFiles []string
	var programArgs []string
	var buildFlags []string

	sawGoFile := false
	inProgramArgs := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if inProgramArgs {
			programArgs = append(programArgs, arg)
			continue
		}

		// Build flags come before source files.
		if !sawGoFile && needsValue(arg) {
			buildFlags = append(buildFlags, arg)
			if i+1 < len(args) {
				i++
				buildFlags = append(buildFlags, args[i])
			}
			continue
		}

		if filepath.Ext(arg) == ".go" {
			sourceFiles = append(sourceFiles, arg)
			sawGoFile = true
			continue
		}

		// Not a .go file and we've seen .go files → program args start here.
		if sawGoFile {
			inProgramArgs = true
			programArgs = append(programArgs, arg)
			continue
		}

		// Not a .go file and haven't seen .go files → could be build flag.
		buildFlags = append(buildFlags, arg)
	}

	if len(sourceFiles) == 0 {
		return nil, nil, fmt.Errorf("no Go source files specified")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	config := &buildConfig{
		sourceFiles: sourceFiles,
		buildFlags:  buildFlags,
		workDir:     cwd,
		outputFile:  "", // Will be set by buildTemporary
	}

	return config, programArgs, nil
}

// buildTemporary builds the instrumented code to a temporary binary.
//
// This creates a unique temporary executable that will be deleted after
// the run.
func buildTemporary(config *buildConfig) (string, error) {
	tempBinary, err := os.CreateTemp("", "ubsan-run-*.exe")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempBinary.Name()
	_ = tempBinary.Close()

	config.outputFile = tempPath

	cleanup := func() { _ = os.Remove(tempPath) }

	if err := ubsanruntime.ValidateRuntimeAvailable(); err != nil {
		cleanup()
		return "", fmt.Errorf("UBSan runtime not found: %w", err)
	}

	toolCfg, err := loadToolConfig(config.workDir)
	if err != nil {
		cleanup()
		return "", err
	}

	workspace, err := createWorkspace()
	if err != nil {
		cleanup()
		return "", fmt.Errorf("failed to create workspace: %w", err)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, toolCfg.options(), workspace); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to instrument sources: %w", err)
	}

	if err := workspace.setupRuntimeLinking(config.workDir); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to setup runtime: %w", err)
	}

	if err := workspace.build(config); err != nil {
		cleanup()
		return "", fmt.Errorf("build failed: %w", err)
	}

	return tempPath, nil
}

// executeBinary runs the instrumented binary with given arguments.
//
// This forwards stdin/stdout/stderr to the child process and returns the
// process exit code.
func executeBinary(binaryPath string, args []string) int {
	cmd := exec.Command(binaryPath, args...)

	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		// Other error (failed to start, etc.)
		fmt.Fprintf(os.Stderr, "Error executing binary: %v\n", err)
		return 1
	}

	return 0
}
