// build.go implements the 'ubsan build' command.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kolkov/ubsan/cmd/ubsan/instrument"
	ubsanruntime "github.com/kolkov/ubsan/cmd/ubsan/runtime"
)

// buildCommand implements the 'ubsan build' command.
//
// This command instruments Go source files and builds them with UB checks.
// It acts as a drop-in replacement for 'go build', supporting all standard
// flags.
//
// Flow:
//  1. Parse arguments (source files + go build flags)
//  2. Load the optional ubsan.toml configuration
//  3. Create temporary workspace
//  4. Instrument source files (insert UB check calls)
//  5. Setup runtime linking (go.mod overlay)
//  6. Call 'go build' with instrumented code
//  7. Cleanup temporary files
//
// Example:
//
//	ubsan build main.go
//	ubsan build -o myapp main.go helper.go
//	ubsan build -ldflags="-s -w" .
func buildCommand(args []string) {
	config, err := parseBuildArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Validate runtime is available
	if err := ubsanruntime.ValidateRuntimeAvailable(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: UBSan runtime not found\n")
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintf(os.Stderr, "\nPlease ensure the runtime is installed:\n")
		fmt.Fprintf(os.Stderr, "  go get github.com/kolkov/ubsan/ubsan\n")
		os.Exit(1)
	}

	toolCfg, err := loadToolConfig(config.workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	workspace, err := createWorkspace()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating workspace: %v\n", err)
		os.Exit(1)
	}
	defer workspace.cleanup()

	if err := instrumentSources(config, toolCfg.options(), workspace); err != nil {
		fmt.Fprintf(os.Stderr, "Error instrumenting sources: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.setupRuntimeLinking(config.workDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up runtime: %v\n", err)
		os.Exit(1)
	}

	if err := workspace.build(config); err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	if config.outputFile != "" {
		fmt.Printf("Built successfully: %s\n", config.outputFile)
	}
}

// buildConfig holds configuration for the build command.
type buildConfig struct {
	// Source files to instrument and build
	sourceFiles []string

	// Output binary name (from -o flag)
	outputFile string

	// Additional go build flags
	buildFlags []string

	// Working directory for build
	workDir string

	// Verbose output flag (-v)
	verbose bool
}

// parseBuildArgs parses command-line arguments for 'ubsan build'.
//
// It separates:
//   - Source files (.go files or directories)
//   - Output file (-o flag)
//   - Go build flags (everything else)
//
// Returns buildConfig with parsed arguments.
func parseBuildArgs(args []string) (*buildConfig, error) {
	config := &buildConfig{
		sourceFiles: []string{},
		buildFlags:  []string{},
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	config.workDir = cwd

	expectingValue := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// If previous flag expects a value, this is it (even if it starts
		// with -). Example: -ldflags "-s -w"
		if expectingValue {
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = false
			continue
		}

		if arg == "-o" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("-o flag requires an argument")
			}
			i++
			config.outputFile = args[i]
			continue
		}

		if strings.HasPrefix(arg, "-o=") {
			config.outputFile = strings.TrimPrefix(arg, "-o=")
			continue
		}

		if arg == "-v" {
			config.verbose = true
			continue
		}

		if strings.HasPrefix(arg, "-") {
			// It's a build flag - pass through to go build.
			config.buildFlags = append(config.buildFlags, arg)
			expectingValue = needsValue(arg)
			continue
		}

		// No dash prefix - it's a source file, directory or package path.
		config.sourceFiles = append(config.sourceFiles, arg)
	}

	// Default: build current directory if no sources specified.
	if len(config.sourceFiles) == 0 {
		config.sourceFiles = []string{"."}
	}

	return config, nil
}

// needsValue returns true if the flag expects a following value.
func needsValue(flag string) bool {
	valueFlags := []string{
		"-ldflags", "-gcflags", "-asmflags", "-gccgoflags",
		"-tags", "-installsuffix", "-buildmode", "-mod",
		"-modfile", "-overlay", "-pkgdir", "-toolexec",
	}

	for _, vf := range valueFlags {
		// Already has = format (e.g., -ldflags=-s)
		if strings.HasPrefix(flag, vf+"=") {
			return false
		}
		if flag == vf {
			return true
		}
	}

	return false
}

// workspace represents a temporary workspace for instrumented code.
type workspace struct {
	// Root directory of workspace
	dir string

	// Source directory (where instrumented .go files go)
	srcDir string
}

// createWorkspace creates a temporary workspace for building instrumented code.
func createWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "ubsan-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	srcDir := filepath.Join(dir, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create src directory: %w", err)
	}

	return &workspace{
		dir:    dir,
		srcDir: srcDir,
	}, nil
}

// cleanup removes the temporary workspace.
func (w *workspace) cleanup() {
	if w.dir != "" {
		_ = os.RemoveAll(w.dir) // Best effort cleanup, ignore errors
	}
}

// setupRuntimeLinking creates go.mod overlay for runtime linking.
func (w *workspace) setupRuntimeLinking(sourceDir string) error {
	overlayPath, err := ubsanruntime.ModFileOverlay(w.dir, sourceDir)
	if err != nil {
		return fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	// If overlay was created, rename it to go.mod and tidy.
	if overlayPath != "" {
		goModPath := filepath.Join(w.dir, "go.mod")
		if err := os.Rename(overlayPath, goModPath); err != nil {
			return fmt.Errorf("failed to setup go.mod: %w", err)
		}

		tidyCmd := exec.Command("go", "mod", "tidy")
		tidyCmd.Dir = w.dir // go.mod is in workspace root, not src/
		tidyCmd.Stdout = os.Stdout
		tidyCmd.Stderr = os.Stderr
		if err := tidyCmd.Run(); err != nil {
			return fmt.Errorf("failed to tidy go.mod: %w", err)
		}
	}

	return nil
}

// build runs 'go build' on the instrumented code in the workspace.
func (w *workspace) build(config *buildConfig) error {
	args := []string{"build"}

	if config.outputFile != "" {
		outputPath := config.outputFile
		if !filepath.IsAbs(outputPath) {
			outputPath = filepath.Join(config.workDir, outputPath)
		}
		args = append(args, "-o", outputPath)
	}

	args = append(args, config.buildFlags...)

	// Build from workspace src directory.
	args = append(args, ".")

	cmd := exec.Command("go", args...)
	cmd.Dir = w.srcDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// instrumentSources instruments all source files and writes them to the
// workspace. Files are independent, so instrumentation runs in parallel,
// bounded by GOMAXPROCS.
func instrumentSources(config *buildConfig, opts instrument.Options, workspace *workspace) error {
	goFiles, err := collectGoFiles(config.sourceFiles, config.workDir)
	if err != nil {
		return fmt.Errorf("failed to collect source files: %w", err)
	}

	if len(goFiles) == 0 {
		return fmt.Errorf("no Go source files found")
	}

	// The workspace flattens everything into one directory, so two source
	// files with the same basename would silently clobber each other.
	seen := make(map[string]string, len(goFiles))
	for _, srcPath := range goFiles {
		base := filepath.Base(srcPath)
		if prev, ok := seen[base]; ok && prev != srcPath {
			return fmt.Errorf("duplicate source file name %s (%s and %s): rename one of the files", base, prev, srcPath)
		}
		seen[base] = srcPath
	}

	results := make([]*instrument.Result, len(goFiles))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, srcPath := range goFiles {
		i, srcPath := i, srcPath
		g.Go(func() error {
			result, err := instrument.InstrumentFile(srcPath, nil, opts)
			if err != nil {
				return fmt.Errorf("failed to instrument %s: %w", srcPath, err)
			}

			// Use just the filename (flatten directory structure for
			// simplicity).
			outPath := filepath.Join(workspace.srcDir, filepath.Base(srcPath))
			if err := os.WriteFile(outPath, []byte(result.Code), 0644); err != nil {
				return fmt.Errorf("failed to write instrumented file %s: %w", outPath, err)
			}

			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Report sequentially so the output is stable.
	for i, srcPath := range goFiles {
		fmt.Printf("Instrumented: %s\n", srcPath)

		if config.verbose {
			stats := results[i].Stats
			fmt.Printf("  - %d arithmetic checks\n", stats.ArithmeticChecks)
			fmt.Printf("  - %d division checks\n", stats.DivisionChecks)
			fmt.Printf("  - %d shift checks\n", stats.ShiftChecks)
			fmt.Printf("  - %d bounds checks\n", stats.BoundsChecks)
			if stats.LiteralsSkipped > 0 {
				fmt.Printf("  - %d constant expressions skipped\n", stats.LiteralsSkipped)
			}
			fmt.Printf("  Total: %d check sites inserted\n", stats.Total())
		}
	}

	return nil
}

// collectGoFiles finds all .go files from the given sources.
//
// Sources can be:
//   - .go files directly
//   - directories (scans for .go files)
//   - "." for current directory
func collectGoFiles(sources []string, workDir string) ([]string, error) {
	var goFiles []string

	for _, src := range sources {
		srcPath := src
		if !filepath.IsAbs(srcPath) {
			srcPath = filepath.Join(workDir, src)
		}

		info, err := os.Stat(srcPath)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", src, err)
		}

		if info.IsDir() {
			entries, err := os.ReadDir(srcPath)
			if err != nil {
				return nil, fmt.Errorf("cannot read directory %s: %w", srcPath, err)
			}

			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}

				name := entry.Name()
				// Include only .go files (exclude _test.go for build).
				if strings.HasSuffix(name, ".go") && !strings.HasSuffix(name, "_test.go") {
					goFiles = append(goFiles, filepath.Join(srcPath, name))
				}
			}
		} else if strings.HasSuffix(srcPath, ".go") {
			goFiles = append(goFiles, srcPath)
		}
	}

	return goFiles, nil
}
