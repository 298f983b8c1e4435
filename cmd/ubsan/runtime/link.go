// Package runtime provides runtime library linking for instrumented code.
//
// This package handles injecting the Pure-Go UBSan runtime into
// instrumented Go programs. It provides mechanisms to ensure the runtime
// is linked and initialized properly.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// RuntimePackagePath returns the import path for the UBSan runtime.
//
// This is the package that instrumented code will import to access the
// checked arithmetic wrappers and the site payload types.
//
// Uses the public API wrapper instead of the internal packages for
// standalone tool compatibility.
func RuntimePackagePath() string {
	return "github.com/kolkov/ubsan/ubsan"
}

// ValidateRuntimeAvailable checks if the runtime library is available.
//
// This verifies that the UBSan runtime package can be found and imported.
// If the package is missing, the caller prints installation instructions.
func ValidateRuntimeAvailable() error {
	// Check if we're in development (running from source). In that case
	// the runtime is in internal/ubsan/api.
	projectRoot, err := findProjectRoot()
	if err == nil {
		runtimePath := filepath.Join(projectRoot, "internal", "ubsan", "api")
		if _, err := os.Stat(runtimePath); err == nil {
			return nil
		}
	}

	// Otherwise the runtime resolves through the module proxy like any
	// other dependency; the build surfaces a fetch failure if it can't.
	return nil
}

// findProjectRoot finds the root directory of the ubsan project.
//
// This walks up the directory tree from the current working directory
// looking for our specific project marker (internal/ubsan/api directory).
// We don't just look for any go.mod because that would match the user's
// project.
func findProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		runtimePath := filepath.Join(dir, "internal", "ubsan", "api")
		if _, err := os.Stat(runtimePath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Not found by walking up - try to find via executable path.
	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidates := []string{
			exeDir,                             // ubsan binary in project root
			filepath.Dir(exeDir),               // ubsan binary in bin/
			filepath.Dir(filepath.Dir(exeDir)), // deeper nesting
		}
		for _, candidate := range candidates {
			runtimePath := filepath.Join(candidate, "internal", "ubsan", "api")
			if _, err := os.Stat(runtimePath); err == nil {
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find ubsan project root")
}

// findOriginalGoMod finds the go.mod file of the project being
// instrumented.
//
// This walks up from the given directory looking for a go.mod file. This
// is different from findProjectRoot which finds ubsan's own root.
func findOriginalGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ModFileOverlay creates a temporary go.mod overlay for instrumented code.
//
// When instrumenting code outside the ubsan project, we need to ensure it
// can import our runtime. This creates a go.mod overlay that replaces the
// remote import with a local path.
//
// It also preserves replace directives from the original project's go.mod,
// converting relative paths to absolute paths (since the temp directory
// has a different working directory).
//
// Returns the overlay path, or "" when the published package should be
// fetched instead.
func ModFileOverlay(tempDir, sourceDir string) (string, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		// Not in development mode - use published package.
		//nolint:nilerr // Error indicates published mode, not a failure
		return "", nil
	}

	var content strings.Builder
	content.WriteString("module instrumented\n\n")
	content.WriteString("go 1.24\n\n")
	content.WriteString("require github.com/kolkov/ubsan v0.0.0\n\n")
	content.WriteString(fmt.Sprintf("replace github.com/kolkov/ubsan => %s\n", projectRoot))

	// Copy replace directives from the project being instrumented so its
	// local modules still resolve from the temp workspace.
	if sourceDir != "" {
		originalGoMod := findOriginalGoMod(sourceDir)
		if originalGoMod != "" {
			replaceDirectives := extractReplaceDirectives(originalGoMod)
			if replaceDirectives != "" {
				content.WriteString("\n// Replace directives from original go.mod:\n")
				content.WriteString(replaceDirectives)
			}
		}
	}

	overlayPath := filepath.Join(tempDir, "go.mod.overlay")
	if err := os.WriteFile(overlayPath, []byte(content.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to create go.mod overlay: %w", err)
	}

	return overlayPath, nil
}

// extractReplaceDirectives reads a go.mod file and extracts replace
// directives, converting relative paths to absolute paths.
func extractReplaceDirectives(goModPath string) string {
	data, err := os.ReadFile(goModPath)
	if err != nil {
		return ""
	}

	modFile, err := modfile.Parse(goModPath, data, nil)
	if err != nil {
		return ""
	}

	if len(modFile.Replace) == 0 {
		return ""
	}

	goModDir := filepath.Dir(goModPath)
	var result strings.Builder

	for _, rep := range modFile.Replace {
		newPath := rep.New.Path

		// Local replacement targets have no version and are filesystem
		// paths; make them absolute so they survive the move.
		if rep.New.Version == "" && isLocalPath(newPath) {
			if !filepath.IsAbs(newPath) {
				absPath, err := filepath.Abs(filepath.Join(goModDir, newPath))
				if err == nil {
					newPath = absPath
				}
			}
		}

		if rep.Old.Version != "" {
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s %s => %s %s\n",
					rep.Old.Path, rep.Old.Version, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s %s => %s\n",
					rep.Old.Path, rep.Old.Version, newPath))
			}
		} else {
			if rep.New.Version != "" {
				result.WriteString(fmt.Sprintf("replace %s => %s %s\n",
					rep.Old.Path, newPath, rep.New.Version))
			} else {
				result.WriteString(fmt.Sprintf("replace %s => %s\n",
					rep.Old.Path, newPath))
			}
		}
	}

	return result.String()
}

// isLocalPath checks if a path is a local filesystem path (not a module
// path).
//
// Local paths start with ./, ../, /, or a drive letter on Windows.
func isLocalPath(path string) bool {
	if strings.HasPrefix(path, "./") || strings.HasPrefix(path, "../") {
		return true
	}
	if filepath.IsAbs(path) {
		return true
	}
	// Windows drive letter check (e.g., C:\)
	if len(path) >= 2 && path[1] == ':' {
		return true
	}
	// A separator but no dots looks like a relative subdirectory
	// ("subdir/module") rather than a module path ("example.com/mod").
	if strings.ContainsAny(path, `/\`) && !strings.Contains(path, ".") {
		return true
	}
	return false
}
