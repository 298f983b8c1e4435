// Package main implements the ubsan CLI tool.
//
// The ubsan tool provides undefined-behavior checking for Go programs
// without a custom toolchain or CGO. It works by:
//
//  1. Parsing Go source files using go/ast
//  2. Rewriting checked expressions (arithmetic, shifts, indexing) into
//     calls to the Pure-Go UBSan runtime
//  3. Generating a static check-site table per file
//  4. Building/running the instrumented code
//
// Usage:
//
//	ubsan build main.go     # Build with UB checks
//	ubsan run main.go       # Run with UB checks
//
// The tool is a drop-in replacement for `go build` and `go run` when
// undefined-behavior checking is needed.
//
// This is the CLI entry point for the standalone ubsan tool.
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "build":
		buildCommand(os.Args[2:])
	case "run":
		runCommand(os.Args[2:])
	case "version", "--version", "-v":
		fmt.Printf("ubsan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ubsan - Pure-Go Undefined Behavior Sanitizer Tool

USAGE:
    ubsan <command> [arguments]

COMMANDS:
    build      Build Go program with UB checks
    run        Run Go program with UB checks
    version    Show version information
    help       Show this help message

EXAMPLES:
    # Build a program with UB checks
    ubsan build -o myapp main.go

    # Run a program with UB checks
    ubsan run main.go --flag=value

    # Keep running past policy-fatal traps (reports only)
    #   put "abort = false" under [runtime] in ubsan.toml

CONFIGURATION:
    An optional ubsan.toml next to the sources controls which checks are
    inserted and the runtime abort policy:

        [checks]
        arithmetic = true
        division   = true
        shifts     = true
        bounds     = true

        [runtime]
        abort = true

ABOUT:
    ubsan is a standalone tool that provides undefined-behavior checking
    for Go programs without CGO or a custom toolchain. It rewrites checked
    expressions at the AST level into calls to the Pure-Go UBSan runtime,
    which reports each faulting source location exactly once and enforces
    the configured abort policy.

FOR MORE INFORMATION:
    Repository: https://github.com/kolkov/ubsan
    Documentation: https://github.com/kolkov/ubsan/blob/main/README.md
    Issues: https://github.com/kolkov/ubsan/issues

`)
}

// buildCommand is implemented in build.go
// runCommand is implemented in run.go
