// Package instrument implements AST-level instrumentation for automatic
// undefined-behavior check insertion.
//
// This package provides the core functionality for the ubsan standalone
// tool. It parses Go source files, walks the AST to find checked
// expressions, and rewrites them into calls to the Pure-Go UBSan runtime.
//
// Algorithm:
//  1. Parse Go source file using go/parser
//  2. Walk statements and rewrite checked expressions in place
//  3. Record one check site (file:line:col) per rewritten expression
//  4. Inject the runtime import
//  5. Generate instrumented code using go/printer, then append the static
//     check-site table and the runtime init call
//
// Example Transformation:
//
//	// INPUT (original code):
//	sum := a + b
//	q := a / b
//
//	// OUTPUT (instrumented code):
//	import ubsan "github.com/kolkov/ubsan/ubsan"
//	sum := ubsan.AddInt(a, b, &ubsanSite_main_0)
//	q := ubsan.DivInt(a, b, &ubsanSite_main_1)
//
//	var (
//		ubsanSite_main_0 = ubsan.OverflowData{Loc: ubsan.Loc("main.go", 3, 8), Type: ubsan.IntDesc}
//		ubsanSite_main_1 = ubsan.OverflowData{Loc: ubsan.Loc("main.go", 4, 6), Type: ubsan.IntDesc}
//	)
//
// MVP scope: operands are assumed to be plain int expressions. The
// rewriter skips constant contexts and literal-only expressions, but it
// does not type-check; instrumenting float or string arithmetic produces a
// compile error in the instrumented build rather than silent corruption.
// TODO: drive operand filtering from go/types so float, sized-integer and
// generic index expressions are skipped instead of rejected by the
// compiler.
//
// Thread Safety: This package is NOT thread-safe on a single file. The
// build command instruments distinct files concurrently, which is safe.
package instrument

import (
	"bytes"
	"fmt"
	"go/parser"
	"go/printer"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// RuntimeImportPath is the import path for the UBSan runtime API.
	// This is injected into instrumented files.
	RuntimeImportPath = "github.com/kolkov/ubsan/ubsan"

	// RuntimeAlias is the local package alias used in instrumented code.
	RuntimeAlias = "ubsan"

	// sitePrefix is the common stem of generated check-site variable
	// names. The full prefix is derived per file (ubsanSite_main_0,
	// ubsanSite_helper_0, ...) because a build flattens every
	// instrumented file into one package directory, where the site
	// tables become package-level declarations sharing a namespace.
	sitePrefix = "ubsanSite"
)

// sitePrefixFor derives the per-file site-variable prefix from the file's
// basename, mapping characters that cannot appear in an identifier to
// underscores.
func sitePrefixFor(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), ".go")
	var b strings.Builder
	for _, r := range base {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return sitePrefix + "_" + b.String() + "_"
}

// Options selects which expression classes are rewritten and the abort
// policy baked into the generated runtime init.
type Options struct {
	Arithmetic bool // + - * and unary negation
	Division   bool // / %
	Shifts     bool // << >>
	Bounds     bool // index expressions
	Abort      bool // runtime abort policy for policy-fatal traps
}

// Result holds the outcome of instrumenting one file.
type Result struct {
	Code  string // Instrumented source code
	Stats Stats  // Instrumentation statistics
}

// Stats counts what the rewriter did to one file.
type Stats struct {
	ArithmeticChecks int // + - * and negation sites
	DivisionChecks   int // / % sites
	ShiftChecks      int // << >> sites
	BoundsChecks     int // index sites
	LiteralsSkipped  int // constant-only expressions left alone
}

// Total returns the number of check sites inserted.
func (s Stats) Total() int {
	return s.ArithmeticChecks + s.DivisionChecks + s.ShiftChecks + s.BoundsChecks
}

// InstrumentFile instruments a single Go source file with UB checks.
//
// This is the main entry point for AST-level instrumentation:
//
//  1. Parse the source file into an AST
//  2. Rewrite checked expressions, recording one site per rewrite
//  3. Inject the runtime import
//  4. Print the modified AST
//  5. Append the check-site table and the runtime init call
//
// src follows go/parser conventions: nil reads from filename, otherwise a
// []byte, string or io.Reader is used directly.
//
// Example:
//
//	result, err := instrument.InstrumentFile("main.go", nil, opts)
//	if err != nil {
//	    log.Fatalf("instrumentation failed: %v", err)
//	}
//	fmt.Printf("%d checks inserted\n", result.Stats.Total())
//
//nolint:revive // InstrumentFile is the standard API naming for this operation
func InstrumentFile(filename string, src interface{}, opts Options) (*Result, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", filename, err)
	}

	// Rewrite checked expressions in place.
	rw := newRewriter(fset, opts, sitePrefixFor(filename))
	rw.file(file)
	if rw.err != nil {
		return nil, fmt.Errorf("failed to instrument AST: %w", rw.err)
	}

	// The runtime import is always needed: even a file with zero sites
	// gets the init call that configures the runtime.
	if err := injectImport(file); err != nil {
		return nil, fmt.Errorf("failed to inject import: %w", err)
	}

	var buf bytes.Buffer
	cfg := &printer.Config{
		Mode:     printer.UseSpaces | printer.TabIndent,
		Tabwidth: 8,
	}
	if err := cfg.Fprint(&buf, fset, file); err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	code := buf.String() + renderRuntimeBlock(rw.sites, rw.prefix, opts)

	return &Result{
		Code:  code,
		Stats: rw.stats,
	}, nil
}
