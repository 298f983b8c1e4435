// inject.go adds the runtime import and renders the generated runtime
// block (check-site table + init call) appended to instrumented files.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

// injectImport adds the runtime import to the AST file:
//
//	import ubsan "github.com/kolkov/ubsan/ubsan"
//
// Handled cases:
//   - No imports section: creates a new import block
//   - Import already present (any alias): skips injection
//   - Single import: converts to grouped imports
//
// Thread Safety: NOT thread-safe (modifies AST in place).
//
//nolint:unparam // error return is for future error handling if needed
func injectImport(file *ast.File) error {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			// Shouldn't happen for valid Go files; skip gracefully.
			continue
		}
		if path == RuntimeImportPath {
			return nil
		}
	}

	// Find the existing import block, if any.
	var importDecl *ast.GenDecl
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if ok && genDecl.Tok == token.IMPORT {
			importDecl = genDecl
			break
		}
	}

	if importDecl == nil {
		importDecl = &ast.GenDecl{
			Tok:    token.IMPORT,
			Lparen: 1, // Non-zero Lparen means grouped import: import (...)
		}
		file.Decls = append([]ast.Decl{importDecl}, file.Decls...)
	}

	spec := &ast.ImportSpec{
		Name: &ast.Ident{Name: RuntimeAlias},
		Path: &ast.BasicLit{
			Kind:  token.STRING,
			Value: strconv.Quote(RuntimeImportPath),
		},
	}
	importDecl.Specs = append(importDecl.Specs, spec)

	if importDecl.Lparen == 0 && len(importDecl.Specs) > 1 {
		importDecl.Lparen = 1
	}

	file.Imports = append(file.Imports, spec)
	return nil
}

// renderRuntimeBlock renders the static check-site table and the runtime
// init call appended after the printed AST. Generating this block as text
// keeps the rewritten AST free of synthetic declarations with fake
// positions.
func renderRuntimeBlock(sites []site, prefix string, opts Options) string {
	var b strings.Builder

	if len(sites) > 0 {
		b.WriteString("\n// undefined-behavior check sites (added by ubsan tool)\nvar (\n")
		for i, s := range sites {
			fmt.Fprintf(&b, "\t%s%d = %s\n", prefix, i, renderSite(s))
		}
		b.WriteString(")\n")
	}

	fmt.Fprintf(&b, `
// init configures the UBSan runtime (added by ubsan tool)
func init() {
	%s.Init(%s.Config{Continue: %t})
}
`, RuntimeAlias, RuntimeAlias, !opts.Abort)

	return b.String()
}

// renderSite renders one payload literal for the generated table.
func renderSite(s site) string {
	loc := fmt.Sprintf("%s.Loc(%q, %d, %d)", RuntimeAlias, s.file, s.line, s.col)
	switch s.kind {
	case siteShift:
		return fmt.Sprintf("%s.ShiftOutOfBoundsData{Loc: %s, LHSType: %s.IntDesc, RHSType: %s.IntDesc}",
			RuntimeAlias, loc, RuntimeAlias, RuntimeAlias)
	case siteBounds:
		return fmt.Sprintf("%s.OutOfBoundsData{Loc: %s, IndexType: %s.IntDesc}",
			RuntimeAlias, loc, RuntimeAlias)
	default:
		return fmt.Sprintf("%s.OverflowData{Loc: %s, Type: %s.IntDesc}",
			RuntimeAlias, loc, RuntimeAlias)
	}
}
