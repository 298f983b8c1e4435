// visitor.go implements the expression rewriter.
//
// The rewriter is an explicit recursive walk over declarations, statements
// and expressions. Expression slots are rewritten bottom-up: operands
// first, then the enclosing expression, so nested checked expressions each
// get their own site:
//
//	a + b*c  →  ubsan.AddInt(a, ubsan.MulInt(b, c, &ubsanSite_main_0), &ubsanSite_main_1)
//
// Known MVP limitations (all fail loudly at compile time of the
// instrumented build, never silently):
//   - Operand types are not resolved; arithmetic on floats or strings that
//     reaches the rewriter produces an ill-typed call.
//   - Index checks assume a linear container (array, slice, string); maps
//     and generic type instantiations are partially filtered by syntactic
//     heuristics only.
package instrument

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"fortio.org/safecast"
)

// siteKind selects the payload shape generated for a check site.
type siteKind int

const (
	siteOverflow siteKind = iota // OverflowData: + - * negate / %
	siteShift                    // ShiftOutOfBoundsData: << >>
	siteBounds                   // OutOfBoundsData: index expressions
)

// site is one recorded check site. Rendered into the generated static
// table by renderRuntimeBlock.
type site struct {
	kind siteKind
	file string
	line uint32
	col  uint32
}

// rewriter carries the per-file instrumentation state.
type rewriter struct {
	fset   *token.FileSet
	opts   Options
	prefix string // Per-file site-variable prefix.
	sites  []site
	stats  Stats
	err    error
}

func newRewriter(fset *token.FileSet, opts Options, prefix string) *rewriter {
	return &rewriter{fset: fset, opts: opts, prefix: prefix}
}

// file walks every top-level declaration.
func (r *rewriter) file(f *ast.File) {
	for _, decl := range f.Decls {
		r.decl(decl)
	}
}

// decl walks function bodies and var initializers. Constant declarations
// must remain constant expressions and type declarations carry no runtime
// code, so both are left alone.
func (r *rewriter) decl(d ast.Decl) {
	switch d := d.(type) {
	case *ast.FuncDecl:
		r.block(d.Body)
	case *ast.GenDecl:
		if d.Tok != token.VAR {
			return
		}
		for _, spec := range d.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, v := range vs.Values {
				vs.Values[i] = r.expr(v)
			}
		}
	}
}

func (r *rewriter) block(b *ast.BlockStmt) {
	if b == nil {
		return
	}
	for _, s := range b.List {
		r.stmt(s)
	}
}

// stmt rewrites the expression slots of a statement and recurses into
// nested statements.
//
//nolint:gocyclo // One case per statement kind; splitting would obscure the walk.
func (r *rewriter) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		for i, e := range s.Rhs {
			s.Rhs[i] = r.expr(e)
		}
		// LHS slots get index checks on stores: arr[i] = v.
		for i, e := range s.Lhs {
			s.Lhs[i] = r.expr(e)
		}
	case *ast.ExprStmt:
		s.X = r.expr(s.X)
	case *ast.ReturnStmt:
		for i, e := range s.Results {
			s.Results[i] = r.expr(e)
		}
	case *ast.IfStmt:
		if s.Init != nil {
			r.stmt(s.Init)
		}
		s.Cond = r.expr(s.Cond)
		r.block(s.Body)
		if s.Else != nil {
			r.stmt(s.Else)
		}
	case *ast.ForStmt:
		if s.Init != nil {
			r.stmt(s.Init)
		}
		if s.Cond != nil {
			s.Cond = r.expr(s.Cond)
		}
		if s.Post != nil {
			r.stmt(s.Post)
		}
		r.block(s.Body)
	case *ast.RangeStmt:
		s.X = r.expr(s.X)
		r.block(s.Body)
	case *ast.SwitchStmt:
		if s.Init != nil {
			r.stmt(s.Init)
		}
		if s.Tag != nil {
			s.Tag = r.expr(s.Tag)
		}
		r.block(s.Body)
	case *ast.TypeSwitchStmt:
		if s.Init != nil {
			r.stmt(s.Init)
		}
		r.stmt(s.Assign)
		// Case expressions here are types, not values; rewriting a
		// generic instantiation like List[int] would corrupt the type
		// syntax. Only the clause bodies carry code.
		for _, c := range s.Body.List {
			cc, ok := c.(*ast.CaseClause)
			if !ok {
				continue
			}
			for _, st := range cc.Body {
				r.stmt(st)
			}
		}
	case *ast.CaseClause:
		for i, e := range s.List {
			s.List[i] = r.expr(e)
		}
		for _, st := range s.Body {
			r.stmt(st)
		}
	case *ast.SelectStmt:
		r.block(s.Body)
	case *ast.CommClause:
		if s.Comm != nil {
			r.stmt(s.Comm)
		}
		for _, st := range s.Body {
			r.stmt(st)
		}
	case *ast.BlockStmt:
		r.block(s)
	case *ast.DeclStmt:
		r.decl(s.Decl)
	case *ast.SendStmt:
		s.Chan = r.expr(s.Chan)
		s.Value = r.expr(s.Value)
	case *ast.GoStmt:
		r.callExpr(s.Call)
	case *ast.DeferStmt:
		r.callExpr(s.Call)
	case *ast.LabeledStmt:
		r.stmt(s.Stmt)
	case *ast.IncDecStmt:
		s.X = r.expr(s.X)
	}
}

// expr rewrites an expression tree bottom-up and returns the replacement.
func (r *rewriter) expr(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.BinaryExpr:
		e.X = r.expr(e.X)
		e.Y = r.expr(e.Y)
		return r.binary(e)
	case *ast.UnaryExpr:
		e.X = r.expr(e.X)
		if e.Op == token.SUB {
			return r.negate(e)
		}
		return e
	case *ast.ParenExpr:
		e.X = r.expr(e.X)
		return e
	case *ast.CallExpr:
		r.callExpr(e)
		return e
	case *ast.IndexExpr:
		e.X = r.expr(e.X)
		e.Index = r.expr(e.Index)
		return r.index(e)
	case *ast.SliceExpr:
		e.X = r.expr(e.X)
		if e.Low != nil {
			e.Low = r.expr(e.Low)
		}
		if e.High != nil {
			e.High = r.expr(e.High)
		}
		if e.Max != nil {
			e.Max = r.expr(e.Max)
		}
		return e
	case *ast.StarExpr:
		e.X = r.expr(e.X)
		return e
	case *ast.SelectorExpr:
		e.X = r.expr(e.X)
		return e
	case *ast.TypeAssertExpr:
		e.X = r.expr(e.X)
		return e
	case *ast.CompositeLit:
		for i, el := range e.Elts {
			e.Elts[i] = r.expr(el)
		}
		return e
	case *ast.KeyValueExpr:
		// Keys may be struct field names; only values are code.
		e.Value = r.expr(e.Value)
		return e
	case *ast.FuncLit:
		r.block(e.Body)
		return e
	default:
		return e
	}
}

// callExpr rewrites a call's arguments and, where safe, its callee.
// A callee that is itself an IndexExpr is a generic instantiation
// (F[int](...)), not a container access, and is left untouched.
func (r *rewriter) callExpr(e *ast.CallExpr) {
	switch fun := e.Fun.(type) {
	case *ast.SelectorExpr, *ast.ParenExpr, *ast.FuncLit:
		e.Fun = r.expr(fun)
	}
	for i, a := range e.Args {
		e.Args[i] = r.expr(a)
	}
}

// binary rewrites a checked binary operator into a runtime call.
func (r *rewriter) binary(e *ast.BinaryExpr) ast.Expr {
	var (
		fn      string
		kind    siteKind
		enabled bool
		counter *int
	)

	switch e.Op {
	case token.ADD:
		fn, kind, enabled, counter = "AddInt", siteOverflow, r.opts.Arithmetic, &r.stats.ArithmeticChecks
	case token.SUB:
		fn, kind, enabled, counter = "SubInt", siteOverflow, r.opts.Arithmetic, &r.stats.ArithmeticChecks
	case token.MUL:
		fn, kind, enabled, counter = "MulInt", siteOverflow, r.opts.Arithmetic, &r.stats.ArithmeticChecks
	case token.QUO:
		fn, kind, enabled, counter = "DivInt", siteOverflow, r.opts.Division, &r.stats.DivisionChecks
	case token.REM:
		fn, kind, enabled, counter = "RemInt", siteOverflow, r.opts.Division, &r.stats.DivisionChecks
	case token.SHL:
		fn, kind, enabled, counter = "ShlInt", siteShift, r.opts.Shifts, &r.stats.ShiftChecks
	case token.SHR:
		fn, kind, enabled, counter = "ShrInt", siteShift, r.opts.Shifts, &r.stats.ShiftChecks
	default:
		return e
	}

	if !enabled {
		return e
	}

	// Constant expressions are folded by the compiler and can never trap
	// at runtime. Rewriting them would also break constant contexts.
	if isLiteral(e.X) && isLiteral(e.Y) {
		r.stats.LiteralsSkipped++
		return e
	}

	// Non-integer literal operands mean the expression is not int
	// arithmetic (string concat, float math); leave it alone.
	if isNonIntLiteral(e.X) || isNonIntLiteral(e.Y) {
		return e
	}

	// A shift by a literal amount inside the operand width is provably
	// in range; no site needed.
	if kind == siteShift && shiftAmountInRange(e.Y) {
		r.stats.LiteralsSkipped++
		return e
	}

	name, ok := r.addSite(kind, e.OpPos)
	if !ok {
		return e
	}
	*counter++
	return checkCall(fn, name, e.X, e.Y)
}

// negate rewrites a non-constant unary minus into a NegInt call.
func (r *rewriter) negate(e *ast.UnaryExpr) ast.Expr {
	if !r.opts.Arithmetic {
		return e
	}
	if isLiteral(e.X) {
		// Constant negation: -5.
		r.stats.LiteralsSkipped++
		return e
	}
	if isNonIntLiteral(e.X) {
		return e
	}

	name, ok := r.addSite(siteOverflow, e.Pos())
	if !ok {
		return e
	}
	r.stats.ArithmeticChecks++
	return checkCall("NegInt", name, e.X)
}

// index wraps the index operand of a container access in a bounds check:
//
//	arr[i]  →  arr[ubsan.Index(i, len(arr), &ubsanSiteN)]
//
// The container expression appears a second time inside len(), so only
// side-effect-free references (identifiers and selector chains) qualify.
func (r *rewriter) index(e *ast.IndexExpr) ast.Expr {
	if !r.opts.Bounds {
		return e
	}
	if !isSimpleRef(e.X) {
		return e
	}
	if isLiteral(e.Index) {
		// Constant indexes into arrays are checked by the compiler.
		r.stats.LiteralsSkipped++
		return e
	}

	name, ok := r.addSite(siteBounds, e.Index.Pos())
	if !ok {
		return e
	}
	r.stats.BoundsChecks++

	lenCall := &ast.CallExpr{
		Fun:  ast.NewIdent("len"),
		Args: []ast.Expr{cloneRef(e.X)},
	}
	e.Index = checkCall("Index", name, e.Index, lenCall)
	return e
}

// addSite records a check site at pos and returns its generated variable
// name. Line and column are narrowed with safecast; a position that does
// not fit in 31 bits aborts instrumentation of the file.
func (r *rewriter) addSite(kind siteKind, pos token.Pos) (string, bool) {
	p := r.fset.Position(pos)

	line, err := safecast.Conv[uint32](p.Line)
	if err != nil {
		r.err = NewInstrumentationError(r.fset, pos, "line number out of range")
		return "", false
	}
	col, err := safecast.Conv[uint32](p.Column)
	if err != nil || col >= 1<<31 {
		r.err = NewInstrumentationError(r.fset, pos, "column number out of range")
		return "", false
	}

	name := fmt.Sprintf("%s%d", r.prefix, len(r.sites))
	r.sites = append(r.sites, site{kind: kind, file: p.Filename, line: line, col: col})
	return name, true
}

// checkCall builds ubsan.<fn>(args..., &<siteName>).
func checkCall(fn, siteName string, args ...ast.Expr) *ast.CallExpr {
	callArgs := make([]ast.Expr, 0, len(args)+1)
	callArgs = append(callArgs, args...)
	callArgs = append(callArgs, &ast.UnaryExpr{
		Op: token.AND,
		X:  ast.NewIdent(siteName),
	})
	return &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   ast.NewIdent(RuntimeAlias),
			Sel: ast.NewIdent(fn),
		},
		Args: callArgs,
	}
}

// isLiteral reports whether e is a basic literal, unwrapping parens.
func isLiteral(e ast.Expr) bool {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			break
		}
		e = p.X
	}
	_, ok := e.(*ast.BasicLit)
	return ok
}

// isNonIntLiteral reports whether e is a literal of a non-integer kind
// (string, float, rune, imaginary).
func isNonIntLiteral(e ast.Expr) bool {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			break
		}
		e = p.X
	}
	lit, ok := e.(*ast.BasicLit)
	return ok && lit.Kind != token.INT
}

// shiftAmountInRange reports whether e is an integer literal shift amount
// provably inside the 64-bit operand width.
func shiftAmountInRange(e ast.Expr) bool {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return false
	}
	n, err := strconv.ParseInt(lit.Value, 0, 64)
	return err == nil && n >= 0 && n < 64
}

// isSimpleRef reports whether e can be re-evaluated without side effects:
// an identifier or a selector chain of identifiers.
func isSimpleRef(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name != "_"
	case *ast.SelectorExpr:
		return isSimpleRef(e.X)
	default:
		return false
	}
}

// cloneRef duplicates a simple reference so the instrumented tree does not
// share nodes between the index slot and the len() argument.
func cloneRef(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.Ident:
		return ast.NewIdent(e.Name)
	case *ast.SelectorExpr:
		return &ast.SelectorExpr{
			X:   cloneRef(e.X),
			Sel: ast.NewIdent(e.Sel.Name),
		}
	default:
		// isSimpleRef gates the callers; unreachable in practice.
		return e
	}
}
