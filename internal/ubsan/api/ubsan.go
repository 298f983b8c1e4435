// Package api provides the dispatch entry points for the Pure-Go UBSan
// runtime.
//
// There is one entry per undefined-behavior category, mirroring the
// callback surface the clang/gcc -fsanitize=undefined instrumentation
// expects: a pointer to a category-specific, location-prefixed payload plus
// auxiliary operands. The auxiliary operands (faulting pointer, operand
// values, argument index) are accepted for ABI parity and ignored; only the
// embedded SourceLocation drives behavior.
//
// Every entry classifies itself as always-fatal or policy-fatal and
// delegates to the shared handler. The two always-fatal entries,
// HandleBuiltinUnreachable and HandleMissingReturn, never return: code is
// generated on the assumption that control cannot proceed past them.
//
// Entries never allocate, never block on anything but the sink mutex, and
// tolerate re-entry from the emission path through the per-site dedup
// guard.
package api

import (
	"io"
	"sync/atomic"

	"github.com/kolkov/ubsan/internal/ubsan/handler"
	"github.com/kolkov/ubsan/internal/ubsan/location"
	"github.com/kolkov/ubsan/internal/ubsan/terminate"
)

// ABI symbol names for each category. The shared handler strips the common
// prefix to form the diagnostic label, so "__ubsan_handle_add_overflow"
// reports as "add_overflow".
const (
	symTypeMismatch        = "__ubsan_handle_type_mismatch"
	symTypeMismatchV1      = "__ubsan_handle_type_mismatch_v1"
	symAddOverflow         = "__ubsan_handle_add_overflow"
	symSubOverflow         = "__ubsan_handle_sub_overflow"
	symMulOverflow         = "__ubsan_handle_mul_overflow"
	symNegateOverflow      = "__ubsan_handle_negate_overflow"
	symDivremOverflow      = "__ubsan_handle_divrem_overflow"
	symPointerOverflow     = "__ubsan_handle_pointer_overflow"
	symShiftOutOfBounds    = "__ubsan_handle_shift_out_of_bounds"
	symOutOfBounds         = "__ubsan_handle_out_of_bounds"
	symBuiltinUnreachable  = "__ubsan_handle_builtin_unreachable"
	symMissingReturn       = "__ubsan_handle_missing_return"
	symVLABoundNotPositive = "__ubsan_handle_vla_bound_not_positive"
	symLoadInvalidValue    = "__ubsan_handle_load_invalid_value"
	symNonnullArg          = "__ubsan_handle_nonnull_arg"
	symInvalidBuiltin      = "__ubsan_handle_invalid_builtin"
)

// Global runtime state.
//
// The handler is swapped exactly once, by the first Init call; before that
// a default handler (stderr sink, kernel terminator, abort enabled) is in
// place so traps fired before initialization are never lost.
var (
	cur      atomic.Pointer[handler.Handler]
	initDone atomic.Bool
)

func init() {
	cur.Store(handler.New(nil, nil, true))
}

// Config carries the host-supplied runtime configuration.
type Config struct {
	// Output is the diagnostic sink. Defaults to os.Stderr.
	Output io.Writer

	// Context selects the termination capability for this execution
	// environment. Defaults to the kernel context.
	Context terminate.Context

	// Terminator overrides Context with an explicit capability when
	// non-nil. Intended for hosts with their own abort mechanism.
	Terminator terminate.Terminator

	// Continue disables the abort policy for policy-fatal categories:
	// report once, then let the faulting code keep running. Always-fatal
	// categories terminate regardless. The zero value keeps the default
	// abort-on-error behavior.
	Continue bool
}

// Init installs the host configuration. The first call wins; later calls
// are no-ops, matching the set-once lifecycle of the abort policy switch.
func Init(cfg Config) {
	if !initDone.CompareAndSwap(false, true) {
		return
	}
	t := cfg.Terminator
	if t == nil {
		t = terminate.ForContext(cfg.Context)
	}
	cur.Store(handler.New(cfg.Output, t, !cfg.Continue))
}

// Fini writes a run summary to the diagnostic sink. Safe to call multiple
// times; a clean run stays silent.
func Fini() {
	cur.Load().WriteSummary()
}

// Reports returns the number of unique diagnostics emitted so far.
func Reports() uint64 {
	return cur.Load().Reports()
}

// HandleTypeMismatch is the legacy type-mismatch entry. ptr is the faulting
// pointer value; accepted and ignored.
func HandleTypeMismatch(data *location.TypeMismatchData, ptr uintptr) {
	_ = ptr
	cur.Load().Report(symTypeMismatch, &data.Loc, true)
}

// HandleTypeMismatchV1 is the versioned type-mismatch entry. It differs
// from HandleTypeMismatch only in payload shape; both funnel into the same
// shared handler.
func HandleTypeMismatchV1(data *location.TypeMismatchDataV1, ptr uintptr) {
	_ = ptr
	cur.Load().Report(symTypeMismatchV1, &data.Loc, true)
}

// HandleAddOverflow reports a signed addition overflow.
func HandleAddOverflow(data *location.OverflowData, lhs, rhs uintptr) {
	_, _ = lhs, rhs
	cur.Load().Report(symAddOverflow, &data.Loc, true)
}

// HandleSubOverflow reports a signed subtraction overflow.
func HandleSubOverflow(data *location.OverflowData, lhs, rhs uintptr) {
	_, _ = lhs, rhs
	cur.Load().Report(symSubOverflow, &data.Loc, true)
}

// HandleMulOverflow reports a signed multiplication overflow.
func HandleMulOverflow(data *location.OverflowData, lhs, rhs uintptr) {
	_, _ = lhs, rhs
	cur.Load().Report(symMulOverflow, &data.Loc, true)
}

// HandleNegateOverflow reports a signed negation overflow.
func HandleNegateOverflow(data *location.OverflowData, oldVal uintptr) {
	_ = oldVal
	cur.Load().Report(symNegateOverflow, &data.Loc, true)
}

// HandleDivremOverflow reports division by zero or INT_MIN / -1.
func HandleDivremOverflow(data *location.OverflowData, lhs, rhs uintptr) {
	_, _ = lhs, rhs
	cur.Load().Report(symDivremOverflow, &data.Loc, true)
}

// HandlePointerOverflow reports pointer arithmetic that wrapped.
func HandlePointerOverflow(data *location.OverflowData, base, result uintptr) {
	_, _ = base, result
	cur.Load().Report(symPointerOverflow, &data.Loc, true)
}

// HandleShiftOutOfBounds reports a shift amount outside the operand width.
func HandleShiftOutOfBounds(data *location.ShiftOutOfBoundsData, lhs, rhs uintptr) {
	_, _ = lhs, rhs
	cur.Load().Report(symShiftOutOfBounds, &data.Loc, true)
}

// HandleOutOfBounds reports an array index outside its bounds.
func HandleOutOfBounds(data *location.OutOfBoundsData, index uintptr) {
	_ = index
	cur.Load().Report(symOutOfBounds, &data.Loc, true)
}

// HandleBuiltinUnreachable reports control flow reaching a point the
// compiler proved unreachable. Always fatal: the report is deduplicated,
// the termination is not. This function never returns.
func HandleBuiltinUnreachable(data *location.UnreachableData) {
	h := cur.Load()
	h.Report(symBuiltinUnreachable, &data.Loc, false)
	h.Terminate()
}

// HandleMissingReturn reports a value-returning function that fell off its
// end. Always fatal; never returns.
func HandleMissingReturn(data *location.UnreachableData) {
	h := cur.Load()
	h.Report(symMissingReturn, &data.Loc, false)
	h.Terminate()
}

// HandleVLABoundNotPositive reports a variable-length-array bound <= 0.
func HandleVLABoundNotPositive(data *location.VLABoundData, bound uintptr) {
	_ = bound
	cur.Load().Report(symVLABoundNotPositive, &data.Loc, true)
}

// HandleLoadInvalidValue reports a load producing a value invalid for its
// type (bad bool, out-of-range enum).
func HandleLoadInvalidValue(data *location.InvalidValueData, val uintptr) {
	_ = val
	cur.Load().Report(symLoadInvalidValue, &data.Loc, true)
}

// HandleNonnullArg reports a null argument passed to a parameter declared
// nonnull. Older toolchains pass the 1-indexed argument number; it carries
// no weight here and is ignored.
func HandleNonnullArg(data *location.NonnullArgData, argNo int) {
	_ = argNo
	cur.Load().Report(symNonnullArg, &data.Loc, true)
}

// HandleInvalidBuiltin reports a builtin invoked with an invalid operand
// (ctz/clz of zero).
func HandleInvalidBuiltin(data *location.InvalidBuiltinData) {
	cur.Load().Report(symInvalidBuiltin, &data.Loc, true)
}
