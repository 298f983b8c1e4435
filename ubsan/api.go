// Package ubsan provides the public API for the Pure-Go UBSan runtime.
//
// See doc.go for detailed documentation and examples.
package ubsan

import (
	"github.com/kolkov/ubsan/internal/ubsan/api"
	"github.com/kolkov/ubsan/internal/ubsan/checked"
	"github.com/kolkov/ubsan/internal/ubsan/location"
	"github.com/kolkov/ubsan/internal/ubsan/terminate"
)

// Config carries the host-supplied runtime configuration: diagnostic sink,
// execution context (or an explicit Terminator), and the abort policy.
type Config = api.Config

// Terminator is the execution-context-specific abort capability.
type Terminator = terminate.Terminator

// Context selects one of the known execution contexts.
type Context = terminate.Context

// Known execution contexts for Config.Context.
const (
	ContextKernel = terminate.Kernel
	ContextLoader = terminate.Loader
	ContextTask   = terminate.Task
)

// SourceLocation identifies one instrumented check site.
type SourceLocation = location.SourceLocation

// TypeDescriptor describes a check-site operand type.
type TypeDescriptor = location.TypeDescriptor

// Check-site payload shapes. The ubsan tool generates one static payload
// per rewritten expression; the Loc field carries the dedup state.
type (
	TypeMismatchData     = location.TypeMismatchData
	TypeMismatchDataV1   = location.TypeMismatchDataV1
	OverflowData         = location.OverflowData
	ShiftOutOfBoundsData = location.ShiftOutOfBoundsData
	OutOfBoundsData      = location.OutOfBoundsData
	UnreachableData      = location.UnreachableData
	VLABoundData         = location.VLABoundData
	InvalidValueData     = location.InvalidValueData
	NonnullArgData       = location.NonnullArgData
	InvalidBuiltinData   = location.InvalidBuiltinData
)

// IntDesc describes Go's native int; the tool references it from every
// arithmetic site it generates.
var IntDesc = location.IntDesc

// Init installs the host configuration. The first call wins; later calls
// are no-ops. The ubsan tool injects this call into instrumented programs,
// so manual calls are only needed for hand-instrumented code:
//
//	func main() {
//		ubsan.Init(ubsan.Config{})
//		defer ubsan.Fini()
//		// ... rest of program
//	}
func Init(cfg Config) {
	api.Init(cfg)
}

// Fini writes a run summary to the diagnostic sink. Clean runs stay silent.
func Fini() {
	api.Fini()
}

// Reports returns the number of unique undefined-behavior diagnostics
// emitted so far.
func Reports() uint64 {
	return api.Reports()
}

// Loc constructs a SourceLocation value for a check-site payload literal.
// Generated code is the primary caller:
//
//	var ubsanSite_main_0 = ubsan.OverflowData{Loc: ubsan.Loc("main.go", 10, 6), Type: ubsan.IntDesc}
func Loc(file string, line, column uint32) SourceLocation {
	return location.At(file, line, column)
}

// AddInt returns lhs + rhs, reporting signed overflow against data's site.
func AddInt(lhs, rhs int, data *OverflowData) int {
	return checked.AddInt(lhs, rhs, data)
}

// SubInt returns lhs - rhs, reporting signed overflow.
func SubInt(lhs, rhs int, data *OverflowData) int {
	return checked.SubInt(lhs, rhs, data)
}

// MulInt returns lhs * rhs, reporting signed overflow.
func MulInt(lhs, rhs int, data *OverflowData) int {
	return checked.MulInt(lhs, rhs, data)
}

// NegInt returns -v, reporting negation overflow.
func NegInt(v int, data *OverflowData) int {
	return checked.NegInt(v, data)
}

// DivInt returns lhs / rhs, reporting division by zero and MinInt / -1.
func DivInt(lhs, rhs int, data *OverflowData) int {
	return checked.DivInt(lhs, rhs, data)
}

// RemInt returns lhs % rhs, reporting the same cases as DivInt.
func RemInt(lhs, rhs int, data *OverflowData) int {
	return checked.RemInt(lhs, rhs, data)
}

// ShlInt returns lhs << rhs, reporting out-of-range shift amounts.
func ShlInt(lhs, rhs int, data *ShiftOutOfBoundsData) int {
	return checked.ShlInt(lhs, rhs, data)
}

// ShrInt returns lhs >> rhs, reporting out-of-range shift amounts.
func ShrInt(lhs, rhs int, data *ShiftOutOfBoundsData) int {
	return checked.ShrInt(lhs, rhs, data)
}

// Index validates index i against length n, reporting out-of-bounds access
// and returning a clamped in-bounds index for continue mode.
func Index(i, n int, data *OutOfBoundsData) int {
	return checked.Index(i, n, data)
}
