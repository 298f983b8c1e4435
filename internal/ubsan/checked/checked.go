// Package checked implements the arithmetic, shift and index checks that
// instrumented Go code calls in place of the raw operators.
//
// Each function takes the operands plus a pointer to the static check-site
// payload the instrumentation tool generated for that expression. On a
// violation it fires the matching dispatch entry, then produces the
// two's-complement (or clamped) result so execution can continue when the
// abort switch is off. On the happy path the cost is a couple of compares.
package checked

import (
	"math"
	"math/bits"

	"github.com/kolkov/ubsan/internal/ubsan/api"
	"github.com/kolkov/ubsan/internal/ubsan/location"
)

// AddInt returns lhs + rhs, reporting signed overflow.
func AddInt(lhs, rhs int, data *location.OverflowData) int {
	if (rhs > 0 && lhs > math.MaxInt-rhs) || (rhs < 0 && lhs < math.MinInt-rhs) {
		api.HandleAddOverflow(data, uintptr(lhs), uintptr(rhs))
	}
	return lhs + rhs
}

// SubInt returns lhs - rhs, reporting signed overflow.
func SubInt(lhs, rhs int, data *location.OverflowData) int {
	if (rhs > 0 && lhs < math.MinInt+rhs) || (rhs < 0 && lhs > math.MaxInt+rhs) {
		api.HandleSubOverflow(data, uintptr(lhs), uintptr(rhs))
	}
	return lhs - rhs
}

// MulInt returns lhs * rhs, reporting signed overflow.
func MulInt(lhs, rhs int, data *location.OverflowData) int {
	if mulOverflows(lhs, rhs) {
		api.HandleMulOverflow(data, uintptr(lhs), uintptr(rhs))
	}
	return lhs * rhs
}

func mulOverflows(lhs, rhs int) bool {
	if lhs == 0 || rhs == 0 {
		return false
	}
	if (lhs == math.MinInt && rhs == -1) || (rhs == math.MinInt && lhs == -1) {
		return true
	}
	return (lhs*rhs)/rhs != lhs
}

// NegInt returns -v, reporting the one overflowing case.
func NegInt(v int, data *location.OverflowData) int {
	if v == math.MinInt {
		api.HandleNegateOverflow(data, uintptr(v))
	}
	return -v
}

// DivInt returns lhs / rhs, reporting division by zero and MinInt / -1.
// A zero divisor cannot be divided through; the continue-mode result is 0.
func DivInt(lhs, rhs int, data *location.OverflowData) int {
	if rhs == 0 {
		api.HandleDivremOverflow(data, uintptr(lhs), uintptr(rhs))
		return 0
	}
	if lhs == math.MinInt && rhs == -1 {
		api.HandleDivremOverflow(data, uintptr(lhs), uintptr(rhs))
		return lhs // Wrapped quotient.
	}
	return lhs / rhs
}

// RemInt returns lhs % rhs, reporting the same cases as DivInt.
func RemInt(lhs, rhs int, data *location.OverflowData) int {
	if rhs == 0 {
		api.HandleDivremOverflow(data, uintptr(lhs), uintptr(rhs))
		return 0
	}
	if lhs == math.MinInt && rhs == -1 {
		api.HandleDivremOverflow(data, uintptr(lhs), uintptr(rhs))
		return 0
	}
	return lhs % rhs
}

// ShlInt returns lhs << rhs, reporting shift amounts outside [0, bit width).
// An out-of-range amount cannot be executed; the continue-mode result is 0.
func ShlInt(lhs, rhs int, data *location.ShiftOutOfBoundsData) int {
	if rhs < 0 || rhs >= bits.UintSize {
		api.HandleShiftOutOfBounds(data, uintptr(lhs), uintptr(rhs))
		return 0
	}
	return lhs << uint(rhs)
}

// ShrInt returns lhs >> rhs, reporting shift amounts outside [0, bit width).
func ShrInt(lhs, rhs int, data *location.ShiftOutOfBoundsData) int {
	if rhs < 0 || rhs >= bits.UintSize {
		api.HandleShiftOutOfBounds(data, uintptr(lhs), uintptr(rhs))
		return 0
	}
	return lhs >> uint(rhs)
}

// Index validates index i against length n and returns an index that is in
// bounds whenever n > 0. Continue mode clamps to the nearest valid index;
// an empty container has none, so Go's own bounds check still fires there.
func Index(i, n int, data *location.OutOfBoundsData) int {
	if i >= 0 && i < n {
		return i
	}
	api.HandleOutOfBounds(data, uintptr(i))
	if i < 0 || n == 0 {
		return 0
	}
	return n - 1
}
