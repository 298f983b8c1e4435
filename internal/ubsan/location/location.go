// Package location defines the per-call-site records referenced by every
// undefined-behavior check.
//
// Each instrumented check site owns exactly one SourceLocation for the
// lifetime of the program. The runtime never copies or frees these records;
// it holds a pointer for the duration of a single handler call. The only
// mutable state in the whole record is a single bit stolen from the column
// field, used to guarantee at-most-once reporting per site.
package location

import "sync/atomic"

// ReportedFlag is the report-state bit packed into the most significant bit
// of the column field. Once set it is never cleared for the lifetime of the
// process. The remaining 31 bits hold the real column number and are
// immutable after the record is created.
const ReportedFlag uint32 = 1 << 31

// SourceLocation identifies one instrumented check site: file, line and
// column, plus the reported bit packed into column.
//
// Concurrency: any number of goroutines may invoke the handler for the same
// site at the same time. All access to column goes through sync/atomic; the
// record contains no locks and MarkReported never allocates or blocks.
type SourceLocation struct {
	file   string // Source file path. Immutable.
	line   uint32 // 1-indexed line. Immutable.
	column uint32 // 1-indexed column in bits 0-30, ReportedFlag in bit 31.
}

// At constructs a SourceLocation value for embedding in a check-site payload.
//
// The column must fit in 31 bits; callers constructing locations from parsed
// source positions are expected to have range-checked the value.
func At(file string, line, column uint32) SourceLocation {
	return SourceLocation{
		file:   file,
		line:   line,
		column: column &^ ReportedFlag,
	}
}

// New allocates a SourceLocation. Used by tests and by callers that hand
// out bare location pointers rather than full payloads.
func New(file string, line, column uint32) *SourceLocation {
	loc := At(file, line, column)
	return &loc
}

// File returns the source file path.
func (l *SourceLocation) File() string { return l.file }

// Line returns the 1-indexed line number.
func (l *SourceLocation) Line() uint32 { return l.line }

// Column returns the 1-indexed column number with the reported bit masked
// out. Safe to call concurrently with MarkReported.
func (l *SourceLocation) Column() uint32 {
	return atomic.LoadUint32(&l.column) &^ ReportedFlag
}

// Reported returns whether this site has already been reported.
func (l *SourceLocation) Reported() bool {
	return atomic.LoadUint32(&l.column)&ReportedFlag != 0
}

// MarkReported atomically sets the reported bit and returns whether it was
// already set before this call.
//
// This is the dedup guard: across any number of concurrent and sequential
// calls for one site, exactly one caller observes false. That caller owns
// the emission of the diagnostic; everyone else stays silent.
//
// Algorithm:
//  1. Load column. If the bit is set, someone already won: return true.
//  2. CAS column -> column|ReportedFlag. Success means we won: return false.
//  3. CAS failure means column changed under us. The reported bit is the
//     only bit that ever transitions, so the next load observes it set and
//     the loop exits on the first branch.
//
// The loop therefore runs at most twice. No allocation, no locks, no
// recursion: this function is safe to reach from inside the emission path
// itself should the diagnostic sink re-trigger an instrumented check.
func (l *SourceLocation) MarkReported() bool {
	for {
		col := atomic.LoadUint32(&l.column)
		if col&ReportedFlag != 0 {
			return true
		}
		if atomic.CompareAndSwapUint32(&l.column, col, col|ReportedFlag) {
			return false
		}
	}
}
