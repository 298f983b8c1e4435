// Package handler implements the shared undefined-behavior report path.
//
// Every dispatch entry funnels here. The handler consults the per-site
// dedup guard, emits at most one diagnostic line per site, and enforces the
// abort policy: always-fatal categories terminate unconditionally, all
// other categories terminate only while the abort switch is enabled.
//
// The abort switch is process-wide configuration. It is fixed when the
// handler is built and never mutated afterwards; there is deliberately no
// API to flip it at runtime.
package handler

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/kolkov/ubsan/internal/ubsan/location"
	"github.com/kolkov/ubsan/internal/ubsan/terminate"
)

// SymbolPrefix is the toolchain prefix shared by every dispatch entry
// symbol. It is stripped from the symbol to produce the human-readable
// category label in the diagnostic line.
const SymbolPrefix = "__ubsan_handle_"

// Handler owns the diagnostic sink, the termination capability and the
// abort policy switch.
//
// Thread Safety: Report may be called from any number of goroutines
// concurrently, including for the same site, and may be re-entered from
// inside the sink's Write. The dedup guard lives in the site's
// SourceLocation; the handler holds no locks. Each diagnostic is one Write
// call carrying a whole line, so interleaving across sinks that need finer
// serialization is the sink's concern, not the handler's.
type Handler struct {
	out  io.Writer
	term terminate.Terminator

	// abortOnError is the global abort policy: when true, policy-fatal
	// categories terminate after their report. Read-only after New.
	abortOnError bool

	// banner is the "Undefined behavior" prefix, pre-rendered with color
	// when the sink is a terminal.
	banner string

	reports atomic.Uint64
}

// New builds a Handler writing to out and aborting through term.
//
// A nil out defaults to os.Stderr, a nil term to the kernel terminator.
// abortOnError is the process-wide policy switch for the non-always-fatal
// categories.
func New(out io.Writer, term terminate.Terminator, abortOnError bool) *Handler {
	if out == nil {
		out = os.Stderr
	}
	if term == nil {
		term = terminate.ForContext(terminate.Kernel)
	}
	return &Handler{
		out:          out,
		term:         term,
		abortOnError: abortOnError,
		banner:       banner(out),
	}
}

// banner renders the diagnostic prefix, highlighted when out is a tty.
func banner(out io.Writer) string {
	const text = "Undefined behavior"
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return color.New(color.FgRed, color.Bold).Sprint(text)
	}
	return text
}

// Report runs the shared handler path for one triggered check.
//
// symbol is the dispatch entry's ABI symbol name (the SymbolPrefix is
// stripped to form the category label). fatalIfPolicy marks the category as
// policy-fatal: termination happens only while the abort switch is on.
// Always-fatal categories pass false here and terminate at their entry
// point instead, so their termination is never suppressed by a prior
// report for the same site.
//
// If the site was already reported, Report returns immediately: no
// emission, no termination side effect. Exactly one caller per site ever
// gets past the guard, no matter how many race in.
//
// The line is formatted before touching the sink and emitted in a single
// Write with no lock held, so a sink whose Write trips a check at another
// site re-enters Report and runs to completion instead of blocking.
func (h *Handler) Report(symbol string, loc *location.SourceLocation, fatalIfPolicy bool) {
	if loc.MarkReported() {
		return
	}

	label := strings.TrimPrefix(symbol, SymbolPrefix)

	line := fmt.Sprintf("%s %s at %s:%d col %d\n",
		h.banner, label, loc.File(), loc.Line(), loc.Column())
	h.reports.Add(1)
	io.WriteString(h.out, line)

	if fatalIfPolicy && h.abortOnError {
		h.Terminate()
	}
}

// Terminate invokes the termination capability and never returns.
//
// The Terminator interface cannot express "no return", so if an
// implementation does come back, we stall instead of returning into
// instrumented code that was compiled to assume this call is dead.
func (h *Handler) Terminate() {
	h.term.Terminate()
	for {
	}
}

// AbortOnError reports the configured abort policy.
func (h *Handler) AbortOnError() bool { return h.abortOnError }

// Reports returns the number of unique diagnostics emitted so far.
// Suppressed duplicates are not counted.
func (h *Handler) Reports() uint64 {
	return h.reports.Load()
}

// WriteSummary writes a one-line run summary to the diagnostic sink.
// Nothing is written for a clean run.
func (h *Handler) WriteSummary() {
	n := h.reports.Load()
	if n == 0 {
		return
	}
	fmt.Fprintf(h.out, "ubsan: %d unique undefined behavior report(s)\n", n)
}
