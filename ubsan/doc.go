// Package ubsan provides a Pure-Go undefined-behavior sanitizer runtime.
//
// This package is the runtime half of the ubsan tool: instrumented programs
// call into it whenever an undefined-behavior condition fires (signed
// overflow, division by zero, out-of-range shift, out-of-bounds index).
// Each check site is reported at most once per process, no matter how many
// goroutines trip it concurrently, and the configured abort policy decides
// whether the program then dies or keeps running.
//
// # Quick Start
//
// The ubsan package is automatically injected by the ubsan tool:
//
//	$ ubsan build myprogram.go
//	$ ./myprogram
//
// For manual instrumentation in advanced scenarios:
//
//	package main
//
//	import "github.com/kolkov/ubsan/ubsan"
//
//	var site = ubsan.OverflowData{Loc: ubsan.Loc("main.go", 12, 10), Type: ubsan.IntDesc}
//
//	func main() {
//		ubsan.Init(ubsan.Config{Continue: true})
//		defer ubsan.Fini()
//
//		a, b := maxInt(), 1
//		sum := ubsan.AddInt(a, b, &site) // Instead of: sum := a + b
//		_ = sum
//	}
//
// # API Overview
//
// The package provides functions for:
//   - Initialization and finalization: [Init], [Fini]
//   - Checked operations: [AddInt], [SubInt], [MulInt], [NegInt], [DivInt],
//     [RemInt], [ShlInt], [ShrInt], [Index]
//   - Check-site construction: [Loc] and the payload types
//   - Version information: [GetInfo], [Version]
//
// # How It Works
//
// The ubsan tool rewrites checked expressions and generates one static
// check-site record per rewritten expression:
//
//	// Original code:
//	sum := a + b
//
//	// Instrumented code:
//	sum := ubsan.AddInt(a, b, &ubsanSite_main_0)
//
// When a check fires, the runtime sets a flag bit packed into the site's
// column field using an atomic compare-and-swap; exactly one caller wins
// and emits a single diagnostic line:
//
//	Undefined behavior add_overflow at main.go:12 col 10
//
// Always-fatal categories (unreachable code reached, missing return)
// terminate the process unconditionally. Every other category terminates
// only while the abort policy is enabled; with Config.Continue set, the
// program logs once and keeps running on the wrapped result.
//
// # Performance Characteristics
//
// The runtime is allocation-free and lock-free on the check path:
//
//	Happy path:     two integer compares per checked operation
//	Suppressed trap: one atomic load on the site's dedup bit
//	First trap:      one CAS plus one formatted line on the sink
//
// # Compatibility
//
// Platform support:
//   - Operating systems: Linux, macOS, Windows
//   - Go version: 1.24 or later
//   - CGO requirement: None (works with CGO_ENABLED=0)
//
// The dispatch layer in internal/ubsan/api mirrors the callback surface of
// clang's -fsanitize=undefined (payload shapes, entry-per-category,
// symbol-derived labels), so diagnostics line up with what C toolchains
// produce for the same fault classes.
//
// # Links
//
// Project repository:
// https://github.com/kolkov/ubsan
//
// Documentation:
// https://pkg.go.dev/github.com/kolkov/ubsan/ubsan
package ubsan
