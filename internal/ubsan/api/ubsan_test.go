package api

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/kolkov/ubsan/internal/ubsan/handler"
	"github.com/kolkov/ubsan/internal/ubsan/location"
)

// panicTerminator aborts by panicking with a sentinel so termination is
// observable in-process.
type panicTerminator struct{}

type terminated struct{}

func (panicTerminator) Terminate() { panic(terminated{}) }

// install points the dispatch layer at a fresh handler writing to a buffer
// and restores the init-once latch so each test starts clean.
func install(t *testing.T, abortOnError bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := cur.Load()
	cur.Store(handler.New(&buf, panicTerminator{}, abortOnError))
	initDone.Store(true)
	t.Cleanup(func() {
		cur.Store(prev)
		initDone.Store(false)
	})
	return &buf
}

func expectTerminate(t *testing.T, fn func()) (didTerminate bool) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(terminated); !ok {
			panic(r)
		}
		didTerminate = true
	}()
	fn()
	return false
}

// TestEntryLabels drives every policy-fatal entry once and checks the
// emitted category label.
func TestEntryLabels(t *testing.T) {
	tests := []struct {
		label string
		fire  func()
	}{
		{"type_mismatch", func() {
			HandleTypeMismatch(&location.TypeMismatchData{
				Loc:  location.At("tm.c", 1, 1),
				Type: location.IntDesc,
			}, 0xdead)
		}},
		{"type_mismatch_v1", func() {
			HandleTypeMismatchV1(&location.TypeMismatchDataV1{
				Loc:  location.At("tmv1.c", 2, 1),
				Type: location.IntDesc,
			}, 0xdead)
		}},
		{"add_overflow", func() {
			HandleAddOverflow(&location.OverflowData{Loc: location.At("add.c", 3, 1)}, 1, 2)
		}},
		{"sub_overflow", func() {
			HandleSubOverflow(&location.OverflowData{Loc: location.At("sub.c", 4, 1)}, 1, 2)
		}},
		{"mul_overflow", func() {
			HandleMulOverflow(&location.OverflowData{Loc: location.At("mul.c", 5, 1)}, 1, 2)
		}},
		{"negate_overflow", func() {
			HandleNegateOverflow(&location.OverflowData{Loc: location.At("neg.c", 6, 1)}, 1)
		}},
		{"divrem_overflow", func() {
			HandleDivremOverflow(&location.OverflowData{Loc: location.At("div.c", 7, 1)}, 1, 0)
		}},
		{"pointer_overflow", func() {
			HandlePointerOverflow(&location.OverflowData{Loc: location.At("ptr.c", 8, 1)}, 1, 2)
		}},
		{"shift_out_of_bounds", func() {
			HandleShiftOutOfBounds(&location.ShiftOutOfBoundsData{Loc: location.At("shl.c", 9, 1)}, 1, 99)
		}},
		{"out_of_bounds", func() {
			HandleOutOfBounds(&location.OutOfBoundsData{Loc: location.At("oob.c", 10, 1)}, 11)
		}},
		{"vla_bound_not_positive", func() {
			HandleVLABoundNotPositive(&location.VLABoundData{Loc: location.At("vla.c", 11, 1)}, 0)
		}},
		{"load_invalid_value", func() {
			HandleLoadInvalidValue(&location.InvalidValueData{Loc: location.At("liv.c", 12, 1)}, 3)
		}},
		{"nonnull_arg", func() {
			HandleNonnullArg(&location.NonnullArgData{Loc: location.At("nn.c", 13, 1)}, 2)
		}},
		{"invalid_builtin", func() {
			HandleInvalidBuiltin(&location.InvalidBuiltinData{Loc: location.At("ib.c", 14, 1)})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			buf := install(t, false)
			tt.fire()
			want := "Undefined behavior " + tt.label + " at "
			if !strings.HasPrefix(buf.String(), want) {
				t.Errorf("diagnostic = %q, want prefix %q", buf.String(), want)
			}
		})
	}
}

// TestDedup_SamePayloadTwice fires one entry twice with the same payload
// and expects exactly one line.
func TestDedup_SamePayloadTwice(t *testing.T) {
	buf := install(t, false)
	data := &location.TypeMismatchData{Loc: location.At("dup.c", 21, 9), Type: location.IntDesc}

	HandleTypeMismatch(data, 0x10)
	HandleTypeMismatch(data, 0x20)

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("emitted %d lines, want 1:\n%s", got, buf.String())
	}
}

// TestAlwaysFatal_TerminatesRegardlessOfPolicy covers both always-fatal
// entries with the abort switch disabled.
func TestAlwaysFatal_TerminatesRegardlessOfPolicy(t *testing.T) {
	tests := []struct {
		name string
		fire func(*location.UnreachableData)
	}{
		{"builtin_unreachable", func(d *location.UnreachableData) { HandleBuiltinUnreachable(d) }},
		{"missing_return", func(d *location.UnreachableData) { HandleMissingReturn(d) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := install(t, false) // Abort switch off.
			data := &location.UnreachableData{Loc: location.At("ur.c", 31, 5)}

			if !expectTerminate(t, func() { tt.fire(data) }) {
				t.Fatal("always-fatal entry returned without terminating")
			}
			if !strings.Contains(buf.String(), tt.name) {
				t.Errorf("missing report, sink = %q", buf.String())
			}

			// Second trip: report suppressed, termination still fires.
			if !expectTerminate(t, func() { tt.fire(data) }) {
				t.Error("termination must not be deduplicated")
			}
			if got := strings.Count(buf.String(), "\n"); got != 1 {
				t.Errorf("emitted %d lines, want 1", got)
			}
		})
	}
}

// TestPolicyFatal_RespectsSwitch verifies the add-overflow entry against
// both positions of the abort switch.
func TestPolicyFatal_RespectsSwitch(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		buf := install(t, false)
		data := &location.OverflowData{Loc: location.At("p.c", 41, 1)}
		if expectTerminate(t, func() { HandleAddOverflow(data, 1, 2) }) {
			t.Error("terminated with abort switch disabled")
		}
		if got := strings.Count(buf.String(), "\n"); got != 1 {
			t.Errorf("emitted %d lines, want 1", got)
		}
	})

	t.Run("enabled", func(t *testing.T) {
		buf := install(t, true)
		data := &location.OverflowData{Loc: location.At("p.c", 42, 1)}
		if !expectTerminate(t, func() { HandleAddOverflow(data, 1, 2) }) {
			t.Error("did not terminate with abort switch enabled")
		}
		if got := strings.Count(buf.String(), "\n"); got != 1 {
			t.Errorf("emitted %d lines, want 1", got)
		}
	})
}

// TestConcurrentEntry_SingleWinner races many goroutines through a dispatch
// entry for one site.
func TestConcurrentEntry_SingleWinner(t *testing.T) {
	const goroutines = 32

	buf := install(t, false)
	data := &location.InvalidValueData{Loc: location.At("c.c", 50, 3), Type: location.IntDesc}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			HandleLoadInvalidValue(data, 7)
		}()
	}
	close(start)
	wg.Wait()

	if got := strings.Count(buf.String(), "\n"); got != 1 {
		t.Errorf("emitted %d lines, want 1", got)
	}
}

// TestInit_FirstCallWins verifies the set-once lifecycle of the runtime
// configuration.
func TestInit_FirstCallWins(t *testing.T) {
	prev := cur.Load()
	prevDone := initDone.Load()
	t.Cleanup(func() {
		cur.Store(prev)
		initDone.Store(prevDone)
	})
	initDone.Store(false)

	var first, second bytes.Buffer
	Init(Config{Output: &first, Terminator: panicTerminator{}, Continue: true})
	installed := cur.Load()
	Init(Config{Output: &second, Terminator: panicTerminator{}})

	if cur.Load() != installed {
		t.Fatal("second Init replaced the handler")
	}

	HandleInvalidBuiltin(&location.InvalidBuiltinData{Loc: location.At("init.c", 60, 1)})
	if first.Len() == 0 {
		t.Error("report did not reach the first Init's sink")
	}
	if second.Len() != 0 {
		t.Error("report leaked to the ignored second Init's sink")
	}
}

// TestFini_Summary checks the summary line and that clean runs stay silent.
func TestFini_Summary(t *testing.T) {
	buf := install(t, false)

	Fini()
	if buf.Len() != 0 {
		t.Errorf("clean-run Fini wrote %q, want nothing", buf.String())
	}

	HandleAddOverflow(&location.OverflowData{Loc: location.At("s.c", 70, 1)}, 1, 2)
	buf.Reset()
	Fini()
	want := "ubsan: 1 unique undefined behavior report(s)\n"
	if buf.String() != want {
		t.Errorf("Fini summary = %q, want %q", buf.String(), want)
	}
	if Reports() != 1 {
		t.Errorf("Reports() = %d, want 1", Reports())
	}
}
