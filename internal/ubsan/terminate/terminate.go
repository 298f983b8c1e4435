// Package terminate provides the execution-context-specific abort
// capability invoked after a fatal undefined-behavior report.
//
// The handler never decides how to die; it holds a Terminator chosen once
// at initialization and calls it. Three contexts exist, each with its own
// abort mechanism and exit-code convention: the privileged kernel context
// panics, the dynamic-loader context exits with code 2, and the
// unprivileged task context exits with a generic failure code.
package terminate

import "os"

// Exit-code conventions for the contexts that terminate via process exit.
const (
	// LoaderExitCode is the exit code used by the loader context.
	LoaderExitCode = 2

	// TaskExitCode is the generic failure code used by the task context.
	TaskExitCode = 1
)

// Terminator is the abstract termination capability.
//
// Terminate must not return. Implementations end the process (or the
// surrounding execution context) immediately; the handler stalls forever
// if an implementation ever returns, so a broken Terminator hangs rather
// than letting control flow back into code that assumed it was dead.
type Terminator interface {
	Terminate()
}

// Context selects which concrete Terminator an execution environment uses.
type Context int

// Known execution contexts.
const (
	// Kernel is the privileged context: abort by panicking, which gives
	// the host a stack trace and a crash it can post-process.
	Kernel Context = iota

	// Loader is the lightweight dynamic-loader context.
	Loader

	// Task is the unprivileged task context.
	Task
)

// String returns the context name.
func (c Context) String() string {
	switch c {
	case Kernel:
		return "kernel"
	case Loader:
		return "loader"
	case Task:
		return "task"
	default:
		return "unknown"
	}
}

// ForContext returns the Terminator for the given execution context.
// Unknown contexts fall back to the kernel terminator, the loudest option.
func ForContext(c Context) Terminator {
	switch c {
	case Loader:
		return loaderTerminator{}
	case Task:
		return taskTerminator{}
	default:
		return kernelTerminator{}
	}
}

type kernelTerminator struct{}

func (kernelTerminator) Terminate() {
	panic("ubsan: fatal undefined behavior")
}

type loaderTerminator struct{}

func (loaderTerminator) Terminate() {
	os.Exit(LoaderExitCode)
}

type taskTerminator struct{}

func (taskTerminator) Terminate() {
	os.Exit(TaskExitCode)
}
