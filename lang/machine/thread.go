// Package machine implements the interpreter context owned by a script
// thread: the execution surface through which script functions are loaded and
// called, with a step-counted hook that gives the threading layer its
// interruption points. A Thread is exclusively owned by the goroutine that
// runs it; other goroutines must never touch it directly.
package machine

import (
	"io"
	"os"

	"github.com/mna/nelumbo/lang/types"
)

// Thread is the interpreter context of one script thread. A Thread must not
// be shared: it is created by the spawning runner, handed to exactly one
// goroutine, and closed by that goroutine as soon as execution ends.
type Thread struct {
	// Name is an optional name that describes the thread, mostly for debugging.
	Name string

	// Stdout, Stderr and Stdin are the standard I/O abstractions for the thread.
	// If nil, os.Stdout, os.Stderr and os.Stdin are used, respectively.
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// StepInterval is the number of execution "steps", a deliberately
	// unspecified measure of machine execution time, between invocations of
	// OnStep. A value <= 0 disables the hook.
	StepInterval int

	// OnStep is the periodic hook invoked every StepInterval steps. A non-nil
	// error aborts the current call chain; the error is propagated unchanged so
	// that uncatchable errors (see Uncatchable) reach the top of the thread.
	OnStep func(*Thread) error

	// Predeclared holds the values injected into the context's global
	// namespace by the embedding before any script code runs.
	Predeclared map[string]types.Value

	steps  uint64
	depth  int
	closed bool
}

// Step records one unit of execution time and fires the OnStep hook when the
// step interval is reached. Call is the main caller; long-running built-ins
// should call it from their own loops so that pending commands are observed.
func (th *Thread) Step() error {
	if th.closed {
		panic("machine: Step on closed thread context")
	}
	th.steps++
	if th.OnStep != nil && th.StepInterval > 0 && th.steps%uint64(th.StepInterval) == 0 {
		return th.OnStep(th)
	}
	return nil
}

// Steps returns the number of steps executed so far.
func (th *Thread) Steps() uint64 { return th.steps }

// Out returns the writer for the thread's standard output.
func (th *Thread) Out() io.Writer {
	if th.Stdout != nil {
		return th.Stdout
	}
	return os.Stdout
}

// Close releases the context's resources. It must be called by the owning
// goroutine exactly once, as soon as execution leaves the user function,
// whatever the exit path. Any use of the context after Close is a fatal
// programming error.
func (th *Thread) Close() {
	if th.closed {
		panic("machine: Close on closed thread context")
	}
	th.closed = true
	th.Predeclared = nil
	th.OnStep = nil
}

// Closed reports whether the context has been released.
func (th *Thread) Closed() bool { return th.closed }
