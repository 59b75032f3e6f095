package threading

import (
	"fmt"
	"io"
	"runtime"
	"sync/atomic"

	"github.com/golang/glog"
	"github.com/mna/nelumbo/lang/machine"
	"github.com/mna/nelumbo/lang/shared"
	"github.com/mna/nelumbo/lang/shutdown"
	"github.com/mna/nelumbo/lang/types"
)

// DefaultStepInterval is the number of machine steps between interruption
// checks when the runner does not specify one.
const DefaultStepInterval = 100

var threadSeq atomic.Uint64

// A Runner spawns script threads. The zero value is a usable runner with
// default settings; a Runner may be reused for any number of spawns from any
// goroutine.
type Runner struct {
	// Name is the base name of spawned threads; "thread" if empty. Each spawn
	// appends a unique sequence number.
	Name string

	// StepInterval is the number of machine steps between interruption checks
	// in the spawned context. DefaultStepInterval if <= 0.
	StepInterval int

	// PinOSThread locks each spawned goroutine to its own OS thread for the
	// duration of the run.
	PinOSThread bool

	// Stdout and Stderr are handed to the spawned context. If nil, the
	// process-wide streams are used.
	Stdout io.Writer
	Stderr io.Writer
}

// Spawn runs fn with the given arguments in a fresh interpreter context on a
// new, detached goroutine and returns the caller-side handle. Arguments cross
// into the new context through the shared object store. Malformed arguments
// are reported synchronously.
func (r *Runner) Spawn(fn *machine.Function, args types.Tuple) (*Thread, error) {
	if fn == nil {
		return nil, fmt.Errorf("nelumbo.thread: function expected, got nil")
	}

	base := r.Name
	if base == "" {
		base = "thread"
	}
	name := fmt.Sprintf("%s-%d", base, threadSeq.Add(1))

	interval := r.StepInterval
	if interval <= 0 {
		interval = DefaultStepInterval
	}

	mt := &machine.Thread{
		Name:         name,
		Stdout:       r.Stdout,
		Stderr:       r.Stderr,
		StepInterval: interval,
	}
	h := newHandle(name, mt)
	mt.OnStep = func(*machine.Thread) error { return h.Check() }
	mt.Predeclared = Builtins(h)

	// Transfer the arguments into the new context: the receiving side takes
	// its reference before the sending side drops its own, so the value never
	// has zero strong owners while in flight.
	wrapped := make([]*shared.Object, len(args))
	for i, arg := range args {
		o := shared.Wrap(arg, "caller")
		o.AddRef()
		o.Release()
		wrapped[i] = o
	}

	t := &Thread{h: h}
	runtime.SetFinalizer(h, (*Handle).releasePins)

	shutdown.ThreadStart()
	go runThread(h, fn, wrapped, r.PinOSThread)
	return t, nil
}

// Spawn runs fn on a new script thread using a default Runner.
func Spawn(fn *machine.Function, args types.Tuple) (*Thread, error) {
	var r Runner
	return r.Spawn(fn, args)
}

// runThread is the top-level driver of one spawned thread. It runs the user
// function to completion, converts the outcome into a terminal status and,
// always as the very last step, reports the thread finished to the shutdown
// coordinator.
func runThread(h *Handle, fn *machine.Function, args []*shared.Object, pin bool) {
	if pin {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	defer shutdown.ThreadFinish()

	err := func() error {
		// Release the arguments and destroy the owned context as soon as
		// execution leaves this scope, whatever the exit path, so resources
		// are freed before the caller observes completion.
		defer func() {
			for _, a := range args {
				a.Release()
			}
			h.closeMachine()
		}()

		vals := make(types.Tuple, len(args))
		for i, a := range args {
			vals[i] = a.Value()
		}

		callable := fn.Load(h.machine)
		res, err := machine.Call(h.machine, callable, vals)
		if err != nil {
			return err
		}

		// Results produced by the exiting context cross through the shared
		// store so references retained by other threads stay valid after the
		// context is destroyed. Same transfer protocol as for arguments: the
		// handle takes its reference first.
		for _, v := range resultValues(res) {
			o := shared.Wrap(v, h.name)
			o.AddRef()
			o.Release()
			h.appendResult(o)
		}
		return nil
	}()

	switch {
	case err == nil:
		if h.Status() == Canceled {
			// the unwind was swallowed by user code; the status already
			// reflects the cancellation
			return
		}
		h.ChangeStatus(Completed)
	case isUnwind(err):
		h.ChangeStatus(Canceled)
	default:
		if h.Status() == Canceled {
			// the unwind was converted into an ordinary error by user code;
			// the terminal status is already set and the results are immutable
			return
		}
		glog.V(2).Infof("nelumbo: thread %s failed: %v", h.name, err)
		h.prependFailure(err.Error())
		h.ChangeStatus(Failed)
	}
}

// resultValues maps the user function's return value to the thread's result
// sequence: a tuple spreads to multiple results, Nil to none, anything else
// to a single result.
func resultValues(v types.Value) []types.Value {
	switch v := v.(type) {
	case types.NilType:
		return nil
	case types.Tuple:
		return v
	default:
		return []types.Value{v}
	}
}
