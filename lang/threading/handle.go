package threading

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mna/nelumbo/lang/machine"
	"github.com/mna/nelumbo/lang/notifier"
	"github.com/mna/nelumbo/lang/shared"
	"github.com/mna/nelumbo/lang/types"
)

// A Handle is the state machine of one spawned script thread. The status and
// command pair is the only shared mutable state and is guarded by one mutex;
// the interpreter context is owned exclusively by the running goroutine and
// is never touched through the handle by anyone else.
type Handle struct {
	name string

	mu        sync.Mutex
	status    Status
	command   Command
	cancelled bool // sticky, set by PutCommand(Cancel), never cleared
	results   []*shared.Object
	released  bool

	statusChanged  notifier.Notifier
	commandChanged notifier.Notifier
	completed      notifier.Notifier

	// wait is the notifier the running thread is currently blocked on, if
	// any. It replaces an ambient thread-local registry: interruptible waits
	// register themselves here so Interrupt can wake a blocking call without
	// knowing which primitive is in use.
	wait atomic.Pointer[notifier.Notifier]

	// machine is the owned interpreter context. Only the running goroutine
	// uses it; it is torn down as soon as the user function returns.
	machine *machine.Thread
}

func newHandle(name string, mt *machine.Thread) *Handle {
	return &Handle{name: name, status: Running, command: Run, machine: mt}
}

// Name returns the thread's unique name.
func (h *Handle) Name() string { return h.name }

// Status returns the thread's current status.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Command returns the last requested command. A sticky cancellation takes
// precedence over any command requested after it.
func (h *Handle) Command() Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return Cancel
	}
	return h.command
}

// PutCommand requests cmd. It is a no-op once the thread reached a terminal
// status. The effect is observed only when the running thread next reaches an
// interruption point; there is no latency bound, only eventual observation.
func (h *Handle) PutCommand(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return
	}
	if cmd == Cancel {
		h.cancelled = true
	}
	h.command = cmd
	h.statusChanged.Reset()
	h.commandChanged.Notify()
}

// ChangeStatus sets the thread's status. It must be called only by the
// running thread itself; the API does not prevent misuse but correctness
// depends on this discipline. Once a terminal status is reached, further
// calls are no-ops.
func (h *Handle) ChangeStatus(stat Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return
	}
	h.status = stat
	h.commandChanged.Reset()
	h.statusChanged.Notify()
	if stat.Terminal() {
		h.completed.Notify()
	}
}

// WaitStatus blocks until the status changes (or returns immediately if a
// change was already latched, which is always the case once the thread is
// terminal) and returns the current status. A negative timeout waits
// indefinitely.
func (h *Handle) WaitStatus(timeout time.Duration) Status {
	h.statusChanged.Wait(timeout)
	return h.Status()
}

// WaitCommand blocks until a new command is requested and returns it. Used
// by the running thread while paused.
func (h *Handle) WaitCommand(timeout time.Duration) Command {
	h.commandChanged.Wait(timeout)
	return h.Command()
}

// WaitCompletion blocks until the thread reaches a terminal status and
// reports whether it did so within the timeout. The completion notification
// fires only after every mutation that produced the terminal status is
// visible.
func (h *Handle) WaitCompletion(timeout time.Duration) bool {
	return h.completed.Wait(timeout)
}

// Interrupt wakes the interruptible wait the thread is currently blocked on,
// if any, so that a pending cancellation is observed without waiting for a
// long timer to elapse.
func (h *Handle) Interrupt() {
	if n := h.wait.Load(); n != nil {
		n.Interrupt()
	}
}

// waitInterruptible blocks on n after registering it as the thread's current
// interruptible wait, so a concurrent Interrupt wakes it early.
func (h *Handle) waitInterruptible(n *notifier.Notifier, timeout time.Duration) bool {
	h.wait.Store(n)
	defer h.wait.Store(nil)
	// A cancellation requested between the last interruption check and the
	// registration above would have interrupted nothing; re-check now that
	// any later Interrupt is guaranteed to see the registered wait.
	if h.Command() == Cancel {
		return false
	}
	return n.Wait(timeout)
}

// Check is the interruption point called from the machine's step hook and
// around every blocking operation the runtime exposes. It acts on the
// pending command: cancellation raises the control unwind, pause parks the
// thread until it is resumed or canceled.
func (h *Handle) Check() error {
	switch h.Command() {
	case Cancel:
		h.ChangeStatus(Canceled)
		return cancelUnwind{}
	case Pause:
		h.ChangeStatus(Paused)
		for {
			switch h.WaitCommand(NoTimeout) {
			case Run:
				h.ChangeStatus(Running)
				return nil
			case Cancel:
				h.ChangeStatus(Canceled)
				return cancelUnwind{}
			}
		}
	}
	return nil
}

// appendResult appends a wrapped result value. Results are append-only until
// the thread reaches a terminal status, then immutable.
func (h *Handle) appendResult(o *shared.Object) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = append(h.results, o)
}

// prependFailure places the failure marker and the error text at the front
// of the result sequence.
func (h *Handle) prependFailure(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	head := []*shared.Object{
		shared.Wrap(types.String("failed"), h.name),
		shared.Wrap(types.String(msg), h.name),
	}
	h.results = append(head, h.results...)
}

// ResultValues returns the thread's accumulated result values.
func (h *Handle) ResultValues() []types.Value {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.results) == 0 {
		return nil
	}
	vals := make([]types.Value, len(h.results))
	for i, o := range h.results {
		vals[i] = o.Value()
	}
	return vals
}

// closeMachine tears down the owned interpreter context. Called by the
// running goroutine as soon as execution leaves the user function, on every
// exit path.
func (h *Handle) closeMachine() {
	if h.machine != nil && !h.machine.Closed() {
		h.machine.Close()
	}
}

// releasePins drops the strong references the handle holds on pinned result
// values. It runs when the handle itself becomes unreachable, which can only
// happen after the status is terminal and no caller can reach the results
// anymore.
func (h *Handle) releasePins() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	for _, o := range h.results {
		if o.Pinned() {
			o.Release()
		}
	}
}
