package threading

import (
	"time"

	"github.com/mna/nelumbo/lang/types"
)

// A Thread is the caller-side surface of one spawned script thread. All its
// methods are safe to call from any goroutine, including the spawned thread
// itself.
type Thread struct {
	h *Handle
}

// Handle returns the thread's underlying state machine.
func (t *Thread) Handle() *Handle { return t.h }

// Name returns the thread's unique name.
func (t *Thread) Name() string { return t.h.Name() }

// Status returns the thread's current status as values: the failure results
// (starting with the "failed" marker and the error text) if the thread
// failed, the status string otherwise.
func (t *Thread) Status() []types.Value {
	st := t.h.Status()
	if st == Failed {
		return t.h.ResultValues()
	}
	return []types.Value{types.String(st.String())}
}

// Wait blocks until the thread reaches a terminal status or the timeout
// elapses, then returns the same values as Status. A negative timeout waits
// indefinitely.
func (t *Thread) Wait(timeout time.Duration) []types.Value {
	t.h.WaitCompletion(timeout)
	return t.Status()
}

// Get blocks like Wait and returns the thread's results, or nil if it did
// not complete successfully within the timeout.
func (t *Thread) Get(timeout time.Duration) []types.Value {
	if t.h.WaitCompletion(timeout) && t.h.Status() == Completed {
		return t.h.ResultValues()
	}
	return nil
}

// Cancel requests cancellation, wakes the thread if it is blocked in an
// interruptible wait, and blocks until a terminal status is reached or the
// timeout elapses. It reports whether the thread is terminal. The request
// itself is asynchronous: with a zero timeout Cancel is fire-and-forget.
func (t *Thread) Cancel(timeout time.Duration) bool {
	t.h.PutCommand(Cancel)
	t.h.Interrupt()
	return t.h.WaitStatus(timeout).Terminal()
}

// Pause requests a pause and blocks until the thread acknowledges it or the
// timeout elapses. It reports whether the thread is paused.
func (t *Thread) Pause(timeout time.Duration) bool {
	t.h.PutCommand(Pause)
	return t.h.WaitStatus(timeout) == Paused
}

// Resume requests that a paused thread resumes running. Fire-and-forget.
func (t *Thread) Resume() {
	t.h.PutCommand(Run)
}
