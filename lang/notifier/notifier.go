// Package notifier provides the condition primitive on which all blocking
// operations of the script-thread runtime are built: a single-writer latch
// that supports timed and untimed waits and that can be interrupted from any
// goroutine without being notified.
package notifier

import (
	"sync"
	"time"
)

// NoTimeout can be passed to Wait to block until notified or interrupted.
// Any negative duration behaves the same.
const NoTimeout time.Duration = -1

// A Notifier is an edge-triggered latch. Notify wakes every goroutine
// currently blocked in Wait; if no goroutine is waiting, the latch stays set
// and subsequent calls to Wait return immediately until Reset clears it.
// Interrupt forces the current waiters to wake without setting the latch,
// producing a spurious but safe early return.
//
// The zero value is a valid, unset Notifier. All methods are safe for
// concurrent use.
type Notifier struct {
	mu   sync.Mutex
	set  bool
	ch   chan struct{} // closed while the latch is set
	intr chan struct{} // closed on interrupt, replaced once observed
}

// caller must hold n.mu.
func (n *Notifier) init() {
	if n.ch == nil {
		n.ch = make(chan struct{})
		n.intr = make(chan struct{})
	}
}

// Notify sets the latch and wakes all current waiters. It is a no-op if the
// latch is already set.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.init()
	if !n.set {
		n.set = true
		close(n.ch)
	}
}

// Reset clears the latch so that the next Wait blocks again.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.init()
	if n.set {
		n.set = false
		n.ch = make(chan struct{})
	}
}

// Interrupt wakes the goroutines currently blocked in Wait without setting
// the latch; their Wait call returns false as if it had timed out. An
// interrupt delivered while nobody waits is consumed by the next waiter.
func (n *Notifier) Interrupt() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.init()
	select {
	case <-n.intr:
		// already interrupted and not yet observed
	default:
		close(n.intr)
	}
}

// Wait blocks until the latch is set, the timeout elapses or the wait is
// interrupted. It returns true only if the latch was set. A negative timeout
// (NoTimeout) waits indefinitely.
func (n *Notifier) Wait(timeout time.Duration) bool {
	n.mu.Lock()
	n.init()
	ch, intr := n.ch, n.intr
	n.mu.Unlock()

	// a set latch must win before any timer is armed, so that a zero-timeout
	// poll never races the latch against an already-expired timer
	select {
	case <-ch:
		return true
	default:
	}

	var tc <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		tc = t.C
	}

	select {
	case <-ch:
		return true
	case <-intr:
		n.consume(intr)
		// prefer a notification that raced with the interrupt
		select {
		case <-ch:
			return true
		default:
			return false
		}
	case <-tc:
		return false
	}
}

// consume replaces the interrupt channel so that a single Interrupt wakes
// waiters only once.
func (n *Notifier) consume(intr chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.intr == intr {
		n.intr = make(chan struct{})
	}
}
