// Package shutdown tracks the number of live script threads and the
// process-wide shutdown flag. The state is process-scoped and
// initialized once; the only mutations are the thread start/finish counters
// and the idempotent shutdown request. Process teardown calls Drain to block
// until every spawned thread has exited, so no interpreter context is mid-use
// when the embedding finalizes.
package shutdown

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// pollInterval is how often Drain re-checks the live thread count.
const pollInterval = 10 * time.Millisecond

var (
	requested atomic.Bool
	active    atomic.Int64
)

// Request sets the shutdown flag. It is idempotent and never blocks.
func Request() { requested.Store(true) }

// Requested reports whether shutdown has been requested.
func Requested() bool { return requested.Load() }

// ThreadStart records that a spawned thread begins execution. Safe to call
// from any goroutine.
func ThreadStart() { active.Add(1) }

// ThreadFinish records that a spawned thread has exited, whatever its
// terminal status. It must be the very last action of the thread.
func ThreadFinish() {
	if n := active.Add(-1); n < 0 {
		panic("shutdown: ThreadFinish without matching ThreadStart")
	}
}

// ActiveThreads returns the number of script threads currently running.
func ActiveThreads() int64 { return active.Load() }

// Drain blocks until the live thread count reaches zero. Threads stuck in
// uninterruptible external calls delay it indefinitely; that is the accepted
// limit of cooperative cancellation.
func Drain() {
	for active.Load() > 0 {
		glog.V(2).Infof("nelumbo: draining, %d thread(s) still active", active.Load())
		time.Sleep(pollInterval)
	}
}

// Shutdown requests shutdown and drains. It is what the embedding calls
// exactly once at teardown.
func Shutdown() {
	Request()
	Drain()
}

var cookieRegistered atomic.Bool

// A Cookie is the teardown sentinel: the embedding holds it for its whole
// lifetime, and when it becomes unreachable its finalizer triggers Shutdown.
// This mirrors hosts whose garbage collector finalizes a registry sentinel
// when the whole embedding is torn down.
type Cookie struct {
	_ [0]func() // not comparable, not copyable by accident

	// must not be zero-sized: finalizers never run on zero-sized allocations
	_ byte
}

// RegisterTeardownCookie returns the sentinel whose collection triggers
// Shutdown. Only the first call registers a finalizer; subsequent calls
// return an inert cookie.
func RegisterTeardownCookie() *Cookie {
	c := new(Cookie)
	if cookieRegistered.Swap(true) {
		return c
	}
	runtime.SetFinalizer(c, func(*Cookie) {
		glog.V(2).Info("nelumbo: teardown cookie collected, shutting down")
		Shutdown()
	})
	return c
}
