// Package shared implements the ownership wrapper for values that cross the
// boundary between script threads. A container value produced in one
// interpreter context and observed from another is pinned: the store keeps a
// strong reference to it for exactly the interval between the moment it
// becomes reachable from a non-origin thread and the moment its last strong
// reference is released. While pinned the value is also frozen, so concurrent
// readers cannot observe a mutation.
//
// Reference bookkeeping follows a strict transfer protocol: when a value
// crosses into a new owning context, the receiving side must AddRef before
// the sending side calls Release, so the value never has zero strong owners
// while still in flight. Double release and use after release are fatal
// programming errors.
package shared

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mna/nelumbo/lang/types"
)

// pins is the process-wide pin table. An object present in the table is
// strongly reachable and therefore cannot be reclaimed, whatever happens to
// the context that created its value.
var pins = struct {
	mu   sync.Mutex
	objs map[*Object]struct{}
}{objs: make(map[*Object]struct{})}

// An Object wraps one value for crossing the thread boundary.
type Object struct {
	value  types.Value
	origin string
	pinned bool
	refs   atomic.Int64
}

// Wrap prepares v, produced by the thread named origin, for crossing to
// another thread. Container values (maps, arrays, tuples, functions) are
// frozen and pinned with a single strong reference owned by the caller;
// self-contained scalar values pass through unpinned and their Object is
// inert.
func Wrap(v types.Value, origin string) *Object {
	o := &Object{value: v, origin: origin}
	switch v.(type) {
	case types.NilType, types.Bool, types.Int, types.Float, types.String:
		// self-contained, nothing to pin
		return o
	}

	v.Freeze()
	o.pinned = true
	o.refs.Store(1)

	pins.mu.Lock()
	pins.objs[o] = struct{}{}
	pins.mu.Unlock()
	return o
}

// Pinned reports whether the object holds a pin on its value.
func (o *Object) Pinned() bool { return o.pinned }

// Origin returns the name of the thread that produced the value.
func (o *Object) Origin() string { return o.origin }

// Value returns the wrapped value. It panics if the last strong reference
// has already been released.
func (o *Object) Value() types.Value {
	if o.pinned && o.refs.Load() <= 0 {
		panic(fmt.Sprintf("shared: use of released object from thread %s", o.origin))
	}
	return o.value
}

// AddRef takes a strong reference on behalf of a new owner. The receiving
// side of a transfer must call it before the sending side calls Release.
// AddRef on an unpinned object is a no-op.
func (o *Object) AddRef() {
	if !o.pinned {
		return
	}
	if n := o.refs.Add(1); n <= 1 {
		panic(fmt.Sprintf("shared: AddRef on released object from thread %s", o.origin))
	}
}

// Release drops one strong reference. When the last reference is dropped the
// value is unpinned and reclamation resumes under whichever context still
// reaches it. Releasing more references than were taken is a fatal
// programming error. Release on an unpinned object is a no-op.
func (o *Object) Release() {
	if !o.pinned {
		return
	}
	n := o.refs.Add(-1)
	switch {
	case n == 0:
		pins.mu.Lock()
		delete(pins.objs, o)
		pins.mu.Unlock()
	case n < 0:
		panic(fmt.Sprintf("shared: double release of object from thread %s", o.origin))
	}
}

// PinnedCount returns the number of values currently pinned by the store.
func PinnedCount() int {
	pins.mu.Lock()
	defer pins.mu.Unlock()
	return len(pins.objs)
}
