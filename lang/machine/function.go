package machine

import (
	"fmt"

	"github.com/mna/nelumbo/lang/types"
)

// A Callable value f may be the operand of a function call, f(x). Clients
// should use the Call function, never the CallInternal method.
type Callable interface {
	types.Value
	Name() string
	CallInternal(th *Thread, args types.Tuple) (types.Value, error)
}

// A Function is a script function that is not yet bound to an interpreter
// context. It is the unit handed to the runner when spawning: Load binds it
// into the fresh context of the new thread, returning the callable to
// execute there.
type Function struct {
	// FnName is the function's name, for error messages and debugging.
	FnName string

	// Fn is the function's implementation. It receives the context it was
	// loaded in.
	Fn func(th *Thread, args types.Tuple) (types.Value, error)
}

var _ types.Value = (*Function)(nil)

func (fn *Function) String() string { return fmt.Sprintf("function(%p %s)", fn, fn.Name()) }
func (fn *Function) Type() string   { return "function" }
func (fn *Function) Freeze()        {} // functions do not expose mutable state
func (fn *Function) Truth() types.Bool {
	return types.True
}

func (fn *Function) Name() string {
	if fn.FnName == "" {
		return "anonymous"
	}
	return fn.FnName
}

// Load binds the function to the thread context th, returning the Callable
// to execute in that context.
func (fn *Function) Load(th *Thread) Callable {
	if th.Closed() {
		panic("machine: Load on closed thread context")
	}
	return &boundFunc{fn: fn, th: th}
}

// boundFunc is a Function loaded into a specific context. Calling it from a
// different context is a fatal programming error.
type boundFunc struct {
	fn *Function
	th *Thread
}

var _ Callable = (*boundFunc)(nil)

func (b *boundFunc) String() string    { return b.fn.String() }
func (b *boundFunc) Type() string      { return "function" }
func (b *boundFunc) Freeze()           {}
func (b *boundFunc) Truth() types.Bool { return types.True }
func (b *boundFunc) Name() string      { return b.fn.Name() }

func (b *boundFunc) CallInternal(th *Thread, args types.Tuple) (types.Value, error) {
	if th != b.th {
		panic(fmt.Sprintf("machine: function %s called from a foreign context", b.Name()))
	}
	return b.fn.Fn(th, args)
}

// A Builtin is a function implemented by the embedding and injected into a
// context's predeclared namespace. Unlike a Function it needs no Load step;
// it executes in whatever context calls it.
type Builtin struct {
	name string
	fn   func(th *Thread, args types.Tuple) (types.Value, error)
}

var _ Callable = (*Builtin)(nil)

// NewBuiltin returns a builtin function with the given name and
// implementation.
func NewBuiltin(name string, fn func(th *Thread, args types.Tuple) (types.Value, error)) *Builtin {
	return &Builtin{name: name, fn: fn}
}

func (b *Builtin) String() string    { return fmt.Sprintf("builtin(%s)", b.name) }
func (b *Builtin) Type() string      { return "builtin" }
func (b *Builtin) Freeze()           {}
func (b *Builtin) Truth() types.Bool { return types.True }
func (b *Builtin) Name() string      { return b.name }

func (b *Builtin) CallInternal(th *Thread, args types.Tuple) (types.Value, error) {
	return b.fn(th, args)
}
