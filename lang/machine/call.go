package machine

import (
	"errors"
	"fmt"

	"github.com/mna/nelumbo/lang/types"
)

// Uncatchable is implemented by errors that must never be intercepted by
// Protect: they abort the whole thread and are handled only by the thread's
// top-level driver. The cancellation unwind of the threading layer is the
// canonical implementation.
type Uncatchable interface {
	error
	// Uncatchable marks the error; it is never called.
	Uncatchable()
}

// IsUncatchable reports whether err (or an error it wraps) must unwind to the
// top of the thread.
func IsUncatchable(err error) bool {
	var u Uncatchable
	return errors.As(err, &u)
}

// Call calls the function or Callable value v with the specified arguments,
// in the context of thread th. Each call counts as one execution step, so the
// thread's OnStep hook observes pending commands at call boundaries.
func Call(th *Thread, v types.Value, args types.Tuple) (types.Value, error) {
	if th.Closed() {
		panic("machine: Call on closed thread context")
	}
	c, ok := v.(Callable)
	if !ok {
		return nil, fmt.Errorf("invalid call of non-callable (%s)", v.Type())
	}

	if err := th.Step(); err != nil {
		return nil, err
	}

	th.depth++
	defer func() { th.depth-- }()

	result, err := c.CallInternal(th, args)

	// Sanity check: nil is not a valid value.
	if result == nil && err == nil {
		err = fmt.Errorf("internal error: nil (not Nil) returned from %s", c.Name())
	}
	return result, err
}

// Protect calls v with the specified arguments and intercepts ordinary script
// errors: on success it returns (true, result), on a script error it returns
// (false, error text) as values and a nil error. Uncatchable errors are NOT
// intercepted; they are returned as the error result and must be propagated
// by the caller. This is what guarantees that user code defending against
// ordinary errors cannot suppress cancellation.
func Protect(th *Thread, v types.Value, args types.Tuple) (types.Tuple, error) {
	result, err := Call(th, v, args)
	if err != nil {
		if IsUncatchable(err) {
			return nil, err
		}
		return types.Tuple{types.False, types.String(err.Error())}, nil
	}
	return types.Tuple{types.True, result}, nil
}
