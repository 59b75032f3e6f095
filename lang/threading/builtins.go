package threading

import (
	"fmt"
	"runtime"
	"time"

	"github.com/mna/nelumbo/lang/machine"
	"github.com/mna/nelumbo/lang/notifier"
	"github.com/mna/nelumbo/lang/types"
)

// Sleep blocks the running thread for the given duration. The wait registers
// itself as the thread's current interruptible wait, so a cancellation
// request wakes it well before the nominal duration elapses. Interruption
// points surround the wait: a pending command is acted on both before and
// after sleeping.
func Sleep(h *Handle, d time.Duration) error {
	if err := h.Check(); err != nil {
		return err
	}
	if d > 0 {
		var n notifier.Notifier
		h.waitInterruptible(&n, d)
	} else {
		runtime.Gosched()
	}
	return h.Check()
}

// Yield checks for a pending command and offers the scheduler a chance to
// run other goroutines.
func Yield(h *Handle) error {
	if err := h.Check(); err != nil {
		return err
	}
	runtime.Gosched()
	return nil
}

// Builtins returns the functions the runtime injects into the predeclared
// namespace of a spawned context, bound to the thread's own handle. This is
// the explicit replacement for an ambient "current thread" pointer: anything
// that needs its own handle receives it at thread start.
func Builtins(h *Handle) map[string]types.Value {
	return map[string]types.Value{
		"sleep":     sleepBuiltin(h),
		"yield":     yieldBuiltin(h),
		"thread_id": threadIDBuiltin(h),
	}
}

// timeMetrics maps the metric argument of sleep to a duration unit. The
// default metric is seconds.
var timeMetrics = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
}

func sleepBuiltin(h *Handle) *machine.Builtin {
	return machine.NewBuiltin("sleep", func(_ *machine.Thread, args types.Tuple) (types.Value, error) {
		if len(args) == 0 {
			if err := Yield(h); err != nil {
				return nil, err
			}
			return types.Nil, nil
		}

		n, ok := args[0].(types.Int)
		if !ok {
			return nil, fmt.Errorf("bad argument #1 to 'nelumbo.sleep' (int expected, got %s)", args[0].Type())
		}
		unit := time.Second
		if len(args) > 1 {
			s, ok := args[1].(types.String)
			if !ok {
				return nil, fmt.Errorf("bad argument #2 to 'nelumbo.sleep' (string expected, got %s)", args[1].Type())
			}
			unit, ok = timeMetrics[string(s)]
			if !ok {
				return nil, fmt.Errorf("nelumbo.sleep: unknown time metric %s", s)
			}
		}

		if err := Sleep(h, time.Duration(n)*unit); err != nil {
			return nil, err
		}
		return types.Nil, nil
	})
}

func yieldBuiltin(h *Handle) *machine.Builtin {
	return machine.NewBuiltin("yield", func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		if err := Yield(h); err != nil {
			return nil, err
		}
		return types.Nil, nil
	})
}

func threadIDBuiltin(h *Handle) *machine.Builtin {
	return machine.NewBuiltin("thread_id", func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return types.String(h.Name()), nil
	})
}
