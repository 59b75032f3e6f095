package threading_test

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mna/nelumbo/lang/machine"
	"github.com/mna/nelumbo/lang/shared"
	"github.com/mna/nelumbo/lang/shutdown"
	"github.com/mna/nelumbo/lang/threading"
	"github.com/mna/nelumbo/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func spawn(t *testing.T, r *threading.Runner, args types.Tuple,
	fn func(th *machine.Thread, args types.Tuple) (types.Value, error)) *threading.Thread {

	t.Helper()
	f := &machine.Function{FnName: t.Name(), Fn: fn}
	var (
		tt  *threading.Thread
		err error
	)
	if r != nil {
		tt, err = r.Spawn(f, args)
	} else {
		tt, err = threading.Spawn(f, args)
	}
	require.NoError(t, err)
	return tt
}

func statusString(t *testing.T, vals []types.Value) string {
	t.Helper()
	require.NotEmpty(t, vals)
	s, ok := vals[0].(types.String)
	require.True(t, ok, "status value %v is not a string", vals[0])
	return string(s)
}

func TestSpawnCompletesWithResults(t *testing.T) {
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return types.Tuple{types.Int(1), types.Int(2), types.Int(3)}, nil
	})

	vals := tt.Wait(threading.NoTimeout)
	assert.Equal(t, "completed", statusString(t, vals))
	assert.Equal(t, []types.Value{types.Int(1), types.Int(2), types.Int(3)},
		tt.Get(threading.NoTimeout))
}

func TestSpawnSingleResult(t *testing.T) {
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return types.String("only"), nil
	})
	assert.Equal(t, []types.Value{types.String("only")}, tt.Get(threading.NoTimeout))
}

func TestSpawnNilResultYieldsNoValues(t *testing.T) {
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return types.Nil, nil
	})
	tt.Wait(threading.NoTimeout)
	assert.Equal(t, "completed", statusString(t, tt.Status()))
	assert.Empty(t, tt.Get(threading.NoTimeout))
}

func TestSpawnFailure(t *testing.T) {
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return nil, errors.New("boom")
	})

	vals := tt.Wait(threading.NoTimeout)
	require.Len(t, vals, 2)
	assert.Equal(t, types.String("failed"), vals[0])
	assert.Equal(t, types.String("boom"), vals[1])

	// a failed thread yields no result values
	assert.Nil(t, tt.Get(threading.NoTimeout))
}

func TestSpawnNilFunction(t *testing.T) {
	_, err := threading.Spawn(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nelumbo.thread")
}

func TestArgumentsCrossTheStore(t *testing.T) {
	m := types.NewMap(2)
	require.NoError(t, m.SetKey(types.String("a"), types.Int(40)))
	require.NoError(t, m.SetKey(types.String("b"), types.Int(2)))

	tt := spawn(t, nil, types.Tuple{m}, func(_ *machine.Thread, args types.Tuple) (types.Value, error) {
		in := args[0].(*types.Map)
		var sum types.Int
		it := in.Iterate()
		defer it.Done()
		var kv types.Value
		for it.Next(&kv) {
			sum += kv.(types.Tuple)[1].(types.Int)
		}
		return sum, nil
	})

	assert.Equal(t, []types.Value{types.Int(42)}, tt.Get(threading.NoTimeout))

	// crossing the boundary froze the caller's map
	assert.ErrorContains(t, m.SetKey(types.String("c"), types.Int(1)), "frozen map")
}

func TestResultOutlivesProducerContext(t *testing.T) {
	const entries = 1000
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		m := types.NewMap(entries)
		for i := 0; i < entries; i++ {
			if err := m.SetKey(types.String(fmt.Sprintf("key-%d", i)), types.Int(i)); err != nil {
				return nil, err
			}
		}
		return m, nil
	})

	// once completed, the producing context has been destroyed; the value
	// must still be fully readable
	res := tt.Get(threading.NoTimeout)
	require.Len(t, res, 1)
	m, ok := res[0].(*types.Map)
	require.True(t, ok)
	require.Equal(t, entries, m.Len())
	for _, i := range []int{0, 1, entries / 2, entries - 1} {
		v, found, err := m.Get(types.String(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, types.Int(i), v)
	}

	// the value is pinned by the store while the handle is alive
	assert.Greater(t, shared.PinnedCount(), 0)
	// and frozen for publication
	assert.ErrorContains(t, m.SetKey(types.String("x"), types.Nil), "frozen map")
}

func TestCancelSleepingThread(t *testing.T) {
	tt := spawn(t, nil, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		sleep := th.Predeclared["sleep"]
		return machine.Call(th, sleep, types.Tuple{types.Int(30)}) // 30s
	})

	// let the thread enter its sleep
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	require.True(t, tt.Cancel(10*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second,
		"cancel must interrupt the sleep well before its nominal duration")
	assert.Equal(t, "canceled", statusString(t, tt.Status()))
}

func TestCancelBusyThread(t *testing.T) {
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, err
			}
		}
	})
	require.True(t, tt.Cancel(10*time.Second))
	assert.Equal(t, "canceled", statusString(t, tt.Status()))
}

func TestPauseResume(t *testing.T) {
	var steps atomic.Int64
	var stop atomic.Bool
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for !stop.Load() {
			if err := th.Step(); err != nil {
				return nil, err
			}
			steps.Add(1)
		}
		return types.Int(steps.Load()), nil
	})

	require.True(t, tt.Pause(threading.NoTimeout))
	assert.Equal(t, "paused", statusString(t, tt.Status()))

	// no execution progress while paused
	before := steps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, steps.Load())

	tt.Resume()
	stop.Store(true)
	vals := tt.Wait(threading.NoTimeout)
	assert.Equal(t, "completed", statusString(t, vals))
	res := tt.Get(threading.NoTimeout)
	require.Len(t, res, 1)
	assert.GreaterOrEqual(t, int64(res[0].(types.Int)), before)
}

func TestCancelWhilePaused(t *testing.T) {
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, err
			}
		}
	})

	require.True(t, tt.Pause(threading.NoTimeout))
	require.True(t, tt.Cancel(threading.NoTimeout))
	assert.Equal(t, "canceled", statusString(t, tt.Status()))
}

func TestCancelIsSticky(t *testing.T) {
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, err
			}
		}
	})

	tt.Handle().PutCommand(threading.Cancel)
	// a resume after a cancellation request must not revive the thread
	tt.Resume()

	vals := tt.Wait(threading.NoTimeout)
	assert.Equal(t, "canceled", statusString(t, vals))
}

func TestCancelConvertedToOrdinaryError(t *testing.T) {
	// user code that flattens the cancellation unwind into a plain error must
	// not turn the canceled thread into a failed one, nor touch its results
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, fmt.Errorf("user saw: %v", err)
			}
		}
	})

	require.True(t, tt.Cancel(10*time.Second))
	vals := tt.Wait(threading.NoTimeout)
	assert.Equal(t, "canceled", statusString(t, vals))
	assert.Empty(t, tt.Handle().ResultValues())
}

func TestCancelTerminalThreadReturnsTrue(t *testing.T) {
	tt := spawn(t, nil, nil, func(_ *machine.Thread, _ types.Tuple) (types.Value, error) {
		return types.Nil, nil
	})
	tt.Wait(threading.NoTimeout)
	assert.True(t, tt.Cancel(threading.NoTimeout))
	// the terminal status is unchanged
	assert.Equal(t, "completed", statusString(t, tt.Status()))
}

func TestSleepArgumentErrors(t *testing.T) {
	cases := []struct {
		name string
		args types.Tuple
		want string
	}{
		{"bad duration", types.Tuple{types.String("x")},
			"bad argument #1 to 'nelumbo.sleep' (int expected, got string)"},
		{"bad metric type", types.Tuple{types.Int(1), types.Int(2)},
			"bad argument #2 to 'nelumbo.sleep' (string expected, got int)"},
		{"unknown metric", types.Tuple{types.Int(1), types.String("h")},
			`nelumbo.sleep: unknown time metric "h"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tt := spawn(t, nil, c.args, func(th *machine.Thread, args types.Tuple) (types.Value, error) {
				return machine.Call(th, th.Predeclared["sleep"], args)
			})
			vals := tt.Wait(threading.NoTimeout)
			require.Len(t, vals, 2)
			assert.Equal(t, types.String("failed"), vals[0])
			assert.Equal(t, c.want, string(vals[1].(types.String)))
		})
	}
}

func TestThreadIDBuiltin(t *testing.T) {
	tt := spawn(t, nil, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		return machine.Call(th, th.Predeclared["thread_id"], nil)
	})
	res := tt.Get(threading.NoTimeout)
	require.Len(t, res, 1)
	assert.Equal(t, types.String(tt.Name()), res[0])
}

func TestProtectCannotSuppressCancellation(t *testing.T) {
	r := &threading.Runner{StepInterval: 1}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		busy := machine.NewBuiltin("busy", func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
			for {
				if err := th.Step(); err != nil {
					return nil, err
				}
			}
		})
		// a protected call intercepts ordinary errors, but the cancellation
		// unwind must pass through it untouched
		res, err := machine.Protect(th, busy, nil)
		if err != nil {
			return nil, err
		}
		return res, nil
	})

	require.True(t, tt.Cancel(10*time.Second))
	assert.Equal(t, "canceled", statusString(t, tt.Status()))
}

func TestStatusAlwaysValidUnderConcurrentCommands(t *testing.T) {
	valid := map[string]bool{
		"running": true, "paused": true, "canceled": true,
		"completed": true, "failed": true,
	}

	r := &threading.Runner{StepInterval: 1, Name: "hammer"}
	tt := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, err
			}
		}
	})

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			for j := 0; j < 50; j++ {
				switch (i + j) % 3 {
				case 0:
					tt.Pause(time.Millisecond)
				case 1:
					tt.Resume()
				default:
					st := tt.Status()
					if len(st) == 0 {
						return fmt.Errorf("empty status")
					}
					s, ok := st[0].(types.String)
					if !ok {
						return fmt.Errorf("status %v is not a string", st[0])
					}
					if !valid[string(s)] {
						return fmt.Errorf("invalid status %q", s)
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.True(t, tt.Cancel(threading.NoTimeout))
	for i := 0; i < 10; i++ {
		assert.Equal(t, "canceled", statusString(t, tt.Status()))
	}
}

func TestGlobalShutdownDrainsAllThreads(t *testing.T) {
	r := &threading.Runner{StepInterval: 1}

	// a few short-lived threads plus one paused thread
	for i := 0; i < 3; i++ {
		spawn(t, nil, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
			return machine.Call(th, th.Predeclared["sleep"], types.Tuple{types.Int(50), types.String("ms")})
		})
	}
	paused := spawn(t, r, nil, func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
		for {
			if err := th.Step(); err != nil {
				return nil, err
			}
		}
	})
	require.True(t, paused.Pause(threading.NoTimeout))

	done := make(chan struct{})
	go func() {
		shutdown.Shutdown()
		close(done)
	}()

	// shutdown must not return while the paused thread is alive
	select {
	case <-done:
		t.Fatal("shutdown returned while a thread was still active")
	case <-time.After(100 * time.Millisecond):
	}

	require.True(t, paused.Cancel(threading.NoTimeout))
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not return after all threads exited")
	}
	assert.EqualValues(t, 0, shutdown.ActiveThreads())
}
