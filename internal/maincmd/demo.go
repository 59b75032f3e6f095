package maincmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/mna/mainer"
	"github.com/mna/nelumbo/internal/config"
	"github.com/mna/nelumbo/lang/machine"
	"github.com/mna/nelumbo/lang/shutdown"
	"github.com/mna/nelumbo/lang/threading"
	"github.com/mna/nelumbo/lang/types"
	"golang.org/x/exp/slices"
)

// Demo spawns a batch of script threads and walks them through the whole
// lifecycle: concurrent workers that run to completion, a spinner that gets
// paused, resumed and canceled, a sleeper woken out of a long wait by
// cancellation, and a final drain of the whole runtime.
func (c *Cmd) Demo(_ context.Context, stdio mainer.Stdio, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return printError(stdio, err)
	}
	nworkers := cfg.DemoThreads
	if c.Threads > 0 {
		nworkers = c.Threads
	}

	cookie := shutdown.RegisterTeardownCookie()
	defer runtime.KeepAlive(cookie)

	r := threading.Runner{
		Name:         "demo",
		StepInterval: cfg.StepInterval,
		PinOSThread:  cfg.PinOSThread,
		Stdout:       stdio.Stdout,
		Stderr:       stdio.Stderr,
	}

	// concurrent workers, each summing its own slice of integers
	workers := make([]*threading.Thread, nworkers)
	for i := range workers {
		lo := types.Int(i*10 + 1)
		fn := &machine.Function{
			FnName: fmt.Sprintf("sum-%d", i+1),
			Fn: func(th *machine.Thread, args types.Tuple) (types.Value, error) {
				lo := args[0].(types.Int)
				var sum types.Int
				for n := lo; n < lo+10; n++ {
					if err := th.Step(); err != nil {
						return nil, err
					}
					sum += n
				}
				return sum, nil
			},
		}
		th, err := r.Spawn(fn, types.Tuple{lo})
		if err != nil {
			return printError(stdio, err)
		}
		workers[i] = th
	}

	lines := make([]string, 0, len(workers))
	for i, th := range workers {
		res := th.Get(threading.NoTimeout)
		if len(res) == 0 {
			return printError(stdio, fmt.Errorf("demo: worker %d did not complete: %v", i+1, th.Status()))
		}
		lines = append(lines, fmt.Sprintf("worker %d: %s", i+1, res[0]))
	}
	slices.Sort(lines)
	for _, l := range lines {
		fmt.Fprintln(stdio.Stdout, l)
	}

	// a spinner that only ever steps, paused and resumed from here
	spinRunner := r
	spinRunner.StepInterval = 1
	spin := &machine.Function{
		FnName: "spin",
		Fn: func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
			for {
				if err := th.Step(); err != nil {
					return nil, err
				}
			}
		},
	}
	spinner, err := spinRunner.Spawn(spin, nil)
	if err != nil {
		return printError(stdio, err)
	}
	if spinner.Pause(threading.NoTimeout) {
		fmt.Fprintln(stdio.Stdout, "spinner paused")
	}
	spinner.Resume()
	spinner.Cancel(0)
	spinner.Wait(threading.NoTimeout)
	fmt.Fprintf(stdio.Stdout, "spinner %s\n", spinner.Handle().Status())

	// a sleeper blocked in a long interruptible wait, woken by cancellation
	sleeper, err := r.Spawn(&machine.Function{
		FnName: "sleeper",
		Fn: func(th *machine.Thread, _ types.Tuple) (types.Value, error) {
			sleep := th.Predeclared["sleep"].(machine.Callable)
			return machine.Call(th, sleep, types.Tuple{types.Int(3600)})
		},
	}, nil)
	if err != nil {
		return printError(stdio, err)
	}
	sleeper.Cancel(0)
	sleeper.Wait(threading.NoTimeout)
	fmt.Fprintf(stdio.Stdout, "sleeper %s\n", sleeper.Handle().Status())

	shutdown.Shutdown()
	fmt.Fprintf(stdio.Stdout, "all threads drained, %d active\n", shutdown.ActiveThreads())
	return nil
}
