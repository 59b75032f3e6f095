// Package threading implements the script-thread engine: spawning a function
// into its own interpreter context on a dedicated goroutine, the
// status/command state machine that drives cooperative pause, resume and
// cancellation, and the helpers available to the running thread itself
// (sleep, yield). Blocking waits are interruptible through the notifier
// primitive so that a cancellation request wakes a sleeping thread promptly.
package threading

import (
	"time"

	"github.com/mna/nelumbo/lang/notifier"
)

// NoTimeout makes a blocking operation wait indefinitely.
const NoTimeout time.Duration = notifier.NoTimeout

// Status is the execution state of a script thread. It is owned by the
// thread's handle and, except for the initial Running value, mutated only by
// the running thread itself.
type Status int

const (
	Running Status = iota
	Paused
	Canceled
	Completed
	Failed
)

// Terminal reports whether the status is final: no transition ever leaves a
// terminal status.
func (s Status) Terminal() bool {
	return s == Canceled || s == Completed || s == Failed
}

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Canceled:
		return "canceled"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Command is the last requested action for a script thread. Commands are not
// queued, a new command overwrites the previous one; cancellation is the
// exception, it is sticky and observed before whatever command came after it.
type Command int

const (
	Run Command = iota
	Cancel
	Pause
)

func (c Command) String() string {
	switch c {
	case Run:
		return "run"
	case Cancel:
		return "cancel"
	case Pause:
		return "pause"
	}
	return "unknown"
}
