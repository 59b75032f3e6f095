package threading

import (
	"errors"

	"github.com/mna/nelumbo/lang/machine"
)

// cancelUnwind is the control-unwind signal raised when a thread observes a
// cancellation request. It is deliberately a distinct type from ordinary
// script errors and implements machine.Uncatchable, so protected calls let it
// propagate to the thread's top-level driver where it maps to the Canceled
// status.
type cancelUnwind struct{}

var _ machine.Uncatchable = cancelUnwind{}

func (cancelUnwind) Error() string { return "thread canceled" }
func (cancelUnwind) Uncatchable()  {}

func isUnwind(err error) bool {
	var u cancelUnwind
	return errors.As(err, &u)
}
