package browser

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionInit means the underlying browser engine could not be
	// started: missing binary, resource exhaustion, sandbox failure.
	ErrSessionInit = errors.New("browser engine failed to start")

	// ErrElementNotFound means a locator did not resolve within the
	// operation's wait budget.
	ErrElementNotFound = errors.New("element not found")

	// ErrTimeout means a wait condition did not hold before its budget
	// expired.
	ErrTimeout = errors.New("wait budget exceeded")

	// ErrSessionClosed means an operation was attempted after Close.
	ErrSessionClosed = errors.New("browser session closed")
)

// DriverError wraps engine-level faults that are neither a missing
// element nor an expired wait.
type DriverError struct {
	Op       string
	Selector string
	Err      error
}

func (e *DriverError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("driver %s [%s]: %v", e.Op, e.Selector, e.Err)
	}
	return fmt.Sprintf("driver %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

// NewDriverError creates a DriverError for the given operation.
func NewDriverError(op, selector string, err error) *DriverError {
	return &DriverError{Op: op, Selector: selector, Err: err}
}
