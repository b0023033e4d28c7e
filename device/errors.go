package device

import (
	"errors"
	"fmt"
)

// ErrDevice is the root of every accelerator failure. Algorithmic errors
// never wrap it, so callers can tell the two apart with errors.Is.
var ErrDevice = errors.New("device")

// Accelerator failures, all wrapping ErrDevice.
var (
	ErrAlloc       = fmt.Errorf("%w: allocation failed", ErrDevice)
	ErrLaunch      = fmt.Errorf("%w: launch failed", ErrDevice)
	ErrUnavailable = fmt.Errorf("%w: backend unavailable", ErrDevice)
	ErrClosed      = fmt.Errorf("%w: device closed", ErrDevice)
	ErrBinding     = fmt.Errorf("%w: invalid resource binding", ErrDevice)
	ErrLimits      = fmt.Errorf("%w: launch exceeds device limits", ErrDevice)
)

// Error records the device operation that failed.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with op. It returns nil when err is nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
