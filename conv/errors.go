package conv

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by convolution functions. Device failures are never
// mapped onto these; they keep wrapping device.ErrDevice.
var (
	ErrNilInput      = errors.New("conv: nil input")
	ErrShapeMismatch = errors.New("conv: shape mismatch")
	ErrRankMismatch  = errors.New("conv: image and kernel rank differ")
	ErrBatchLength   = errors.New("conv: input and output batch lengths differ")
	ErrTransformSize = errors.New("conv: frequency buffer does not match target shape")
	ErrOffset        = errors.New("conv: kernel offset out of range")
	ErrUnsupported   = errors.New("conv: unsupported configuration")
)

// BatchError reports the members of a batch that failed. Results of the
// other members are valid.
type BatchError struct {
	// Errs has one entry per batch member; nil for members that succeeded.
	Errs []error
}

// Failed returns the indices of the failed members in ascending order.
func (e *BatchError) Failed() []int {
	var idx []int
	for i, err := range e.Errs {
		if err != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

func (e *BatchError) Error() string {
	failed := e.Failed()
	var b strings.Builder
	fmt.Fprintf(&b, "conv: %d of %d batch members failed", len(failed), len(e.Errs))
	for _, i := range failed {
		fmt.Fprintf(&b, "; member %d: %v", i, e.Errs[i])
	}
	return b.String()
}

// Unwrap returns the member errors so errors.Is and errors.As see them.
func (e *BatchError) Unwrap() []error {
	var errs []error
	for _, err := range e.Errs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// batchError returns a *BatchError if any entry of errs is non-nil.
func batchError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return &BatchError{Errs: errs}
		}
	}
	return nil
}
