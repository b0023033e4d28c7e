package device

import "context"

// Device is an accelerator execution context.
//
// Transfers complete before the call returns, so a launch that follows a
// write always observes the written data. Dispatch may return before the
// launch has finished; Wait blocks until every submitted launch completed.
// Implementations are safe for concurrent use.
type Device interface {
	Name() string
	Limits() Limits

	NewBuffer(n int) (Buffer, error)
	NewImage(dims Dim3) (Image, error)

	// WriteBuffer copies src to the start of dst.
	WriteBuffer(dst Buffer, src []float32) error
	// ReadBuffer copies the first len(dst) elements of src. It waits for
	// pending launches that write src.
	ReadBuffer(dst []float32, src Buffer) error
	// WriteImage uploads src, laid out row-major over dst.Dims().
	WriteImage(dst Image, src []float32) error

	Dispatch(ctx context.Context, p *Program, groups Dim3, bindings ...Resource) error
	Wait(ctx context.Context) error

	Close() error
}
