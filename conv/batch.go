package conv

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// Batch fans a strategy out over an ordered sequence of equally shaped
// volumes. Output i depends on input i only.
//
// Without WithFused every member is convolved by its own call, at most
// Workers at a time, and a failing member does not affect the others. With
// WithFused and a BatchStrategy the batch is stacked into as few launches as
// the device limits allow and succeeds or fails as a unit.
type Batch struct {
	strategy Strategy
	cfg      Config
}

// NewBatch returns a batch orchestrator. Only the Workers and Fused options
// are used.
func NewBatch(s Strategy, opts ...Option) *Batch {
	return &Batch{strategy: s, cfg: ApplyOptions(opts...)}
}

// Strategy returns the wrapped strategy.
func (b *Batch) Strategy() Strategy { return b.strategy }

// Convolve returns one output per input, in input order. Validation errors
// abort the call. Member failures are reported as a *BatchError next to
// the outputs of the members that succeeded; failed members have a nil
// output.
func (b *Batch) Convolve(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel) ([]*volume.Volume, error) {
	if b.strategy == nil {
		return nil, fmt.Errorf("%w: strategy", ErrNilInput)
	}
	shape, err := batchShape(ins, k)
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		return nil, nil
	}
	if _, err := b.strategy.OutputShape(shape, k); err != nil {
		return nil, err
	}

	if bs, ok := b.strategy.(BatchStrategy); ok && b.cfg.Fused {
		return bs.ConvolveBatch(ctx, ins, k)
	}

	outs := make([]*volume.Volume, len(ins))
	errs := make([]error, len(ins))
	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)
	for i, in := range ins {
		g.Go(func() error {
			outs[i], errs[i] = b.strategy.Convolve(ctx, in, k)
			return nil
		})
	}
	_ = g.Wait()
	return outs, batchError(errs)
}

// ConvolveInto convolves ins into the caller's outs. Batch lengths and
// output shapes are checked before anything runs. Outputs of failed members
// are left untouched.
func (b *Batch) ConvolveInto(ctx context.Context, ins []*volume.Volume, k *kernel.Kernel, outs []*volume.Volume) error {
	if len(ins) != len(outs) {
		return fmt.Errorf("%w: %d inputs, %d outputs", ErrBatchLength, len(ins), len(outs))
	}
	if b.strategy == nil {
		return fmt.Errorf("%w: strategy", ErrNilInput)
	}
	shape, err := batchShape(ins, k)
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		return nil
	}
	want, err := b.strategy.OutputShape(shape, k)
	if err != nil {
		return err
	}
	for i, out := range outs {
		if out == nil {
			return fmt.Errorf("%w: output %d", ErrNilInput, i)
		}
		if out.Shape() != want {
			return fmt.Errorf("%w: output %d has shape %v, want %v", ErrShapeMismatch, i, out.Shape(), want)
		}
	}

	results, err := b.Convolve(ctx, ins, k)
	for i, res := range results {
		if res == nil {
			continue
		}
		if cerr := outs[i].CopyFrom(res); cerr != nil {
			return cerr
		}
	}
	return err
}
