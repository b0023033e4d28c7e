package conv

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/cwbudde/algo-fold/device"
	"github.com/cwbudde/algo-fold/kernel"
	"github.com/cwbudde/algo-fold/volume"
)

// The functions below take images and kernels as flat row-major slices with
// their per-axis sizes. Buffer variants expect the image already
// zero-padded by the kernel half size and return an output of the padded
// shape whose border is zero. Image variants take the raw image and return
// an output of the same shape, reading zero outside it.

// ConvolveDirectBuffer runs the direct program with buffer addressing.
func ConvolveDirectBuffer(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int) ([]float32, error) {
	return convolveFlat(ctx, dev, image, imageShape, k, kernelShape,
		WithStaging(Global), WithAddressing(Buffer), WithBoundary(BoundaryPadded))
}

// ConvolveDirectImage runs the direct program with image addressing.
func ConvolveDirectImage(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int) ([]float32, error) {
	return convolveFlat(ctx, dev, image, imageShape, k, kernelShape,
		WithStaging(Global), WithAddressing(Image), WithBoundary(BoundaryZero))
}

// ConvolveTiledBuffer runs the tiled program with buffer addressing.
func ConvolveTiledBuffer(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int) ([]float32, error) {
	return convolveFlat(ctx, dev, image, imageShape, k, kernelShape,
		WithStaging(Tiled), WithAddressing(Buffer), WithBoundary(BoundaryPadded))
}

// ConvolveTiledImage runs the tiled program with image addressing.
func ConvolveTiledImage(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int) ([]float32, error) {
	return convolveFlat(ctx, dev, image, imageShape, k, kernelShape,
		WithStaging(Tiled), WithAddressing(Image), WithBoundary(BoundaryZero))
}

// ConvolveBatchBuffers convolves several padded images with one fused
// direct buffer launch.
func ConvolveBatchBuffers(ctx context.Context, dev device.Device, images [][]float32, imageShape []int, k []float32, kernelShape []int) ([][]float32, error) {
	shape, kern, err := flatOperands(imageShape, k, kernelShape)
	if err != nil {
		return nil, err
	}
	ins, err := flatVolumes(images, shape)
	if err != nil {
		return nil, err
	}
	s, err := NewDevice(dev, WithBoundary(BoundaryPadded), WithFused(true))
	if err != nil {
		return nil, err
	}
	outs, err := NewBatch(s, WithFused(true)).Convolve(ctx, ins, kern)
	if err != nil {
		return nil, err
	}
	return lo.Map(outs, func(v *volume.Volume, _ int) []float32 { return v.Data() }), nil
}

// ConvolveForwardTransform returns the spectra of the given volumes, each
// zero-padded to the next power of two per axis.
func ConvolveForwardTransform(ctx context.Context, inputs [][]float32, shape []int) ([]*FrequencyBuffer, error) {
	s, err := volume.ShapeOf(shape)
	if err != nil {
		return nil, err
	}
	ins, err := flatVolumes(inputs, s)
	if err != nil {
		return nil, err
	}
	return NewSpectral().Forward(ctx, ins, nil)
}

// ConvolveBackwardTransform inverts spectra produced by
// ConvolveForwardTransform or SpectralStrategy.Forward into volumes of the
// given shape. Mismatching buffers are reported per member in a
// *BatchError; the outputs of the other members are valid.
func ConvolveBackwardTransform(ctx context.Context, bufs []*FrequencyBuffer, shape []int) ([][]float32, error) {
	s, err := volume.ShapeOf(shape)
	if err != nil {
		return nil, err
	}
	outs, err := NewSpectral().Backward(ctx, bufs, s)
	data := lo.Map(outs, func(v *volume.Volume, _ int) []float32 {
		if v == nil {
			return nil
		}
		return v.Data()
	})
	return data, err
}

func convolveFlat(ctx context.Context, dev device.Device, image []float32, imageShape []int, k []float32, kernelShape []int, opts ...Option) ([]float32, error) {
	shape, kern, err := flatOperands(imageShape, k, kernelShape)
	if err != nil {
		return nil, err
	}
	in, err := volume.FromSlice(shape, image)
	if err != nil {
		return nil, err
	}
	s, err := NewDevice(dev, opts...)
	if err != nil {
		return nil, err
	}
	out, err := s.Convolve(ctx, in, kern)
	if err != nil {
		return nil, err
	}
	return out.Data(), nil
}

func flatOperands(imageShape []int, k []float32, kernelShape []int) (volume.Shape, *kernel.Kernel, error) {
	if len(imageShape) != len(kernelShape) {
		return volume.Shape{}, nil, fmt.Errorf("%w: image has %d axes, kernel %d", ErrRankMismatch, len(imageShape), len(kernelShape))
	}
	shape, err := volume.ShapeOf(imageShape)
	if err != nil {
		return volume.Shape{}, nil, err
	}
	ks, err := volume.ShapeOf(kernelShape)
	if err != nil {
		return volume.Shape{}, nil, err
	}
	kern, err := kernel.New(ks, k)
	if err != nil {
		return volume.Shape{}, nil, err
	}
	return shape, kern, nil
}

func flatVolumes(data [][]float32, shape volume.Shape) ([]*volume.Volume, error) {
	ins := make([]*volume.Volume, len(data))
	for i, d := range data {
		v, err := volume.FromSlice(shape, d)
		if err != nil {
			return nil, fmt.Errorf("batch member %d: %w", i, err)
		}
		ins[i] = v
	}
	return ins, nil
}
