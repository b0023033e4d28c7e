// Package conv computes the response of 3D volumes to small odd-sized
// kernels.
//
// All strategies correlate: output position o sums input[o+d-half]*k[d]
// over every kernel tap d, with the kernel center at size/2 on each axis.
//
//   - [Reference]: host triple loop accumulating in float64, the ground truth
//   - [DeviceStrategy]: direct or tiled programs on a [device.Device], with
//     buffer or image addressing
//   - [SpectralStrategy]: forward transform, pointwise multiply, inverse
//     transform
//
// # Usage
//
// Pick a strategy through options and run it on one volume or a batch:
//
//	dev := host.New()
//	s, err := conv.New(dev, conv.WithStaging(conv.Tiled), conv.WithAddressing(conv.Image))
//	out, err := s.Convolve(ctx, padded, k)
//	outs, err := conv.NewBatch(s).Convolve(ctx, volumes, k)
//
// The flat entry points ConvolveDirectBuffer, ConvolveDirectImage,
// ConvolveTiledBuffer, ConvolveTiledImage, ConvolveBatchBuffers,
// ConvolveForwardTransform and ConvolveBackwardTransform accept plain
// row-major slices.
//
// # Boundaries
//
// With [BoundaryPadded] the input already carries a zero border of kernel
// half size and the output either keeps the padded extent with a zero border
// ([ExtentPadded]) or is cropped to the image ([ExtentInterior]). With
// [BoundaryZero] the input is the raw image and every read outside it is
// zero; the output has the image shape.
//
// # Errors
//
// Invalid shapes, ranks and batch lengths fail before any work is
// dispatched. Accelerator failures wrap [device.ErrDevice]; callers may
// retry them with [NewReference]. Batches report member failures in a
// [*BatchError].
package conv
