// Package volume provides the dense 3D float32 container consumed by the
// convolution engine.
//
// A [Volume] owns a contiguous buffer of X*Y*Z single-precision values. Its
// storage order (row-major with the last axis fastest, or column-major with the
// first axis fastest) is fixed when the volume is created and travels with the
// instance, so two goroutines working on differently ordered volumes never
// disagree about indexing.
//
// # Usage
//
//	img, _ := volume.New(volume.Shape{64, 64, 64})
//	padded, _ := volume.Pad(img, [3]int{2, 4, 6})
//	w, _ := padded.Window([3]int{2, 4, 6}, [3]int{66, 68, 70})
//
// A [Window] borrows the storage of its parent and never owns it.
//
// # Comparison helpers
//
// [Sum], [L2Distance] and [MaxAbsDiff] accumulate in float64 and compare
// volumes by logical index, so the result does not depend on storage order.
package volume
