package volume

import "fmt"

// Window is a non-owning rectangular view into a Volume.
// Writes through a window are visible in the parent and vice versa.
type Window struct {
	parent *Volume
	origin [3]int
	shape  Shape
}

// Window returns the view covering [lo[a], hi[a]) along each axis.
func (v *Volume) Window(lo, hi [3]int) (*Window, error) {
	var shape Shape
	for a := range 3 {
		if lo[a] < 0 || hi[a] > v.shape[a] || lo[a] >= hi[a] {
			return nil, fmt.Errorf("%w: axis %d range [%d, %d) in extent %d", ErrRange, a, lo[a], hi[a], v.shape[a])
		}
		shape[a] = hi[a] - lo[a]
	}
	return &Window{parent: v, origin: lo, shape: shape}, nil
}

// Shape returns the extent of the window.
func (w *Window) Shape() Shape { return w.shape }

// Origin returns the parent index of the window's (0, 0, 0) element.
func (w *Window) Origin() [3]int { return w.origin }

// At returns the value at window-relative (x, y, z).
func (w *Window) At(x, y, z int) float32 {
	return w.parent.At(w.origin[0]+x, w.origin[1]+y, w.origin[2]+z)
}

// Set stores val at window-relative (x, y, z).
func (w *Window) Set(x, y, z int, val float32) {
	w.parent.Set(w.origin[0]+x, w.origin[1]+y, w.origin[2]+z, val)
}

// Fill sets every element of the window to val.
func (w *Window) Fill(val float32) {
	for x := 0; x < w.shape[0]; x++ {
		for y := 0; y < w.shape[1]; y++ {
			for z := 0; z < w.shape[2]; z++ {
				w.Set(x, y, z, val)
			}
		}
	}
}

// CopyFrom assigns the contents of src to the window. Shapes must match.
func (w *Window) CopyFrom(src *Volume) error {
	if src.shape != w.shape {
		return fmt.Errorf("%w: copy %v into window %v", ErrShape, src.shape, w.shape)
	}
	src.each(func(x, y, z int, val float32) {
		w.Set(x, y, z, val)
	})
	return nil
}

// Copy returns a new owning volume with the window's contents, stored in
// the parent's order.
func (w *Window) Copy() *Volume {
	out, _ := NewOrdered(w.shape, w.parent.order)
	for x := 0; x < w.shape[0]; x++ {
		for y := 0; y < w.shape[1]; y++ {
			for z := 0; z < w.shape[2]; z++ {
				out.Set(x, y, z, w.At(x, y, z))
			}
		}
	}
	return out
}
