package volume

import "fmt"

// Pad returns a new volume of shape v.Shape().Grow(half) holding v in the
// centered window [half[a], half[a]+v.Shape()[a]) and zeros everywhere else.
// The result keeps v's storage order.
func Pad(v *Volume, half [3]int) (*Volume, error) {
	for a, h := range half {
		if h < 0 {
			return nil, fmt.Errorf("%w: negative padding %d on axis %d", ErrShape, h, a)
		}
	}
	out, err := NewOrdered(v.shape.Grow(half), v.order)
	if err != nil {
		return nil, err
	}
	w, err := out.Window(half, [3]int{half[0] + v.shape[0], half[1] + v.shape[1], half[2] + v.shape[2]})
	if err != nil {
		return nil, err
	}
	if err := w.CopyFrom(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Interior returns a copy of the centered window of v that remains after
// removing half[a] elements from both ends of each axis.
func Interior(v *Volume, half [3]int) (*Volume, error) {
	inner := v.shape.Shrink(half)
	if err := inner.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v cannot be shrunk by %v", ErrRange, v.shape, half)
	}
	w, err := v.Window(half, [3]int{half[0] + inner[0], half[1] + inner[1], half[2] + inner[2]})
	if err != nil {
		return nil, err
	}
	return w.Copy(), nil
}
