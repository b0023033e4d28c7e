package device

import "fmt"

// BindingKind declares how a program accesses one bound resource.
type BindingKind uint8

const (
	// BufferRead is a read-only storage buffer.
	BufferRead BindingKind = iota
	// BufferReadWrite is a read-write storage buffer.
	BufferReadWrite
	// ImageRead is a read-only 3D float image, accessed without sampling.
	ImageRead
)

func (k BindingKind) String() string {
	switch k {
	case BufferRead:
		return "buffer(read)"
	case BufferReadWrite:
		return "buffer(read_write)"
	case ImageRead:
		return "image(read)"
	default:
		return fmt.Sprintf("BindingKind(%d)", uint8(k))
	}
}

// Invocation identifies one work item of a launch.
type Invocation struct {
	Group      Dim3
	Local      Dim3
	Global     Dim3
	LocalIndex int
}

// ImageView is the host-side read access to a bound image. Load does not
// clamp: coordinates outside Dims are a programming error.
type ImageView interface {
	Dims() Dim3
	Load(x, y, z int) float32
}

// Resources exposes the bindings of a launch to host phases by binding index.
type Resources interface {
	Buffer(i int) []float32
	Image(i int) ImageView
}

// Phase is the host rendition of one barrier-delimited step of a compute
// kernel. shared is the workgroup scratch memory, owned by one workgroup for
// the duration of the launch.
type Phase func(inv Invocation, shared []float32, res Resources)

// Program is a compute kernel ready to be dispatched.
type Program struct {
	Name         string
	Workgroup    Dim3
	SharedFloats int
	Bindings     []BindingKind

	// WGSL is the kernel source for GPU backends, entry point "main",
	// bindings in group 0 numbered like Bindings.
	WGSL string

	// Phases is the kernel for software backends.
	Phases []Phase
}

// Check validates a launch of groups workgroups against l.
func (p *Program) Check(l Limits, groups Dim3) error {
	if !p.Workgroup.Positive() {
		return fmt.Errorf("%w: %s: workgroup %v", ErrLaunch, p.Name, p.Workgroup)
	}
	if !l.FitsWorkgroup(p.Workgroup, p.SharedFloats) {
		return fmt.Errorf("%w: %s: workgroup %v with %d shared floats", ErrLimits, p.Name, p.Workgroup, p.SharedFloats)
	}
	if !groups.Positive() {
		return fmt.Errorf("%w: %s: grid %v", ErrLaunch, p.Name, groups)
	}
	if groups.X > l.MaxGroupsPerDim || groups.Y > l.MaxGroupsPerDim || groups.Z > l.MaxGroupsPerDim {
		return fmt.Errorf("%w: %s: grid %v", ErrLimits, p.Name, groups)
	}
	return nil
}

// Resource is anything that can be bound to a launch.
type Resource interface {
	Release()
}

// Buffer is a flat float32 device allocation.
type Buffer interface {
	Resource
	Len() int
}

// Image is a 3D single-channel float32 device image.
type Image interface {
	Resource
	Dims() Dim3
}
