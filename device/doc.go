// Package device describes the accelerator execution context the convolution
// strategies run on.
//
// A [Device] allocates flat float32 buffers and 3D single-channel images,
// copies data between host and device, launches [Program]s over a grid of
// workgroups and waits for completion. A Program carries two renditions of
// the same compute kernel: WGSL source for GPU backends and a list of host
// [Phase] functions for software backends. Consecutive phases are separated
// by a workgroup barrier: no invocation starts phase i+1 before every
// invocation of the same workgroup has finished phase i.
//
// Backends live in the sub-packages host and webgpu.
package device
