package webgpu

import (
	"fmt"

	"github.com/openfluke/webgpu/wgpu"

	"github.com/cwbudde/algo-fold/device"
)

// maxPipelines bounds the pipeline cache. Launch geometries are baked into
// the WGSL source, so every input shape adds an entry.
const maxPipelines = 64

type pipeline struct {
	layout  *wgpu.BindGroupLayout
	compute *wgpu.ComputePipeline
}

func (p *pipeline) release() {
	p.compute.Release()
	p.layout.Release()
}

// pipeline returns the cached pipeline for p's source. d.mu must be held.
func (d *Device) pipeline(p *device.Program) (*pipeline, error) {
	if pl, ok := d.pipelines[p.WGSL]; ok {
		return pl, nil
	}

	module, err := d.dev.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          p.Name + "_shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: p.WGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s: %v", device.ErrLaunch, p.Name, err)
	}
	defer module.Release()

	bgl, err := d.dev.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   p.Name + "_bgl",
		Entries: layoutEntries(p.Bindings),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: layout %s: %v", device.ErrLaunch, p.Name, err)
	}

	layout, err := d.dev.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.Name + "_pl",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("%w: layout %s: %v", device.ErrLaunch, p.Name, err)
	}
	defer layout.Release()

	compute, err := d.dev.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.Name + "_pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		bgl.Release()
		return nil, fmt.Errorf("%w: pipeline %s: %v", device.ErrLaunch, p.Name, err)
	}

	if len(d.pipelines) >= maxPipelines {
		for src, old := range d.pipelines {
			old.release()
			delete(d.pipelines, src)
		}
	}
	pl := &pipeline{layout: bgl, compute: compute}
	d.pipelines[p.WGSL] = pl
	d.log.Debug("webgpu pipeline", "program", p.Name, "workgroup", p.Workgroup.String(), "cached", len(d.pipelines))
	return pl, nil
}
