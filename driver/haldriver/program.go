// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldriver

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compositor/driver"
)

type pipelineKey struct {
	blend  driver.Blend
	format gputypes.TextureFormat
}

// Program is a compiled shader module and the render pipelines built
// from it so far.
type Program struct {
	dev       *Device
	name      string
	textures  int
	module    hal.ShaderModule
	layout    *bindLayout
	pipelines map[pipelineKey]hal.RenderPipeline

	released bool
}

// compileSPIRV compiles WGSL to little-endian SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, err
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V length %d is not a multiple of 4", len(spirv))
	}
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirv[i*4:])
	}
	return words, nil
}

func (d *Device) compileProgram(desc driver.ProgramDesc) (*Program, error) {
	layout, err := d.layout(desc.Textures)
	if err != nil {
		return nil, err
	}
	words, err := compileSPIRV(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("haldriver: compile %s: %w", desc.Name, err)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "compositor_" + desc.Name,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create shader module %s: %w", desc.Name, err)
	}
	return &Program{
		dev:       d,
		name:      desc.Name,
		textures:  desc.Textures,
		module:    module,
		layout:    layout,
		pipelines: make(map[pipelineKey]hal.RenderPipeline),
	}, nil
}

// Name implements driver.Program.
func (p *Program) Name() string { return p.name }

// pipeline returns the render pipeline for blend b into targets of format f.
func (p *Program) pipeline(b driver.Blend, f gputypes.TextureFormat) (hal.RenderPipeline, error) {
	if p.released {
		return nil, driver.ErrReleased
	}
	key := pipelineKey{blend: b, format: f}
	if rp, ok := p.pipelines[key]; ok {
		return rp, nil
	}
	blend := b.State()
	rp, err := p.dev.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("compositor_%s_%v", p.name, b),
		Layout: p.layout.pipeline,
		Vertex: hal.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    vertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    f,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create pipeline %s/%v: %w", p.name, b, err)
	}
	p.pipelines[key] = rp
	return rp, nil
}

// Release implements driver.Program.
func (p *Program) Release() {
	if p.released {
		return
	}
	p.released = true
	for k, rp := range p.pipelines {
		p.dev.device.DestroyRenderPipeline(rp)
		delete(p.pipelines, k)
	}
	p.dev.device.DestroyShaderModule(p.module)
}

func vertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: driver.VertexSize,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
			},
		},
	}
}

var _ driver.Program = (*Program)(nil)
