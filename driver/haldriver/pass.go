// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldriver

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compositor/driver"
)

// fenceTimeout bounds the wait for a submitted pass.
const fenceTimeout = 5 * time.Second

var (
	// ErrPassEnded is returned when an ended pass is used.
	ErrPassEnded = errors.New("haldriver: pass ended")

	// ErrNoProgram is returned by Draw before SetProgram.
	ErrNoProgram = errors.New("haldriver: draw without program")

	// ErrUnboundUnit is returned by Draw when the program samples a unit
	// with no texture bound.
	ErrUnboundUnit = errors.New("haldriver: texture unit not bound")
)

type unit struct {
	tex  *Texture
	wrap driver.Wrap
}

// drawResources are the per-draw GPU objects, destroyed after submission.
type drawResources struct {
	uniforms hal.Buffer
	vertices hal.Buffer
	group    hal.BindGroup
}

// Pass records draws into one render pass.
type Pass struct {
	dev     *Device
	desc    driver.PassDesc
	target  *Texture
	encoder hal.CommandEncoder
	rp      hal.RenderPassEncoder

	program  *Program
	blend    driver.Blend
	units    [maxUnits]unit
	uniforms driver.Uniforms

	resources []drawResources
	draws     int
	ended     bool
}

func (d *Device) beginPass(desc driver.PassDesc) (*Pass, error) {
	var target *Texture
	if desc.Target == nil {
		if d.surfaceReleased {
			return nil, driver.ErrSurfaceReleased
		}
		target = d.surface
	} else {
		t, ok := desc.Target.(*Texture)
		if !ok || t.dev != d {
			return nil, fmt.Errorf("%w: pass target", ErrForeignObject)
		}
		if t.released {
			return nil, driver.ErrReleased
		}
		if !t.target {
			return nil, fmt.Errorf("haldriver: texture is not a render target")
		}
		target = t
	}

	label := desc.Label
	if label == "" {
		label = "compositor_pass"
	}
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("haldriver: begin encoding: %w", err)
	}

	load := gputypes.LoadOpLoad
	if desc.Clear {
		load = gputypes.LoadOpClear
	}
	c := desc.ClearColor
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:       target.view,
				LoadOp:     load,
				StoreOp:    gputypes.StoreOpStore,
				ClearValue: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
			},
		},
	})
	return &Pass{dev: d, desc: desc, target: target, encoder: encoder, rp: rp}, nil
}

// SetViewport implements driver.Pass.
func (p *Pass) SetViewport(r image.Rectangle) {
	if p.ended {
		return
	}
	p.rp.SetViewport(float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), 0, 1)
}

// SetScissor implements driver.Pass. The rectangle is clamped to the
// target.
func (p *Pass) SetScissor(r image.Rectangle) {
	if p.ended {
		return
	}
	r = r.Intersect(image.Rectangle{Max: p.target.size})
	p.rp.SetScissorRect(uint32(r.Min.X), uint32(r.Min.Y), uint32(r.Dx()), uint32(r.Dy()))
}

// SetProgram implements driver.Pass.
func (p *Pass) SetProgram(prog driver.Program, b driver.Blend) {
	hp, _ := prog.(*Program)
	p.program = hp
	p.blend = b
}

// BindTexture implements driver.Pass. Units beyond the largest program's
// texture count are ignored.
func (p *Pass) BindTexture(u int, t driver.Texture, w driver.Wrap) {
	if u < 0 || u >= maxUnits {
		return
	}
	ht, _ := t.(*Texture)
	p.units[u] = unit{tex: ht, wrap: w}
}

// SetUniforms implements driver.Pass.
func (p *Pass) SetUniforms(u driver.Uniforms) { p.uniforms = u }

// Draw implements driver.Pass.
func (p *Pass) Draw(v []driver.Vertex) error {
	if p.ended {
		return ErrPassEnded
	}
	if p.program == nil || p.program.dev != p.dev {
		return ErrNoProgram
	}
	if len(v) == 0 {
		return nil
	}
	pipeline, err := p.program.pipeline(p.blend, p.target.format.GPUFormat())
	if err != nil {
		return err
	}
	res, err := p.buildResources(v)
	if err != nil {
		return err
	}
	p.resources = append(p.resources, res)

	p.rp.SetPipeline(pipeline)
	p.rp.SetBindGroup(0, res.group, nil)
	p.rp.SetVertexBuffer(0, res.vertices, 0)
	p.rp.Draw(uint32(len(v)), 1, 0, 0)
	p.draws++
	return nil
}

func (p *Pass) buildResources(v []driver.Vertex) (drawResources, error) {
	d := p.dev
	var res drawResources

	entries := make([]gputypes.BindGroupEntry, 0, 2+p.program.textures)
	for i := 0; i < p.program.textures; i++ {
		u := p.units[i]
		if u.tex == nil || u.tex.dev != d {
			return res, fmt.Errorf("%w: %d for %s", ErrUnboundUnit, i, p.program.name)
		}
		if u.tex.released {
			return res, fmt.Errorf("unit %d: %w", i, driver.ErrReleased)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  uint32(2 + i),
			Resource: gputypes.TextureViewBinding{TextureView: u.tex.view.NativeHandle()},
		})
	}

	ub, err := p.upload("compositor_uniforms", p.uniforms.Bytes(),
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return res, err
	}
	res.uniforms = ub
	vb, err := p.upload("compositor_vertices", driver.VertexBytes(v),
		gputypes.BufferUsageVertex|gputypes.BufferUsageCopyDst)
	if err != nil {
		d.device.DestroyBuffer(ub)
		return drawResources{}, err
	}
	res.vertices = vb

	sampler := d.samplers[p.units[0].wrap]
	entries = append(entries,
		gputypes.BindGroupEntry{Binding: 0, Resource: gputypes.BufferBinding{
			Buffer: ub.NativeHandle(), Offset: 0, Size: driver.UniformSize,
		}},
		gputypes.BindGroupEntry{Binding: 1, Resource: gputypes.SamplerBinding{
			Sampler: sampler.NativeHandle(),
		}},
	)
	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "compositor_bind_" + p.program.name,
		Layout:  p.program.layout.group,
		Entries: entries,
	})
	if err != nil {
		d.device.DestroyBuffer(vb)
		d.device.DestroyBuffer(ub)
		return drawResources{}, fmt.Errorf("haldriver: create bind group: %w", err)
	}
	res.group = group
	return res, nil
}

func (p *Pass) upload(label string, data []byte, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := p.dev.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create %s: %w", label, err)
	}
	p.dev.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// Draws returns the number of draws recorded so far.
func (p *Pass) Draws() int { return p.draws }

// End implements driver.Pass. It submits the pass and waits for the GPU.
// Calling it again is a no-op.
func (p *Pass) End() error {
	if p.ended {
		return nil
	}
	p.ended = true
	defer p.releaseResources()

	d := p.dev
	p.rp.End()
	cmd, err := p.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("haldriver: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("haldriver: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmd}, fence, 1); err != nil {
		return fmt.Errorf("haldriver: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("haldriver: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("haldriver: wait for GPU: timed out after %v", fenceTimeout)
	}
	return nil
}

func (p *Pass) releaseResources() {
	for _, r := range p.resources {
		p.dev.device.DestroyBindGroup(r.group)
		p.dev.device.DestroyBuffer(r.vertices)
		p.dev.device.DestroyBuffer(r.uniforms)
	}
	p.resources = nil
}

var _ driver.Pass = (*Pass)(nil)
