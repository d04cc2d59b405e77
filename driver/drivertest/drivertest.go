// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package drivertest provides a recording driver.Device for tests.
//
// Every call that touches the presentation surface is counted, every draw
// is recorded with its program, blend, bound textures and vertices, and
// every texture and program remembers whether it was released. No GPU is
// required.
package drivertest

import (
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/compositor/driver"
)

// DefaultCaps are the capabilities of a Device created with New.
var DefaultCaps = driver.Caps{
	MaxTextureSize:  4096,
	NPOTRepeat:      true,
	SubRegionUpload: true,
	SharedHandles:   driver.SharesOf(driver.ShareMemory),
}

// Device is a recording driver.Device.
type Device struct {
	mu sync.Mutex

	caps     driver.Caps
	size     image.Point
	released bool // surface released
	closed   bool

	// FailCompile makes CompileProgram fail for the named program.
	FailCompile map[string]error

	// FailTexture makes NewTexture fail with the given error.
	FailTexture error

	Textures []*Texture
	Programs []*Program
	Passes   []*Pass

	// SurfaceAccesses counts every call that touched the surface.
	SurfaceAccesses int
	Presents        int
	Resizes         []image.Point
}

// New returns a device with DefaultCaps and a surface of the given size.
func New(size image.Point) *Device {
	return NewWithCaps(DefaultCaps, size)
}

// NewWithCaps returns a device with the given capabilities.
func NewWithCaps(caps driver.Caps, size image.Point) *Device {
	return &Device{caps: caps, size: size}
}

// Caps implements driver.Device.
func (d *Device) Caps() driver.Caps { return d.caps }

// NewTexture implements driver.Device.
func (d *Device) NewTexture(desc driver.TextureDesc) (driver.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailTexture != nil {
		return nil, d.FailTexture
	}
	if desc.Size.X > d.caps.MaxTextureSize || desc.Size.Y > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("drivertest: texture %v exceeds %d", desc.Size, d.caps.MaxTextureSize)
	}
	t := &Texture{dev: d, Desc: desc}
	d.Textures = append(d.Textures, t)
	return t, nil
}

// CompileProgram implements driver.Device.
func (d *Device) CompileProgram(desc driver.ProgramDesc) (driver.Program, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.FailCompile[desc.Name]; err != nil {
		return nil, err
	}
	p := &Program{Desc: desc}
	d.Programs = append(d.Programs, p)
	return p, nil
}

// BeginPass implements driver.Device.
func (d *Device) BeginPass(desc driver.PassDesc) (driver.Pass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Target == nil {
		d.SurfaceAccesses++
		if d.released {
			return nil, driver.ErrSurfaceReleased
		}
	}
	p := &Pass{Desc: desc}
	d.Passes = append(d.Passes, p)
	return p, nil
}

// SurfaceSize implements driver.Device.
func (d *Device) SurfaceSize() image.Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SurfaceAccesses++
	return d.size
}

// ResizeSurface implements driver.Device.
func (d *Device) ResizeSurface(size image.Point) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SurfaceAccesses++
	d.size = size
	d.Resizes = append(d.Resizes, size)
	return nil
}

// ReleaseSurface implements driver.Device.
func (d *Device) ReleaseSurface() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
}

// RenewSurface implements driver.Device.
func (d *Device) RenewSurface() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = false
	return nil
}

// SurfaceReleased reports whether the surface is currently released.
func (d *Device) SurfaceReleased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}

// Present implements driver.Device.
func (d *Device) Present() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SurfaceAccesses++
	if d.released {
		return driver.ErrSurfaceReleased
	}
	d.Presents++
	return nil
}

// Release implements driver.Device.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed reports whether Release was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Draws returns every draw recorded on every pass, in order.
func (d *Device) Draws() []Draw {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Draw
	for _, p := range d.Passes {
		out = append(out, p.Draws...)
	}
	return out
}

// LiveTextures returns the textures not yet released.
func (d *Device) LiveTextures() []*Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Texture
	for _, t := range d.Textures {
		if !t.Released {
			out = append(out, t)
		}
	}
	return out
}

// Reset forgets recorded passes and counters but keeps objects alive.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Passes = nil
	d.SurfaceAccesses = 0
	d.Presents = 0
	d.Resizes = nil
}

// Upload records one Texture.Upload call.
type Upload struct {
	Rect   image.Rectangle
	Bytes  int
	Stride int
}

// Texture is a recording driver.Texture.
type Texture struct {
	dev  *Device
	Desc driver.TextureDesc

	Uploads  []Upload
	Shared   []driver.SharedHandle
	Released bool

	// ReleaseCount counts Release calls, including no-op repeats.
	ReleaseCount int
}

// Size implements driver.Texture.
func (t *Texture) Size() image.Point { return t.Desc.Size }

// Format implements driver.Texture.
func (t *Texture) Format() driver.Format { return t.Desc.Format }

// Upload implements driver.Texture.
func (t *Texture) Upload(r image.Rectangle, pix []byte, stride int) error {
	if t.Released {
		return driver.ErrReleased
	}
	if !t.dev.caps.SubRegionUpload && r != image.Rect(0, 0, t.Desc.Size.X, t.Desc.Size.Y) {
		return fmt.Errorf("drivertest: partial upload %v without SubRegionUpload", r)
	}
	t.Uploads = append(t.Uploads, Upload{Rect: r, Bytes: len(pix), Stride: stride})
	return nil
}

// AttachShared implements driver.Texture.
func (t *Texture) AttachShared(h driver.SharedHandle) error {
	if t.Released {
		return driver.ErrReleased
	}
	if !t.dev.caps.SharedHandles.Has(h.Type) {
		return driver.ErrUnsupportedShare
	}
	t.Shared = append(t.Shared, h)
	return nil
}

// Release implements driver.Texture.
func (t *Texture) Release() {
	t.ReleaseCount++
	t.Released = true
}

// Program is a recording driver.Program.
type Program struct {
	Desc     driver.ProgramDesc
	Released bool
}

// Name implements driver.Program.
func (p *Program) Name() string { return p.Desc.Name }

// Release implements driver.Program.
func (p *Program) Release() { p.Released = true }

// Binding is one bound texture unit at draw time.
type Binding struct {
	Texture *Texture
	Wrap    driver.Wrap
}

// Draw is one recorded Pass.Draw call with the state active at the time.
type Draw struct {
	Program  string
	Blend    driver.Blend
	Units    map[int]Binding
	Uniforms driver.Uniforms
	Scissor  image.Rectangle
	Vertices []driver.Vertex
	Target   driver.Texture
}

// Quads returns the number of quads in the draw.
func (d Draw) Quads() int { return len(d.Vertices) / 6 }

// Pass is a recording driver.Pass.
type Pass struct {
	Desc     driver.PassDesc
	Viewport image.Rectangle
	Draws    []Draw
	Ended    bool

	scissor  image.Rectangle
	program  driver.Program
	blend    driver.Blend
	units    map[int]Binding
	uniforms driver.Uniforms
}

// SetViewport implements driver.Pass.
func (p *Pass) SetViewport(r image.Rectangle) { p.Viewport = r }

// SetScissor implements driver.Pass.
func (p *Pass) SetScissor(r image.Rectangle) { p.scissor = r }

// SetProgram implements driver.Pass.
func (p *Pass) SetProgram(prog driver.Program, b driver.Blend) {
	p.program = prog
	p.blend = b
}

// BindTexture implements driver.Pass.
func (p *Pass) BindTexture(unit int, t driver.Texture, w driver.Wrap) {
	if p.units == nil {
		p.units = make(map[int]Binding)
	}
	tt, _ := t.(*Texture)
	p.units[unit] = Binding{Texture: tt, Wrap: w}
}

// SetUniforms implements driver.Pass.
func (p *Pass) SetUniforms(u driver.Uniforms) { p.uniforms = u }

// Draw implements driver.Pass.
func (p *Pass) Draw(v []driver.Vertex) error {
	if p.Ended {
		return fmt.Errorf("drivertest: draw on ended pass")
	}
	if p.program == nil {
		return fmt.Errorf("drivertest: draw without program")
	}
	units := make(map[int]Binding, len(p.units))
	for k, b := range p.units {
		units[k] = b
	}
	p.Draws = append(p.Draws, Draw{
		Program:  p.program.Name(),
		Blend:    p.blend,
		Units:    units,
		Uniforms: p.uniforms,
		Scissor:  p.scissor,
		Vertices: append([]driver.Vertex(nil), v...),
		Target:   p.Desc.Target,
	})
	return nil
}

// End implements driver.Pass.
func (p *Pass) End() error {
	p.Ended = true
	return nil
}

var (
	_ driver.Device  = (*Device)(nil)
	_ driver.Texture = (*Texture)(nil)
	_ driver.Program = (*Program)(nil)
	_ driver.Pass    = (*Pass)(nil)
)
