// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import (
	"errors"
	"image"
)

// Driver errors.
var (
	// ErrSurfaceReleased is returned when the presentation surface is used
	// while released (between ReleaseSurface and RenewSurface).
	ErrSurfaceReleased = errors.New("driver: surface released")

	// ErrUnsupportedShare is returned by Texture.AttachShared for share
	// types the device cannot import.
	ErrUnsupportedShare = errors.New("driver: unsupported shared handle type")

	// ErrReleased is returned when a released object is used.
	ErrReleased = errors.New("driver: object released")
)

// ShareType identifies how an externally produced surface is shared.
type ShareType uint8

const (
	// ShareMemory is a CPU shared-memory pixel buffer.
	ShareMemory ShareType = iota + 1

	// ShareGPUTexture is a GPU texture created by another context.
	ShareGPUTexture

	// ShareDMABuf is a Linux dma-buf file descriptor.
	ShareDMABuf
)

// ShareTypes is a set of share types.
type ShareTypes uint32

// SharesOf returns the set containing ts.
func SharesOf(ts ...ShareType) ShareTypes {
	var s ShareTypes
	for _, t := range ts {
		s |= 1 << t
	}
	return s
}

// Has reports whether t is in the set.
func (s ShareTypes) Has(t ShareType) bool { return s&(1<<t) != 0 }

// SharedHandle describes a zero-copy surface produced outside the
// compositor. For ShareMemory, Pixels and Stride hold the shared bytes;
// the other types carry an opaque ID.
type SharedHandle struct {
	Type   ShareType
	ID     uint64
	Size   image.Point
	Format Format
	Pixels []byte
	Stride int
}

// Caps describes what the device can do.
type Caps struct {
	// MaxTextureSize is the largest texture edge in pixels.
	MaxTextureSize int

	// NPOTRepeat reports whether non-power-of-two textures may use WrapRepeat.
	NPOTRepeat bool

	// SubRegionUpload reports whether Texture.Upload accepts partial rectangles.
	SubRegionUpload bool

	// SharedHandles lists the importable share types.
	SharedHandles ShareTypes

	// SingleBuffered reports that the surface has no back buffer, so the
	// compositor must render offscreen and copy on flush.
	SingleBuffered bool
}

// TextureDesc describes a texture to create.
type TextureDesc struct {
	Label  string
	Size   image.Point
	Format Format

	// RenderTarget makes the texture usable as a PassDesc target.
	RenderTarget bool
}

// Texture is a GPU texture owned by a Device.
type Texture interface {
	// Size returns the allocated size in pixels.
	Size() image.Point

	// Format returns the pixel format.
	Format() Format

	// Upload copies pixels into r. pix starts at the first pixel of r and
	// rows are stride bytes apart.
	Upload(r image.Rectangle, pix []byte, stride int) error

	// AttachShared replaces the contents with an external surface.
	AttachShared(h SharedHandle) error

	// Release frees the GPU allocation. Calling it twice is a no-op.
	Release()
}

// ProgramDesc describes one shader program variant.
type ProgramDesc struct {
	Name string

	// Source is WGSL with vs_main and fs_main entry points.
	Source string

	// Textures is the number of texture bindings after the sampler.
	Textures int
}

// Program is a compiled shader program.
type Program interface {
	Name() string
	Release()
}

// PassDesc describes a render pass.
type PassDesc struct {
	Label string

	// Target is the texture to render into. Nil selects the surface.
	Target Texture

	// Clear clears the target to ClearColor before drawing; otherwise the
	// previous contents are kept.
	Clear      bool
	ClearColor [4]float32
}

// Pass records draws into one target. Draw state set on a pass persists
// until changed.
type Pass interface {
	SetViewport(r image.Rectangle)
	SetScissor(r image.Rectangle)
	SetProgram(p Program, b Blend)
	BindTexture(unit int, t Texture, w Wrap)
	SetUniforms(u Uniforms)

	// Draw issues a triangle list.
	Draw(v []Vertex) error

	// End submits the pass.
	End() error
}

// Device is a GPU context with one presentation surface.
type Device interface {
	Caps() Caps
	NewTexture(desc TextureDesc) (Texture, error)
	CompileProgram(desc ProgramDesc) (Program, error)
	BeginPass(desc PassDesc) (Pass, error)

	// SurfaceSize returns the current size of the presentation surface.
	SurfaceSize() image.Point

	// ResizeSurface changes the surface size.
	ResizeSurface(size image.Point) error

	// ReleaseSurface drops the presentation surface; RenewSurface
	// reacquires it.
	ReleaseSurface()
	RenewSurface() error

	// Present shows the surface contents.
	Present() error

	// Release destroys the context. Textures and programs must be
	// released first.
	Release()
}
