// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/geom"
)

// VertexSize is the byte stride of a Vertex.
const VertexSize = 16

// UniformSize is the byte size of the serialized Uniforms block.
const UniformSize = 240

// Vertex is a layer-space position with texture coordinates.
type Vertex struct {
	X, Y float32
	U, V float32
}

// QuadVertices returns the two triangles covering dst with texture
// coordinates spanning tex.
func QuadVertices(dst, tex geom.RectF) []Vertex {
	tl := Vertex{X: dst.X, Y: dst.Y, U: tex.X, V: tex.Y}
	tr := Vertex{X: dst.XMost(), Y: dst.Y, U: tex.XMost(), V: tex.Y}
	bl := Vertex{X: dst.X, Y: dst.YMost(), U: tex.X, V: tex.YMost()}
	br := Vertex{X: dst.XMost(), Y: dst.YMost(), U: tex.XMost(), V: tex.YMost()}
	return []Vertex{tl, tr, bl, bl, tr, br}
}

// VertexBytes serializes vs in the shared vertex layout.
func VertexBytes(vs []Vertex) []byte {
	buf := make([]byte, len(vs)*VertexSize)
	for i, v := range vs {
		o := buf[i*VertexSize:]
		binary.LittleEndian.PutUint32(o[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(o[4:8], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(o[8:12], math.Float32bits(v.U))
		binary.LittleEndian.PutUint32(o[12:16], math.Float32bits(v.V))
	}
	return buf
}

// Uniforms is the per-draw uniform block shared by every program.
type Uniforms struct {
	// Projection maps surface pixels to clip space.
	Projection mgl32.Mat4

	// Transform maps layer space to surface pixels.
	Transform mgl32.Mat4

	// MaskTransform maps surface pixels to mask texture coordinates.
	MaskTransform mgl32.Mat4

	// LayerRect is the destination quad (x, y, w, h) in layer space.
	LayerRect [4]float32

	// Color is the premultiplied solid color.
	Color [4]float32

	// RenderOffset is subtracted from transformed positions when drawing
	// into an intermediate surface.
	RenderOffset [2]float32

	Opacity float32

	// Pass selects the component-alpha pass (0 or 1).
	Pass uint32
}

// Bytes serializes u in WGSL uniform layout.
func (u *Uniforms) Bytes() []byte {
	buf := make([]byte, UniformSize)
	off := 0
	putF := func(f float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(f))
		off += 4
	}
	for _, m := range []*mgl32.Mat4{&u.Projection, &u.Transform, &u.MaskTransform} {
		for _, f := range m {
			putF(f)
		}
	}
	for _, f := range u.LayerRect {
		putF(f)
	}
	for _, f := range u.Color {
		putF(f)
	}
	putF(u.RenderOffset[0])
	putF(u.RenderOffset[1])
	putF(u.Opacity)
	binary.LittleEndian.PutUint32(buf[off:off+4], u.Pass)
	return buf
}
