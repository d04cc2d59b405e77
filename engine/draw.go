// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/texture"
)

// DrawParams describes one DrawQuad call.
type DrawParams struct {
	// Rect is the destination quad in layer space.
	Rect geom.RectF

	// Source is the sampled area in content pixels of the primary texture.
	// Nil samples the whole content. A source extending past the content
	// wraps around.
	Source *geom.RectF

	// Clip limits drawing to a surface-space rectangle.
	Clip *image.Rectangle

	Chain     *effect.Chain
	Opacity   float32
	Transform mgl32.Mat4

	// Offset is subtracted from surface positions in addition to the
	// origin of the current intermediate surface.
	Offset image.Point
}

// DrawQuad draws one quad described by p. It is valid only while the frame
// is open.
func (e *Engine) DrawQuad(p DrawParams) error {
	if e.state != StateFrameOpen {
		return fmt.Errorf("%w: DrawQuad in %v", ErrBadState, e.state)
	}
	if p.Chain == nil {
		return fmt.Errorf("engine: DrawQuad: %w", effect.ErrInvalidChain)
	}
	req, err := p.Chain.Request()
	if err != nil {
		return fmt.Errorf("engine: DrawQuad: %w", err)
	}
	sel, err := effect.Select(req)
	if err != nil {
		return fmt.Errorf("engine: DrawQuad: %w", err)
	}
	if p.Rect.Empty() {
		return nil
	}

	t := e.current()
	scissor := t.clip
	if p.Clip != nil {
		scissor = scissor.Intersect(*p.Clip)
	}
	if scissor.Empty() {
		return nil
	}
	t.pass.SetScissor(scissor.Sub(t.origin))

	u := driver.Uniforms{
		Projection:    t.projection,
		Transform:     p.Transform,
		MaskTransform: mgl32.Ident4(),
		LayerRect:     p.Rect.Vec4(),
		Opacity:       p.Opacity,
		RenderOffset: [2]float32{
			float32(t.origin.X + p.Offset.X),
			float32(t.origin.Y + p.Offset.Y),
		},
	}
	if p.Chain.Solid != nil {
		u.Color = p.Chain.Solid.Color
	}
	if p.Chain.Mask != nil {
		u.MaskTransform = p.Chain.Mask.Transform
	}

	if sel.Tiled {
		return e.drawTiled(t.pass, sel, p, u)
	}

	for _, b := range sel.Bindings {
		h := p.Chain.Handle(b.Role)
		if h == nil || h.Texture() == nil {
			return fmt.Errorf("engine: %v unit %d: %w", b.Role, b.Unit, texture.ErrReleased)
		}
		t.pass.BindTexture(b.Unit, h.Texture(), h.Wrap())
		e.stats.TextureBinds++
	}

	var quads []Quad
	if primary := primaryHandle(p.Chain, sel); primary != nil {
		quads = e.textureQuads(p.Rect, p.Source, primary)
	} else {
		quads = []Quad{{Dst: p.Rect, Tex: geom.RectF{W: 1, H: 1}}}
	}
	return e.issue(t.pass, sel, u, quads)
}

func primaryHandle(c *effect.Chain, sel effect.Selection) *texture.Handle {
	for _, b := range sel.Bindings {
		if b.Role != effect.RoleMask {
			return c.Handle(b.Role)
		}
	}
	return nil
}

// textureQuads computes geometry for a texture source, decomposing wrapped
// sources the sampler cannot repeat.
func (e *Engine) textureQuads(dst geom.RectF, src *geom.RectF, h *texture.Handle) []Quad {
	content := h.Size()
	s := geom.RectF{W: float32(content.X), H: float32(content.Y)}
	if src != nil {
		s = *src
	}
	// Content-normalized: 1.0 is one copy of the content.
	norm := s.Scale(1/float32(content.X), 1/float32(content.Y))
	scale := h.ContentScale()

	canRepeat := h.Wrap() == driver.WrapRepeat && h.AllocatedSize() == content &&
		(e.caps.NPOTRepeat || (geom.IsPowerOfTwo(content.X) && geom.IsPowerOfTwo(content.Y)))
	if !wraps(norm) || canRepeat {
		return []Quad{{Dst: dst, Tex: norm.Scale(scale.X, scale.Y)}}
	}

	quads := DecomposeNoRepeat(dst, norm)
	for i := range quads {
		quads[i].Tex = quads[i].Tex.Scale(scale.X, scale.Y)
	}
	return quads
}

func (e *Engine) issue(pass driver.Pass, sel effect.Selection, u driver.Uniforms, quads []Quad) error {
	var verts []driver.Vertex
	for _, q := range quads {
		verts = append(verts, driver.QuadVertices(q.Dst, q.Tex)...)
	}
	for i, sp := range sel.Passes {
		prog, err := e.program(sp.Program)
		if err != nil {
			return err
		}
		pass.SetProgram(prog, sp.Blend)
		u.Pass = uint32(i)
		pass.SetUniforms(u)
		if err := pass.Draw(verts); err != nil {
			return fmt.Errorf("engine: draw %v: %w", sp.Program, err)
		}
		e.stats.DrawCalls++
		e.stats.Quads += len(quads)
	}
	return nil
}

// drawTiled issues one quad per tile that intersects the source.
func (e *Engine) drawTiled(pass driver.Pass, sel effect.Selection, p DrawParams, u driver.Uniforms) error {
	tiles := p.Chain.Tiled.Tiles
	size := tiles.Size()
	src := geom.RectF{W: float32(size.X), H: float32(size.Y)}
	if p.Source != nil {
		src = *p.Source
	}
	if src.Empty() {
		return nil
	}
	sx, sy := p.Rect.W/src.W, p.Rect.H/src.H

	for _, b := range sel.Bindings {
		if b.Role == effect.RoleMask {
			m := p.Chain.Mask.Handle
			if m.Texture() == nil {
				return fmt.Errorf("engine: mask: %w", texture.ErrReleased)
			}
			pass.BindTexture(b.Unit, m.Texture(), m.Wrap())
			e.stats.TextureBinds++
		}
	}

	for _, tile := range tiles.Tiles() {
		part := src.Intersect(geom.RectFOf(tile.Rect))
		if part.Empty() {
			continue
		}
		tex := tile.Handle.Texture()
		if tex == nil {
			return fmt.Errorf("engine: tile %v: %w", tile.Rect, texture.ErrReleased)
		}
		pass.BindTexture(0, tex, driver.WrapClamp)
		e.stats.TextureBinds++

		dst := geom.RectF{
			X: p.Rect.X + (part.X-src.X)*sx,
			Y: p.Rect.Y + (part.Y-src.Y)*sy,
			W: part.W * sx,
			H: part.H * sy,
		}
		alloc := tile.Handle.AllocatedSize()
		tc := part.Translate(-float32(tile.Rect.Min.X), -float32(tile.Rect.Min.Y)).
			Scale(1/float32(alloc.X), 1/float32(alloc.Y))
		if err := e.issue(pass, sel, u, []Quad{{Dst: dst, Tex: tc}}); err != nil {
			return err
		}
	}
	return nil
}
