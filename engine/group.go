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

// PushGroup redirects drawing into an intermediate surface covering bounds
// (surface space) until the matching PopGroup. Groups nest.
func (e *Engine) PushGroup(bounds image.Rectangle) error {
	if e.state != StateFrameOpen {
		return fmt.Errorf("%w: PushGroup in %v", ErrBadState, e.state)
	}
	parent := e.current()
	bounds = bounds.Intersect(parent.clip)
	if bounds.Empty() {
		// Keep push/pop balanced with a zero-sized group that draws nothing.
		e.targets = append(e.targets, &target{origin: bounds.Min, pass: parent.pass, projection: parent.projection})
		return nil
	}

	tex, err := texture.Allocate(e.dev, bounds.Size(), driver.FormatBGRA,
		texture.WithLabel("group"),
		texture.WithRenderTarget(),
		texture.WithPool(e.opts.pool),
		texture.WithBudget(e.opts.budget))
	if err != nil {
		return fmt.Errorf("engine: group surface: %w", err)
	}
	if err := parent.pass.End(); err != nil {
		tex.Release()
		return fmt.Errorf("engine: suspend pass: %w", err)
	}
	pass, err := e.dev.BeginPass(driver.PassDesc{Label: "group", Target: tex.Texture(), Clear: true})
	if err != nil {
		tex.Release()
		return fmt.Errorf("engine: group pass: %w", err)
	}
	size := bounds.Size()
	pass.SetViewport(image.Rectangle{Max: size})
	e.targets = append(e.targets, &target{
		tex:        tex,
		origin:     bounds.Min,
		size:       size,
		projection: geom.Ortho(size.X, size.Y),
		clip:       bounds,
		pass:       pass,
	})
	e.stats.Groups++
	return nil
}

// PopGroup ends the innermost group and composites it into its parent
// with the given opacity.
func (e *Engine) PopGroup(opacity float32) error {
	if e.state != StateFrameOpen || len(e.targets) < 2 {
		return fmt.Errorf("%w: PopGroup without PushGroup", ErrBadState)
	}
	g := e.current()
	e.targets = e.targets[:len(e.targets)-1]
	if g.tex == nil {
		return nil
	}
	defer g.tex.Release()

	if err := g.pass.End(); err != nil {
		return fmt.Errorf("engine: end group: %w", err)
	}
	parent := e.current()
	var parentTarget driver.Texture
	switch {
	case parent.tex != nil:
		parentTarget = parent.tex.Texture()
	case e.backBuffer != nil:
		parentTarget = e.backBuffer.Texture()
	}
	pass, err := e.dev.BeginPass(driver.PassDesc{Label: "resume", Target: parentTarget, Clear: false})
	if err != nil {
		return fmt.Errorf("engine: resume pass: %w", err)
	}
	pass.SetViewport(image.Rectangle{Max: parent.size})
	pass.SetScissor(parent.clip.Sub(parent.origin))
	parent.pass = pass

	prog, err := e.program(effect.ProgramBGRA)
	if err != nil {
		return err
	}
	rect := geom.RectFOf(image.Rectangle{Min: g.origin, Max: g.origin.Add(g.size)})
	pass.SetProgram(prog, driver.BlendOver)
	pass.BindTexture(0, g.tex.Texture(), driver.WrapClamp)
	pass.SetUniforms(driver.Uniforms{
		Projection:    parent.projection,
		Transform:     mgl32.Ident4(),
		MaskTransform: mgl32.Ident4(),
		LayerRect:     rect.Vec4(),
		Opacity:       opacity,
		RenderOffset:  [2]float32{float32(parent.origin.X), float32(parent.origin.Y)},
	})
	if err := pass.Draw(driver.QuadVertices(rect, geom.RectF{W: 1, H: 1})); err != nil {
		return fmt.Errorf("engine: composite group: %w", err)
	}
	e.stats.DrawCalls++
	e.stats.Quads++
	e.stats.TextureBinds++
	return nil
}
