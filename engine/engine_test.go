// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/drivertest"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/texture"
)

func newEngine(t *testing.T, caps driver.Caps) (*Engine, *drivertest.Device) {
	t.Helper()
	dev := drivertest.NewWithCaps(caps, image.Pt(800, 600))
	e, err := New(dev)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e, dev
}

func TestNewCompilesEveryProgram(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	assert.Len(t, dev.Programs, effect.NumPrograms)
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 4096, e.MaxTextureSize())
}

func TestNewCompileFailureIsFatal(t *testing.T) {
	dev := drivertest.New(image.Pt(800, 600))
	dev.FailCompile = map[string]error{"ycbcr": errors.New("bad shader")}
	_, err := New(dev)
	require.ErrorIs(t, err, ErrInitFailed)
	assert.Contains(t, err.Error(), "bad shader")
	for _, p := range dev.Programs {
		assert.True(t, p.Released, "program %s leaked", p.Desc.Name)
	}
}

func TestNewBackBufferFailureIsFatal(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.SingleBuffered = true
	dev := drivertest.NewWithCaps(caps, image.Pt(800, 600))
	dev.FailTexture = errors.New("out of memory")
	_, err := New(dev)
	assert.ErrorIs(t, err, ErrInitFailed)
}

func TestFrameStateMachine(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	solid := &effect.Chain{Solid: &effect.Solid{Color: [4]float32{1, 0, 0, 1}}}
	params := DrawParams{Rect: geom.RectF{W: 10, H: 10}, Chain: solid, Opacity: 1, Transform: geom.Identity()}

	assert.ErrorIs(t, e.DrawQuad(params), ErrBadState)
	assert.ErrorIs(t, e.EndFrame(), ErrBadState)
	assert.ErrorIs(t, e.FlushToScreen(), ErrBadState)

	require.NoError(t, e.BeginFrame(nil))
	assert.ErrorIs(t, e.BeginFrame(nil), ErrBadState)
	require.NoError(t, e.DrawQuad(params))
	require.NoError(t, e.EndFrame())
	assert.Equal(t, StateFrameClosed, e.State())
	assert.ErrorIs(t, e.DrawQuad(params), ErrBadState)
	require.NoError(t, e.FlushToScreen())
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 1, dev.Presents)
	assert.Equal(t, uint64(1), e.Frames())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "solid", draws[0].Program)
	assert.Equal(t, driver.BlendOver, draws[0].Blend)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, draws[0].Uniforms.Color)
}

func TestProjectionRecomputedOnlyOnResize(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.BeginFrame(nil))
		require.NoError(t, e.FlushToScreen())
	}
	assert.Equal(t, 1, e.ProjectionUpdates())

	require.NoError(t, dev.ResizeSurface(image.Pt(1024, 768)))
	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.FlushToScreen())
	assert.Equal(t, 2, e.ProjectionUpdates())
	assert.Equal(t, image.Rect(0, 0, 1024, 768), dev.Passes[len(dev.Passes)-1].Viewport)
}

func TestBeginFrameClipsScissor(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	clip := image.Rect(100, 100, 2000, 200)
	require.NoError(t, e.BeginFrame(&clip))
	solid := &effect.Chain{Solid: &effect.Solid{}}
	layerClip := image.Rect(0, 0, 150, 150)
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect: geom.RectF{W: 10, H: 10}, Chain: solid, Opacity: 1, Transform: geom.Identity(), Clip: &layerClip,
	}))
	require.NoError(t, e.FlushToScreen())
	assert.Equal(t, image.Rect(100, 100, 150, 150), dev.Draws()[0].Scissor)
}

func TestSingleBufferedFlushCopiesBackBuffer(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.SingleBuffered = true
	e, dev := newEngine(t, caps)
	require.Len(t, dev.Textures, 1)
	backBuffer := dev.Textures[0]
	assert.True(t, backBuffer.Desc.RenderTarget)

	require.NoError(t, e.BeginFrame(nil))
	assert.Same(t, backBuffer, dev.Passes[0].Desc.Target)
	require.NoError(t, e.FlushToScreen())

	require.Len(t, dev.Passes, 2)
	copyPass := dev.Passes[1]
	assert.Nil(t, copyPass.Desc.Target)
	require.Len(t, copyPass.Draws, 1)
	assert.Equal(t, "copy", copyPass.Draws[0].Program)
	assert.Equal(t, driver.BlendCopy, copyPass.Draws[0].Blend)
	assert.Same(t, backBuffer, copyPass.Draws[0].Units[0].Texture)
	assert.Equal(t, 1, dev.Presents)
}

func TestDrawTextureDecomposesWithoutNPOTRepeat(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.NPOTRepeat = false
	e, dev := newEngine(t, caps)

	h, err := texture.Allocate(dev, image.Pt(100, 100), driver.FormatBGRA, texture.WithWrap(driver.WrapRepeat))
	require.NoError(t, err)
	require.Equal(t, image.Pt(128, 128), h.AllocatedSize())

	src := geom.RectF{X: 50, Y: 50, W: 100, H: 100}
	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect:      geom.RectF{W: 100, H: 100},
		Source:    &src,
		Chain:     &effect.Chain{Texture: &effect.Texture{Handle: h, Premultiplied: true}},
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 4, draws[0].Quads())
	assert.Equal(t, "bgra", draws[0].Program)
	limit := float32(100) / 128
	for _, v := range draws[0].Vertices {
		assert.LessOrEqual(t, v.U, limit+1e-5)
		assert.LessOrEqual(t, v.V, limit+1e-5)
	}
	assert.Equal(t, 4, e.LastFrame().Quads)
}

func TestDrawTextureRepeatsNatively(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h, err := texture.Allocate(dev, image.Pt(100, 100), driver.FormatRGBA, texture.WithWrap(driver.WrapRepeat))
	require.NoError(t, err)

	src := geom.RectF{X: 50, Y: 0, W: 100, H: 100}
	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect: geom.RectF{W: 100, H: 100}, Source: &src,
		Chain:   &effect.Chain{Texture: &effect.Texture{Handle: h}},
		Opacity: 1, Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 1, draws[0].Quads())
	assert.Equal(t, driver.BlendNonPremultiplied, draws[0].Blend)
	assert.Equal(t, driver.WrapRepeat, draws[0].Units[0].Wrap)
	assert.InDelta(t, 1.5, draws[0].Vertices[5].U, 1e-5)
}

func TestDrawComponentAlphaTwoPasses(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	black, err := texture.Allocate(dev, image.Pt(16, 16), driver.FormatBGRX)
	require.NoError(t, err)
	white, err := texture.Allocate(dev, image.Pt(16, 16), driver.FormatBGRX)
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect:      geom.RectF{W: 16, H: 16},
		Chain:     &effect.Chain{ComponentAlpha: &effect.ComponentAlpha{OnBlack: black, OnWhite: white}},
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, driver.BlendComponentPass1, draws[0].Blend)
	assert.Equal(t, uint32(0), draws[0].Uniforms.Pass)
	assert.Equal(t, driver.BlendComponentPass2, draws[1].Blend)
	assert.Equal(t, uint32(1), draws[1].Uniforms.Pass)
	assert.Same(t, black.Texture(), draws[0].Units[0].Texture)
	assert.Same(t, white.Texture(), draws[0].Units[1].Texture)
}

func TestDrawMaskedTexture(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	tex, err := texture.Allocate(dev, image.Pt(16, 16), driver.FormatRGBA)
	require.NoError(t, err)
	mask, err := texture.Allocate(dev, image.Pt(16, 16), driver.FormatA8)
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect: geom.RectF{W: 16, H: 16},
		Chain: &effect.Chain{
			Texture: &effect.Texture{Handle: tex, Premultiplied: true},
			Mask:    &effect.Mask{Handle: mask, Transform: geom.Scale2D(1.0/16, 1.0/16)},
		},
		Opacity: 0.5, Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	d := dev.Draws()[0]
	assert.Equal(t, "rgba-masked", d.Program)
	assert.Same(t, mask.Texture(), d.Units[1].Texture)
	assert.InDelta(t, 1.0/16, d.Uniforms.MaskTransform.At(0, 0), 1e-6)
	assert.Equal(t, float32(0.5), d.Uniforms.Opacity)
}

func TestDrawTiledOneQuadPerTile(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.MaxTextureSize = 256
	e, dev := newEngine(t, caps)
	tiles, err := texture.AllocateTiled(dev, image.Pt(600, 300), driver.FormatBGRA)
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect:      geom.RectF{W: 600, H: 300},
		Chain:     &effect.Chain{Tiled: &effect.Tiled{Tiles: tiles, Premultiplied: true}},
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 6)
	last := draws[5]
	assert.Same(t, tiles.Tiles()[5].Handle.Texture(), last.Units[0].Texture)
	assert.Equal(t, driver.Vertex{X: 512, Y: 256, U: 0, V: 0}, last.Vertices[0])
	assert.Equal(t, driver.Vertex{X: 600, Y: 300, U: 1, V: 1}, last.Vertices[5])
}

func TestDrawReleasedTextureIsLayerError(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h, err := texture.Allocate(dev, image.Pt(8, 8), driver.FormatRGBA)
	require.NoError(t, err)
	h.Release()

	require.NoError(t, e.BeginFrame(nil))
	err = e.DrawQuad(DrawParams{
		Rect: geom.RectF{W: 8, H: 8}, Chain: &effect.Chain{Texture: &effect.Texture{Handle: h}},
		Opacity: 1, Transform: geom.Identity(),
	})
	assert.ErrorIs(t, err, texture.ErrReleased)
	assert.Equal(t, StateFrameOpen, e.State())
	require.NoError(t, e.FlushToScreen())
}

func TestDrawUnsupportedFormatIsProgramNotFound(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h, err := texture.Allocate(dev, image.Pt(8, 8), driver.FormatA8)
	require.NoError(t, err)
	require.NoError(t, e.BeginFrame(nil))
	err = e.DrawQuad(DrawParams{
		Rect: geom.RectF{W: 8, H: 8}, Chain: &effect.Chain{Texture: &effect.Texture{Handle: h}},
		Opacity: 1, Transform: geom.Identity(),
	})
	assert.ErrorIs(t, err, effect.ErrProgramNotFound)
	e.AbortFrame()
	assert.Equal(t, StateIdle, e.State())
}

func TestGroupCompositesWithOpacity(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	solid := &effect.Chain{Solid: &effect.Solid{Color: [4]float32{0, 0, 1, 1}}}

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.PushGroup(image.Rect(10, 20, 110, 70)))
	require.NoError(t, e.DrawQuad(DrawParams{
		Rect: geom.RectF{X: 10, Y: 20, W: 50, H: 50}, Chain: solid, Opacity: 1, Transform: geom.Identity(),
	}))
	require.NoError(t, e.PopGroup(0.5))
	assert.ErrorIs(t, e.PopGroup(1), ErrBadState)
	require.NoError(t, e.FlushToScreen())

	// frame, group, resumed frame.
	require.Len(t, dev.Passes, 3)
	group := dev.Passes[1]
	require.NotNil(t, group.Desc.Target)
	assert.Equal(t, image.Pt(100, 50), group.Desc.Target.Size())
	require.Len(t, group.Draws, 1)
	assert.Equal(t, [2]float32{10, 20}, group.Draws[0].Uniforms.RenderOffset)

	resumed := dev.Passes[2]
	assert.False(t, resumed.Desc.Clear)
	require.Len(t, resumed.Draws, 1)
	assert.Equal(t, "bgra", resumed.Draws[0].Program)
	assert.Equal(t, float32(0.5), resumed.Draws[0].Uniforms.Opacity)
	assert.Equal(t, 1, e.LastFrame().Groups)
	assert.True(t, group.Desc.Target.(*drivertest.Texture).Released)
}

func TestEndFrameWithOpenGroupFails(t *testing.T) {
	e, _ := newEngine(t, drivertest.DefaultCaps)
	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, e.PushGroup(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, e.EndFrame(), ErrBadState)
	e.AbortFrame()
}

func TestReleaseIsIdempotent(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	e, err := New(dev)
	require.NoError(t, err)
	e.Release()
	e.Release()
	for _, p := range dev.Programs {
		assert.True(t, p.Released)
	}
	assert.ErrorIs(t, e.BeginFrame(nil), ErrReleased)
}
