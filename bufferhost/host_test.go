package bufferhost

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/drivertest"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/texture"
)

func buffer(id uint64, rect image.Rectangle) *RotatedBuffer {
	return &RotatedBuffer{
		Desc: NewDescriptor(id, rect.Size(), driver.FormatRGBA),
		Rect: rect,
	}
}

func TestSwapRoundTrip(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewSwapHost(dev)
	defer h.Release()

	rect := image.Rect(0, 0, 16, 16)
	full := geom.RegionOf(rect)
	a, b := buffer(1, rect), buffer(2, rect)

	u, err := h.Swap(a, full)
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(UpdateFail))
	assert.Nil(t, u.Returned)
	assert.Same(t, a, h.Front())

	u, err = h.Swap(b, full)
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(UpdateSuccess))
	assert.False(t, u.Flags.Has(ResetBuffer))
	require.NotNil(t, u.Returned)
	assert.Same(t, a, u.Returned)
	assert.Same(t, b, h.Front())

	// The returned buffer comes back as the next front.
	u, err = h.Swap(a, full)
	require.NoError(t, err)
	assert.Same(t, b, u.Returned)
	assert.Same(t, a, h.Front())
	assert.True(t, h.ValidRegion().Equal(full))
}

func TestSwapRejectsCurrentFront(t *testing.T) {
	h := NewSwapHost(drivertest.New(image.Pt(100, 100)))
	defer h.Release()
	a := buffer(1, image.Rect(0, 0, 8, 8))

	_, err := h.Swap(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)
	_, err = h.Swap(a, geom.RegionOf(a.Rect))
	assert.ErrorIs(t, err, ErrSameBuffer)
	assert.Same(t, a, h.Front())
}

func TestSwapSizeMismatchResets(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewSwapHost(dev)
	defer h.Release()

	a := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Swap(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)
	old := h.Texture().Texture().(*drivertest.Texture)

	c := buffer(2, image.Rect(0, 0, 16, 16))
	u, err := h.Swap(c, geom.RegionOf(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(ResetBuffer))
	assert.True(t, u.Flags.Has(UpdateFail))
	assert.Nil(t, u.Returned, "the old front is dropped on reset")
	assert.True(t, u.Invalidated.Equal(geom.RegionOf(a.Rect)))
	assert.True(t, h.ValidRegion().Equal(geom.RegionOf(image.Rect(0, 0, 4, 4))))
	assert.True(t, old.Released)
	assert.Equal(t, image.Pt(16, 16), h.Texture().Size())
}

func TestSwapFormatMismatchResets(t *testing.T) {
	h := NewSwapHost(drivertest.New(image.Pt(100, 100)))
	defer h.Release()

	a := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Swap(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)

	b := &RotatedBuffer{Desc: NewDescriptor(2, image.Pt(8, 8), driver.FormatRGBX), Rect: a.Rect}
	u, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(ResetBuffer))
	assert.Equal(t, driver.FormatRGBX, h.Texture().Format())
}

func TestSwapScrollKeepsOverlap(t *testing.T) {
	h := NewSwapHost(drivertest.New(image.Pt(100, 100)))
	defer h.Release()

	a := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Swap(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)

	// Scroll right by two columns, reusing storage through rotation.
	b := buffer(2, image.Rect(2, 0, 10, 8))
	b.Rotation = image.Pt(2, 0)
	exposed := geom.RegionOf(image.Rect(8, 0, 10, 8))
	u, err := h.Swap(b, exposed)
	require.NoError(t, err)

	assert.False(t, u.Flags.Has(ResetBuffer))
	assert.True(t, u.Invalidated.Equal(geom.RegionOf(image.Rect(0, 0, 2, 8))))
	assert.True(t, h.ValidRegion().Equal(geom.RegionOf(b.Rect)))
	assert.Equal(t, image.Pt(0, 0), h.OriginOffset())
}

func TestSwapRejectsBadBuffer(t *testing.T) {
	h := NewSwapHost(drivertest.New(image.Pt(100, 100)))
	b := buffer(1, image.Rect(0, 0, 8, 8))
	b.Rect = image.Rect(0, 0, 4, 4)
	_, err := h.Swap(b, geom.Region{})
	assert.ErrorIs(t, err, ErrBadBuffer)
	_, err = h.Swap(nil, geom.Region{})
	assert.ErrorIs(t, err, ErrBadBuffer)
}

func TestSwapSharedHandleAttaches(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 8, 8))
	b.Desc.Shared = &driver.SharedHandle{Type: driver.ShareMemory, ID: 42, Size: b.Desc.Size, Format: b.Desc.Format}
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	tex := h.Texture().Texture().(*drivertest.Texture)
	require.Len(t, tex.Shared, 1)
	assert.Equal(t, uint64(42), tex.Shared[0].ID)
	assert.Empty(t, tex.Uploads)
}

func TestSwapUnsupportedShareStillExchanges(t *testing.T) {
	h := NewSwapHost(drivertest.New(image.Pt(100, 100)))
	defer h.Release()

	a := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Swap(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)

	b := buffer(2, image.Rect(0, 0, 8, 8))
	b.Desc.Shared = &driver.SharedHandle{Type: driver.ShareDMABuf}
	u, err := h.Swap(b, geom.RegionOf(b.Rect))
	assert.ErrorIs(t, err, texture.ErrIncompatibleSurface)
	assert.Same(t, a, u.Returned)
	assert.Same(t, b, h.Front())
	assert.False(t, h.Initialized())
	assert.True(t, h.ValidRegion().IsEmpty())
	assert.True(t, u.Invalidated.Equal(geom.RegionOf(a.Rect)), "invalidated %v", u.Invalidated.Rects())
}

func TestSwapComponentAlpha(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 8, 8))
	b.OnWhite = NewDescriptor(2, b.Desc.Size, driver.FormatRGBA)
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)
	assert.Len(t, dev.LiveTextures(), 2)

	c := buffer(3, image.Rect(0, 0, 8, 8))
	u, err := h.Swap(c, geom.RegionOf(c.Rect))
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(ResetBuffer), "dropping component alpha resets")
	assert.Len(t, dev.LiveTextures(), 1)
}

func TestUploadHostUpdate(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewUploadHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 16, 16))
	u, err := h.Update(b, geom.RegionOf(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(UpdateNoSwap))
	assert.False(t, u.Flags.Has(ResetBuffer))
	assert.Same(t, b, u.Returned)

	tex := h.Texture().Texture().(*drivertest.Texture)
	require.Len(t, tex.Uploads, 1)
	assert.Equal(t, image.Rect(0, 0, 16, 16), tex.Uploads[0].Rect, "a new texture is filled completely")

	_, err = h.Update(b, geom.RegionOf(image.Rect(4, 4, 8, 6)))
	require.NoError(t, err)
	require.Len(t, tex.Uploads, 2)
	assert.Equal(t, image.Rect(4, 4, 8, 6), tex.Uploads[1].Rect)
	assert.Same(t, tex, h.Texture().Texture(), "same size keeps the texture")
}

func TestUploadHostRotatedDirty(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewUploadHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Update(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	b.Rect = image.Rect(4, 0, 12, 8)
	b.Rotation = image.Pt(4, 0)
	_, err = h.Update(b, geom.RegionOf(image.Rect(8, 0, 12, 8)))
	require.NoError(t, err)

	tex := h.Texture().Texture().(*drivertest.Texture)
	require.Len(t, tex.Uploads, 2)
	assert.Equal(t, image.Rect(0, 0, 4, 8), tex.Uploads[1].Rect)
	assert.Equal(t, image.Pt(4, 0), h.Rotation())
}

func TestUploadHostRecreatesOnSizeChange(t *testing.T) {
	dev := drivertest.New(image.Pt(100, 100))
	h := NewUploadHost(dev)
	defer h.Release()

	a := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Update(a, geom.RegionOf(a.Rect))
	require.NoError(t, err)
	old := h.Texture().Texture().(*drivertest.Texture)

	b := buffer(2, image.Rect(0, 0, 32, 8))
	u, err := h.Update(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)
	assert.True(t, u.Flags.Has(ResetBuffer))
	assert.True(t, u.Invalidated.IsEmpty(), "the whole new rect is valid again")
	assert.True(t, old.Released)
	assert.Equal(t, image.Pt(32, 8), h.Texture().Size())
}

func TestUploadHostResourceError(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.MaxTextureSize = 64
	h := NewUploadHost(drivertest.NewWithCaps(caps, image.Pt(100, 100)))
	b := buffer(1, image.Rect(0, 0, 128, 8))
	_, err := h.Update(b, geom.RegionOf(b.Rect))
	assert.ErrorIs(t, err, texture.ErrResourceExhausted)
	assert.False(t, h.Initialized())
}

func TestResetReturnsValidRegion(t *testing.T) {
	h := NewUploadHost(drivertest.New(image.Pt(100, 100)))
	b := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Update(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	lost := h.Reset()
	assert.True(t, lost.Equal(geom.RegionOf(b.Rect)))
	assert.False(t, h.Initialized())
	assert.True(t, h.ValidRegion().IsEmpty())
	h.Release()
}

func newEngine(t *testing.T, caps driver.Caps) (*engine.Engine, *drivertest.Device) {
	t.Helper()
	dev := drivertest.NewWithCaps(caps, image.Pt(200, 200))
	e, err := engine.New(dev)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e, dev
}

func TestCompositeUnrotated(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(10, 10, 42, 42))
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, h.Composite(e, CompositeParams{
		Visible:   geom.RegionOf(b.Rect),
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, effect.ProgramRGBA.String(), draws[0].Program)
	assert.Equal(t, 1, draws[0].Quads())
	assert.Equal(t, [4]float32{10, 10, 32, 32}, draws[0].Uniforms.LayerRect)
}

func TestCompositeRotatedDecomposes(t *testing.T) {
	caps := drivertest.DefaultCaps
	caps.NPOTRepeat = false
	e, dev := newEngine(t, caps)
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 6, 4))
	b.Rotation = image.Pt(2, 0)
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(8, 4), h.Texture().AllocatedSize())

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, h.Composite(e, CompositeParams{
		Visible:   geom.RegionOf(b.Rect),
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, 2, draws[0].Quads(), "the rotation seam splits the quad")
}

func TestCompositeComponentAlphaTwoPasses(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(0, 0, 8, 8))
	b.OnWhite = NewDescriptor(2, b.Desc.Size, driver.FormatRGBA)
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, h.Composite(e, CompositeParams{Visible: geom.RegionOf(b.Rect), Opacity: 1, Transform: geom.Identity()}))
	require.NoError(t, e.FlushToScreen())

	draws := dev.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, driver.BlendComponentPass1, draws[0].Blend)
	assert.Equal(t, driver.BlendComponentPass2, draws[1].Blend)
}

func TestCompositeEmptyHostDrawsNothing(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h := NewUploadHost(dev)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, h.Composite(e, CompositeParams{Visible: geom.RegionOf(image.Rect(0, 0, 8, 8))}))
	require.NoError(t, e.FlushToScreen())
	assert.Empty(t, dev.Draws())
}

func TestCompositeOutsideFrame(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h := NewUploadHost(dev)
	b := buffer(1, image.Rect(0, 0, 8, 8))
	_, err := h.Update(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	err = h.Composite(e, CompositeParams{Visible: geom.RegionOf(b.Rect), Opacity: 1, Transform: geom.Identity()})
	assert.True(t, errors.Is(err, engine.ErrBadState))
}

func TestCompositeClipsToBufferRect(t *testing.T) {
	tests := []struct {
		name    string
		visible image.Rectangle
		want    [4]float32
	}{
		{"overhanging", image.Rect(60, 60, 160, 160), [4]float32{60, 60, 90, 90}},
		{"enclosing", image.Rect(0, 0, 200, 200), [4]float32{50, 50, 100, 100}},
		{"inside", image.Rect(70, 80, 90, 100), [4]float32{70, 80, 20, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, dev := newEngine(t, drivertest.DefaultCaps)
			h := NewSwapHost(dev)
			defer h.Release()

			b := buffer(1, image.Rect(50, 50, 150, 150))
			_, err := h.Swap(b, geom.RegionOf(b.Rect))
			require.NoError(t, err)

			require.NoError(t, e.BeginFrame(nil))
			require.NoError(t, h.Composite(e, CompositeParams{
				Visible:   geom.RegionOf(tt.visible),
				Opacity:   1,
				Transform: geom.Identity(),
			}))
			require.NoError(t, e.FlushToScreen())

			draws := dev.Draws()
			require.Len(t, draws, 1)
			assert.Equal(t, 1, draws[0].Quads())
			assert.Equal(t, tt.want, draws[0].Uniforms.LayerRect)
		})
	}
}

func TestCompositeVisibleOutsideBufferDrawsNothing(t *testing.T) {
	e, dev := newEngine(t, drivertest.DefaultCaps)
	h := NewSwapHost(dev)
	defer h.Release()

	b := buffer(1, image.Rect(50, 50, 150, 150))
	_, err := h.Swap(b, geom.RegionOf(b.Rect))
	require.NoError(t, err)

	require.NoError(t, e.BeginFrame(nil))
	require.NoError(t, h.Composite(e, CompositeParams{
		Visible:   geom.RegionOf(image.Rect(0, 0, 40, 40)),
		Opacity:   1,
		Transform: geom.Identity(),
	}))
	require.NoError(t, e.FlushToScreen())
	assert.Empty(t, dev.Draws())
}
