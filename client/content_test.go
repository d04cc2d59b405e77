package client

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/ipc"
	"github.com/gogpu/compositor/layers"
)

type sent struct {
	node  layers.ID
	buf   *bufferhost.RotatedBuffer
	dirty geom.Region
}

type recorder struct {
	sent []sent
	err  error
}

func (r *recorder) SendBuffer(node layers.ID, buf *bufferhost.RotatedBuffer, dirty geom.Region) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sent{node, buf, dirty})
	return nil
}

func fill(val byte) PaintFunc {
	return func(buf *bufferhost.RotatedBuffer, region geom.Region) {
		for _, r := range region.Rects() {
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					buf.Set(image.Pt(x, y), []byte{val, byte(x), byte(y), 255})
				}
			}
		}
	}
}

func TestFirstPaintSendsEverything(t *testing.T) {
	rec := &recorder{}
	c := New(7, rec)
	visible := geom.RegionOf(image.Rect(0, 0, 64, 32))

	st, err := c.Paint(visible, driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	assert.True(t, st.RegionToDraw.Equal(visible))
	require.Len(t, rec.sent, 1)
	assert.Equal(t, layers.ID(7), rec.sent[0].node)
	assert.Equal(t, image.Rect(0, 0, 64, 32), rec.sent[0].buf.Rect)
	assert.Nil(t, c.Back(), "the buffer belongs to the compositor now")
}

func TestRecycledBufferNeedsNoRepaint(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	visible := geom.RegionOf(image.Rect(0, 0, 16, 16))

	_, err := c.Paint(visible, driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	assert.True(t, c.Handle(ipc.Recycled{Node: 1, Update: bufferhost.Update{Returned: rec.sent[0].buf}}))
	require.NotNil(t, c.Back())

	st, err := c.BeginPaint(visible, driver.FormatRGBA)
	require.NoError(t, err)
	assert.Nil(t, st.Buffer)
	assert.True(t, st.RegionToDraw.IsEmpty())
}

func TestScrollRotatesBuffer(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	_, err := c.Paint(geom.RegionOf(image.Rect(0, 0, 100, 100)), driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	buf := rec.sent[0].buf
	c.Recycle(bufferhost.Update{Flags: bufferhost.UpdateNoSwap, Returned: buf})

	st, err := c.Paint(geom.RegionOf(image.Rect(0, 20, 100, 120)), driver.FormatRGBA, fill(2))
	require.NoError(t, err)

	require.Same(t, buf, st.Buffer, "same-size scroll reuses storage")
	assert.Equal(t, image.Rect(0, 20, 100, 120), buf.Rect)
	assert.Equal(t, image.Pt(0, 20), buf.Rotation)
	assert.True(t, st.RegionToDraw.Equal(geom.RegionOf(image.Rect(0, 100, 100, 120))))

	// Old pixels stay where they were painted, new ones wrap into the
	// storage rows that scrolled out.
	assert.Equal(t, []byte{1, 5, 50, 255}, buf.At(image.Pt(5, 50)))
	assert.Equal(t, []byte{2, 5, 110, 255}, buf.At(image.Pt(5, 110)))
	assert.Equal(t, image.Pt(5, 10), buf.PhysicalPoint(image.Pt(5, 110)))
}

func TestDisjointMoveResetsRotation(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	_, err := c.Paint(geom.RegionOf(image.Rect(0, 0, 10, 10)), driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	c.Recycle(bufferhost.Update{Returned: rec.sent[0].buf})

	st, err := c.BeginPaint(geom.RegionOf(image.Rect(50, 50, 60, 60)), driver.FormatRGBA)
	require.NoError(t, err)
	assert.Equal(t, image.Point{}, st.Buffer.Rotation)
	assert.True(t, st.RegionToDraw.Equal(geom.RegionOf(image.Rect(50, 50, 60, 60))))
}

func TestGrowAllocatesNewBuffer(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	_, err := c.Paint(geom.RegionOf(image.Rect(0, 0, 10, 10)), driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	small := rec.sent[0].buf
	c.Recycle(bufferhost.Update{Returned: small})

	st, err := c.BeginPaint(geom.RegionOf(image.Rect(0, 0, 20, 10)), driver.FormatRGBA)
	require.NoError(t, err)
	assert.NotSame(t, small, st.Buffer)
	assert.Equal(t, image.Pt(20, 10), st.Buffer.Desc.Size)
	assert.Equal(t, 200, st.RegionToDraw.Area())
}

func TestFormatChangeInvalidates(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	visible := geom.RegionOf(image.Rect(0, 0, 10, 10))
	_, err := c.Paint(visible, driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	c.Recycle(bufferhost.Update{Returned: rec.sent[0].buf})

	st, err := c.BeginPaint(visible, driver.FormatRGBX)
	require.NoError(t, err)
	assert.True(t, st.RegionToInvalidate.Equal(visible))
	assert.Equal(t, driver.FormatRGBX, st.Buffer.Desc.Format)
	assert.True(t, st.RegionToDraw.Equal(visible))

	// A late return of the old format is ignored.
	require.NoError(t, c.EndPaint(st))
	c.Recycle(bufferhost.Update{Returned: rec.sent[0].buf})
	assert.Nil(t, c.Back())
}

func TestInvalidateAndReset(t *testing.T) {
	rec := &recorder{}
	c := New(1, rec)
	visible := geom.RegionOf(image.Rect(0, 0, 10, 10))
	_, err := c.Paint(visible, driver.FormatRGBA, fill(1))
	require.NoError(t, err)
	c.Recycle(bufferhost.Update{Returned: rec.sent[0].buf})

	c.Invalidate(geom.RegionOf(image.Rect(0, 0, 2, 2)))
	st, err := c.BeginPaint(visible, driver.FormatRGBA)
	require.NoError(t, err)
	assert.Equal(t, 4, st.RegionToDraw.Area())
	require.NoError(t, c.EndPaint(st))

	c.Recycle(bufferhost.Update{Flags: bufferhost.ResetBuffer | bufferhost.UpdateFail})
	assert.Nil(t, c.Back())
	c.Recycle(bufferhost.Update{Returned: rec.sent[1].buf})
	assert.True(t, c.ValidRegion().IsEmpty())
}

func TestTooLarge(t *testing.T) {
	c := New(1, &recorder{}, WithMaxSize(64))
	_, err := c.BeginPaint(geom.RegionOf(image.Rect(0, 0, 65, 10)), driver.FormatRGBA)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestSendFailureKeepsBuffer(t *testing.T) {
	rec := &recorder{err: ipc.ErrClosed}
	c := New(1, rec)
	_, err := c.Paint(geom.RegionOf(image.Rect(0, 0, 4, 4)), driver.FormatRGBA, fill(1))
	assert.True(t, errors.Is(err, ipc.ErrClosed))
	assert.NotNil(t, c.Back())
}

func TestHandleIgnoresOtherNodes(t *testing.T) {
	c := New(1, &recorder{})
	assert.False(t, c.Handle(ipc.Recycled{Node: 2}))
	assert.False(t, c.Handle(ipc.ViewportSync{}))
}
