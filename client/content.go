package client

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/ipc"
	"github.com/gogpu/compositor/layers"
)

// ErrTooLarge is returned when the visible area needs a buffer larger than
// the maximum size.
var ErrTooLarge = errors.New("client: buffer exceeds maximum size")

// Sender is the part of an ipc.ContentEnd a client needs.
type Sender interface {
	SendBuffer(node layers.ID, buf *bufferhost.RotatedBuffer, dirty geom.Region) error
}

var _ Sender = (*ipc.ContentEnd)(nil)

// PaintState is the result of BeginPaint.
type PaintState struct {
	// Buffer is the back buffer to paint into. Nil when nothing needs
	// painting.
	Buffer *bufferhost.RotatedBuffer

	// RegionToDraw is the layer-space region the painter must fill.
	RegionToDraw geom.Region

	// RegionToInvalidate is content that was valid before this paint but
	// had to be discarded.
	RegionToInvalidate geom.Region
}

// PaintFunc fills region of buf. Pixels are addressed in layer space
// through buf.Draw, buf.Set or buf.At.
type PaintFunc func(buf *bufferhost.RotatedBuffer, region geom.Region)

// ContentClient paints one layer.
type ContentClient struct {
	node    layers.ID
	send    Sender
	maxSize int

	back   *bufferhost.RotatedBuffer
	valid  map[*bufferhost.Descriptor]geom.Region
	format driver.Format
	nextID uint64
}

// Option configures a ContentClient.
type Option func(*ContentClient)

// WithMaxSize limits buffer edges to n pixels.
func WithMaxSize(n int) Option {
	return func(c *ContentClient) { c.maxSize = n }
}

// New returns a client painting node and sending through send.
func New(node layers.ID, send Sender, opts ...Option) *ContentClient {
	c := &ContentClient{
		node:  node,
		send:  send,
		valid: make(map[*bufferhost.Descriptor]geom.Region),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Node returns the painted node.
func (c *ContentClient) Node() layers.ID { return c.node }

// Back returns the current back buffer, or nil while all buffers are with
// the compositor.
func (c *ContentClient) Back() *bufferhost.RotatedBuffer { return c.back }

// ValidRegion returns the valid region of the current back buffer.
func (c *ContentClient) ValidRegion() geom.Region {
	if c.back == nil {
		return geom.Region{}
	}
	return c.valid[c.back.Desc]
}

// Invalidate marks r stale in every buffer.
func (c *ContentClient) Invalidate(r geom.Region) {
	for d, v := range c.valid {
		c.valid[d] = v.Subtract(r)
	}
}

func (c *ContentClient) newBuffer(rect image.Rectangle, format driver.Format) *bufferhost.RotatedBuffer {
	c.nextID++
	d := bufferhost.NewDescriptor(c.nextID, rect.Size(), format)
	c.valid[d] = geom.Region{}
	return &bufferhost.RotatedBuffer{Desc: d, Rect: rect}
}

func (c *ContentClient) forget(b *bufferhost.RotatedBuffer) {
	if b != nil {
		delete(c.valid, b.Desc)
	}
}

// BeginPaint prepares the back buffer for showing visible in format and
// returns what must be painted.
func (c *ContentClient) BeginPaint(visible geom.Region, format driver.Format) (PaintState, error) {
	var st PaintState
	bounds := visible.Bounds()

	if c.back != nil && c.back.Desc.Format != format {
		st.RegionToInvalidate = c.valid[c.back.Desc]
		for d := range c.valid {
			delete(c.valid, d)
		}
		c.back = nil
	}
	c.format = format

	canReuse := c.back != nil &&
		bounds.Dx() <= c.back.Rect.Dx() && bounds.Dy() <= c.back.Rect.Dy()

	var dest image.Rectangle
	switch {
	case !canReuse:
		dest = bounds
	case bounds.In(c.back.Rect):
		dest = c.back.Rect
	default:
		dest = image.Rectangle{Min: bounds.Min, Max: bounds.Min.Add(c.back.Rect.Size())}
	}
	if c.maxSize > 0 && (dest.Dx() > c.maxSize || dest.Dy() > c.maxSize) {
		return st, fmt.Errorf("%w: %v", ErrTooLarge, dest.Size())
	}
	if dest.Empty() {
		return st, nil
	}

	if canReuse {
		b := c.back
		if dest != b.Rect {
			if dest.Overlaps(b.Rect) {
				// Keep the overlapping pixels where they are in storage.
				b.Rotation = geom.WrapPoint(b.Rotation.Add(dest.Min.Sub(b.Rect.Min)), b.Desc.Size)
			} else {
				b.Rotation = image.Point{}
			}
			b.Rect = dest
			c.valid[b.Desc] = c.valid[b.Desc].IntersectRect(dest)
		}
	} else {
		c.forget(c.back)
		c.back = c.newBuffer(dest, format)
	}

	st.Buffer = c.back
	st.RegionToDraw = visible.Subtract(c.valid[c.back.Desc])
	if st.RegionToDraw.IsEmpty() {
		st.Buffer = nil
	}
	return st, nil
}

// EndPaint marks the painted region valid and sends the buffer to the
// compositor. The client has no back buffer until one is recycled.
func (c *ContentClient) EndPaint(st PaintState) error {
	if st.Buffer == nil {
		return nil
	}
	if st.Buffer != c.back {
		return fmt.Errorf("client: EndPaint with a buffer that is not the back buffer")
	}
	b := c.back
	if err := c.send.SendBuffer(c.node, b, st.RegionToDraw); err != nil {
		return fmt.Errorf("client: send: %w", err)
	}
	c.valid[b.Desc] = c.valid[b.Desc].Union(st.RegionToDraw).IntersectRect(b.Rect)
	c.back = nil
	logging.Logger().Debug("client: painted",
		"node", c.node,
		"buffer", b.Desc.ID,
		"rects", len(st.RegionToDraw.Rects()))
	return nil
}

// Paint runs BeginPaint, fn and EndPaint.
func (c *ContentClient) Paint(visible geom.Region, format driver.Format, fn PaintFunc) (PaintState, error) {
	st, err := c.BeginPaint(visible, format)
	if err != nil || st.Buffer == nil {
		return st, err
	}
	fn(st.Buffer, st.RegionToDraw)
	return st, c.EndPaint(st)
}

// Recycle adopts a buffer returned by the compositor. A reset discards
// everything the client believed valid.
func (c *ContentClient) Recycle(u bufferhost.Update) {
	if u.Flags.Has(bufferhost.ResetBuffer) {
		for d := range c.valid {
			c.valid[d] = geom.Region{}
		}
	}
	r := u.Returned
	if r == nil {
		return
	}
	if _, known := c.valid[r.Desc]; !known || r.Desc.Format != c.format {
		return
	}
	if c.back != nil && c.back != r {
		// A newer buffer was allocated meanwhile; keep the returned one
		// only if it is at least as large.
		if r.Desc.Size.X < c.back.Desc.Size.X || r.Desc.Size.Y < c.back.Desc.Size.Y {
			c.forget(r)
			return
		}
		c.forget(c.back)
	}
	c.back = r
}

// Handle processes a compositor reply addressed to this client. It reports
// whether the message was consumed.
func (c *ContentClient) Handle(m ipc.Message) bool {
	rec, ok := m.(ipc.Recycled)
	if !ok || rec.Node != c.node {
		return false
	}
	c.Recycle(rec.Update)
	return true
}
