package bufferhost

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/texture"
)

var (
	// ErrSameBuffer is returned when the new front buffer is the buffer
	// already being displayed.
	ErrSameBuffer = errors.New("bufferhost: new front is the current front")

	// ErrBadBuffer is returned for buffers whose rectangle does not match
	// the descriptor size.
	ErrBadBuffer = errors.New("bufferhost: buffer rect does not match descriptor size")
)

// UpdateFlags describe the outcome of an update.
type UpdateFlags uint8

const (
	// ResetBuffer means the host discarded its content; the producer must
	// repaint everything.
	ResetBuffer UpdateFlags = 1 << iota

	// UpdateSuccess means a previous front buffer was returned.
	UpdateSuccess

	// UpdateFail means there was no previous front buffer to return.
	UpdateFail

	// UpdateNoSwap means the producer keeps its buffer.
	UpdateNoSwap
)

// Has reports whether all bits of o are set.
func (f UpdateFlags) Has(o UpdateFlags) bool { return f&o == o }

// Update is the result of one host update.
type Update struct {
	Flags UpdateFlags

	// Returned is the buffer handed back to the producer: the previous
	// front for SwapHost, the producer's own buffer for UploadHost. Nil
	// with UpdateFail.
	Returned *RotatedBuffer

	// Invalidated is the part of the previous valid region that is no
	// longer valid, in layer space.
	Invalidated geom.Region
}

// CompositeParams describe how a host draws itself.
type CompositeParams struct {
	// Visible is the layer-space region to draw.
	Visible   geom.Region
	Clip      *image.Rectangle
	Opacity   float32
	Transform mgl32.Mat4
	Offset    image.Point
	Mask      *effect.Mask
}

// host is the state shared by both host kinds.
type host struct {
	dev  driver.Device
	opts []texture.Option

	tex      *texture.Handle
	onWhite  *texture.Handle
	rect     image.Rectangle
	rotation image.Point
	valid    geom.Region
}

func newHost(dev driver.Device, opts []texture.Option) host {
	o := append([]texture.Option{texture.WithWrap(driver.WrapRepeat)}, opts...)
	return host{dev: dev, opts: o}
}

// BufferRect returns the layer-space rectangle of the displayed buffer.
func (h *host) BufferRect() image.Rectangle { return h.rect }

// Rotation returns the rotation offset of the displayed buffer.
func (h *host) Rotation() image.Point { return h.rotation }

// OriginOffset returns BufferRect().Min - Rotation().
func (h *host) OriginOffset() image.Point { return h.rect.Min.Sub(h.rotation) }

// ValidRegion returns the layer-space region holding correct pixels.
func (h *host) ValidRegion() geom.Region { return h.valid }

// Initialized reports whether the host has content to draw.
func (h *host) Initialized() bool { return h.tex != nil }

// Texture returns the displayed texture, or nil.
func (h *host) Texture() *texture.Handle { return h.tex }

func (h *host) releaseTextures() {
	if h.tex != nil {
		h.tex.Release()
		h.tex = nil
	}
	if h.onWhite != nil {
		h.onWhite.Release()
		h.onWhite = nil
	}
}

// ensureTextures makes sure the textures match the buffer's descriptors.
// It reports whether they had to be recreated.
func (h *host) ensureTextures(b *RotatedBuffer) (bool, error) {
	match := func(t *texture.Handle, d *Descriptor) bool {
		return t != nil && d != nil && t.Size() == d.Size && t.Format() == d.Format
	}
	if match(h.tex, b.Desc) && (b.OnWhite == nil) == (h.onWhite == nil) &&
		(b.OnWhite == nil || match(h.onWhite, b.OnWhite)) {
		return false, nil
	}
	h.releaseTextures()
	tex, err := texture.Allocate(h.dev, b.Desc.Size, b.Desc.Format, h.opts...)
	if err != nil {
		return true, err
	}
	h.tex = tex
	if b.OnWhite != nil {
		w, err := texture.Allocate(h.dev, b.OnWhite.Size, b.OnWhite.Format, h.opts...)
		if err != nil {
			h.releaseTextures()
			return true, err
		}
		h.onWhite = w
	}
	return true, nil
}

// load transfers the storage region of b's descriptors into the textures.
func (h *host) load(b *RotatedBuffer, storage geom.Region) error {
	if err := loadOne(h.tex, b.Desc, storage); err != nil {
		return err
	}
	if b.OnWhite != nil {
		return loadOne(h.onWhite, b.OnWhite, storage)
	}
	return nil
}

func loadOne(t *texture.Handle, d *Descriptor, storage geom.Region) error {
	if d.Shared != nil {
		return t.AttachSharedHandle(*d.Shared)
	}
	return t.UploadRegion(d.Pix, d.Stride, storage)
}

func checkBuffer(b *RotatedBuffer) error {
	if b == nil || b.Desc == nil {
		return fmt.Errorf("%w: nil buffer", ErrBadBuffer)
	}
	if b.Rect.Size() != b.Desc.Size {
		return fmt.Errorf("%w: rect %v, descriptor %v", ErrBadBuffer, b.Rect, b.Desc.Size)
	}
	if b.OnWhite != nil && b.OnWhite.Size != b.Desc.Size {
		return fmt.Errorf("%w: on-white %v, descriptor %v", ErrBadBuffer, b.OnWhite.Size, b.Desc.Size)
	}
	return nil
}

// chain builds the effect chain for the displayed content.
func (h *host) chain(mask *effect.Mask) *effect.Chain {
	c := &effect.Chain{Mask: mask}
	if h.onWhite != nil {
		c.ComponentAlpha = &effect.ComponentAlpha{OnBlack: h.tex, OnWhite: h.onWhite}
	} else {
		c.Texture = &effect.Texture{Handle: h.tex, Premultiplied: true}
	}
	return c
}

// Composite draws the part of the visible region covered by the buffer
// rect through e. Each rectangle is translated into texture space, where it
// may extend past the texture when the buffer is rotated; the engine wraps
// such sources.
func (h *host) Composite(e *engine.Engine, p CompositeParams) error {
	if h.tex == nil {
		return nil
	}
	origin := h.OriginOffset()
	sub := p.Visible.IntersectRect(h.rect).Translate(origin.Mul(-1))
	if sub.IsEmpty() {
		return nil
	}

	chain := h.chain(p.Mask)
	for _, r := range sub.Rects() {
		src := geom.RectFOf(r)
		err := e.DrawQuad(engine.DrawParams{
			Rect:      geom.RectFOf(r.Add(origin)),
			Source:    &src,
			Clip:      p.Clip,
			Chain:     chain,
			Opacity:   p.Opacity,
			Transform: p.Transform,
			Offset:    p.Offset,
		})
		if err != nil {
			return err
		}
	}
	logging.Logger().Debug("bufferhost: composited", "rects", len(sub.Rects()), "origin", origin)
	return nil
}
