// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
)

// Handle owns one driver texture.
type Handle struct {
	dev       driver.Device
	tex       driver.Texture
	size      image.Point
	allocated image.Point
	format    driver.Format
	wrap      driver.Wrap
	label     string
	bytes     uint64
	target    bool

	budget   *Budget
	pool     *Pool
	released bool
}

// Allocate creates a texture holding size pixels of the given format.
//
// It fails with ErrResourceExhausted when either dimension, after any
// power-of-two padding, exceeds the device's maximum texture size, or when
// the budget cannot hold the allocation.
func Allocate(dev driver.Device, size image.Point, format driver.Format, opts ...Option) (*Handle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return allocate(dev, size, format, o)
}

func allocate(dev driver.Device, size image.Point, format driver.Format, o options) (*Handle, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrBadSize, size)
	}
	caps := dev.Caps()
	allocated := allocatedSize(caps, size, o.wrap)
	if allocated.X > caps.MaxTextureSize || allocated.Y > caps.MaxTextureSize {
		return nil, fmt.Errorf("%w: %dx%d exceeds max texture size %d",
			ErrResourceExhausted, allocated.X, allocated.Y, caps.MaxTextureSize)
	}

	bytes := uint64(allocated.X) * uint64(allocated.Y) * uint64(format.BytesPerPixel())
	if o.budget != nil {
		if err := o.budget.Reserve(bytes); err != nil {
			return nil, err
		}
	}

	desc := driver.TextureDesc{
		Label:        o.label,
		Size:         allocated,
		Format:       format,
		RenderTarget: o.renderTarget,
	}
	var tex driver.Texture
	if o.pool != nil {
		tex = o.pool.take(desc)
	}
	if tex == nil {
		var err error
		tex, err = dev.NewTexture(desc)
		if err != nil {
			if o.budget != nil {
				o.budget.Free(bytes)
			}
			return nil, fmt.Errorf("texture: allocate %v %v: %w", allocated, format, err)
		}
	}

	return &Handle{
		dev:       dev,
		tex:       tex,
		size:      size,
		allocated: allocated,
		format:    format,
		wrap:      o.wrap,
		label:     o.label,
		bytes:     bytes,
		target:    o.renderTarget,
		budget:    o.budget,
		pool:      o.pool,
	}, nil
}

// allocatedSize pads to powers of two when repeat is requested on a device
// without NPOT repeat support.
func allocatedSize(caps driver.Caps, size image.Point, wrap driver.Wrap) image.Point {
	if wrap != driver.WrapRepeat || caps.NPOTRepeat {
		return size
	}
	return image.Pt(geom.NextPowerOfTwo(size.X), geom.NextPowerOfTwo(size.Y))
}

// Size returns the logical content size.
func (h *Handle) Size() image.Point { return h.size }

// Bounds returns the logical content rectangle at the origin.
func (h *Handle) Bounds() image.Rectangle { return image.Rectangle{Max: h.size} }

// AllocatedSize returns the size of the underlying texture.
func (h *Handle) AllocatedSize() image.Point { return h.allocated }

// ContentScale returns logical size divided by allocated size per axis.
func (h *Handle) ContentScale() geom.PointF {
	return geom.PointF{
		X: float32(h.size.X) / float32(h.allocated.X),
		Y: float32(h.size.Y) / float32(h.allocated.Y),
	}
}

// Format returns the pixel format.
func (h *Handle) Format() driver.Format { return h.format }

// Wrap returns the wrap mode.
func (h *Handle) Wrap() driver.Wrap { return h.wrap }

// Texture returns the driver texture, or nil after Release.
func (h *Handle) Texture() driver.Texture {
	if h.released {
		return nil
	}
	return h.tex
}

// Bytes returns the accounted allocation size.
func (h *Handle) Bytes() uint64 { return h.bytes }

// Released reports whether Release has been called.
func (h *Handle) Released() bool { return h.released }

// UploadRegion copies the dirty part of pix into the texture. pix holds the
// whole logical image with rows stride bytes apart. Devices without
// sub-region upload receive the whole image.
func (h *Handle) UploadRegion(pix []byte, stride int, dirty geom.Region) error {
	if h.released {
		return ErrReleased
	}
	bounds := h.Bounds()
	dirty = dirty.IntersectRect(bounds)
	if dirty.IsEmpty() {
		return nil
	}
	bpp := h.format.BytesPerPixel()
	if stride < h.size.X*bpp {
		return fmt.Errorf("%w: stride %d for width %d", ErrShortBuffer, stride, h.size.X)
	}

	rects := dirty.Rects()
	if !h.dev.Caps().SubRegionUpload || dirty.Contains(bounds) {
		rects = []image.Rectangle{bounds}
	}
	for _, r := range rects {
		off := r.Min.Y*stride + r.Min.X*bpp
		need := off + (r.Dy()-1)*stride + r.Dx()*bpp
		if need > len(pix) {
			return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, need, len(pix))
		}
		if err := h.tex.Upload(r, pix[off:], stride); err != nil {
			return fmt.Errorf("texture: upload %v: %w", r, err)
		}
	}
	logging.Logger().Debug("texture: uploaded", "label", h.label, "rects", len(rects))
	return nil
}

// UploadImage converts the dirty part of img into the handle's format and
// uploads it. img is placed at the texture origin.
func (h *Handle) UploadImage(img image.Image, dirty geom.Region) error {
	pix, stride := Pixels(img, h.format)
	return h.UploadRegion(pix, stride, dirty)
}

// Pixels returns img's pixels laid out in format f. Images already in the
// right layout are returned without copying.
func Pixels(img image.Image, f driver.Format) ([]byte, int) {
	b := img.Bounds()
	switch f {
	case driver.FormatA8:
		if a, ok := img.(*image.Alpha); ok && a.Rect.Min == (image.Point{}) {
			return a.Pix, a.Stride
		}
		if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
			return g.Pix, g.Stride
		}
		dst := image.NewAlpha(image.Rectangle{Max: b.Size()})
		xdraw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
		return dst.Pix, dst.Stride
	case driver.FormatRGBA, driver.FormatRGBX:
		if r, ok := img.(*image.RGBA); ok && r.Rect.Min == (image.Point{}) {
			return r.Pix, r.Stride
		}
	}
	dst := image.NewRGBA(image.Rectangle{Max: b.Size()})
	xdraw.Copy(dst, image.Point{}, img, b, draw.Src, nil)
	if f == driver.FormatBGRA || f == driver.FormatBGRX {
		swapRB(dst.Pix)
	}
	return dst.Pix, dst.Stride
}

func swapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// AttachSharedHandle binds an externally produced surface instead of
// uploading pixels.
func (h *Handle) AttachSharedHandle(sh driver.SharedHandle) error {
	if h.released {
		return ErrReleased
	}
	if !h.dev.Caps().SharedHandles.Has(sh.Type) {
		return fmt.Errorf("%w: share type %d", ErrIncompatibleSurface, sh.Type)
	}
	if err := h.tex.AttachShared(sh); err != nil {
		if errors.Is(err, driver.ErrUnsupportedShare) {
			return fmt.Errorf("%w: %w", ErrIncompatibleSurface, err)
		}
		return fmt.Errorf("texture: attach shared: %w", err)
	}
	return nil
}

// Release frees the allocation. Subsequent calls do nothing.
func (h *Handle) Release() {
	if h.released {
		return
	}
	h.released = true
	if h.budget != nil {
		h.budget.Free(h.bytes)
	}
	if h.pool != nil {
		h.pool.put(h.tex, driver.TextureDesc{
			Label:        h.label,
			Size:         h.allocated,
			Format:       h.format,
			RenderTarget: h.target,
		})
	} else {
		h.tex.Release()
	}
	h.tex = nil
}
