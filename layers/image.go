package layers

import (
	"fmt"
	"image"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/texture"
)

// Image is the GPU copy of a decoded image or video frame. Exactly one of
// the texture forms is set.
type Image struct {
	size image.Point

	tex   *texture.Handle
	tiled *texture.TiledHandle
	ycbcr *effect.YCbCr
}

// NewImage uploads img. Planar *image.YCbCr frames keep their planes and
// are converted in the shader; images larger than the maximum texture size
// are tiled. Opaque images use an RGBX texture.
func NewImage(dev driver.Device, img image.Image, opts ...texture.Option) (*Image, error) {
	size := img.Bounds().Size()
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("layers: image: %w: %v", texture.ErrBadSize, size)
	}
	maxSize := dev.Caps().MaxTextureSize
	fits := size.X <= maxSize && size.Y <= maxSize

	if yc, ok := img.(*image.YCbCr); ok && fits {
		return newPlanarImage(dev, yc, opts)
	}

	format := driver.FormatRGBA
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		format = driver.FormatRGBX
	}
	full := geom.RegionOf(image.Rectangle{Max: size})

	if !fits {
		t, err := texture.AllocateTiled(dev, size, format, opts...)
		if err != nil {
			return nil, fmt.Errorf("layers: image: %w", err)
		}
		if err := t.UploadImage(img, full); err != nil {
			t.Release()
			return nil, fmt.Errorf("layers: image: %w", err)
		}
		return &Image{size: size, tiled: t}, nil
	}

	h, err := texture.Allocate(dev, size, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("layers: image: %w", err)
	}
	if err := h.UploadImage(img, full); err != nil {
		h.Release()
		return nil, fmt.Errorf("layers: image: %w", err)
	}
	return &Image{size: size, tex: h}, nil
}

func newPlanarImage(dev driver.Device, img *image.YCbCr, opts []texture.Option) (*Image, error) {
	r := img.Rect
	ysize := r.Size()
	csize := chromaSize(ysize, img.SubsampleRatio)

	im := &Image{size: ysize, ycbcr: &effect.YCbCr{}}
	planes := []struct {
		dst    **texture.Handle
		size   image.Point
		pix    []byte
		stride int
	}{
		{&im.ycbcr.Y, ysize, img.Y[img.YOffset(r.Min.X, r.Min.Y):], img.YStride},
		{&im.ycbcr.Cb, csize, img.Cb[img.COffset(r.Min.X, r.Min.Y):], img.CStride},
		{&im.ycbcr.Cr, csize, img.Cr[img.COffset(r.Min.X, r.Min.Y):], img.CStride},
	}
	for _, p := range planes {
		h, err := texture.Allocate(dev, p.size, driver.FormatA8, opts...)
		if err != nil {
			im.Release()
			return nil, fmt.Errorf("layers: image plane: %w", err)
		}
		*p.dst = h
		if err := h.UploadRegion(p.pix, p.stride, geom.RegionOf(h.Bounds())); err != nil {
			im.Release()
			return nil, fmt.Errorf("layers: image plane: %w", err)
		}
	}
	return im, nil
}

func chromaSize(s image.Point, ratio image.YCbCrSubsampleRatio) image.Point {
	switch ratio {
	case image.YCbCrSubsampleRatio422:
		return image.Pt((s.X+1)/2, s.Y)
	case image.YCbCrSubsampleRatio420:
		return image.Pt((s.X+1)/2, (s.Y+1)/2)
	case image.YCbCrSubsampleRatio440:
		return image.Pt(s.X, (s.Y+1)/2)
	case image.YCbCrSubsampleRatio411:
		return image.Pt((s.X+3)/4, s.Y)
	case image.YCbCrSubsampleRatio410:
		return image.Pt((s.X+3)/4, (s.Y+1)/2)
	default:
		return s
	}
}

// Size returns the image size in pixels.
func (im *Image) Size() image.Point { return im.size }

// Bounds returns the image rectangle at the origin.
func (im *Image) Bounds() image.Rectangle { return image.Rectangle{Max: im.size} }

// Chain returns the effect chain that draws the image.
func (im *Image) Chain(mask *effect.Mask) *effect.Chain {
	c := &effect.Chain{Mask: mask}
	switch {
	case im.ycbcr != nil:
		c.YCbCr = im.ycbcr
	case im.tiled != nil:
		c.Tiled = &effect.Tiled{Tiles: im.tiled, Premultiplied: true}
	default:
		c.Texture = &effect.Texture{Handle: im.tex, Premultiplied: true}
	}
	return c
}

// Release frees every texture. It is safe to call more than once.
func (im *Image) Release() {
	if im.tex != nil {
		im.tex.Release()
	}
	if im.tiled != nil {
		im.tiled.Release()
	}
	if im.ycbcr != nil {
		for _, h := range []*texture.Handle{im.ycbcr.Y, im.ycbcr.Cb, im.ycbcr.Cr} {
			if h != nil {
				h.Release()
			}
		}
	}
}
