// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldriver

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compositor/driver"
)

// ErrPartialUpload is returned by Upload for a rectangle that does not
// cover the whole texture. The device reports SubRegionUpload as false.
var ErrPartialUpload = errors.New("haldriver: partial texture upload")

// Texture is a HAL texture with its default view.
type Texture struct {
	dev    *Device
	tex    hal.Texture
	view   hal.TextureView
	size   image.Point
	format driver.Format
	target bool

	released bool
}

func (d *Device) newTexture(desc driver.TextureDesc) (*Texture, error) {
	if desc.Size.X <= 0 || desc.Size.Y <= 0 {
		return nil, fmt.Errorf("haldriver: invalid texture size %v", desc.Size)
	}
	if desc.Size.X > d.caps.MaxTextureSize || desc.Size.Y > d.caps.MaxTextureSize {
		return nil, fmt.Errorf("haldriver: texture %v exceeds %d", desc.Size, d.caps.MaxTextureSize)
	}
	gf := desc.Format.GPUFormat()
	if gf == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("haldriver: texture format %v", desc.Format)
	}

	usage := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst
	if desc.RenderTarget {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	label := desc.Label
	if label == "" {
		label = "compositor_texture"
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Size.X),
			Height:             uint32(desc.Size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gf,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create texture %q: %w", label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        gf,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("haldriver: create texture view %q: %w", label, err)
	}
	return &Texture{
		dev:    d,
		tex:    tex,
		view:   view,
		size:   desc.Size,
		format: desc.Format,
		target: desc.RenderTarget,
	}, nil
}

// Size implements driver.Texture.
func (t *Texture) Size() image.Point { return t.size }

// Format implements driver.Texture.
func (t *Texture) Format() driver.Format { return t.format }

// View returns the texture's view.
func (t *Texture) View() hal.TextureView { return t.view }

// Upload implements driver.Texture. r must cover the whole texture.
func (t *Texture) Upload(r image.Rectangle, pix []byte, stride int) error {
	if t.released {
		return driver.ErrReleased
	}
	if r != (image.Rectangle{Max: t.size}) {
		return fmt.Errorf("%w: %v of %v", ErrPartialUpload, r, t.size)
	}
	row := t.size.X * t.format.BytesPerPixel()
	if stride < row {
		return fmt.Errorf("haldriver: stride %d shorter than row %d", stride, row)
	}
	if need := stride*(t.size.Y-1) + row; len(pix) < need {
		return fmt.Errorf("haldriver: upload has %d bytes, need %d", len(pix), need)
	}
	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
		pix,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(stride),
			RowsPerImage: uint32(t.size.Y),
		},
		&hal.Extent3D{Width: uint32(t.size.X), Height: uint32(t.size.Y), DepthOrArrayLayers: 1},
	)
	return nil
}

// AttachShared implements driver.Texture. Only shared memory is
// supported; its pixels are copied into the texture.
func (t *Texture) AttachShared(h driver.SharedHandle) error {
	if t.released {
		return driver.ErrReleased
	}
	if h.Type != driver.ShareMemory {
		return driver.ErrUnsupportedShare
	}
	if h.Size != t.size || h.Format.BytesPerPixel() != t.format.BytesPerPixel() {
		return fmt.Errorf("haldriver: shared surface %v %v does not match texture %v %v",
			h.Size, h.Format, t.size, t.format)
	}
	return t.Upload(image.Rectangle{Max: t.size}, h.Pixels, h.Stride)
}

// Release implements driver.Texture.
func (t *Texture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.dev.device.DestroyTextureView(t.view)
	t.dev.device.DestroyTexture(t.tex)
}

var _ driver.Texture = (*Texture)(nil)
