// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import (
	"fmt"
	"image"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
)

// Tile is one cell of a TiledHandle.
type Tile struct {
	// Rect is the tile's area in content coordinates.
	Rect   image.Rectangle
	Handle *Handle
}

// TiledHandle holds content that may exceed the maximum texture size as a
// row-major grid of handles.
type TiledHandle struct {
	size     image.Point
	format   driver.Format
	tileSize int
	tiles    []Tile
}

// AllocateTiled creates a grid of handles covering size. Each tile is at
// most the tile size on each axis; edge tiles are smaller.
func AllocateTiled(dev driver.Device, size image.Point, format driver.Format, opts ...Option) (*TiledHandle, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrBadSize, size)
	}
	maxSize := dev.Caps().MaxTextureSize
	ts := o.tileSize
	if ts <= 0 || ts > maxSize {
		ts = maxSize
	}
	// Tiles are never repeated; clamp avoids power-of-two padding.
	o.wrap = driver.WrapClamp

	t := &TiledHandle{size: size, format: format, tileSize: ts}
	for y := 0; y < size.Y; y += ts {
		for x := 0; x < size.X; x += ts {
			r := image.Rect(x, y, min(x+ts, size.X), min(y+ts, size.Y))
			h, err := allocate(dev, r.Size(), format, o)
			if err != nil {
				t.Release()
				return nil, fmt.Errorf("texture: tile %v: %w", r, err)
			}
			t.tiles = append(t.tiles, Tile{Rect: r, Handle: h})
		}
	}
	return t, nil
}

// Size returns the logical content size.
func (t *TiledHandle) Size() image.Point { return t.size }

// Format returns the pixel format.
func (t *TiledHandle) Format() driver.Format { return t.format }

// TileSize returns the tile edge length.
func (t *TiledHandle) TileSize() int { return t.tileSize }

// Tiles returns the tiles in row-major order.
func (t *TiledHandle) Tiles() []Tile { return t.tiles }

// UploadRegion uploads the dirty part of pix, which holds the whole logical
// image, into every tile it touches.
func (t *TiledHandle) UploadRegion(pix []byte, stride int, dirty geom.Region) error {
	bpp := t.format.BytesPerPixel()
	for _, tile := range t.tiles {
		d := dirty.IntersectRect(tile.Rect)
		if d.IsEmpty() {
			continue
		}
		off := tile.Rect.Min.Y*stride + tile.Rect.Min.X*bpp
		if off >= len(pix) {
			return fmt.Errorf("%w: tile %v", ErrShortBuffer, tile.Rect)
		}
		if err := tile.Handle.UploadRegion(pix[off:], stride, d.Translate(tile.Rect.Min.Mul(-1))); err != nil {
			return err
		}
	}
	return nil
}

// UploadImage converts img and uploads its dirty part.
func (t *TiledHandle) UploadImage(img image.Image, dirty geom.Region) error {
	pix, stride := Pixels(img, t.format)
	return t.UploadRegion(pix, stride, dirty)
}

// Release releases every tile.
func (t *TiledHandle) Release() {
	for _, tile := range t.tiles {
		tile.Handle.Release()
	}
}
