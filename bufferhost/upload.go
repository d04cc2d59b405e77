package bufferhost

import (
	"fmt"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/texture"
)

// UploadHost copies painted content into a texture it owns. The producer
// keeps ownership of every buffer it passes in.
type UploadHost struct {
	host
}

// NewUploadHost returns an empty host. opts apply to every texture the host
// allocates.
func NewUploadHost(dev driver.Device, opts ...texture.Option) *UploadHost {
	return &UploadHost{host: newHost(dev, opts)}
}

// Update uploads the dirty layer-space region of b. The texture is
// recreated first, and the whole buffer uploaded, when the size or format
// changed.
func (h *UploadHost) Update(b *RotatedBuffer, dirty geom.Region) (Update, error) {
	if err := checkBuffer(b); err != nil {
		return Update{}, err
	}
	hadContent := h.tex != nil
	recreated, err := h.ensureTextures(b)
	if err != nil {
		return Update{}, fmt.Errorf("bufferhost: upload: %w", err)
	}

	var u Update
	u.Flags = UpdateNoSwap
	u.Returned = b

	storage := b.ToBufferSpace(dirty)
	if recreated {
		storage = geom.RegionOf(b.Desc.Bounds())
		if hadContent {
			u.Flags |= ResetBuffer
		}
	}
	if err := h.load(b, storage); err != nil {
		return Update{}, fmt.Errorf("bufferhost: upload: %w", err)
	}

	u.Invalidated = h.adopt(b, dirty, recreated)
	return u, nil
}

// adopt takes b's placement and updates the valid region, returning the
// part of the old valid region that was lost.
func (h *host) adopt(b *RotatedBuffer, dirty geom.Region, reset bool) geom.Region {
	old := h.valid
	kept := old
	if reset {
		kept = geom.Region{}
	}
	h.valid = kept.IntersectRect(b.Rect).Union(dirty.IntersectRect(b.Rect))
	h.rect = b.Rect
	h.rotation = b.Rotation
	return old.Subtract(h.valid)
}

// Reset discards the texture and the valid region.
func (h *UploadHost) Reset() geom.Region {
	lost := h.valid
	h.releaseTextures()
	h.valid = geom.Region{}
	return lost
}

// Release frees the texture. Calling it twice is a no-op.
func (h *UploadHost) Release() {
	h.Reset()
}
