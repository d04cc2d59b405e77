package bufferhost

import (
	"fmt"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/texture"
)

// SwapHost displays the producer's front buffer and returns the previous
// one for reuse as the producer's next back buffer.
type SwapHost struct {
	host
	front *RotatedBuffer
}

// NewSwapHost returns an empty host. opts apply to every texture the host
// allocates.
func NewSwapHost(dev driver.Device, opts ...texture.Option) *SwapHost {
	return &SwapHost{host: newHost(dev, opts)}
}

// Front returns the buffer currently displayed, or nil.
func (h *SwapHost) Front() *RotatedBuffer { return h.front }

// Swap makes newFront the displayed buffer and returns the previous front.
//
// A size, format or component-alpha mismatch with the current front
// resets the host: the old front is dropped rather than returned, the valid
// region is cleared and ResetBuffer is set.
//
// The exchange completes even when the texture cannot be updated. The
// returned error then means the layer cannot be drawn until the next
// successful swap, the valid region is empty and the previously valid
// region is reported as invalidated.
func (h *SwapHost) Swap(newFront *RotatedBuffer, dirty geom.Region) (Update, error) {
	if err := checkBuffer(newFront); err != nil {
		return Update{}, err
	}
	if h.front != nil && h.front.Desc == newFront.Desc {
		return Update{}, ErrSameBuffer
	}

	var u Update
	prev := h.valid
	reset := false
	if h.front != nil && !compatible(h.front, newFront) {
		u.Invalidated = h.Reset()
		u.Flags |= ResetBuffer
		reset = true
	}

	if h.front != nil {
		u.Returned = h.front
		u.Flags |= UpdateSuccess
	} else {
		u.Flags |= UpdateFail
	}

	h.front = newFront
	lost := h.adopt(newFront, dirty, reset)
	u.Invalidated = u.Invalidated.Union(lost)

	if _, err := h.ensureTextures(newFront); err != nil {
		return h.dropContent(u, prev), fmt.Errorf("bufferhost: swap: %w", err)
	}
	if err := h.load(newFront, geom.RegionOf(newFront.Desc.Bounds())); err != nil {
		h.releaseTextures()
		return h.dropContent(u, prev), fmt.Errorf("bufferhost: swap: %w", err)
	}
	logging.Logger().Debug("bufferhost: swapped",
		"front", newFront.Desc.ID,
		"returned", u.Returned != nil,
		"reset", u.Flags.Has(ResetBuffer))
	return u, nil
}

// dropContent clears the valid region after a failed texture update and
// reports everything that was valid before the swap as invalidated.
func (h *SwapHost) dropContent(u Update, prev geom.Region) Update {
	h.valid = geom.Region{}
	u.Invalidated = u.Invalidated.Union(prev)
	return u
}

func compatible(a, b *RotatedBuffer) bool {
	if a.Desc.Size != b.Desc.Size || a.Desc.Format != b.Desc.Format {
		return false
	}
	return (a.OnWhite == nil) == (b.OnWhite == nil)
}

// Reset drops the front buffer, the textures and the valid region, and
// returns the region that was valid.
func (h *SwapHost) Reset() geom.Region {
	lost := h.valid
	h.front = nil
	h.releaseTextures()
	h.valid = geom.Region{}
	return lost
}

// Release frees the textures and forgets the front buffer.
func (h *SwapHost) Release() {
	h.Reset()
}
