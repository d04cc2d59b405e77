package ipc

import (
	"image"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layers"
)

// Message is implemented by every type carried over a Bridge.
type Message interface {
	message()
}

// TreeUpdate applies a transaction to the compositor's tree.
type TreeUpdate struct {
	Tx *layers.Transaction
}

// BufferUpdate hands painted content of a node to its host. For swap hosts
// Buffer becomes the new front; for upload hosts it is copied and handed
// straight back.
type BufferUpdate struct {
	Node   layers.ID
	Buffer *bufferhost.RotatedBuffer
	Dirty  geom.Region
}

// ImageUpdate replaces the image of an image node.
type ImageUpdate struct {
	Node  layers.ID
	Image image.Image
}

// Recycled returns a buffer to the producer after a BufferUpdate.
type Recycled struct {
	Node   layers.ID
	Update bufferhost.Update
}

// ViewportSync reports the asynchronous view state after a composite.
type ViewportSync struct {
	DisplayPort  geom.RectF
	ScrollOffset geom.PointF
	ScaleX       float32
	ScaleY       float32
}

// Rejected reports a content message the compositor refused.
type Rejected struct {
	Msg Message
	Err error
}

func (TreeUpdate) message()   {}
func (BufferUpdate) message() {}
func (ImageUpdate) message()  {}
func (Recycled) message()     {}
func (ViewportSync) message() {}
func (Rejected) message()     {}
