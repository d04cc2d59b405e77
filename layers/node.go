package layers

import (
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
)

// ID identifies a node. Zero is never a valid ID.
type ID uint64

// Kind selects the payload of a node.
type Kind uint8

const (
	// KindContainer groups children and carries no content.
	KindContainer Kind = iota

	// KindRaster displays painted content through a ContentHost.
	KindRaster

	// KindCanvas displays a producer-rendered surface, usually shared
	// zero-copy, through a ContentHost.
	KindCanvas

	// KindColor fills its visible region with a solid color.
	KindColor

	// KindImage displays a decoded image or video frame.
	KindImage

	// KindReference draws another subtree of the same tree in place.
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindRaster:
		return "raster"
	case KindCanvas:
		return "canvas"
	case KindColor:
		return "color"
	case KindImage:
		return "image"
	case KindReference:
		return "reference"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// HostMode selects the buffer host created for a node.
type HostMode uint8

const (
	// HostUpload copies content into a compositor-owned texture.
	HostUpload HostMode = iota

	// HostSwap exchanges front and back buffers with the producer.
	HostSwap
)

func (m HostMode) String() string {
	if m == HostSwap {
		return "swap"
	}
	return "upload"
}

// ContentHost is the compositor side of a painted layer.
// *bufferhost.UploadHost and *bufferhost.SwapHost implement it.
type ContentHost interface {
	Composite(e *engine.Engine, p bufferhost.CompositeParams) error
	ValidRegion() geom.Region
	Initialized() bool
	Release()
}

// HostFactory creates content hosts for AttachHost operations.
type HostFactory func(mode HostMode) ContentHost

// FrameMetrics describe the scrollable content of a container.
type FrameMetrics struct {
	// ContentSize is the content size in device pixels.
	ContentSize image.Point

	// CSSContentSize is the content size in CSS pixels.
	CSSContentSize geom.PointF

	// ScrollOffset is the viewport scroll position in CSS pixels.
	ScrollOffset geom.PointF

	// DisplayPort is the area kept rendered, relative to ScrollOffset.
	DisplayPort geom.RectF

	Scrollable bool
}

// Attributes are the authoritative geometry of a node.
type Attributes struct {
	Transform mgl32.Mat4

	// Clip, when set, limits drawing to a surface-space rectangle.
	Clip *image.Rectangle

	Opacity float32
	Visible geom.Region
}

// DefaultAttributes returns an identity transform, full opacity and an
// empty visible region.
func DefaultAttributes() Attributes {
	return Attributes{Transform: geom.Identity(), Opacity: 1}
}

// Node is one layer. Fields are read-only outside this package except the
// shadow fields, which the compositor adjusts while drawing.
type Node struct {
	id   ID
	kind Kind

	Attributes

	parent   ID
	children []ID

	// Payload. Which field is meaningful depends on kind.
	host    ContentHost
	image   *Image
	color   [4]float32
	ref     ID
	metrics *FrameMetrics
	mask    *effect.Mask

	ShadowTransform mgl32.Mat4
	ShadowVisible   geom.Region
	ShadowClip      *image.Rectangle
}

func newNode(id ID, kind Kind) *Node {
	a := DefaultAttributes()
	return &Node{id: id, kind: kind, Attributes: a, ShadowTransform: a.Transform}
}

// clone copies n. Payload pointers are shared with the original.
func (n *Node) clone() *Node {
	c := *n
	c.children = append([]ID(nil), n.children...)
	if n.metrics != nil {
		m := *n.metrics
		c.metrics = &m
	}
	return &c
}

// ID returns the node identity.
func (n *Node) ID() ID { return n.id }

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Parent returns the parent ID, or zero for unparented nodes.
func (n *Node) Parent() ID { return n.parent }

// ChildIDs returns the ordered child IDs.
func (n *Node) ChildIDs() []ID { return append([]ID(nil), n.children...) }

// Host returns the content host of a raster, canvas or image node.
func (n *Node) Host() ContentHost { return n.host }

// Image returns the image payload, or nil.
func (n *Node) Image() *Image { return n.image }

// Color returns the premultiplied fill color of a color node.
func (n *Node) Color() [4]float32 { return n.color }

// Ref returns the referenced node of a reference node.
func (n *Node) Ref() ID { return n.ref }

// Metrics returns the frame metrics of a scrollable container, or nil.
func (n *Node) Metrics() *FrameMetrics { return n.metrics }

// Mask returns the mask applied to the node's content, or nil.
func (n *Node) Mask() *effect.Mask { return n.mask }

// Renderable reports whether drawing the node alone can produce pixels.
func (n *Node) Renderable() bool {
	if n.Opacity <= 0 {
		return false
	}
	switch n.kind {
	case KindColor:
		return !n.Visible.IsEmpty()
	case KindRaster, KindCanvas, KindImage:
		if n.image != nil {
			return true
		}
		return n.host != nil && n.host.Initialized()
	default:
		return false
	}
}

// releasePayload frees everything the node owns.
func (n *Node) releasePayload() {
	if n.host != nil {
		n.host.Release()
		n.host = nil
	}
	if n.image != nil {
		n.image.Release()
		n.image = nil
	}
	if n.mask != nil && n.mask.Handle != nil {
		n.mask.Handle.Release()
		n.mask = nil
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("%v#%d", n.kind, n.id)
}
