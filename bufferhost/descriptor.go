package bufferhost

import (
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/geom"
)

// Descriptor is pixel storage shared between producer and compositor.
// Ownership moves with the pointer: exactly one side may write it at a time.
type Descriptor struct {
	ID     uint64
	Size   image.Point
	Format driver.Format
	Pix    []byte
	Stride int

	// Shared, when set, is imported zero-copy instead of uploading Pix.
	Shared *driver.SharedHandle
}

// NewDescriptor allocates CPU storage of the given size and format.
func NewDescriptor(id uint64, size image.Point, format driver.Format) *Descriptor {
	stride := size.X * format.BytesPerPixel()
	return &Descriptor{
		ID:     id,
		Size:   size,
		Format: format,
		Pix:    make([]byte, stride*size.Y),
		Stride: stride,
	}
}

func (d *Descriptor) String() string {
	if d == nil {
		return "Descriptor(nil)"
	}
	return fmt.Sprintf("Descriptor(%d %v %v)", d.ID, d.Size, d.Format)
}

// Bounds returns the storage rectangle.
func (d *Descriptor) Bounds() image.Rectangle { return image.Rectangle{Max: d.Size} }

// RotatedBuffer is a descriptor positioned in layer space.
type RotatedBuffer struct {
	Desc *Descriptor

	// OnWhite holds the same content rendered on white for component
	// alpha. Nil otherwise.
	OnWhite *Descriptor

	// Rect is the logical area the buffer covers, in layer space. Its size
	// equals the descriptor size.
	Rect image.Rectangle

	// Rotation is the storage coordinate of Rect.Min.
	Rotation image.Point
}

// OriginOffset returns the layer-space position of storage (0,0) in the
// unwrapped tiling: Rect.Min - Rotation.
func (b RotatedBuffer) OriginOffset() image.Point {
	return b.Rect.Min.Sub(b.Rotation)
}

// PhysicalPoint maps a logical point to its storage coordinate.
func (b RotatedBuffer) PhysicalPoint(p image.Point) image.Point {
	return geom.WrapPoint(p.Sub(b.Rect.Min).Add(b.Rotation), b.Desc.Size)
}

// ToBufferSpace maps a layer-space region into storage coordinates,
// splitting rectangles that cross the rotation seams.
func (b RotatedBuffer) ToBufferSpace(r geom.Region) geom.Region {
	return ToBufferSpace(r, b.Rect, b.Rotation, b.Desc.Size)
}

// ToBufferSpace maps r from layer space into the storage of a buffer
// covering rect with the given rotation and storage size.
func ToBufferSpace(r geom.Region, rect image.Rectangle, rotation, size image.Point) geom.Region {
	var out geom.Region
	shift := rotation.Sub(rect.Min)
	for _, lr := range r.IntersectRect(rect).Rects() {
		pr := lr.Add(shift)
		for _, piece := range splitWrapped(pr, size) {
			out = out.UnionRect(piece)
		}
	}
	return out
}

// splitWrapped cuts r, which may extend past size on either axis, into
// pieces folded back into [0,size).
func splitWrapped(r image.Rectangle, size image.Point) []image.Rectangle {
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	start := geom.WrapPoint(r.Min, size)
	r = r.Add(start.Sub(r.Min))
	xs := [][2]int{{r.Min.X, r.Max.X}}
	if r.Max.X > size.X {
		xs = [][2]int{{r.Min.X, size.X}, {0, r.Max.X - size.X}}
	}
	ys := [][2]int{{r.Min.Y, r.Max.Y}}
	if r.Max.Y > size.Y {
		ys = [][2]int{{r.Min.Y, size.Y}, {0, r.Max.Y - size.Y}}
	}
	var out []image.Rectangle
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, image.Rect(x[0], y[0], x[1], y[1]))
		}
	}
	return out
}

// Quadrant identifies one of the four storage areas of a rotated buffer.
type Quadrant uint8

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

// Quadrant returns the logical rectangle whose pixels are stored in q.
// The top-left logical quadrant is stored at the rotation offset; the
// others wrap around.
func (b RotatedBuffer) Quadrant(q Quadrant) image.Rectangle {
	split := b.Rect.Min.Add(b.Desc.Size.Sub(b.Rotation))
	var r image.Rectangle
	switch q {
	case TopLeft:
		r = image.Rectangle{Min: b.Rect.Min, Max: split}
	case TopRight:
		r = image.Rect(split.X, b.Rect.Min.Y, b.Rect.Max.X, split.Y)
	case BottomLeft:
		r = image.Rect(b.Rect.Min.X, split.Y, split.X, b.Rect.Max.Y)
	case BottomRight:
		r = image.Rectangle{Min: split, Max: b.Rect.Max}
	}
	return r.Intersect(b.Rect)
}

// At returns the storage bytes of the logical pixel p.
func (b RotatedBuffer) At(p image.Point) []byte {
	pp := b.PhysicalPoint(p)
	bpp := b.Desc.Format.BytesPerPixel()
	off := pp.Y*b.Desc.Stride + pp.X*bpp
	return b.Desc.Pix[off : off+bpp]
}

// Set stores px at the logical pixel p.
func (b RotatedBuffer) Set(p image.Point, px []byte) {
	copy(b.At(p), px)
}

// Draw copies the logical region of src (in layer space) into storage.
// src must be in the descriptor's byte layout: *image.RGBA for the four
// channel formats or *image.Alpha for FormatA8.
func (b RotatedBuffer) Draw(src image.Image, region geom.Region) {
	dst := b.storageImage()
	shift := b.Rotation.Sub(b.Rect.Min)
	for _, lr := range region.IntersectRect(b.Rect).Rects() {
		for _, piece := range splitWrapped(lr.Add(shift), b.Desc.Size) {
			// Recover the logical rectangle this storage piece came from.
			logical := b.logicalOf(piece, lr)
			xdraw.Copy(dst, piece.Min, src, logical, draw.Src, nil)
		}
	}
}

// logicalOf returns the logical rectangle of the storage piece cut from
// the logical rectangle lr.
func (b RotatedBuffer) logicalOf(piece, lr image.Rectangle) image.Rectangle {
	size := b.Desc.Size
	for _, dy := range []int{0, -size.Y, size.Y} {
		for _, dx := range []int{0, -size.X, size.X} {
			l := piece.Add(b.Rect.Min.Sub(b.Rotation)).Add(image.Pt(-dx, -dy))
			if l.In(lr) {
				return l
			}
		}
	}
	return piece.Add(b.OriginOffset())
}

func (b RotatedBuffer) storageImage() draw.Image {
	r := b.Desc.Bounds()
	if b.Desc.Format == driver.FormatA8 {
		return &image.Alpha{Pix: b.Desc.Pix, Stride: b.Desc.Stride, Rect: r}
	}
	return &image.RGBA{Pix: b.Desc.Pix, Stride: b.Desc.Stride, Rect: r}
}
