package geom

import (
	"image"
	"slices"
)

// Region is a set of pixels described by non-overlapping rectangles.
//
// The zero value is the empty region. Region values are immutable: every
// operation returns a new Region and never modifies its receiver.
type Region struct {
	rects []image.Rectangle
}

// RegionOf returns the region covered by the union of rs.
func RegionOf(rs ...image.Rectangle) Region {
	var r Region
	for _, rect := range rs {
		r = r.Union(Region{}.withRect(rect))
	}
	return r
}

func (r Region) withRect(rect image.Rectangle) Region {
	if rect.Empty() {
		return r
	}
	return Region{rects: append(slices.Clone(r.rects), rect.Canon())}
}

// Rects returns a copy of the rectangles making up the region.
func (r Region) Rects() []image.Rectangle {
	return slices.Clone(r.rects)
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	return len(r.rects) == 0
}

// Bounds returns the smallest rectangle containing the region.
func (r Region) Bounds() image.Rectangle {
	var b image.Rectangle
	for _, rect := range r.rects {
		b = b.Union(rect)
	}
	return b
}

// Area returns the number of pixels in the region.
func (r Region) Area() int {
	n := 0
	for _, rect := range r.rects {
		n += rect.Dx() * rect.Dy()
	}
	return n
}

// Translate returns r moved by d.
func (r Region) Translate(d image.Point) Region {
	if len(r.rects) == 0 {
		return r
	}
	out := make([]image.Rectangle, len(r.rects))
	for i, rect := range r.rects {
		out[i] = rect.Add(d)
	}
	return Region{rects: out}
}

// Union returns the pixels in r or o.
func (r Region) Union(o Region) Region {
	if r.IsEmpty() {
		return o
	}
	// o - r keeps the result non-overlapping.
	rest := o.Subtract(r)
	out := make([]image.Rectangle, 0, len(r.rects)+len(rest.rects))
	out = append(out, r.rects...)
	out = append(out, rest.rects...)
	return Region{rects: out}
}

// UnionRect is Union with a single rectangle.
func (r Region) UnionRect(rect image.Rectangle) Region {
	return r.Union(RegionOf(rect))
}

// Intersect returns the pixels in both r and o.
func (r Region) Intersect(o Region) Region {
	var out []image.Rectangle
	for _, a := range r.rects {
		for _, b := range o.rects {
			if c := a.Intersect(b); !c.Empty() {
				out = append(out, c)
			}
		}
	}
	return Region{rects: out}
}

// IntersectRect is Intersect with a single rectangle.
func (r Region) IntersectRect(rect image.Rectangle) Region {
	return r.Intersect(RegionOf(rect))
}

// Subtract returns the pixels in r that are not in o.
func (r Region) Subtract(o Region) Region {
	cur := r.rects
	for _, cut := range o.rects {
		var next []image.Rectangle
		for _, rect := range cur {
			next = appendDifference(next, rect, cut)
		}
		cur = next
		if len(cur) == 0 {
			break
		}
	}
	return Region{rects: cur}
}

// SubtractRect is Subtract with a single rectangle.
func (r Region) SubtractRect(rect image.Rectangle) Region {
	return r.Subtract(RegionOf(rect))
}

// Contains reports whether every pixel of rect is in r.
func (r Region) Contains(rect image.Rectangle) bool {
	return RegionOf(rect).Subtract(r).IsEmpty()
}

// Equal reports whether r and o cover the same pixels.
func (r Region) Equal(o Region) bool {
	return r.Subtract(o).IsEmpty() && o.Subtract(r).IsEmpty()
}

// appendDifference appends rect minus cut as at most four bands.
func appendDifference(dst []image.Rectangle, rect, cut image.Rectangle) []image.Rectangle {
	in := rect.Intersect(cut)
	if in.Empty() {
		return append(dst, rect)
	}
	if in.Min.Y > rect.Min.Y {
		dst = append(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, in.Min.Y))
	}
	if in.Max.Y < rect.Max.Y {
		dst = append(dst, image.Rect(rect.Min.X, in.Max.Y, rect.Max.X, rect.Max.Y))
	}
	if in.Min.X > rect.Min.X {
		dst = append(dst, image.Rect(rect.Min.X, in.Min.Y, in.Min.X, in.Max.Y))
	}
	if in.Max.X < rect.Max.X {
		dst = append(dst, image.Rect(in.Max.X, in.Min.Y, rect.Max.X, in.Max.Y))
	}
	return dst
}
