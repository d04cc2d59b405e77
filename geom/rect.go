package geom

import (
	"image"

	"github.com/chewxy/math32"
)

// RectF is a float32 rectangle given by origin and size.
type RectF struct {
	X, Y, W, H float32
}

// RectFOf converts an integer rectangle.
func RectFOf(r image.Rectangle) RectF {
	return RectF{X: float32(r.Min.X), Y: float32(r.Min.Y), W: float32(r.Dx()), H: float32(r.Dy())}
}

// XMost returns X + W.
func (r RectF) XMost() float32 { return r.X + r.W }

// YMost returns Y + H.
func (r RectF) YMost() float32 { return r.Y + r.H }

// Empty reports whether r has no area.
func (r RectF) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Intersect returns the overlap of r and o, or the zero RectF.
func (r RectF) Intersect(o RectF) RectF {
	x0 := math32.Max(r.X, o.X)
	y0 := math32.Max(r.Y, o.Y)
	x1 := math32.Min(r.XMost(), o.XMost())
	y1 := math32.Min(r.YMost(), o.YMost())
	if x1 <= x0 || y1 <= y0 {
		return RectF{}
	}
	return RectF{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Translate returns r moved by (dx, dy).
func (r RectF) Translate(dx, dy float32) RectF {
	return RectF{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Scale returns r with every coordinate multiplied by (sx, sy).
func (r RectF) Scale(sx, sy float32) RectF {
	return RectF{X: r.X * sx, Y: r.Y * sy, W: r.W * sx, H: r.H * sy}
}

// Vec4 returns (X, Y, W, H) for uniform upload.
func (r RectF) Vec4() [4]float32 { return [4]float32{r.X, r.Y, r.W, r.H} }

// RoundOut returns the smallest integer rectangle containing r.
func (r RectF) RoundOut() image.Rectangle {
	return image.Rect(
		int(math32.Floor(r.X)), int(math32.Floor(r.Y)),
		int(math32.Ceil(r.XMost())), int(math32.Ceil(r.YMost())),
	)
}

// PointF is a float32 point or size.
type PointF struct {
	X, Y float32
}

// Sub returns p - o.
func (p PointF) Sub(o PointF) PointF { return PointF{X: p.X - o.X, Y: p.Y - o.Y} }

// Add returns p + o.
func (p PointF) Add(o PointF) PointF { return PointF{X: p.X + o.X, Y: p.Y + o.Y} }

// NextPowerOfTwo returns the smallest power of two >= n, or 1 for n <= 1.
func NextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// WrapPoint maps p into [0,size) on both axes using modular arithmetic that
// is correct for negative coordinates.
func WrapPoint(p, size image.Point) image.Point {
	return image.Pt(wrap(p.X, size.X), wrap(p.Y, size.Y))
}

func wrap(v, n int) int {
	if n <= 0 {
		return 0
	}
	v %= n
	if v < 0 {
		v += n
	}
	return v
}
