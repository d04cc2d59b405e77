package geom

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Identity returns the identity transform.
func Identity() mgl32.Mat4 { return mgl32.Ident4() }

// Translate2D returns a translation by (x, y).
func Translate2D(x, y float32) mgl32.Mat4 { return mgl32.Translate3D(x, y, 0) }

// Scale2D returns a scale by (sx, sy).
func Scale2D(sx, sy float32) mgl32.Mat4 { return mgl32.Scale3D(sx, sy, 1) }

// ViewTransform returns the matrix that scales by (sx, sy) and then
// translates by t.
func ViewTransform(t PointF, sx, sy float32) mgl32.Mat4 {
	return Translate2D(t.X, t.Y).Mul4(Scale2D(sx, sy))
}

// Then returns the transform that applies first and then second.
func Then(first, second mgl32.Mat4) mgl32.Mat4 {
	return second.Mul4(first)
}

// XScale returns the x scale factor of an axis-aligned transform.
func XScale(m mgl32.Mat4) float32 { return m.At(0, 0) }

// YScale returns the y scale factor of an axis-aligned transform.
func YScale(m mgl32.Mat4) float32 { return m.At(1, 1) }

// Translation returns the 2D translation component of m.
func Translation(m mgl32.Mat4) PointF { return PointF{X: m.At(0, 3), Y: m.At(1, 3)} }

// Is2DIntegerTranslation reports whether m only translates by whole pixels.
func Is2DIntegerTranslation(m mgl32.Mat4) bool {
	t := Translation(m)
	stripped := Translate2D(-t.X, -t.Y).Mul4(m)
	return stripped.ApproxEqual(mgl32.Ident4()) && t.X == float32(int(t.X)) && t.Y == float32(int(t.Y))
}

// TransformPoint applies m to p.
func TransformPoint(m mgl32.Mat4, p PointF) PointF {
	v := m.Mul4x1(mgl32.Vec4{p.X, p.Y, 0, 1})
	if v[3] != 0 && v[3] != 1 {
		return PointF{X: v[0] / v[3], Y: v[1] / v[3]}
	}
	return PointF{X: v[0], Y: v[1]}
}

// TransformBounds returns the bounding box of r after applying m.
func TransformBounds(m mgl32.Mat4, r RectF) RectF {
	pts := [4]PointF{
		TransformPoint(m, PointF{r.X, r.Y}),
		TransformPoint(m, PointF{r.XMost(), r.Y}),
		TransformPoint(m, PointF{r.X, r.YMost()}),
		TransformPoint(m, PointF{r.XMost(), r.YMost()}),
	}
	minX, minY, maxX, maxY := pts[0].X, pts[0].Y, pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return RectF{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Ortho returns the projection mapping a w x h surface with a top-left
// origin into clip space.
func Ortho(w, h int) mgl32.Mat4 {
	return mgl32.Ortho(0, float32(w), float32(h), 0, -1, 1)
}
