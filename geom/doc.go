// Package geom provides the geometry shared by the compositor packages.
//
// Integer pixel rectangles are plain [image.Rectangle] values. A [Region]
// is a set of non-overlapping rectangles used for visible, valid and dirty
// regions. [RectF] is the float32 rectangle used for quad geometry and
// texture coordinates. Layer transforms are column-major 4x4 matrices from
// github.com/go-gl/mathgl/mgl32.
//
// # Coordinate conventions
//
// All rectangles are half-open: Min is inclusive, Max is exclusive. Layer
// space has its origin at the top-left corner with y pointing down.
package geom
