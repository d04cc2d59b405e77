// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/compositor/geom"
)

// maxRepeat bounds how many times a source may wrap per axis.
const maxRepeat = 64

// Quad pairs a destination rectangle with texture coordinates.
type Quad struct {
	Dst geom.RectF
	Tex geom.RectF
}

type span struct {
	t0, t1 float32 // texture coordinates within [0,1]
	d0, d1 float32 // fraction of the source length
}

func spans(start, length float32) []span {
	if length <= 0 {
		return nil
	}
	var out []span
	pos := start - math32.Floor(start)
	done := float32(0)
	for i := 0; i < maxRepeat && length-done > 1e-6; i++ {
		n := math32.Min(1-pos, length-done)
		out = append(out, span{t0: pos, t1: pos + n, d0: done / length, d1: (done + n) / length})
		done += n
		pos = 0
	}
	return out
}

// DecomposeNoRepeat splits a quad whose texture rectangle wraps outside
// [0,1] into quads whose texture rectangles stay inside it. tex is in
// content-normalized units: 1.0 is one full copy of the content. A source
// that wraps once per axis yields at most four quads.
func DecomposeNoRepeat(dst, tex geom.RectF) []Quad {
	xs := spans(tex.X, tex.W)
	ys := spans(tex.Y, tex.H)
	out := make([]Quad, 0, len(xs)*len(ys))
	for _, y := range ys {
		for _, x := range xs {
			out = append(out, Quad{
				Dst: geom.RectF{
					X: dst.X + dst.W*x.d0,
					Y: dst.Y + dst.H*y.d0,
					W: dst.W * (x.d1 - x.d0),
					H: dst.H * (y.d1 - y.d0),
				},
				Tex: geom.RectF{X: x.t0, Y: y.t0, W: x.t1 - x.t0, H: y.t1 - y.t0},
			})
		}
	}
	return out
}

// wraps reports whether a content-normalized rectangle leaves [0,1].
func wraps(tex geom.RectF) bool {
	const eps = 1e-6
	return tex.X < -eps || tex.Y < -eps || tex.XMost() > 1+eps || tex.YMost() > 1+eps
}
