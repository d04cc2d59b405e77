// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package engine is the compositor's draw engine.
//
// An [Engine] owns the driver.Device, every compiled program variant and,
// on single-buffered surfaces, an offscreen back buffer. Each frame moves
// through three states:
//
//	Idle --BeginFrame--> FrameOpen --EndFrame--> FrameClosed --FlushToScreen--> Idle
//
// FlushToScreen may also be called directly from FrameOpen.
//
// DrawQuad resolves the program through package effect, binds textures in
// the selected unit order, uploads uniforms and issues geometry. The
// geometry is a single quad unless the source wraps on a device that cannot
// repeat the texture, in which case it is split into non-wrapping quads
// (see [DecomposeNoRepeat]), or the source is tiled, in which case one quad
// is issued per tile.
//
// Texture coordinates are normalized by the allocated texture size, which
// may be larger than the content when textures are padded to powers of
// two.
//
// # Errors
//
// Failures while compiling programs or allocating the back buffer are
// reported as [ErrInitFailed]. Calling frame operations out of order
// returns [ErrBadState]. Selection failures wrap effect.ErrProgramNotFound.
// All three are programming or platform errors; callers should stop
// compositing. Released textures surface as texture.ErrReleased and only
// affect the layer being drawn.
package engine
