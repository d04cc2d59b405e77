// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texture manages GPU texture allocations for composited layers.
//
// A [Handle] owns exactly one driver texture. It knows its logical content
// size, the possibly larger allocated size, its pixel format and wrap mode,
// and releases its allocation exactly once. Content larger than the
// device's maximum texture size is held by a [TiledHandle], a grid of
// handles each no larger than the tile size.
//
// Allocations are accounted against an optional [Budget]; released
// textures may be recycled through a [Pool].
//
// # Threading
//
// Handles are created, updated and released on the compositor goroutine,
// the one that owns the driver.Device. Budget and Pool are safe for
// concurrent use so statistics can be read from anywhere.
//
// # Texture coordinates
//
// When the device cannot repeat non-power-of-two textures, handles created
// with driver.WrapRepeat are padded to the next power of two. Texture
// coordinates are always normalized by [Handle.AllocatedSize]; use
// [Handle.ContentScale] to map logical pixels into that space.
package texture
