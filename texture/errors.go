// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import "errors"

var (
	// ErrResourceExhausted is returned when an allocation exceeds the
	// device's maximum texture size or the memory budget.
	ErrResourceExhausted = errors.New("texture: resource exhausted")

	// ErrIncompatibleSurface is returned when a shared handle's share type
	// is not supported by the device.
	ErrIncompatibleSurface = errors.New("texture: incompatible shared surface")

	// ErrReleased is returned when operating on a released handle.
	ErrReleased = errors.New("texture: handle released")

	// ErrBadSize is returned for non-positive sizes.
	ErrBadSize = errors.New("texture: invalid size")

	// ErrShortBuffer is returned when pixel data is too small for the
	// region being uploaded.
	ErrShortBuffer = errors.New("texture: pixel buffer too small")
)
