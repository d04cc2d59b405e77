// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldriver

import (
	"github.com/gogpu/wgpu/hal"
)

// DefaultMaxTextureSize is the texture edge limit reported when none is
// configured. It matches the WebGPU default limit for 2D textures.
const DefaultMaxTextureSize = 8192

// PresentFunc receives the surface view on every Present.
type PresentFunc func(view hal.TextureView) error

type options struct {
	singleBuffered bool
	maxTextureSize int
	present        PresentFunc
}

func defaultOptions() options {
	return options{maxTextureSize: DefaultMaxTextureSize}
}

// Option configures a Device.
type Option func(*options)

// WithSingleBuffered reports the surface as single-buffered, which makes the
// engine render into a back buffer and copy it on flush.
func WithSingleBuffered(v bool) Option {
	return func(o *options) { o.singleBuffered = v }
}

// WithMaxTextureSize overrides the reported texture edge limit.
// Non-positive values are ignored.
func WithMaxTextureSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextureSize = n
		}
	}
}

// WithPresentFunc installs the function called by Present.
func WithPresentFunc(fn PresentFunc) Option {
	return func(o *options) { o.present = fn }
}
