// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package texture

import "github.com/gogpu/compositor/driver"

// Option configures an allocation.
type Option func(*options)

type options struct {
	label        string
	wrap         driver.Wrap
	renderTarget bool
	budget       *Budget
	pool         *Pool
	tileSize     int
}

func defaultOptions() options {
	return options{wrap: driver.WrapClamp}
}

// WithLabel sets the debug label passed to the driver.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithWrap sets the wrap mode. WrapRepeat may cause power-of-two padding.
func WithWrap(w driver.Wrap) Option {
	return func(o *options) { o.wrap = w }
}

// WithRenderTarget makes the texture usable as a render pass target.
func WithRenderTarget() Option {
	return func(o *options) { o.renderTarget = true }
}

// WithBudget accounts the allocation against b.
func WithBudget(b *Budget) Option {
	return func(o *options) { o.budget = b }
}

// WithPool takes textures from p when possible and returns them to p on
// release.
func WithPool(p *Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithTileSize sets the tile edge for AllocateTiled. Values <= 0 or larger
// than the device maximum use the device maximum.
func WithTileSize(n int) Option {
	return func(o *options) { o.tileSize = n }
}
