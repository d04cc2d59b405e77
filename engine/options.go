// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import "github.com/gogpu/compositor/texture"

// Option configures an Engine.
type Option func(*options)

type options struct {
	clearColor [4]float32
	pool       *texture.Pool
	budget     *texture.Budget
}

func defaultOptions() options {
	return options{}
}

// WithClearColor sets the color the frame is cleared to.
func WithClearColor(c [4]float32) Option {
	return func(o *options) { o.clearColor = c }
}

// WithPool recycles intermediate surfaces and the back buffer through p.
func WithPool(p *texture.Pool) Option {
	return func(o *options) { o.pool = p }
}

// WithBudget accounts engine-owned textures against b.
func WithBudget(b *texture.Budget) Option {
	return func(o *options) { o.budget = b }
}
