// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package effect

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/texture"
)

var (
	// ErrProgramNotFound is returned when no program variant matches a
	// request. It signals a programming error, not a runtime condition.
	ErrProgramNotFound = errors.New("effect: program not found")

	// ErrInvalidChain is returned for chains with zero or several kinds.
	ErrInvalidChain = errors.New("effect: chain must have exactly one kind")
)

// Kind is the populated kind of a chain.
type Kind uint8

const (
	KindNone Kind = iota
	KindSolid
	KindTexture
	KindYCbCr
	KindComponentAlpha
	KindTiled
)

func (k Kind) String() string {
	switch k {
	case KindSolid:
		return "solid"
	case KindTexture:
		return "texture"
	case KindYCbCr:
		return "ycbcr"
	case KindComponentAlpha:
		return "component-alpha"
	case KindTiled:
		return "tiled"
	default:
		return "none"
	}
}

// Solid is a premultiplied RGBA color.
type Solid struct {
	Color [4]float32
}

// Texture samples one packed texture.
type Texture struct {
	Handle        *texture.Handle
	Premultiplied bool
}

// YCbCr samples three single-channel planes.
type YCbCr struct {
	Y, Cb, Cr *texture.Handle
}

// ComponentAlpha samples content rendered on black and on white.
type ComponentAlpha struct {
	OnBlack, OnWhite *texture.Handle
}

// Tiled samples a tiled texture.
type Tiled struct {
	Tiles         *texture.TiledHandle
	Premultiplied bool
}

// Mask multiplies the result by a single-channel coverage texture.
type Mask struct {
	Handle *texture.Handle

	// Transform maps surface pixels to mask texture coordinates.
	Transform mgl32.Mat4
}

// Chain describes the inputs of one draw call. Exactly one of the kind
// fields must be set. Chains are built per draw and not retained.
type Chain struct {
	Solid          *Solid
	Texture        *Texture
	YCbCr          *YCbCr
	ComponentAlpha *ComponentAlpha
	Tiled          *Tiled
	Mask           *Mask
}

// Kind returns the populated kind, or KindNone when zero or several kinds
// are set.
func (c *Chain) Kind() Kind {
	kind, n := KindNone, 0
	if c.Solid != nil {
		kind, n = KindSolid, n+1
	}
	if c.Texture != nil {
		kind, n = KindTexture, n+1
	}
	if c.YCbCr != nil {
		kind, n = KindYCbCr, n+1
	}
	if c.ComponentAlpha != nil {
		kind, n = KindComponentAlpha, n+1
	}
	if c.Tiled != nil {
		kind, n = KindTiled, n+1
	}
	if n != 1 {
		return KindNone
	}
	return kind
}

// Request derives the selector input from the chain.
func (c *Chain) Request() (Request, error) {
	r := Request{Kind: c.Kind(), Mask: c.Mask != nil}
	switch r.Kind {
	case KindSolid:
	case KindTexture:
		r.Formats = []driver.Format{c.Texture.Handle.Format()}
		r.Premultiplied = c.Texture.Premultiplied
	case KindYCbCr:
		r.Formats = []driver.Format{c.YCbCr.Y.Format(), c.YCbCr.Cb.Format(), c.YCbCr.Cr.Format()}
	case KindComponentAlpha:
		r.Formats = []driver.Format{c.ComponentAlpha.OnBlack.Format(), c.ComponentAlpha.OnWhite.Format()}
		r.Premultiplied = true
	case KindTiled:
		r.Formats = []driver.Format{c.Tiled.Tiles.Format()}
		r.Premultiplied = c.Tiled.Premultiplied
	default:
		return Request{}, ErrInvalidChain
	}
	return r, nil
}

// Handle returns the texture bound for role, or nil. Tiled chains return
// nil for RoleTexture; the caller binds each tile.
func (c *Chain) Handle(role Role) *texture.Handle {
	switch role {
	case RoleTexture:
		if c.Texture != nil {
			return c.Texture.Handle
		}
	case RoleY, RoleCb, RoleCr:
		if c.YCbCr != nil {
			return [...]*texture.Handle{c.YCbCr.Y, c.YCbCr.Cb, c.YCbCr.Cr}[role-RoleY]
		}
	case RoleOnBlack:
		if c.ComponentAlpha != nil {
			return c.ComponentAlpha.OnBlack
		}
	case RoleOnWhite:
		if c.ComponentAlpha != nil {
			return c.ComponentAlpha.OnWhite
		}
	case RoleMask:
		if c.Mask != nil {
			return c.Mask.Handle
		}
	}
	return nil
}

func (c *Chain) String() string {
	return fmt.Sprintf("Chain{%v mask=%t}", c.Kind(), c.Mask != nil)
}
