// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package effect

import (
	"fmt"

	"github.com/gogpu/compositor/driver"
)

// Request is the input of Select.
type Request struct {
	Kind          Kind
	Formats       []driver.Format
	Premultiplied bool
	Mask          bool
}

// Role names what a texture unit holds.
type Role uint8

const (
	RoleTexture Role = iota
	RoleY
	RoleCb
	RoleCr
	RoleOnBlack
	RoleOnWhite
	RoleMask
)

var roleNames = [...]string{"texture", "y", "cb", "cr", "on-black", "on-white", "mask"}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// Binding assigns a role to a texture unit.
type Binding struct {
	Unit int
	Role Role
}

// Pass is one program invocation.
type Pass struct {
	Program Program
	Blend   driver.Blend
}

// Selection is the output of Select.
type Selection struct {
	Passes   []Pass
	Bindings []Binding

	// Tiled means the draw is repeated once per tile.
	Tiled bool
}

// Select returns the program passes and texture bindings for r. It is a
// pure function of r.
func Select(r Request) (Selection, error) {
	var sel Selection
	switch {
	case r.Kind == KindSolid && len(r.Formats) == 0:
		sel.Passes = []Pass{{Program: ProgramSolid, Blend: driver.BlendOver}}

	case r.Kind == KindComponentAlpha && len(r.Formats) == 2 &&
		r.Formats[0].Packed() && r.Formats[1].Packed():
		sel.Passes = []Pass{
			{Program: ProgramComponentAlpha, Blend: driver.BlendComponentPass1},
			{Program: ProgramComponentAlpha, Blend: driver.BlendComponentPass2},
		}
		sel.Bindings = []Binding{{0, RoleOnBlack}, {1, RoleOnWhite}}

	case r.Kind == KindYCbCr && len(r.Formats) == 3 &&
		r.Formats[0] == driver.FormatA8 && r.Formats[1] == driver.FormatA8 && r.Formats[2] == driver.FormatA8:
		sel.Passes = []Pass{{Program: ProgramYCbCr, Blend: driver.BlendOver}}
		sel.Bindings = []Binding{{0, RoleY}, {1, RoleCb}, {2, RoleCr}}

	case (r.Kind == KindTexture || r.Kind == KindTiled) && len(r.Formats) == 1:
		prog, ok := packedProgram(r.Formats[0])
		if !ok {
			return Selection{}, fmt.Errorf("%w: %v texture", ErrProgramNotFound, r.Formats[0])
		}
		blend := driver.BlendOver
		if !r.Premultiplied && r.Formats[0].HasAlpha() {
			blend = driver.BlendNonPremultiplied
		}
		sel.Passes = []Pass{{Program: prog, Blend: blend}}
		sel.Bindings = []Binding{{0, RoleTexture}}
		sel.Tiled = r.Kind == KindTiled

	default:
		return Selection{}, fmt.Errorf("%w: %v with formats %v", ErrProgramNotFound, r.Kind, r.Formats)
	}

	if r.Mask {
		for i := range sel.Passes {
			masked, ok := sel.Passes[i].Program.WithMask()
			if !ok {
				return Selection{}, fmt.Errorf("%w: no masked %v", ErrProgramNotFound, sel.Passes[i].Program)
			}
			sel.Passes[i].Program = masked
		}
		sel.Bindings = append(sel.Bindings, Binding{Unit: len(sel.Bindings), Role: RoleMask})
	}
	return sel, nil
}

func packedProgram(f driver.Format) (Program, bool) {
	switch f {
	case driver.FormatRGBA:
		return ProgramRGBA, true
	case driver.FormatRGBX:
		return ProgramRGBX, true
	case driver.FormatBGRA:
		return ProgramBGRA, true
	case driver.FormatBGRX:
		return ProgramBGRX, true
	default:
		return 0, false
	}
}
