// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package effect maps what a draw call samples to the shader program that
// draws it.
//
// A [Chain] describes one draw: a solid color, a single packed texture,
// three YCbCr planes, a component-alpha pair or a tiled texture, plus an
// optional mask. [Select] turns the chain's [Request] into a [Selection]:
// the program variant and blend mode of each pass and the order in which
// textures are bound to units.
//
// # Decision table
//
// In priority order:
//
//  1. Solid color: [ProgramSolid], no textures.
//  2. Component alpha: [ProgramComponentAlpha] drawn twice. Pass one uses
//     [driver.BlendComponentPass1], pass two [driver.BlendComponentPass2].
//     Units: on-black, on-white.
//  3. Planar YCbCr: [ProgramYCbCr], units Y, Cb, Cr.
//  4. Packed texture: the program matching the format. Premultiplied
//     content blends with [driver.BlendOver], straight alpha with
//     [driver.BlendNonPremultiplied].
//  5. Tiled texture: as packed, drawn once per tile.
//
// A mask appends one more unit and switches every pass to the masked twin
// of its program. Any other combination fails with [ErrProgramNotFound].
package effect
