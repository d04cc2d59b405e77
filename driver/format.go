// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format is the pixel format tag of a texture or raster surface.
type Format uint8

const (
	// FormatRGBA is 8-bit RGBA with premultiplied alpha.
	FormatRGBA Format = iota

	// FormatRGBX is 8-bit RGB with an ignored fourth byte.
	FormatRGBX

	// FormatBGRA is 8-bit BGRA with premultiplied alpha.
	FormatBGRA

	// FormatBGRX is 8-bit BGR with an ignored fourth byte.
	FormatBGRX

	// FormatA8 is a single 8-bit channel, used for YCbCr planes and masks.
	FormatA8
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "RGBA"
	case FormatRGBX:
		return "RGBX"
	case FormatBGRA:
		return "BGRA"
	case FormatBGRX:
		return "BGRX"
	case FormatA8:
		return "A8"
	default:
		return fmt.Sprintf("Format(%d)", f)
	}
}

// BytesPerPixel returns the storage size of one pixel.
func (f Format) BytesPerPixel() int {
	if f == FormatA8 {
		return 1
	}
	return 4
}

// HasAlpha reports whether the format carries a meaningful alpha channel.
func (f Format) HasAlpha() bool {
	switch f {
	case FormatRGBA, FormatBGRA, FormatA8:
		return true
	default:
		return false
	}
}

// Packed reports whether f is one of the four-channel formats.
func (f Format) Packed() bool {
	return f <= FormatBGRX
}

// GPUFormat returns the WebGPU storage format. The X formats share storage
// with their alpha twins; the programs ignore the fourth channel.
func (f Format) GPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatRGBA, FormatRGBX:
		return gputypes.TextureFormatRGBA8Unorm
	case FormatBGRA, FormatBGRX:
		return gputypes.TextureFormatBGRA8Unorm
	case FormatA8:
		return gputypes.TextureFormatR8Unorm
	default:
		return gputypes.TextureFormatUndefined
	}
}

// Wrap is the texture addressing mode outside [0,1].
type Wrap uint8

const (
	// WrapClamp clamps coordinates to the edge texel.
	WrapClamp Wrap = iota

	// WrapRepeat repeats the texture.
	WrapRepeat
)

func (w Wrap) String() string {
	if w == WrapRepeat {
		return "repeat"
	}
	return "clamp"
}

// Blend selects the fixed-function blend equation of a draw.
type Blend uint8

const (
	// BlendOver is premultiplied source-over: src + dst*(1-srcA).
	BlendOver Blend = iota

	// BlendNonPremultiplied is straight-alpha over: src*srcA + dst*(1-srcA).
	BlendNonPremultiplied

	// BlendComponentPass1 multiplies the destination by the inverse source
	// color: dst*(1-src).
	BlendComponentPass1

	// BlendComponentPass2 adds the source: src + dst.
	BlendComponentPass2

	// BlendCopy replaces the destination.
	BlendCopy
)

func (b Blend) String() string {
	switch b {
	case BlendOver:
		return "over"
	case BlendNonPremultiplied:
		return "non-premultiplied"
	case BlendComponentPass1:
		return "component-pass1"
	case BlendComponentPass2:
		return "component-pass2"
	case BlendCopy:
		return "copy"
	default:
		return fmt.Sprintf("Blend(%d)", b)
	}
}

// State returns the WebGPU blend state for b.
func (b Blend) State() gputypes.BlendState {
	comp := func(src, dst gputypes.BlendFactor) gputypes.BlendComponent {
		return gputypes.BlendComponent{SrcFactor: src, DstFactor: dst, Operation: gputypes.BlendOperationAdd}
	}
	switch b {
	case BlendNonPremultiplied:
		return gputypes.BlendState{
			Color: comp(gputypes.BlendFactorSrcAlpha, gputypes.BlendFactorOneMinusSrcAlpha),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case BlendComponentPass1:
		return gputypes.BlendState{
			Color: comp(gputypes.BlendFactorZero, gputypes.BlendFactorOneMinusSrc),
			Alpha: comp(gputypes.BlendFactorZero, gputypes.BlendFactorOneMinusSrcAlpha),
		}
	case BlendComponentPass2:
		return gputypes.BlendState{
			Color: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorOne),
		}
	case BlendCopy:
		return gputypes.BlendState{
			Color: comp(gputypes.BlendFactorOne, gputypes.BlendFactorZero),
			Alpha: comp(gputypes.BlendFactorOne, gputypes.BlendFactorZero),
		}
	default:
		return gputypes.BlendStatePremultiplied()
	}
}
