// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package effect

import (
	"embed"
	"fmt"
	"strconv"
	"strings"
)

// Program identifies a shader program variant.
type Program uint8

const (
	ProgramSolid Program = iota
	ProgramRGBA
	ProgramRGBX
	ProgramBGRA
	ProgramBGRX
	ProgramYCbCr
	ProgramComponentAlpha
	ProgramCopy

	ProgramSolidMasked
	ProgramRGBAMasked
	ProgramRGBXMasked
	ProgramBGRAMasked
	ProgramBGRXMasked
	ProgramYCbCrMasked
	ProgramComponentAlphaMasked

	programCount
)

// NumPrograms is the number of program variants.
const NumPrograms = int(programCount)

var programNames = [programCount]string{
	"solid", "rgba", "rgbx", "bgra", "bgrx", "ycbcr", "component-alpha", "copy",
	"solid-masked", "rgba-masked", "rgbx-masked", "bgra-masked", "bgrx-masked",
	"ycbcr-masked", "component-alpha-masked",
}

// Programs returns every variant in a stable order.
func Programs() []Program {
	out := make([]Program, programCount)
	for i := range out {
		out[i] = Program(i)
	}
	return out
}

// String returns the variant name.
func (p Program) String() string {
	if p < programCount {
		return programNames[p]
	}
	return fmt.Sprintf("Program(%d)", p)
}

// Masked reports whether p samples a mask.
func (p Program) Masked() bool {
	return p >= ProgramSolidMasked && p < programCount
}

// WithMask returns the masked twin of p.
func (p Program) WithMask() (Program, bool) {
	if p.Masked() {
		return p, true
	}
	if p >= ProgramCopy {
		return 0, false
	}
	return p + ProgramSolidMasked, true
}

func (p Program) base() Program {
	if p.Masked() {
		return p - ProgramSolidMasked
	}
	return p
}

// Textures returns the number of textures p binds, mask included.
func (p Program) Textures() int {
	n := 0
	switch p.base() {
	case ProgramRGBA, ProgramRGBX, ProgramBGRA, ProgramBGRX, ProgramCopy:
		n = 1
	case ProgramYCbCr:
		n = 3
	case ProgramComponentAlpha:
		n = 2
	}
	if p.Masked() {
		n++
	}
	return n
}

//go:embed shaders/*.wgsl
var shaderFS embed.FS

func shaderFile(name string) string {
	b, err := shaderFS.ReadFile("shaders/" + name)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Source returns the complete WGSL source of p.
func (p Program) Source() string {
	var body string
	switch p.base() {
	case ProgramSolid:
		body = "solid.wgsl"
	case ProgramRGBA, ProgramBGRA, ProgramCopy:
		// BGRA textures are swizzled by the sampler.
		body = "rgba.wgsl"
	case ProgramRGBX, ProgramBGRX:
		body = "rgbx.wgsl"
	case ProgramYCbCr:
		body = "ycbcr.wgsl"
	case ProgramComponentAlpha:
		body = "component_alpha.wgsl"
	default:
		return ""
	}
	var sb strings.Builder
	sb.WriteString(shaderFile("common.wgsl"))
	sb.WriteString("\n")
	sb.WriteString(shaderFile(body))
	sb.WriteString("\n")
	if p.Masked() {
		maskBinding := strconv.Itoa(2 + p.Textures() - 1)
		sb.WriteString(strings.ReplaceAll(shaderFile("entry_masked.wgsl"), "MASK_BINDING", maskBinding))
	} else {
		sb.WriteString(shaderFile("entry.wgsl"))
	}
	return sb.String()
}
