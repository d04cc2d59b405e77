// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package driver defines the narrow GPU interface the compositor draws
// through.
//
// A [Device] owns one GPU context and one presentation surface. It creates
// [Texture] objects, compiles [Program] variants and opens render passes.
// All methods must be called from the goroutine that owns the device (the
// compositor goroutine).
//
// Two implementations exist:
//
//   - driver/haldriver renders through github.com/gogpu/wgpu/hal.
//   - driver/drivertest records every call for tests.
//
// # Vertex and uniform layout
//
// Every program shares the same vertex layout ([Vertex]: layer-space
// position followed by texture coordinates, 16 bytes) and the same uniform
// block ([Uniforms], 240 bytes, see [Uniforms.Bytes]). Bind group 0 holds
// the uniform buffer at binding 0, a sampler at binding 1 and the program's
// textures at bindings 2 and up, in texture-unit order.
package driver
