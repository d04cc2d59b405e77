// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package haldriver implements driver.Device on top of github.com/gogpu/wgpu/hal.
//
// A Device either shares the GPU device of a host application
// ([FromProvider], any gpucontext.DeviceProvider that also exposes its HAL
// device and queue) or opens its own device on the noop backend
// ([NewHeadless]).
//
// The presentation surface is an offscreen render target owned by the
// Device. [Device.Present] hands its view to the function installed with
// [WithPresentFunc]; the host is responsible for putting it on screen.
//
// Programs are compiled from WGSL to SPIR-V with github.com/gogpu/naga.
// Render pipelines are created lazily, one per (blend, target format)
// pair. Every draw gets its own uniform buffer, vertex buffer and bind
// group; they are destroyed after the pass is submitted.
package haldriver
