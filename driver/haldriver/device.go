// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package haldriver

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/internal/logging"
)

var (
	// ErrNilProvider is returned by FromProvider for a nil provider.
	ErrNilProvider = errors.New("haldriver: nil device provider")

	// ErrNoHAL is returned when the provider does not expose its HAL
	// device and queue.
	ErrNoHAL = errors.New("haldriver: provider does not expose HAL types")

	// ErrNoAdapter is returned when the backend reports no adapter.
	ErrNoAdapter = errors.New("haldriver: no adapter")

	// ErrSurfaceFormat is returned for a surface format the compositor
	// cannot render into.
	ErrSurfaceFormat = errors.New("haldriver: unsupported surface format")

	// ErrForeignObject is returned when a texture or program from another
	// driver is passed in.
	ErrForeignObject = errors.New("haldriver: object not created by this device")
)

// maxUnits is the largest number of textures one program binds
// (three YCbCr planes and a mask).
const maxUnits = 4

// halProvider is implemented by device providers that expose their HAL
// objects, such as gogpu.App's provider.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

type bindLayout struct {
	group    hal.BindGroupLayout
	pipeline hal.PipelineLayout
}

// Device is a driver.Device backed by a HAL device.
type Device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil when the device is shared
	external bool

	opts    options
	caps    driver.Caps
	format  driver.Format
	size    image.Point
	surface *Texture

	surfaceReleased bool
	closed          bool
	frames          uint64

	samplers [2]hal.Sampler // indexed by driver.Wrap
	layouts  [maxUnits + 1]*bindLayout
}

// FromProvider returns a Device sharing the provider's GPU device and queue.
// The surface is an offscreen texture of the provider's surface format.
func FromProvider(provider gpucontext.DeviceProvider, size image.Point, opts ...Option) (*Device, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	format, err := surfaceFormat(provider.SurfaceFormat())
	if err != nil {
		return nil, err
	}
	d := &Device{device: device, queue: queue, external: true, format: format}
	if err := d.init(size, opts); err != nil {
		return nil, err
	}
	logging.Logger().Info("haldriver: using shared device", "format", format, "size", size)
	return d, nil
}

// NewHeadless opens a device on the noop backend. Nothing is displayed;
// it is used by tests and the demo.
func NewHeadless(size image.Point, opts ...Option) (*Device, error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("haldriver: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("haldriver: open adapter: %w", err)
	}
	d := &Device{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
		format:   driver.FormatBGRA,
	}
	if err := d.init(size, opts); err != nil {
		openDev.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	logging.Logger().Info("haldriver: headless device", "size", size)
	return d, nil
}

func surfaceFormat(f gputypes.TextureFormat) (driver.Format, error) {
	switch f {
	case gputypes.TextureFormatBGRA8Unorm:
		return driver.FormatBGRA, nil
	case gputypes.TextureFormatRGBA8Unorm:
		return driver.FormatRGBA, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrSurfaceFormat, f)
	}
}

func (d *Device) init(size image.Point, opts []Option) error {
	d.opts = defaultOptions()
	for _, opt := range opts {
		opt(&d.opts)
	}
	d.caps = driver.Caps{
		MaxTextureSize:  d.opts.maxTextureSize,
		NPOTRepeat:      true,
		SubRegionUpload: false,
		SharedHandles:   driver.SharesOf(driver.ShareMemory),
		SingleBuffered:  d.opts.singleBuffered,
	}

	for w, mode := range []gputypes.AddressMode{gputypes.AddressModeClampToEdge, gputypes.AddressModeRepeat} {
		s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
			Label:        "compositor_sampler_" + driver.Wrap(w).String(),
			AddressModeU: mode,
			AddressModeV: mode,
			AddressModeW: mode,
			MagFilter:    gputypes.FilterModeLinear,
			MinFilter:    gputypes.FilterModeLinear,
			MipmapFilter: gputypes.FilterModeLinear,
		})
		if err != nil {
			d.destroyShared()
			return fmt.Errorf("haldriver: create sampler: %w", err)
		}
		d.samplers[w] = s
	}

	if err := d.createSurface(size); err != nil {
		d.destroyShared()
		return err
	}
	return nil
}

func (d *Device) createSurface(size image.Point) error {
	t, err := d.newTexture(driver.TextureDesc{
		Label:        "surface",
		Size:         size,
		Format:       d.format,
		RenderTarget: true,
	})
	if err != nil {
		return fmt.Errorf("haldriver: create surface: %w", err)
	}
	d.surface = t
	d.size = size
	return nil
}

// layout returns the bind group and pipeline layouts for programs binding
// n textures: uniforms at 0, the sampler at 1, textures from 2.
func (d *Device) layout(n int) (*bindLayout, error) {
	if n < 0 || n > maxUnits {
		return nil, fmt.Errorf("haldriver: %d texture units, max %d", n, maxUnits)
	}
	if l := d.layouts[n]; l != nil {
		return l, nil
	}

	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
		{
			Binding:    1,
			Visibility: gputypes.ShaderStageFragment,
			Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
		},
	}
	for i := 0; i < n; i++ {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    uint32(2 + i),
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}

	label := fmt.Sprintf("compositor_layout_%d", n)
	group, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("haldriver: create bind group layout: %w", err)
	}
	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []hal.BindGroupLayout{group},
	})
	if err != nil {
		d.device.DestroyBindGroupLayout(group)
		return nil, fmt.Errorf("haldriver: create pipeline layout: %w", err)
	}
	l := &bindLayout{group: group, pipeline: pl}
	d.layouts[n] = l
	return l, nil
}

// Caps implements driver.Device.
func (d *Device) Caps() driver.Caps { return d.caps }

// HalDevice returns the underlying HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// SurfaceView returns the view of the current surface texture, or nil
// while the surface is released.
func (d *Device) SurfaceView() hal.TextureView {
	if d.surfaceReleased || d.surface == nil {
		return nil
	}
	return d.surface.view
}

// SurfaceFormat returns the pixel format of the surface.
func (d *Device) SurfaceFormat() driver.Format { return d.format }

// Frames returns how many times Present succeeded.
func (d *Device) Frames() uint64 { return d.frames }

// NewTexture implements driver.Device.
func (d *Device) NewTexture(desc driver.TextureDesc) (driver.Texture, error) {
	t, err := d.newTexture(desc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// CompileProgram implements driver.Device.
func (d *Device) CompileProgram(desc driver.ProgramDesc) (driver.Program, error) {
	p, err := d.compileProgram(desc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// BeginPass implements driver.Device.
func (d *Device) BeginPass(desc driver.PassDesc) (driver.Pass, error) {
	p, err := d.beginPass(desc)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SurfaceSize implements driver.Device.
func (d *Device) SurfaceSize() image.Point { return d.size }

// ResizeSurface implements driver.Device.
func (d *Device) ResizeSurface(size image.Point) error {
	if size == d.size && d.surface != nil {
		return nil
	}
	if d.surfaceReleased {
		d.size = size
		return nil
	}
	old := d.surface
	if err := d.createSurface(size); err != nil {
		return err
	}
	if old != nil {
		old.Release()
	}
	logging.Logger().Debug("haldriver: surface resized", "size", size)
	return nil
}

// ReleaseSurface implements driver.Device.
func (d *Device) ReleaseSurface() {
	if d.surfaceReleased {
		return
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	d.surfaceReleased = true
	logging.Logger().Debug("haldriver: surface released")
}

// RenewSurface implements driver.Device.
func (d *Device) RenewSurface() error {
	if !d.surfaceReleased {
		return nil
	}
	if err := d.createSurface(d.size); err != nil {
		return err
	}
	d.surfaceReleased = false
	return nil
}

// Present implements driver.Device.
func (d *Device) Present() error {
	if d.surfaceReleased {
		return driver.ErrSurfaceReleased
	}
	if d.opts.present != nil {
		if err := d.opts.present(d.surface.view); err != nil {
			return fmt.Errorf("haldriver: present: %w", err)
		}
	}
	d.frames++
	return nil
}

// Release implements driver.Device. A shared device is left open.
func (d *Device) Release() {
	if d.closed {
		return
	}
	d.closed = true
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	d.destroyShared()
	if !d.external {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
			d.instance = nil
		}
	}
	logging.Logger().Info("haldriver: released", "frames", d.frames)
}

func (d *Device) destroyShared() {
	for i, l := range d.layouts {
		if l == nil {
			continue
		}
		d.device.DestroyPipelineLayout(l.pipeline)
		d.device.DestroyBindGroupLayout(l.group)
		d.layouts[i] = nil
	}
	for i, s := range d.samplers {
		if s != nil {
			d.device.DestroySampler(s)
			d.samplers[i] = nil
		}
	}
}

var _ driver.Device = (*Device)(nil)
