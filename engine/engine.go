// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"errors"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/texture"
)

var (
	// ErrInitFailed is returned when the engine cannot be created.
	ErrInitFailed = errors.New("engine: failed to initialize GPU compositor")

	// ErrBadState is returned when a frame operation is called in the
	// wrong state.
	ErrBadState = errors.New("engine: invalid state")

	// ErrReleased is returned after Release.
	ErrReleased = errors.New("engine: released")
)

// State is the frame state.
type State uint8

const (
	StateIdle State = iota
	StateFrameOpen
	StateFrameClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFrameOpen:
		return "frame-open"
	case StateFrameClosed:
		return "frame-closed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// FrameStats counts the work of one frame.
type FrameStats struct {
	Quads        int
	DrawCalls    int
	TextureBinds int
	Groups       int
}

// target is a render destination: the frame target or an intermediate
// group surface.
type target struct {
	tex        *texture.Handle // nil for the surface or back buffer
	origin     image.Point     // surface-space position of the target
	size       image.Point
	projection mgl32.Mat4
	clip       image.Rectangle // surface-space scissor
	pass       driver.Pass
}

// Engine draws quads through a driver.Device.
type Engine struct {
	dev      driver.Device
	caps     driver.Caps
	opts     options
	programs [effect.NumPrograms]driver.Program

	backBuffer  *texture.Handle
	surfaceSize image.Point
	projection  mgl32.Mat4

	state   State
	targets []*target
	stats   FrameStats

	projectionUpdates int
	frames            uint64
	released          bool
}

var programSlots = effect.Programs()

// New creates an engine and compiles every program variant. Any failure is
// reported as ErrInitFailed and leaves nothing allocated.
func New(dev driver.Device, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	e := &Engine{dev: dev, caps: dev.Caps(), opts: o}

	for i, p := range programSlots {
		prog, err := dev.CompileProgram(driver.ProgramDesc{
			Name:     p.String(),
			Source:   p.Source(),
			Textures: p.Textures(),
		})
		if err != nil {
			e.releasePrograms()
			return nil, fmt.Errorf("%w: compile %v: %w", ErrInitFailed, p, err)
		}
		e.programs[i] = prog
	}

	if e.caps.SingleBuffered {
		if err := e.ensureBackBuffer(dev.SurfaceSize()); err != nil {
			e.releasePrograms()
			return nil, fmt.Errorf("%w: back buffer: %w", ErrInitFailed, err)
		}
	}

	logging.Logger().Info("engine: initialized",
		"programs", len(programSlots),
		"maxTextureSize", e.caps.MaxTextureSize,
		"singleBuffered", e.caps.SingleBuffered)
	return e, nil
}

// Device returns the driver device.
func (e *Engine) Device() driver.Device { return e.dev }

// Caps returns the device capabilities.
func (e *Engine) Caps() driver.Caps { return e.caps }

// MaxTextureSize returns the largest texture edge the device supports.
func (e *Engine) MaxTextureSize() int { return e.caps.MaxTextureSize }

// State returns the frame state.
func (e *Engine) State() State { return e.state }

// LastFrame returns statistics of the current or most recent frame.
func (e *Engine) LastFrame() FrameStats { return e.stats }

// ProjectionUpdates returns how many times the projection was recomputed.
func (e *Engine) ProjectionUpdates() int { return e.projectionUpdates }

// SurfaceSize returns the surface size seen by the most recent BeginFrame.
func (e *Engine) SurfaceSize() image.Point { return e.surfaceSize }

// Frames returns the number of frames flushed.
func (e *Engine) Frames() uint64 { return e.frames }

func (e *Engine) program(p effect.Program) (driver.Program, error) {
	if int(p) >= len(e.programs) || e.programs[p] == nil {
		return nil, fmt.Errorf("%w: %v not compiled", effect.ErrProgramNotFound, p)
	}
	return e.programs[p], nil
}

func (e *Engine) ensureBackBuffer(size image.Point) error {
	if e.backBuffer != nil && e.backBuffer.Size() == size {
		return nil
	}
	if e.backBuffer != nil {
		e.backBuffer.Release()
		e.backBuffer = nil
	}
	bb, err := texture.Allocate(e.dev, size, driver.FormatBGRA,
		texture.WithLabel("back-buffer"),
		texture.WithRenderTarget(),
		texture.WithPool(e.opts.pool),
		texture.WithBudget(e.opts.budget))
	if err != nil {
		return err
	}
	e.backBuffer = bb
	return nil
}

func (e *Engine) current() *target { return e.targets[len(e.targets)-1] }

// BeginFrame opens a frame. Drawing is limited to clip when non-nil,
// otherwise to the whole surface.
func (e *Engine) BeginFrame(clip *image.Rectangle) error {
	if e.released {
		return ErrReleased
	}
	if e.state != StateIdle {
		return fmt.Errorf("%w: BeginFrame in %v", ErrBadState, e.state)
	}

	size := e.dev.SurfaceSize()
	if size != e.surfaceSize {
		e.surfaceSize = size
		e.projection = geom.Ortho(size.X, size.Y)
		e.projectionUpdates++
		logging.Logger().Debug("engine: surface resized", "size", size)
	}
	var frameTarget driver.Texture
	if e.caps.SingleBuffered {
		if err := e.ensureBackBuffer(size); err != nil {
			return fmt.Errorf("engine: back buffer: %w", err)
		}
		frameTarget = e.backBuffer.Texture()
	}

	bounds := image.Rectangle{Max: size}
	scissor := bounds
	if clip != nil {
		scissor = clip.Intersect(bounds)
	}

	pass, err := e.dev.BeginPass(driver.PassDesc{
		Label:      "frame",
		Target:     frameTarget,
		Clear:      true,
		ClearColor: e.opts.clearColor,
	})
	if err != nil {
		return fmt.Errorf("engine: begin frame: %w", err)
	}
	pass.SetViewport(bounds)
	pass.SetScissor(scissor)

	e.targets = []*target{{size: size, projection: e.projection, clip: scissor, pass: pass}}
	e.stats = FrameStats{}
	e.state = StateFrameOpen
	return nil
}

// EndFrame finishes recording. Intermediate groups must have been popped.
func (e *Engine) EndFrame() error {
	if e.state != StateFrameOpen {
		return fmt.Errorf("%w: EndFrame in %v", ErrBadState, e.state)
	}
	if len(e.targets) != 1 {
		return fmt.Errorf("%w: %d groups still open", ErrBadState, len(e.targets)-1)
	}
	err := e.current().pass.End()
	e.targets = nil
	e.state = StateFrameClosed
	if err != nil {
		return fmt.Errorf("engine: end frame: %w", err)
	}
	return nil
}

// FlushToScreen presents the frame and returns to Idle. On single-buffered
// surfaces the back buffer is first copied to the surface.
func (e *Engine) FlushToScreen() error {
	if e.state == StateFrameOpen {
		if err := e.EndFrame(); err != nil {
			return err
		}
	}
	if e.state != StateFrameClosed {
		return fmt.Errorf("%w: FlushToScreen in %v", ErrBadState, e.state)
	}
	e.state = StateIdle

	if e.backBuffer != nil {
		if err := e.copyBackBuffer(); err != nil {
			return err
		}
	}
	if err := e.dev.Present(); err != nil {
		return fmt.Errorf("engine: present: %w", err)
	}
	e.frames++
	logging.Logger().Debug("engine: frame flushed",
		"frame", e.frames,
		"quads", e.stats.Quads,
		"drawCalls", e.stats.DrawCalls,
		"binds", e.stats.TextureBinds)
	return nil
}

func (e *Engine) copyBackBuffer() error {
	prog, err := e.program(effect.ProgramCopy)
	if err != nil {
		return err
	}
	pass, err := e.dev.BeginPass(driver.PassDesc{Label: "copy-back-buffer", Clear: false})
	if err != nil {
		return fmt.Errorf("engine: copy back buffer: %w", err)
	}
	bounds := image.Rectangle{Max: e.surfaceSize}
	pass.SetViewport(bounds)
	pass.SetScissor(bounds)
	pass.SetProgram(prog, driver.BlendCopy)
	pass.BindTexture(0, e.backBuffer.Texture(), driver.WrapClamp)
	pass.SetUniforms(driver.Uniforms{
		Projection:    e.projection,
		Transform:     mgl32.Ident4(),
		MaskTransform: mgl32.Ident4(),
		LayerRect:     geom.RectFOf(bounds).Vec4(),
		Opacity:       1,
	})
	if err := pass.Draw(driver.QuadVertices(geom.RectFOf(bounds), geom.RectF{W: 1, H: 1})); err != nil {
		_ = pass.End()
		return fmt.Errorf("engine: copy back buffer: %w", err)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("engine: copy back buffer: %w", err)
	}
	return nil
}

// AbortFrame discards the frame in progress and returns to Idle.
func (e *Engine) AbortFrame() {
	for i := len(e.targets) - 1; i >= 0; i-- {
		t := e.targets[i]
		if i == 0 || t.tex != nil {
			_ = t.pass.End()
		}
		if t.tex != nil {
			t.tex.Release()
		}
	}
	e.targets = nil
	e.state = StateIdle
}

// Release frees every GPU object owned by the engine. It does not release
// the device.
func (e *Engine) Release() {
	if e.released {
		return
	}
	if e.state != StateIdle {
		e.AbortFrame()
	}
	e.releasePrograms()
	if e.backBuffer != nil {
		e.backBuffer.Release()
		e.backBuffer = nil
	}
	if e.opts.pool != nil {
		e.opts.pool.Purge()
	}
	e.released = true
	logging.Logger().Info("engine: released")
}

func (e *Engine) releasePrograms() {
	for i, p := range e.programs {
		if p != nil {
			p.Release()
			e.programs[i] = nil
		}
	}
}
