package compositor

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/ipc"
	"github.com/gogpu/compositor/layers"
	"github.com/gogpu/compositor/texture"
)

var (
	// ErrDestroyed is returned by every operation after Destroy.
	ErrDestroyed = errors.New("compositor: destroyed")

	// ErrChildrenAttached is returned by Destroy while child actors are
	// still attached.
	ErrChildrenAttached = errors.New("compositor: child actors still attached")

	// ErrActorAttached is returned by Connect when a bridge is already
	// connected.
	ErrActorAttached = errors.New("compositor: layers actor already attached")

	// ErrNoActor is returned by DetachActor without a matching AttachActor.
	ErrNoActor = errors.New("compositor: no actor attached")

	// ErrNoHost is returned for buffer updates to nodes without a content
	// host.
	ErrNoHost = errors.New("compositor: node has no content host")
)

// State is the controller lifecycle state.
type State uint32

const (
	StateActive State = iota
	StatePaused

	// StateDisabled means a fatal GPU error stopped compositing. Updates
	// are still applied so resources are tracked and released.
	StateDisabled

	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateDisabled:
		return "disabled"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Stats describe the controller's work so far.
type Stats struct {
	Composites      int
	SkippedPaused   int
	Coalesced       int
	RejectedUpdates int
	LastComposite   time.Time
	LastFrame       engine.FrameStats
	Texture         texture.BudgetStats
}

// compositeTask is the single outstanding scheduled composite. timer is
// nil when the task was queued to run immediately.
type compositeTask struct {
	timer Timer
}

// Controller is the compositor. All methods are safe for concurrent use;
// the work runs on the controller's own goroutine.
type Controller struct {
	opts   options
	dev    driver.Device
	eng    *engine.Engine
	budget *texture.Budget
	pool   *texture.Pool

	tasks    chan func()
	quit     chan struct{}
	loopDone chan struct{}
	state    atomic.Uint32

	// Owned by the compositor goroutine.
	local         []func()
	tree          *layers.Tree
	view          AsyncViewState
	pending       *compositeTask
	lastComposite time.Time
	lastWasFirst  bool
	actors        int
	bridge        *ipc.CompositorEnd
	stats         Stats
	failed        bool

	final Stats // written by Destroy before quit closes
}

// New creates a controller drawing through dev and starts its goroutine.
// A failure to set up the GPU engine is returned wrapping
// engine.ErrInitFailed.
func New(dev driver.Device, opts ...Option) (*Controller, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	c := &Controller{
		opts:     o,
		dev:      dev,
		budget:   texture.NewBudget(o.budgetMB),
		tasks:    make(chan func(), 64),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		view:     newAsyncViewState(),
	}
	if o.poolSize > 0 {
		c.pool = texture.NewPool(o.poolSize)
	}

	eng, err := engine.New(dev,
		engine.WithClearColor(o.clearColor),
		engine.WithPool(c.pool),
		engine.WithBudget(c.budget))
	if err != nil {
		return nil, fmt.Errorf("compositor: %w", err)
	}
	c.eng = eng
	c.tree = layers.NewTree(c.newHost)

	go c.loop()
	logging.Logger().Info("compositor: started", "throttle", o.throttle)
	return c, nil
}

func (c *Controller) textureOptions() []texture.Option {
	return []texture.Option{
		texture.WithBudget(c.budget),
		texture.WithPool(c.pool),
		texture.WithTileSize(c.opts.tileSize),
	}
}

func (c *Controller) newHost(mode layers.HostMode) layers.ContentHost {
	if mode == layers.HostSwap {
		return bufferhost.NewSwapHost(c.dev, c.textureOptions()...)
	}
	return bufferhost.NewUploadHost(c.dev, c.textureOptions()...)
}

// loop is the compositor goroutine. Work queued from the goroutine itself
// runs before the next external task.
func (c *Controller) loop() {
	defer close(c.loopDone)
	for {
		for len(c.local) > 0 {
			f := c.local[0]
			c.local[0] = nil
			c.local = c.local[1:]
			f()
		}
		select {
		case f := <-c.tasks:
			f()
		case <-c.quit:
			return
		}
	}
}

// post queues f on the compositor goroutine.
func (c *Controller) post(f func()) error {
	select {
	case <-c.quit:
		return ErrDestroyed
	default:
	}
	select {
	case c.tasks <- f:
		return nil
	case <-c.quit:
		return ErrDestroyed
	}
}

// call runs f on the compositor goroutine and waits for its result.
func (c *Controller) call(f func() error) error {
	done := make(chan error, 1)
	if err := c.post(func() { done <- f() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-c.loopDone:
		select {
		case err := <-done:
			return err
		default:
			return ErrDestroyed
		}
	}
}

func (c *Controller) setState(s State) { c.state.Store(uint32(s)) }

// State returns the lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Engine returns the draw engine. It must only be used from callbacks that
// run on the compositor goroutine.
func (c *Controller) Engine() *engine.Engine { return c.eng }

// Stats returns a snapshot of the controller statistics.
func (c *Controller) Stats() Stats {
	var s Stats
	if err := c.call(func() error {
		s = c.snapshot()
		return nil
	}); err != nil {
		return c.final
	}
	return s
}

func (c *Controller) snapshot() Stats {
	s := c.stats
	s.LastFrame = c.eng.LastFrame()
	s.Texture = c.budget.Stats()
	return s
}

// ViewState returns the asynchronous view state.
func (c *Controller) ViewState() (AsyncViewState, error) {
	var v AsyncViewState
	err := c.call(func() error {
		v = c.view
		return nil
	})
	return v, err
}

// ApplyTreeUpdate applies tx to the layer tree and requests a composite.
// An invalid transaction is rejected as a whole.
func (c *Controller) ApplyTreeUpdate(tx *layers.Transaction) error {
	return c.call(func() error { return c.applyTreeUpdate(tx) })
}

func (c *Controller) applyTreeUpdate(tx *layers.Transaction) error {
	base := c.tree
	if tx.FirstPaint {
		// A new page replaces the tree wholesale.
		base = layers.NewTree(c.newHost)
	}
	next, err := base.Apply(tx)
	if err != nil {
		c.stats.RejectedUpdates++
		logging.Logger().Warn("compositor: tree update rejected", "err", err)
		return err
	}
	prev := c.tree
	c.tree = next
	next.ReleaseDropped()
	if tx.FirstPaint {
		prev.Release()
	}

	// Consecutive first-paint updates describe one page load.
	if tx.FirstPaint && !c.lastWasFirst {
		c.view.FirstPaint = true
	}
	c.lastWasFirst = tx.FirstPaint
	c.view.LayersUpdated = true
	c.requestComposite()
	return nil
}

// UpdateBuffer hands painted content to the host of node. For swap hosts
// the previous front buffer is returned in the update.
func (c *Controller) UpdateBuffer(node layers.ID, buf *bufferhost.RotatedBuffer, dirty geom.Region) (bufferhost.Update, error) {
	var u bufferhost.Update
	err := c.call(func() error {
		var err error
		u, err = c.updateBuffer(node, buf, dirty)
		return err
	})
	return u, err
}

func (c *Controller) updateBuffer(id layers.ID, buf *bufferhost.RotatedBuffer, dirty geom.Region) (bufferhost.Update, error) {
	n := c.tree.Node(id)
	if n == nil {
		return bufferhost.Update{}, fmt.Errorf("compositor: buffer update: %w: %d", layers.ErrUnknownNode, id)
	}
	var (
		u   bufferhost.Update
		err error
	)
	switch h := n.Host().(type) {
	case *bufferhost.SwapHost:
		u, err = h.Swap(buf, dirty)
	case *bufferhost.UploadHost:
		u, err = h.Update(buf, dirty)
	default:
		return bufferhost.Update{}, fmt.Errorf("%w: %v", ErrNoHost, n)
	}
	if err != nil {
		logging.Logger().Warn("compositor: buffer update failed", "node", id, "err", err)
	}
	c.requestComposite()
	return u, err
}

// SetImage uploads img and shows it on an image node.
func (c *Controller) SetImage(node layers.ID, img image.Image) error {
	return c.call(func() error { return c.setImage(node, img) })
}

func (c *Controller) setImage(id layers.ID, img image.Image) error {
	im, err := layers.NewImage(c.dev, img, c.textureOptions()...)
	if err != nil {
		logging.Logger().Warn("compositor: image upload failed", "node", id, "err", err)
		return err
	}
	next, err := c.tree.Apply(new(layers.Transaction).Add(layers.SetImage{ID: id, Image: im}))
	if err != nil {
		im.Release()
		return err
	}
	c.tree = next
	next.ReleaseDropped()
	c.requestComposite()
	return nil
}

// SetTransformation sets the asynchronous zoom and scroll offset and
// requests a composite.
func (c *Controller) SetTransformation(scale float32, scrollOffset geom.PointF) error {
	return c.call(func() error {
		c.view.ScaleX, c.view.ScaleY = scale, scale
		c.view.ScrollOffset = scrollOffset
		c.requestComposite()
		return nil
	})
}

// RequestComposite schedules a composite. It never waits for drawing.
func (c *Controller) RequestComposite() error {
	return c.post(c.requestComposite)
}

// Composite draws a frame now, bypassing the scheduler. It is a no-op
// while paused.
func (c *Controller) Composite() error {
	return c.call(func() error {
		c.composite()
		return nil
	})
}

// Pause releases the presentation surface. Composites are no-ops until
// Resume.
func (c *Controller) Pause() error {
	return c.call(func() error {
		if c.State() != StateActive {
			return nil
		}
		c.dev.ReleaseSurface()
		c.setState(StatePaused)
		logging.Logger().Info("compositor: paused")
		return nil
	})
}

// Resume reacquires the presentation surface and requests a composite. A
// non-zero size resizes the surface first.
func (c *Controller) Resume(size image.Point) error {
	return c.call(func() error {
		if c.State() != StatePaused {
			return nil
		}
		if size.X > 0 && size.Y > 0 {
			if err := c.dev.ResizeSurface(size); err != nil {
				return fmt.Errorf("compositor: resize: %w", err)
			}
		}
		if err := c.dev.RenewSurface(); err != nil {
			return fmt.Errorf("compositor: renew surface: %w", err)
		}
		c.setState(StateActive)
		logging.Logger().Info("compositor: resumed", "size", size)
		c.requestComposite()
		return nil
	})
}

// AttachActor records an externally managed child actor.
func (c *Controller) AttachActor() error {
	return c.call(func() error {
		c.actors++
		return nil
	})
}

// DetachActor removes a child actor recorded by AttachActor.
func (c *Controller) DetachActor() error {
	return c.call(func() error {
		if c.actors == 0 {
			return ErrNoActor
		}
		c.actors--
		return nil
	})
}

// Destroy releases the tree and the engine and stops the controller. It
// fails with ErrChildrenAttached while child actors are attached.
func (c *Controller) Destroy() error {
	return c.call(func() error {
		if c.actors > 0 {
			logging.Logger().Warn("compositor: destroy refused", "actors", c.actors)
			return fmt.Errorf("%w: %d", ErrChildrenAttached, c.actors)
		}
		if c.pending != nil && c.pending.timer != nil {
			c.pending.timer.Stop()
		}
		c.pending = nil
		c.tree.Release()
		c.eng.Release()
		c.final = c.snapshot()
		c.setState(StateDestroyed)
		close(c.quit)
		logging.Logger().Info("compositor: destroyed", "composites", c.stats.Composites)
		return nil
	})
}

// fail disables compositing after a fatal error and notifies the embedder
// once.
func (c *Controller) fail(err error) {
	if c.failed {
		return
	}
	c.failed = true
	c.setState(StateDisabled)
	logging.Logger().Error("compositor: disabled", "err", err)
	if c.opts.embedder != nil {
		c.opts.embedder.OnCompositorFailed(err)
	}
}

// fatal reports whether err is a programming-contract or initialization
// error rather than a per-layer resource problem.
func fatal(err error) bool {
	return errors.Is(err, engine.ErrInitFailed) ||
		errors.Is(err, engine.ErrBadState) ||
		errors.Is(err, engine.ErrReleased) ||
		errors.Is(err, effect.ErrProgramNotFound) ||
		errors.Is(err, effect.ErrInvalidChain)
}
