package compositor

import (
	"log/slog"
	"time"

	"github.com/gogpu/compositor/texture"
)

// DefaultThrottle is the minimum interval between scheduled composites.
const DefaultThrottle = 15 * time.Millisecond

// Option configures a Controller.
//
// Example:
//
//	c, err := compositor.New(dev,
//	    compositor.WithEmbedder(view),
//	    compositor.WithThrottle(16*time.Millisecond))
type Option func(*options)

type options struct {
	clock      Clock
	embedder   Embedder
	throttle   time.Duration
	budgetMB   int
	poolSize   int
	tileSize   int
	clearColor [4]float32
	logger     *slog.Logger
}

func defaultOptions() options {
	return options{
		clock:    systemClock{},
		throttle: DefaultThrottle,
		budgetMB: texture.DefaultBudgetMB,
		poolSize: 16,
	}
}

// WithClock sets the time source used for throttling.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithEmbedder sets the host that receives viewport notifications.
func WithEmbedder(e Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithThrottle sets the minimum interval between scheduled composites.
// Zero disables throttling.
func WithThrottle(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.throttle = d
		}
	}
}

// WithTextureBudget limits GPU texture memory to mb megabytes.
func WithTextureBudget(mb int) Option {
	return func(o *options) { o.budgetMB = mb }
}

// WithTexturePool keeps up to n released textures for reuse. Zero
// disables pooling.
func WithTexturePool(n int) Option {
	return func(o *options) { o.poolSize = n }
}

// WithTileSize sets the tile edge for images larger than the maximum
// texture size. Zero uses the maximum texture size.
func WithTileSize(n int) Option {
	return func(o *options) { o.tileSize = n }
}

// WithClearColor sets the premultiplied color each frame starts from.
func WithClearColor(c [4]float32) Option {
	return func(o *options) { o.clearColor = c }
}

// WithLogger calls SetLogger with l when the controller is created.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}
