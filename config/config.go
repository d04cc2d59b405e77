package config

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/driver/haldriver"
	"github.com/gogpu/compositor/texture"
)

// ErrInvalid is returned by Validate for out-of-range values.
var ErrInvalid = errors.New("config: invalid value")

// maxEdge bounds surface and tile sizes.
const maxEdge = 16384

// Config is the root of a configuration file.
type Config struct {
	Compositor Compositor `toml:"compositor"`
	Texture    Texture    `toml:"texture"`
	Surface    Surface    `toml:"surface"`
	Log        Log        `toml:"log"`
}

// Compositor holds scheduling and frame settings.
type Compositor struct {
	// Throttle is the minimum interval between scheduled composites.
	Throttle Duration `toml:"throttle"`

	// ClearColor is the premultiplied RGBA each frame starts from.
	ClearColor [4]float32 `toml:"clear_color"`
}

// Texture holds GPU memory settings.
type Texture struct {
	BudgetMB int `toml:"budget_mb"`
	PoolSize int `toml:"pool_size"`

	// TileSize is the tile edge for oversized images; 0 uses the maximum
	// texture size.
	TileSize int `toml:"tile_size"`
}

// Surface describes the presentation surface of headless devices.
type Surface struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// SingleBuffered makes the device report a single-buffered surface,
	// so the engine draws into an offscreen back buffer.
	SingleBuffered bool `toml:"single_buffered"`
}

// Size returns the surface size.
func (s Surface) Size() image.Point { return image.Pt(s.Width, s.Height) }

// Log selects the log level: "debug", "info", "warn", "error" or "off".
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "15ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Compositor: Compositor{
			Throttle: Duration{compositor.DefaultThrottle},
		},
		Texture: Texture{
			BudgetMB: texture.DefaultBudgetMB,
			PoolSize: 16,
		},
		Surface: Surface{Width: 800, Height: 600},
		Log:     Log{Level: "off"},
	}
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of Default and validates the result. Unknown
// keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("config: line %d column %d: %w", row, col, err)
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.Compositor.Throttle.Duration < 0:
		return fmt.Errorf("%w: compositor.throttle %v", ErrInvalid, c.Compositor.Throttle)
	case c.Texture.BudgetMB < 0:
		return fmt.Errorf("%w: texture.budget_mb %d", ErrInvalid, c.Texture.BudgetMB)
	case c.Texture.PoolSize < 0:
		return fmt.Errorf("%w: texture.pool_size %d", ErrInvalid, c.Texture.PoolSize)
	case c.Texture.TileSize < 0 || c.Texture.TileSize > maxEdge:
		return fmt.Errorf("%w: texture.tile_size %d", ErrInvalid, c.Texture.TileSize)
	case c.Surface.Width <= 0 || c.Surface.Height <= 0 ||
		c.Surface.Width > maxEdge || c.Surface.Height > maxEdge:
		return fmt.Errorf("%w: surface %dx%d", ErrInvalid, c.Surface.Width, c.Surface.Height)
	}
	for i, v := range c.Compositor.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: compositor.clear_color[%d] %v", ErrInvalid, i, v)
		}
	}
	if _, _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, bool, error) {
	switch strings.ToLower(s) {
	case "", "off":
		return 0, false, nil
	case "debug":
		return slog.LevelDebug, true, nil
	case "info":
		return slog.LevelInfo, true, nil
	case "warn", "warning":
		return slog.LevelWarn, true, nil
	case "error":
		return slog.LevelError, true, nil
	default:
		return 0, false, fmt.Errorf("%w: log.level %q", ErrInvalid, s)
	}
}

// Logger returns a text logger writing to w at the configured level, or
// nil when logging is off.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, on, err := parseLevel(c.Log.Level)
	if err != nil || !on {
		return nil
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Options converts c into controller options. Logging goes to stderr.
func (c Config) Options() []compositor.Option {
	opts := []compositor.Option{
		compositor.WithThrottle(c.Compositor.Throttle.Duration),
		compositor.WithTextureBudget(c.Texture.BudgetMB),
		compositor.WithTexturePool(c.Texture.PoolSize),
		compositor.WithTileSize(c.Texture.TileSize),
		compositor.WithClearColor(c.Compositor.ClearColor),
	}
	if l := c.Logger(os.Stderr); l != nil {
		opts = append(opts, compositor.WithLogger(l))
	}
	return opts
}

// DeviceOptions converts the surface settings into options for a HAL
// device.
func (c Config) DeviceOptions() []haldriver.Option {
	return []haldriver.Option{
		haldriver.WithSingleBuffered(c.Surface.SingleBuffered),
	}
}
