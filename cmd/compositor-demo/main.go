// Command compositor-demo drives the compositor on a headless GPU device.
//
// It builds a page with a background color, a painted raster layer and an
// image layer, streams repaints of the raster layer through the content
// bridge for a number of frames and reports compositor statistics.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/compositor"
	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/client"
	"github.com/gogpu/compositor/config"
	"github.com/gogpu/compositor/driver"
	"github.com/gogpu/compositor/driver/haldriver"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/ipc"
	"github.com/gogpu/compositor/layers"
)

const (
	rootID layers.ID = iota + 1
	backgroundID
	rasterID
	imageID
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file")
		frames     = flag.Int("frames", 60, "number of frames to paint")
		interval   = flag.Duration("interval", 16*time.Millisecond, "time between paints")
		verbose    = flag.Bool("v", false, "log at debug level")
		dumpConfig = flag.Bool("dump-config", false, "print the effective configuration and exit")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}
	if *dumpConfig {
		if err := cfg.Write(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := cfg.Logger(os.Stderr)
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	if err := run(cfg, logger, *frames, *interval); err != nil {
		logger.Error("demo failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, frames int, interval time.Duration) error {
	size := cfg.Surface.Size()
	dev, err := haldriver.NewHeadless(size, cfg.DeviceOptions()...)
	if err != nil {
		return err
	}
	defer dev.Release()

	opts := append(cfg.Options(), compositor.WithLogger(logger))
	c, err := compositor.New(dev, opts...)
	if err != nil {
		return err
	}

	br := ipc.New()
	if err := c.Connect(br.Compositor()); err != nil {
		_ = c.Destroy()
		return err
	}
	content := br.Content()

	if err := content.SendTreeUpdate(page(size)); err != nil {
		return err
	}
	if err := content.SendImage(imageID, checkerboard(image.Pt(128, 128), 16)); err != nil {
		return err
	}

	cl := client.New(rasterID, content)
	visible := geom.RegionOf(rasterRect(size))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	painted := 0
	for painted < frames {
		select {
		case m, ok := <-content.Replies():
			if !ok {
				return errors.New("bridge closed")
			}
			handleReply(logger, cl, m)
		case <-ticker.C:
			cl.Invalidate(visible)
			st, err := cl.Paint(visible, driver.FormatBGRA, stripes(painted))
			if err != nil {
				return fmt.Errorf("paint frame %d: %w", painted, err)
			}
			if st.Buffer != nil {
				painted++
			}
		}
	}

	if err := c.Composite(); err != nil {
		logger.Warn("final composite", "err", err)
	}
	st := c.Stats()
	logger.Info("demo finished",
		"frames", painted,
		"composites", st.Composites,
		"coalesced", st.Coalesced,
		"rejected", st.RejectedUpdates,
		"presented", dev.Frames(),
		"textureBytes", st.Texture.UsedBytes,
		"lastQuads", st.LastFrame.Quads)

	content.Close()
	deadline := time.Now().Add(time.Second)
	for {
		err := c.Destroy()
		if !errors.Is(err, compositor.ErrChildrenAttached) || time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
}

func handleReply(logger *slog.Logger, cl *client.ContentClient, m ipc.Message) {
	if cl.Handle(m) {
		return
	}
	switch m := m.(type) {
	case ipc.ViewportSync:
		logger.Debug("viewport", "offset", m.ScrollOffset, "scale", m.ScaleX)
	case ipc.Rejected:
		logger.Warn("update rejected", "err", m.Err)
	}
}

func rasterRect(size image.Point) image.Rectangle {
	return image.Rect(0, 0, size.X/2, size.Y/2).Add(image.Pt(size.X/8, size.Y/8))
}

// page builds the demo tree: a root container holding a full-surface
// background, a raster layer and a half-transparent image layer.
func page(size image.Point) *layers.Transaction {
	bg := layers.DefaultAttributes()
	bg.Visible = geom.RegionOf(image.Rectangle{Max: size})

	raster := layers.DefaultAttributes()
	raster.Visible = geom.RegionOf(rasterRect(size))

	img := layers.DefaultAttributes()
	img.Visible = geom.RegionOf(image.Rect(0, 0, 128, 128))
	img.Transform = geom.Translate2D(float32(size.X-160), float32(size.Y-160))
	img.Opacity = 0.5

	tx := &layers.Transaction{FirstPaint: true}
	return tx.Add(
		layers.Create{ID: rootID, Kind: layers.KindContainer},
		layers.SetRoot{ID: rootID},
		layers.SetMetrics{ID: rootID, Metrics: layers.FrameMetrics{
			ContentSize:    size,
			CSSContentSize: geom.PointF{X: float32(size.X), Y: float32(size.Y)},
			DisplayPort:    geom.RectFOf(image.Rectangle{Max: size}),
			Scrollable:     true,
		}},
		layers.Create{ID: backgroundID, Kind: layers.KindColor},
		layers.SetAttributes{ID: backgroundID, Attributes: bg},
		layers.SetColor{ID: backgroundID, Color: [4]float32{0.1, 0.1, 0.15, 1}},
		layers.InsertAfter{Parent: rootID, Child: backgroundID},
		layers.Create{ID: rasterID, Kind: layers.KindRaster},
		layers.SetAttributes{ID: rasterID, Attributes: raster},
		layers.AttachHost{ID: rasterID, Mode: layers.HostSwap},
		layers.InsertAfter{Parent: rootID, Child: rasterID, After: backgroundID},
		layers.Create{ID: imageID, Kind: layers.KindImage},
		layers.SetAttributes{ID: imageID, Attributes: img},
		layers.InsertAfter{Parent: rootID, Child: imageID, After: rasterID},
	)
}

// stripes paints vertical bars that move one bar per frame.
func stripes(frame int) client.PaintFunc {
	palette := []color.RGBA{
		{R: 0xe0, G: 0x40, B: 0x40, A: 0xff},
		{R: 0x40, G: 0xc0, B: 0x60, A: 0xff},
		{R: 0x40, G: 0x70, B: 0xe0, A: 0xff},
	}
	return func(buf *bufferhost.RotatedBuffer, region geom.Region) {
		b := region.Bounds()
		const bar = 32
		for x := b.Min.X; x < b.Max.X; x += bar {
			c := palette[(x/bar+frame)%len(palette)]
			r := image.Rect(x, b.Min.Y, min(x+bar, b.Max.X), b.Max.Y)
			buf.Draw(image.NewUniform(c), region.IntersectRect(r))
		}
	}
}

func checkerboard(size image.Point, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: size})
	light := color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	dark := color.RGBA{R: 0x44, G: 0x44, B: 0x44, A: 0xff}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, light)
			} else {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img
}
