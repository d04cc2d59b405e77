package compositor

import (
	"errors"
	"image"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/compositor/bufferhost"
	"github.com/gogpu/compositor/effect"
	"github.com/gogpu/compositor/engine"
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/ipc"
	"github.com/gogpu/compositor/layers"
)

// maxRefDepth bounds how deep reference nodes are followed while drawing.
const maxRefDepth = 8

// drawCtx is the state inherited from ancestors during the walk.
type drawCtx struct {
	transform mgl32.Mat4
	opacity   float32
	clip      *image.Rectangle
	refDepth  int
}

// composite draws one frame. It does nothing while the controller is
// paused or disabled.
func (c *Controller) composite() {
	if c.State() != StateActive {
		c.stats.SkippedPaused++
		logging.Logger().Debug("compositor: composite skipped", "state", c.State())
		return
	}
	if c.tree.Root() == nil {
		return
	}

	c.tree.SetShadowProperties()
	c.applyAsyncTransform()
	if !c.tree.HasRenderableContent() {
		return
	}

	if err := c.eng.BeginFrame(nil); err != nil {
		c.frameError(err)
		return
	}
	ctx := drawCtx{transform: geom.Identity(), opacity: 1}
	if err := c.drawNode(c.tree.Root(), ctx); err != nil {
		c.eng.AbortFrame()
		c.frameError(err)
		return
	}
	if err := c.eng.FlushToScreen(); err != nil {
		c.frameError(err)
		return
	}

	c.stats.Composites++
	c.stats.LastComposite = c.opts.clock.Now()
	c.syncBridge()
}

func (c *Controller) frameError(err error) {
	if fatal(err) {
		c.fail(err)
		return
	}
	logging.Logger().Warn("compositor: frame dropped", "err", err)
}

// syncBridge tells the content side which viewport was just drawn.
func (c *Controller) syncBridge() {
	if c.bridge == nil {
		return
	}
	var dp geom.RectF
	if n := c.tree.FindPrimaryScrollable(); n != nil && n.Metrics() != nil {
		dp = n.Metrics().DisplayPort
	}
	err := c.bridge.Send(ipc.ViewportSync{
		DisplayPort:  dp,
		ScrollOffset: c.view.ScrollOffset,
		ScaleX:       c.view.ScaleX,
		ScaleY:       c.view.ScaleY,
	})
	if err != nil {
		logging.Logger().Debug("compositor: viewport sync dropped", "err", err)
	}
}

// drawNode draws n and its subtree. Only fatal errors are returned; a
// layer that cannot be drawn is logged and skipped.
func (c *Controller) drawNode(n *layers.Node, parent drawCtx) error {
	ctx := drawCtx{
		transform: geom.Then(n.ShadowTransform, parent.transform),
		opacity:   parent.opacity * n.Opacity,
		clip:      parent.clip,
		refDepth:  parent.refDepth,
	}
	if ctx.opacity <= 0 {
		return nil
	}
	if n.ShadowClip != nil {
		clip := *n.ShadowClip
		if ctx.clip != nil {
			clip = clip.Intersect(*ctx.clip)
		}
		ctx.clip = &clip
	}

	err := c.drawContent(n, ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		logging.Logger().Warn("compositor: layer skipped", "node", n, "err", err)
	}
	return nil
}

func (c *Controller) drawContent(n *layers.Node, ctx drawCtx) error {
	switch n.Kind() {
	case layers.KindContainer:
		return c.drawContainer(n, ctx)
	case layers.KindReference:
		if ctx.refDepth >= maxRefDepth {
			return nil
		}
		target := c.tree.Node(n.Ref())
		if target == nil {
			return nil
		}
		ctx.refDepth++
		return c.drawNode(target, ctx)
	case layers.KindColor:
		col := n.Color()
		chain := &effect.Chain{Solid: &effect.Solid{Color: col}, Mask: n.Mask()}
		for _, r := range n.ShadowVisible.Rects() {
			err := c.eng.DrawQuad(engine.DrawParams{
				Rect:      geom.RectFOf(r),
				Clip:      ctx.clip,
				Chain:     chain,
				Opacity:   ctx.opacity,
				Transform: ctx.transform,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	if im := n.Image(); im != nil {
		return c.drawImage(n, im, ctx)
	}
	if h := n.Host(); h != nil {
		return h.Composite(c.eng, bufferhost.CompositeParams{
			Visible:   n.ShadowVisible,
			Clip:      ctx.clip,
			Opacity:   ctx.opacity,
			Transform: ctx.transform,
			Mask:      n.Mask(),
		})
	}
	return nil
}

func (c *Controller) drawImage(n *layers.Node, im *layers.Image, ctx drawCtx) error {
	chain := im.Chain(n.Mask())
	rects := n.ShadowVisible.IntersectRect(im.Bounds()).Rects()
	if n.ShadowVisible.IsEmpty() {
		rects = []image.Rectangle{im.Bounds()}
	}
	for _, r := range rects {
		src := geom.RectFOf(r)
		err := c.eng.DrawQuad(engine.DrawParams{
			Rect:      src,
			Source:    &src,
			Clip:      ctx.clip,
			Chain:     chain,
			Opacity:   ctx.opacity,
			Transform: ctx.transform,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// drawContainer draws the children in order. A translucent container with
// several children is drawn into an intermediate surface and composited
// with its opacity.
func (c *Controller) drawContainer(n *layers.Node, ctx drawCtx) error {
	children := c.tree.Children(n)
	if n.Opacity >= 1 || len(children) < 2 {
		for _, child := range children {
			if err := c.drawNode(child, ctx); err != nil {
				return err
			}
		}
		return nil
	}

	bounds := image.Rectangle{Max: c.eng.SurfaceSize()}
	if !n.ShadowVisible.IsEmpty() {
		bounds = geom.TransformBounds(ctx.transform, geom.RectFOf(n.ShadowVisible.Bounds())).RoundOut().Intersect(bounds)
	}
	if ctx.clip != nil {
		bounds = bounds.Intersect(*ctx.clip)
	}
	if bounds.Empty() {
		return nil
	}
	if err := c.eng.PushGroup(bounds); err != nil {
		return err
	}
	inner := ctx
	inner.opacity = 1
	var drawErr error
	for _, child := range children {
		if drawErr = c.drawNode(child, inner); drawErr != nil {
			break
		}
	}
	popErr := c.eng.PopGroup(ctx.opacity)
	return errors.Join(drawErr, popErr)
}
