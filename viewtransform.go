package compositor

import (
	"github.com/gogpu/compositor/geom"
	"github.com/gogpu/compositor/layers"
)

// AsyncViewState is the zoom and scroll the compositor applies on top of
// the content's own transforms.
type AsyncViewState struct {
	ScrollOffset   geom.PointF
	ScaleX, ScaleY float32

	// FirstPaint is set by a first-paint tree update and cleared once the
	// embedder has been told.
	FirstPaint bool

	// LayersUpdated is set by tree updates and cleared by the next
	// viewport sync.
	LayersUpdated bool

	// ContentSize is the last content size reported to the embedder.
	ContentSize geom.PointF
}

func newAsyncViewState() AsyncViewState {
	return AsyncViewState{ScaleX: 1, ScaleY: 1}
}

// applyAsyncTransform syncs the viewport with the embedder and sets the
// shadow transform of the primary scrollable node so that the content
// follows the asynchronous scroll and zoom.
func (c *Controller) applyAsyncTransform() {
	node := c.tree.FindPrimaryScrollable()
	if node == nil {
		return
	}
	var metrics layers.FrameMetrics
	if m := node.Metrics(); m != nil {
		metrics = *m
	}

	root := c.tree.Root()
	rootScaleX, rootScaleY := geom.XScale(root.Transform), geom.YScale(root.Transform)
	if rootScaleX == 0 {
		rootScaleX = 1
	}
	if rootScaleY == 0 {
		rootScaleY = 1
	}

	emb := c.opts.embedder
	contentSize := geom.PointF{X: float32(metrics.ContentSize.X), Y: float32(metrics.ContentSize.Y)}
	switch {
	case c.view.FirstPaint:
		c.view.FirstPaint = false
		c.view.ContentSize = contentSize
		if emb != nil {
			emb.OnFirstPaint(metrics.ScrollOffset, 1/rootScaleX, metrics.ContentSize, metrics.CSSContentSize)
		}
	case contentSize != c.view.ContentSize:
		c.view.ContentSize = contentSize
		if emb != nil {
			emb.OnPageSizeChanged(1/rootScaleX, metrics.ContentSize, metrics.CSSContentSize)
		}
	}

	if emb != nil {
		dp := metrics.DisplayPort.Translate(metrics.ScrollOffset.X, metrics.ScrollOffset.Y)
		offset, sx, sy := emb.SyncViewport(dp, 1/rootScaleX, c.view.LayersUpdated)
		c.view.ScrollOffset = offset
		if sx > 0 && sy > 0 {
			c.view.ScaleX, c.view.ScaleY = sx, sy
		}
	}
	c.view.LayersUpdated = false

	sx, sy := c.view.ScaleX, c.view.ScaleY
	comp := geom.PointF{
		X: (c.view.ScrollOffset.X/(rootScaleX*sx) - metrics.ScrollOffset.X) * sx,
		Y: (c.view.ScrollOffset.Y/(rootScaleY*sy) - metrics.ScrollOffset.Y) * sy,
	}
	node.ShadowTransform = geom.Then(geom.ViewTransform(geom.PointF{X: -comp.X, Y: -comp.Y}, sx, sy), node.Transform)
}
