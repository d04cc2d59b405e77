package compositor

import (
	"image"

	"github.com/gogpu/compositor/geom"
)

// Embedder is the host view the compositor draws into. Its methods are
// called on the compositor goroutine and must not call back into the
// Controller synchronously.
type Embedder interface {
	// OnFirstPaint reports the initial scroll offset, the inverse of the
	// root scale, and the content size in device and CSS pixels of a new
	// page.
	OnFirstPaint(offset geom.PointF, inverseZoom float32, contentSize image.Point, cssContentSize geom.PointF)

	// OnPageSizeChanged reports a content size change after first paint.
	OnPageSizeChanged(inverseZoom float32, contentSize image.Point, cssContentSize geom.PointF)

	// SyncViewport reports the absolute display port, the inverse root
	// scale and whether layers changed since the last call, and returns the
	// scroll offset and scale the host currently shows.
	SyncViewport(displayPort geom.RectF, resolution float32, layersUpdated bool) (scrollOffset geom.PointF, scaleX, scaleY float32)

	// OnCompositorFailed reports a fatal error. Compositing stays disabled
	// for the rest of the session.
	OnCompositorFailed(err error)
}
