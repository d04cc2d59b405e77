// Package compositor composites a tree of layers produced by a content
// renderer onto a GPU surface.
//
// # Overview
//
// A Controller owns the GPU draw engine and a mirror of the content layer
// tree. Content sends tree updates and painted buffers, either through
// direct calls or over an ipc.Bridge; the controller applies them on its
// own goroutine, the compositor thread, which is the only goroutine that
// touches the GPU.
//
//	dev, err := haldriver.NewHeadless(image.Pt(800, 600))
//	if err != nil {
//	    return err
//	}
//	defer dev.Release()
//	c, err := compositor.New(dev, compositor.WithEmbedder(view))
//	if err != nil {
//	    return err
//	}
//	defer c.Destroy()
//
//	err = c.ApplyTreeUpdate(tx)
//
// # Frame pacing
//
// Every change requests a composite. Requests are coalesced so at most one
// composite is pending, and composites are throttled to one per interval
// (15ms by default). The first composite, and any composite requested at
// least one interval after the previous one, runs immediately.
//
// # Asynchronous pan and zoom
//
// Before drawing, the controller synchronizes the viewport with the
// Embedder and installs a view transform on the primary scrollable layer.
// A pan or zoom gesture therefore repaints immediately from content that
// is already on the GPU, ahead of the next repaint from the producer.
//
// # Lifecycle
//
// Pause releases the presentation surface and turns composites into
// no-ops until Resume. Destroy is terminal and is refused while child
// actors are still attached.
//
// # Logging
//
// The package is silent by default. SetLogger enables structured logging
// through log/slog for the controller and every sub-package.
package compositor
