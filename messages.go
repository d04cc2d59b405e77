package compositor

import (
	"fmt"

	"github.com/gogpu/compositor/internal/logging"
	"github.com/gogpu/compositor/ipc"
)

// Connect attaches the compositor end of a bridge as the layers actor.
// Inbound messages are handled on the compositor goroutine in order. The
// actor detaches when the bridge closes.
func (c *Controller) Connect(end *ipc.CompositorEnd) error {
	err := c.call(func() error {
		if c.bridge != nil {
			return ErrActorAttached
		}
		c.bridge = end
		c.actors++
		return nil
	})
	if err != nil {
		return err
	}
	go c.pump(end)
	logging.Logger().Info("compositor: layers actor attached")
	return nil
}

func (c *Controller) pump(end *ipc.CompositorEnd) {
	for m := range end.Inbound() {
		if err := c.post(func() { c.handleMessage(m) }); err != nil {
			return
		}
	}
	_ = c.post(func() {
		if c.bridge != end {
			return
		}
		c.bridge = nil
		c.actors--
		logging.Logger().Info("compositor: layers actor detached")
	})
}

func (c *Controller) handleMessage(m ipc.Message) {
	var err error
	switch m := m.(type) {
	case ipc.TreeUpdate:
		err = c.applyTreeUpdate(m.Tx)
	case ipc.BufferUpdate:
		upd, uerr := c.updateBuffer(m.Node, m.Buffer, m.Dirty)
		if uerr == nil || upd.Flags != 0 {
			c.reply(ipc.Recycled{Node: m.Node, Update: upd})
		}
		err = uerr
	case ipc.ImageUpdate:
		err = c.setImage(m.Node, m.Image)
	default:
		err = fmt.Errorf("compositor: unexpected message %T", m)
	}
	if err != nil {
		c.reply(ipc.Rejected{Msg: m, Err: err})
	}
}

func (c *Controller) reply(m ipc.Message) {
	if c.bridge == nil {
		return
	}
	if err := c.bridge.Send(m); err != nil {
		logging.Logger().Debug("compositor: reply dropped", "msg", fmt.Sprintf("%T", m), "err", err)
	}
}
