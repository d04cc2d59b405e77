package compositor

// requestComposite schedules a composite on the compositor goroutine. At
// most one composite is outstanding; requests arriving while one is
// pending are coalesced into it. Composites run at most once per throttle
// interval.
func (c *Controller) requestComposite() {
	if c.pending != nil {
		c.stats.Coalesced++
		return
	}
	task := &compositeTask{}
	c.pending = task

	now := c.opts.clock.Now()
	elapsed := now.Sub(c.lastComposite)
	if c.lastComposite.IsZero() || elapsed >= c.opts.throttle {
		c.local = append(c.local, func() { c.runScheduled(task) })
		return
	}
	task.timer = c.opts.clock.AfterFunc(c.opts.throttle-elapsed, func() {
		_ = c.post(func() { c.runScheduled(task) })
	})
}

// runScheduled runs task unless it was superseded or cancelled.
func (c *Controller) runScheduled(task *compositeTask) {
	if c.pending != task {
		return
	}
	c.pending = nil
	c.lastComposite = c.opts.clock.Now()
	c.composite()
}
