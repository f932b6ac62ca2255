package overlay

import "github.com/go-drift/danmaku/pkg/graphics"

// HitTest dispatches a click at pos to the topmost visible instance whose
// bounds contain it, using positions from the latest tick. It returns the
// click handler's result, or false when nothing was hit or no handler is
// set.
//
// HitTest must be called from the goroutine that calls Tick.
func (c *Controller) HitTest(pos graphics.Offset) bool {
	if !withinBounds(pos, c.viewport) {
		return false
	}
	for i := len(c.instances) - 1; i >= 0; i-- {
		in := c.instances[i]
		if !in.placed() {
			continue
		}
		if !in.placement.Bounds(c.nowMs, in.size).Contains(pos) {
			continue
		}
		if c.onClick == nil {
			return false
		}
		return c.onClick(in.item)
	}
	return false
}

func withinBounds(pos graphics.Offset, size graphics.Size) bool {
	return pos.X >= 0 && pos.Y >= 0 && pos.X < size.Width && pos.Y < size.Height
}
