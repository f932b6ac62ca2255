package locator

import (
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

// Placement is where and when an item is shown.
//
// X and Y are the top-left corner at EnteredAtMs. Scrolling items then move
// horizontally at Speed pixels per millisecond (negative for right-to-left)
// until ExitAtMs; fixed items have zero speed.
type Placement struct {
	Lane        int
	X, Y        float64
	EnteredAtMs int64
	ExitAtMs    int64
	Speed       float64
	Type        item.VisualType
}

// PositionAt returns the top-left corner at time t, clamped to the
// placement's window.
func (p Placement) PositionAt(t int64) graphics.Offset {
	dt := min(max(t-p.EnteredAtMs, 0), p.ExitAtMs-p.EnteredAtMs)
	return graphics.Offset{X: p.X + p.Speed*float64(dt), Y: p.Y}
}

// Finished reports whether the item has left the screen (scrolling) or its
// display time is over (fixed) at time t.
func (p Placement) Finished(t int64) bool {
	return t >= p.ExitAtMs
}

// Bounds returns the item's rectangle at time t.
func (p Placement) Bounds(t int64, size graphics.Size) graphics.Rect {
	pos := p.PositionAt(t)
	return graphics.RectFromLTWH(pos.X, pos.Y, size.Width, size.Height)
}

// reservation is the locator's record of a placed item.
type reservation struct {
	id    uint64
	typ   item.VisualType
	width float64
	enter int64
	exit  int64
	// speed is the unsigned travel speed in px/ms.
	speed float64
}

func (r reservation) liveAt(now int64) bool {
	return r.exit > now
}

// travel is how far the leading edge has moved past the entry edge at t.
func (r reservation) travel(t int64) float64 {
	return r.speed * float64(t-r.enter)
}

// conflicts reports whether two same-direction scrolling items sharing a
// lane would come closer than gap at any instant from now on.
//
// The distance between the earlier item's trailing edge and the later
// item's leading edge is linear in time, so checking both ends of the
// shared window is enough.
func conflicts(a, b reservation, now int64, gap float64) bool {
	start := max(a.enter, b.enter, now)
	end := min(a.exit, b.exit)
	if start >= end {
		return false
	}
	if a.enter == b.enter {
		return true
	}
	lead, trail := a, b
	if trail.enter < lead.enter {
		lead, trail = trail, lead
	}
	clearance := func(t int64) float64 {
		return lead.travel(t) - lead.width - trail.travel(t)
	}
	return clearance(start) < gap || clearance(end) < gap
}
