// Package locator assigns screen positions to comments so that they never
// overlap.
//
// Scrolling comments travel along horizontal lanes. A lane accepts a new
// comment only if every comment already in it stays at least SafetyGap
// pixels ahead for as long as both are on screen. Fixed comments occupy
// slots stacked from the top or bottom edge for their display time.
//
// A Locator is not safe for concurrent use. It is owned by the render loop.
package locator

import (
	"math"
	"slices"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

// MinItemWidth is the width used for items that measure narrower, such as
// comments with empty text.
const MinItemWidth = 8

// Options configures lane geometry.
type Options struct {
	// LaneHeight is the height of one scroll lane or fixed slot in pixels.
	LaneHeight float64
	// MaxLanes caps the number of scroll lanes when positive.
	MaxLanes int
	// SafetyGap is the minimum horizontal distance between items in a lane.
	SafetyGap float64
	// ScrollArea is the fraction of the viewport height used by scroll lanes.
	ScrollArea float64
	// FixedArea is the fraction of the viewport height used by fixed slots.
	FixedArea float64
}

// DefaultOptions returns the default lane geometry.
func DefaultOptions() Options {
	return Options{
		LaneHeight: 36,
		SafetyGap:  16,
		ScrollArea: 1,
		FixedArea:  1,
	}
}

// withDefaults fills zero fields from DefaultOptions.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LaneHeight <= 0 {
		o.LaneHeight = d.LaneHeight
	}
	if o.SafetyGap < 0 {
		o.SafetyGap = 0
	}
	if o.ScrollArea <= 0 || o.ScrollArea > 1 {
		o.ScrollArea = d.ScrollArea
	}
	if o.FixedArea <= 0 || o.FixedArea > 1 {
		o.FixedArea = d.FixedArea
	}
	return o
}

// Candidate describes an item awaiting placement.
type Candidate struct {
	ID   uint64
	Type item.VisualType
	Size graphics.Size
	// DurationMs is the time a scrolling item takes to cross the viewport,
	// or the time a fixed item stays on screen.
	DurationMs int64
	// EnteredAtMs is when the item starts (or started) its trajectory.
	EnteredAtMs int64
}

// LaneStat reports the live reservations of one lane or slot.
type LaneStat struct {
	Kind         string `json:"kind"`
	Index        int    `json:"index"`
	Reservations int    `json:"reservations"`
}

type area int

const (
	areaScroll area = iota
	areaTop
	areaBottom
)

type location struct {
	area  area
	index int
}

// Locator tracks reservations and places new items.
type Locator struct {
	opts   Options
	lanes  [][]reservation
	top    slots
	bottom slots
	index  map[uint64]location
	now    int64
}

// New returns a locator with no reservations.
func New(opts Options) *Locator {
	return &Locator{
		opts:  opts.withDefaults(),
		index: make(map[uint64]location),
	}
}

// Options returns the effective options.
func (l *Locator) Options() Options {
	return l.opts
}

// LaneCount returns the number of scroll lanes available in viewport.
func (l *Locator) LaneCount(viewport graphics.Size) int {
	n := int(math.Floor(viewport.Height * l.opts.ScrollArea / l.opts.LaneHeight))
	if l.opts.MaxLanes > 0 && n > l.opts.MaxLanes {
		n = l.opts.MaxLanes
	}
	return max(n, 0)
}

// SlotCount returns the number of top (and bottom) slots in viewport.
func (l *Locator) SlotCount(viewport graphics.Size) int {
	return max(int(math.Floor(viewport.Height*l.opts.FixedArea/l.opts.LaneHeight)), 0)
}

// Locate finds a position for c and reserves it. It returns false when no
// lane or slot can take the item at nowMs.
//
// Locating an id that already holds a reservation replaces it.
func (l *Locator) Locate(c Candidate, nowMs int64, viewport graphics.Size) (Placement, bool) {
	l.Release(c.ID)
	l.now = nowMs
	if c.DurationMs <= 0 || viewport.IsEmpty() {
		return Placement{}, false
	}
	width := max(c.Size.Width, MinItemWidth)

	switch c.Type {
	case item.Top:
		return l.locateFixed(&l.top, areaTop, c, width, nowMs, viewport)
	case item.Bottom:
		return l.locateFixed(&l.bottom, areaBottom, c, width, nowMs, viewport)
	default:
		return l.locateScroll(c, width, nowMs, viewport)
	}
}

func (l *Locator) locateScroll(c Candidate, width float64, nowMs int64, viewport graphics.Size) (Placement, bool) {
	count := l.LaneCount(viewport)
	for len(l.lanes) < count {
		l.lanes = append(l.lanes, nil)
	}

	r := reservation{
		id:    c.ID,
		typ:   c.Type,
		width: width,
		enter: c.EnteredAtMs,
		exit:  c.EnteredAtMs + c.DurationMs,
		speed: (viewport.Width + width) / float64(c.DurationMs),
	}

	best := -1
	var bestLatest int64
	bestEmpty := false
	for lane := 0; lane < count; lane++ {
		live := l.pruneLane(lane, nowMs)
		if !l.laneAccepts(live, r, nowMs) {
			continue
		}
		empty := len(live) == 0
		var latest int64
		for _, other := range live {
			latest = max(latest, other.enter)
		}
		switch {
		case best < 0:
		case empty && !bestEmpty:
		case !empty && !bestEmpty && latest < bestLatest:
		default:
			continue
		}
		best, bestLatest, bestEmpty = lane, latest, empty
	}
	if best < 0 {
		return Placement{}, false
	}

	l.lanes[best] = append(l.lanes[best], r)
	l.index[c.ID] = location{area: areaScroll, index: best}

	p := Placement{
		Lane:        best,
		Y:           float64(best) * l.opts.LaneHeight,
		EnteredAtMs: r.enter,
		ExitAtMs:    r.exit,
		Type:        c.Type,
	}
	if c.Type == item.ScrollReverse {
		p.X = -width
		p.Speed = r.speed
	} else {
		p.X = viewport.Width
		p.Speed = -r.speed
	}
	return p, true
}

func (l *Locator) laneAccepts(live []reservation, r reservation, nowMs int64) bool {
	for _, other := range live {
		if other.typ != r.typ {
			return false
		}
		if conflicts(other, r, nowMs, l.opts.SafetyGap) {
			return false
		}
	}
	return true
}

// pruneLane drops reservations that ended at or before now and returns the rest.
func (l *Locator) pruneLane(lane int, now int64) []reservation {
	live := l.lanes[lane][:0]
	for _, r := range l.lanes[lane] {
		if r.liveAt(now) {
			live = append(live, r)
		} else {
			delete(l.index, r.id)
		}
	}
	clear(l.lanes[lane][len(live):])
	l.lanes[lane] = live
	return live
}

// Release removes the reservation held by id. Unknown ids are ignored.
func (l *Locator) Release(id uint64) {
	loc, ok := l.index[id]
	if !ok {
		return
	}
	delete(l.index, id)
	switch loc.area {
	case areaTop:
		l.top.release(loc.index, id)
	case areaBottom:
		l.bottom.release(loc.index, id)
	default:
		lane := l.lanes[loc.index]
		for i, r := range lane {
			if r.id == id {
				l.lanes[loc.index] = slices.Delete(lane, i, i+1)
				break
			}
		}
	}
}

// Reset drops every reservation.
func (l *Locator) Reset() {
	l.lanes = l.lanes[:0]
	l.top.reset()
	l.bottom.reset()
	clear(l.index)
}

// Reserved reports whether id currently holds a reservation.
func (l *Locator) Reserved(id uint64) bool {
	_, ok := l.index[id]
	return ok
}

// Occupancy returns live reservation counts per scroll lane, then per top
// and bottom slot, as of the latest Locate call.
func (l *Locator) Occupancy() []LaneStat {
	var stats []LaneStat
	for i, lane := range l.lanes {
		n := 0
		for _, r := range lane {
			if r.liveAt(l.now) {
				n++
			}
		}
		stats = append(stats, LaneStat{Kind: "scroll", Index: i, Reservations: n})
	}
	stats = l.top.appendStats(stats, item.Top.String(), l.now)
	stats = l.bottom.appendStats(stats, item.Bottom.String(), l.now)
	return stats
}
