package locator

import (
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

// slots holds the fixed-item reservations of one edge. A nil entry, or one
// whose window has ended, is free.
type slots []*reservation

func (s *slots) free(i int, now int64) bool {
	return i >= len(*s) || (*s)[i] == nil || !(*s)[i].liveAt(now)
}

func (s *slots) reserve(i int, r reservation) {
	for len(*s) <= i {
		*s = append(*s, nil)
	}
	(*s)[i] = &r
}

func (s *slots) release(i int, id uint64) {
	if i < len(*s) && (*s)[i] != nil && (*s)[i].id == id {
		(*s)[i] = nil
	}
}

func (s *slots) reset() {
	clear(*s)
	*s = (*s)[:0]
}

func (s slots) appendStats(stats []LaneStat, kind string, now int64) []LaneStat {
	for i, r := range s {
		n := 0
		if r != nil && r.liveAt(now) {
			n = 1
		}
		stats = append(stats, LaneStat{Kind: kind, Index: i, Reservations: n})
	}
	return stats
}

// locateFixed reserves the first free slot of s. Top slots stack downward
// from y=0, bottom slots upward from the bottom edge; items are centered
// horizontally.
func (l *Locator) locateFixed(s *slots, a area, c Candidate, width float64, nowMs int64, viewport graphics.Size) (Placement, bool) {
	count := l.SlotCount(viewport)
	for i := 0; i < count; i++ {
		if !s.free(i, nowMs) {
			continue
		}
		if i < len(*s) && (*s)[i] != nil {
			delete(l.index, (*s)[i].id)
		}
		r := reservation{
			id:    c.ID,
			typ:   c.Type,
			width: width,
			enter: c.EnteredAtMs,
			exit:  c.EnteredAtMs + c.DurationMs,
		}
		s.reserve(i, r)
		l.index[c.ID] = location{area: a, index: i}

		y := float64(i) * l.opts.LaneHeight
		if c.Type == item.Bottom {
			y = viewport.Height - float64(i+1)*l.opts.LaneHeight
		}
		return Placement{
			Lane:        i,
			X:           (viewport.Width - width) / 2,
			Y:           y,
			EnteredAtMs: r.enter,
			ExitAtMs:    r.exit,
			Type:        c.Type,
		}, true
	}
	return Placement{}, false
}
