package locator

import (
	"math/rand"
	"testing"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

var viewport = graphics.Size{Width: 1000, Height: 108}

func scroll(id uint64, width float64, at int64) Candidate {
	return Candidate{
		ID:          id,
		Type:        item.Scroll,
		Size:        graphics.Size{Width: width, Height: 30},
		DurationMs:  5000,
		EnteredAtMs: at,
	}
}

func TestLaneCount(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		size graphics.Size
		want int
	}{
		{"default", DefaultOptions(), graphics.Size{Width: 100, Height: 108}, 3},
		{"partial lane dropped", DefaultOptions(), graphics.Size{Width: 100, Height: 107}, 2},
		{"capped", Options{LaneHeight: 36, MaxLanes: 2}, graphics.Size{Width: 100, Height: 360}, 2},
		{"half area", Options{LaneHeight: 36, ScrollArea: 0.5}, graphics.Size{Width: 100, Height: 144}, 2},
		{"too short", DefaultOptions(), graphics.Size{Width: 100, Height: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.opts).LaneCount(tt.size); got != tt.want {
				t.Errorf("LaneCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSimultaneousItemsTakeDifferentLanes(t *testing.T) {
	l := New(DefaultOptions())
	a, ok := l.Locate(scroll(1, 120, 0), 0, viewport)
	if !ok {
		t.Fatal("first item not placed")
	}
	b, ok := l.Locate(scroll(2, 120, 0), 0, viewport)
	if !ok {
		t.Fatal("second item not placed")
	}
	if a.Lane == b.Lane {
		t.Errorf("both items in lane %d", a.Lane)
	}
}

func TestFloodFillsEachLaneOnce(t *testing.T) {
	l := New(DefaultOptions())
	placed := 0
	for id := uint64(1); id <= 1000; id++ {
		if _, ok := l.Locate(scroll(id, 80, 0), 0, viewport); ok {
			placed++
		}
	}
	if placed != 3 {
		t.Errorf("placed %d items, want 3", placed)
	}
}

func TestSafetyGap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLanes = 1

	tests := []struct {
		name   string
		width  float64
		at     int64
		wantOK bool
	}{
		// Equal widths move at equal speed; the follower only needs the
		// leader's tail to clear the entry edge by the gap: t >= 527.3.
		{"equal width too early", 100, 500, false},
		{"equal width clear", 100, 600, true},
		// A wider follower is faster and must not catch up before the
		// leader exits at 5000: t >= 2410.6.
		{"fast follower catches up", 900, 2000, false},
		{"fast follower clear", 900, 2500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(opts)
			if _, ok := l.Locate(scroll(1, 100, 0), 0, viewport); !ok {
				t.Fatal("leader not placed")
			}
			_, ok := l.Locate(scroll(2, tt.width, tt.at), tt.at, viewport)
			if ok != tt.wantOK {
				t.Errorf("Locate() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestNoOverlapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	l := New(DefaultOptions())

	type placed struct {
		p Placement
		w float64
	}
	var all []placed
	var now int64
	for id := uint64(1); id <= 400; id++ {
		now += rng.Int63n(120)
		w := 20 + float64(rng.Intn(600))
		typ := item.Scroll
		if rng.Intn(4) == 0 {
			typ = item.ScrollReverse
		}
		c := Candidate{ID: id, Type: typ, Size: graphics.Size{Width: w, Height: 30}, DurationMs: 5000, EnteredAtMs: now}
		if p, ok := l.Locate(c, now, viewport); ok {
			all = append(all, placed{p, w})
		}
	}
	if len(all) < 10 {
		t.Fatalf("only %d items placed", len(all))
	}

	gap := DefaultOptions().SafetyGap
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			a, b := all[i], all[j]
			if a.p.Lane != b.p.Lane {
				continue
			}
			if a.p.Type != b.p.Type {
				if a.p.ExitAtMs > b.p.EnteredAtMs && b.p.ExitAtMs > a.p.EnteredAtMs {
					t.Fatalf("opposite directions share lane %d while both live", a.p.Lane)
				}
				continue
			}
			from := max(a.p.EnteredAtMs, b.p.EnteredAtMs)
			to := min(a.p.ExitAtMs, b.p.ExitAtMs)
			for ts := from; ts < to; ts += 25 {
				ra := a.p.Bounds(ts, graphics.Size{Width: a.w, Height: 30})
				rb := b.p.Bounds(ts, graphics.Size{Width: b.w, Height: 30})
				sep := max(rb.Left-ra.Right, ra.Left-rb.Right)
				if sep < gap-1e-6 {
					t.Fatalf("lane %d at t=%d: separation %.2f < %.0f", a.p.Lane, ts, sep, gap)
				}
			}
		}
	}
}

func TestTieBreak(t *testing.T) {
	l := New(DefaultOptions())

	// Empty lanes are preferred, lowest index first.
	p, _ := l.Locate(scroll(1, 50, 0), 0, viewport)
	if p.Lane != 0 {
		t.Errorf("first item lane = %d, want 0", p.Lane)
	}
	p, _ = l.Locate(scroll(2, 50, 1000), 1000, viewport)
	if p.Lane != 1 {
		t.Errorf("second item lane = %d, want 1 (empty lane first)", p.Lane)
	}
	p, _ = l.Locate(scroll(3, 50, 1500), 1500, viewport)
	if p.Lane != 2 {
		t.Errorf("third item lane = %d, want 2", p.Lane)
	}

	// All lanes busy: the lane whose latest item entered longest ago wins.
	p, ok := l.Locate(scroll(4, 50, 2000), 2000, viewport)
	if !ok || p.Lane != 0 {
		t.Errorf("fourth item lane = %d (ok=%v), want 0", p.Lane, ok)
	}
	p, ok = l.Locate(scroll(5, 50, 2100), 2100, viewport)
	if !ok || p.Lane != 1 {
		t.Errorf("fifth item lane = %d (ok=%v), want 1", p.Lane, ok)
	}
}

func TestReverseDirectionExclusive(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLanes = 1
	l := New(opts)

	if _, ok := l.Locate(scroll(1, 100, 0), 0, viewport); !ok {
		t.Fatal("scroll item not placed")
	}
	rev := Candidate{ID: 2, Type: item.ScrollReverse, Size: graphics.Size{Width: 100, Height: 30}, DurationMs: 5000, EnteredAtMs: 3000}
	if _, ok := l.Locate(rev, 3000, viewport); ok {
		t.Fatal("reverse item shared a lane with a live scroll item")
	}

	// Once the scroll item has exited the lane is free again.
	rev.EnteredAtMs = 5000
	p, ok := l.Locate(rev, 5000, viewport)
	if !ok {
		t.Fatal("reverse item not placed after lane emptied")
	}
	if p.X != -100 || p.Speed <= 0 {
		t.Errorf("reverse placement X=%v speed=%v, want X=-100 and positive speed", p.X, p.Speed)
	}
}

func TestFixedSlots(t *testing.T) {
	l := New(DefaultOptions())
	top := func(id uint64, at int64) Candidate {
		return Candidate{ID: id, Type: item.Top, Size: graphics.Size{Width: 200, Height: 30}, DurationMs: 4000, EnteredAtMs: at}
	}

	wantY := []float64{0, 36, 72}
	for i, y := range wantY {
		p, ok := l.Locate(top(uint64(i+1), 0), 0, viewport)
		if !ok {
			t.Fatalf("top item %d not placed", i)
		}
		if p.Y != y || p.X != 400 || p.Speed != 0 {
			t.Errorf("top item %d at (%v,%v) speed %v, want (400,%v) speed 0", i, p.X, p.Y, p.Speed, y)
		}
	}
	if _, ok := l.Locate(top(4, 100), 100, viewport); ok {
		t.Error("fourth top item placed with all slots busy")
	}

	// Slot 0 expires at 4000 and is reused.
	p, ok := l.Locate(top(5, 4000), 4000, viewport)
	if !ok || p.Y != 0 {
		t.Errorf("expired slot not reused: ok=%v y=%v", ok, p.Y)
	}
	if l.Reserved(1) {
		t.Error("expired reservation 1 still indexed")
	}

	bottom := Candidate{ID: 9, Type: item.Bottom, Size: graphics.Size{Width: 200, Height: 30}, DurationMs: 4000, EnteredAtMs: 0}
	p, ok = l.Locate(bottom, 0, viewport)
	if !ok || p.Y != 72 {
		t.Errorf("bottom slot 0 y = %v (ok=%v), want 72", p.Y, ok)
	}
}

func TestRelease(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLanes = 1
	l := New(opts)

	l.Release(999)

	if _, ok := l.Locate(scroll(1, 100, 0), 0, viewport); !ok {
		t.Fatal("first item not placed")
	}
	if _, ok := l.Locate(scroll(2, 100, 0), 0, viewport); ok {
		t.Fatal("second simultaneous item placed in a single lane")
	}
	l.Release(1)
	if l.Reserved(1) {
		t.Error("Reserved(1) after Release")
	}
	if _, ok := l.Locate(scroll(2, 100, 0), 0, viewport); !ok {
		t.Error("lane not reusable after Release")
	}
}

func TestReleaseClearsRemovedReservation(t *testing.T) {
	l := New(DefaultOptions())
	oneLane := graphics.Size{Width: 1000, Height: 36}
	for _, c := range []Candidate{scroll(1, 50, 0), scroll(2, 50, 3000)} {
		if _, ok := l.Locate(c, c.EnteredAtMs, oneLane); !ok {
			t.Fatalf("Locate(%d) failed", c.ID)
		}
	}
	if got := len(l.lanes[0]); got != 2 {
		t.Fatalf("lane 0 holds %d reservations, want 2", got)
	}

	l.Release(1)
	lane := l.lanes[0]
	if len(lane) != 1 || lane[0].id != 2 {
		t.Fatalf("lane 0 = %+v, want only id 2", lane)
	}
	if stale := lane[:cap(lane)][1]; stale != (reservation{}) {
		t.Errorf("backing array still holds %+v after Release", stale)
	}
}

func TestRelocateSameID(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLanes = 1
	l := New(opts)

	first, ok := l.Locate(scroll(1, 100, 0), 0, viewport)
	if !ok {
		t.Fatal("not placed")
	}
	again, ok := l.Locate(scroll(1, 100, 0), 1000, viewport)
	if !ok {
		t.Fatal("relocating an item collided with its own reservation")
	}
	if again != first {
		t.Errorf("relocated placement = %+v, want %+v", again, first)
	}
}

func TestReset(t *testing.T) {
	l := New(DefaultOptions())
	for id := uint64(1); id <= 3; id++ {
		l.Locate(scroll(id, 100, 0), 0, viewport)
	}
	l.Reset()
	if l.Reserved(1) {
		t.Error("reservation survived Reset")
	}
	if _, ok := l.Locate(scroll(4, 100, 0), 0, viewport); !ok {
		t.Error("no lane free after Reset")
	}
}

func TestLocateRejects(t *testing.T) {
	l := New(DefaultOptions())
	tests := []struct {
		name string
		c    Candidate
		size graphics.Size
	}{
		{"zero duration", Candidate{ID: 1, Type: item.Scroll}, viewport},
		{"empty viewport", scroll(2, 10, 0), graphics.Size{}},
		{"no lanes", scroll(3, 10, 0), graphics.Size{Width: 500, Height: 20}},
	}
	for _, tt := range tests {
		if _, ok := l.Locate(tt.c, 0, tt.size); ok {
			t.Errorf("%s: Locate succeeded", tt.name)
		}
	}
}

func TestEmptyItemUsesMinWidth(t *testing.T) {
	l := New(DefaultOptions())
	c := Candidate{ID: 1, Type: item.ScrollReverse, DurationMs: 1000}
	p, ok := l.Locate(c, 0, viewport)
	if !ok {
		t.Fatal("empty item not placed")
	}
	if p.X != -MinItemWidth {
		t.Errorf("X = %v, want %v", p.X, -MinItemWidth)
	}
}

func TestPlacementMotion(t *testing.T) {
	p := Placement{X: 1000, Y: 36, EnteredAtMs: 1000, ExitAtMs: 6000, Speed: -0.2, Type: item.Scroll}

	tests := []struct {
		t     int64
		wantX float64
	}{
		{0, 1000},
		{1000, 1000},
		{3500, 500},
		{6000, 0},
		{9000, 0},
	}
	for _, tt := range tests {
		if got := p.PositionAt(tt.t); got.X != tt.wantX || got.Y != 36 {
			t.Errorf("PositionAt(%d) = %+v, want X=%v", tt.t, got, tt.wantX)
		}
	}
	if p.Finished(5999) || !p.Finished(6000) {
		t.Error("Finished boundary wrong")
	}
	b := p.Bounds(3500, graphics.Size{Width: 100, Height: 30})
	if b.Left != 500 || b.Right != 600 || b.Top != 36 || b.Bottom != 66 {
		t.Errorf("Bounds = %+v", b)
	}
}

func TestOccupancy(t *testing.T) {
	l := New(DefaultOptions())
	l.Locate(scroll(1, 100, 0), 0, viewport)
	l.Locate(Candidate{ID: 2, Type: item.Top, Size: graphics.Size{Width: 10, Height: 10}, DurationMs: 100}, 0, viewport)

	var scrollRes, topRes int
	for _, s := range l.Occupancy() {
		switch s.Kind {
		case "scroll":
			scrollRes += s.Reservations
		case "top":
			topRes += s.Reservations
		}
	}
	if scrollRes != 1 || topRes != 1 {
		t.Errorf("occupancy scroll=%d top=%d, want 1 and 1", scrollRes, topRes)
	}
}
