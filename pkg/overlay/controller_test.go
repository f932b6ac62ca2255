package overlay_test

import (
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/overlay"
	dtesting "github.com/go-drift/danmaku/pkg/testing"
)

// threeLanes is tall enough for exactly three default lanes.
var threeLanes = graphics.Size{Width: 800, Height: 108}

func newTester(size graphics.Size, opts overlay.Options) *dtesting.OverlayTester {
	tester := dtesting.NewOverlayTester(opts)
	tester.SetSize(size)
	return tester
}

func scrollItems(n int, text string, at int64) []item.Item {
	items := make([]item.Item, n)
	for i := range items {
		items[i] = item.New(text, at, item.Scroll)
	}
	return items
}

func TestFloodDiscardsOverflow(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(scrollItems(1000, "flood", 0)...)

	fs := tester.Pump()
	if fs.Retrieved != 1000 || fs.Visible != 0 {
		t.Fatalf("first tick: %+v, want 1000 retrieved and none visible", fs)
	}

	fs = tester.PumpFor(dtesting.DefaultFrameInterval)
	ctrl := tester.Controller()
	if fs.Placed != 3 || fs.Discarded != 997 {
		t.Errorf("second tick placed=%d discarded=%d, want 3 and 997", fs.Placed, fs.Discarded)
	}
	if got := ctrl.VisibleCount(); got != 3 {
		t.Errorf("VisibleCount() = %d, want 3", got)
	}
	if got := ctrl.Discarded(); got != 997 {
		t.Errorf("Discarded() = %d, want 997", got)
	}
	if got := ctrl.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount() = %d, want 3", got)
	}
	if got := len(tester.Surface().Children()); got != 3 {
		t.Errorf("attached children = %d, want 3", got)
	}
	stats := ctrl.Pools().Stats()[item.Scroll]
	if stats.Lent != 3 || stats.Idle != 997 {
		t.Errorf("pool stats = %+v, want 3 lent and 997 idle", stats)
	}
}

func TestPlacementDeferredOneTick(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("wait", 0, item.Scroll))

	fs := tester.Pump()
	if fs.Retrieved != 1 || fs.Placed != 0 {
		t.Fatalf("first tick: %+v", fs)
	}
	infos := tester.Controller().Instances()
	if len(infos) != 1 || infos[0].State != overlay.PendingPlacement.String() || infos[0].Lane != -1 {
		t.Fatalf("Instances() = %+v", infos)
	}
	child := tester.Surface().Children()[0]
	if child.Visible || !child.Bound || child.Item.Text != "wait" {
		t.Errorf("pending child = %+v, want bound and hidden", child)
	}

	fs = tester.PumpFor(dtesting.DefaultFrameInterval)
	if fs.Placed != 1 || !child.Visible {
		t.Errorf("second tick placed=%d visible=%v", fs.Placed, child.Visible)
	}
	if child.Position.X != 800 {
		t.Errorf("entry X = %v, want 800", child.Position.X)
	}
}

func TestSimultaneousItemsUseDifferentLanes(t *testing.T) {
	tester := newTester(graphics.Size{Width: 1000, Height: 108}, overlay.Options{})
	tester.SetData(scrollItems(2, "pair", 0)...)
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	infos := tester.Controller().Instances()
	if len(infos) != 2 {
		t.Fatalf("len(Instances()) = %d, want 2", len(infos))
	}
	if infos[0].Lane == infos[1].Lane {
		t.Errorf("both items in lane %d", infos[0].Lane)
	}
}

func TestFinishedItemsReturnToPool(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("bye", 0, item.Scroll), item.New("pin", 0, item.Top))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	ctrl := tester.Controller()
	if ctrl.VisibleCount() != 2 {
		t.Fatalf("VisibleCount() = %d, want 2", ctrl.VisibleCount())
	}

	// Fixed items leave after the default four seconds.
	tester.PumpFor(4 * time.Second)
	if ctrl.ActiveCount() != 1 {
		t.Errorf("ActiveCount() after 4s = %d, want 1", ctrl.ActiveCount())
	}

	tester.PumpFor(1100 * time.Millisecond)
	if ctrl.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", ctrl.ActiveCount())
	}
	if got := ctrl.Stats().Reclaimed; got != 2 {
		t.Errorf("Reclaimed = %d, want 2", got)
	}
	if len(tester.Surface().Children()) != 0 {
		t.Error("reclaimed objects still attached")
	}
	if stats := ctrl.Pools().Stats()[item.Scroll]; stats.Idle != 1 || stats.Lent != 0 {
		t.Errorf("scroll pool = %+v", stats)
	}
	if ctrl.Discarded() != 0 {
		t.Errorf("Discarded() = %d, want 0", ctrl.Discarded())
	}
}

func TestResizeReflows(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(scrollItems(2, "aa", 0)...)
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	tester.SetSize(graphics.Size{Width: 800, Height: 72})
	fs := tester.PumpFor(dtesting.DefaultFrameInterval)
	if !fs.Relayout || fs.Discarded != 0 || fs.Visible != 2 {
		t.Errorf("two-lane reflow: %+v, want relayout with both kept", fs)
	}

	tester.SetSize(graphics.Size{Width: 800, Height: 36})
	fs = tester.PumpFor(dtesting.DefaultFrameInterval)
	if fs.Discarded != 1 || fs.Visible != 1 {
		t.Errorf("one-lane reflow: %+v, want one discarded", fs)
	}
	if got := tester.Controller().Discarded(); got != 1 {
		t.Errorf("Discarded() = %d, want 1", got)
	}

	// A stable size does not reflow.
	if fs := tester.PumpFor(dtesting.DefaultFrameInterval); fs.Relayout {
		t.Error("reflow without a size change")
	}
}

func TestMarkNeedsLayout(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("x", 0, item.Scroll))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	tester.Controller().MarkNeedsLayout()
	fs := tester.PumpFor(dtesting.DefaultFrameInterval)
	if !fs.Relayout || fs.Placed != 1 || fs.Visible != 1 {
		t.Errorf("after MarkNeedsLayout: %+v", fs)
	}
}

func TestSetDataCoalesces(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("stale", 0, item.Scroll))
	tester.SetData(item.New("fresh", 0, item.Scroll), item.New("fresh2", 0, item.Top))

	if fs := tester.Pump(); fs.Retrieved != 2 {
		t.Errorf("Retrieved = %d, want 2 from the latest dataset", fs.Retrieved)
	}
	for _, info := range tester.Controller().Instances() {
		if info.Text == "stale" {
			t.Error("overwritten dataset was applied")
		}
	}
}

func TestSetDataFromManyGoroutines(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	ctrl := tester.Controller()

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctrl.SetData(scrollItems(n, "g", 0))
		}(i)
	}
	wg.Wait()

	fs := tester.Pump()
	if fs.Retrieved < 1 || fs.Retrieved > 8 {
		t.Errorf("Retrieved = %d, want the size of one submitted dataset", fs.Retrieved)
	}
	if ctrl.Resolver().Len() != fs.Retrieved {
		t.Errorf("resolver holds %d items, retrieved %d", ctrl.Resolver().Len(), fs.Retrieved)
	}
}

func TestSetDataKeepsActiveInstances(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("first", 0, item.Scroll))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	tester.SetData(item.New("second", 5000, item.Scroll))
	tester.PumpFor(dtesting.DefaultFrameInterval)

	infos := tester.Controller().Instances()
	if len(infos) != 1 || infos[0].Text != "first" {
		t.Errorf("Instances() = %+v, want the original item still active", infos)
	}
}

func TestSeekClearsAndReenters(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("a", 100, item.Scroll), item.New("b", 200, item.Scroll))
	tester.Pump()
	tester.PumpFor(250 * time.Millisecond)

	ctrl := tester.Controller()
	if ctrl.ActiveCount() != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", ctrl.ActiveCount())
	}

	ctrl.Seek(150)
	tester.Clock().Set(dtesting.Epoch.Add(150 * time.Millisecond))
	if fs := tester.Pump(); fs.Active != 0 || fs.Retrieved != 0 {
		t.Errorf("tick after Seek: %+v, want an empty screen", fs)
	}
	if stats := ctrl.Pools().Stats()[item.Scroll]; stats.Lent != 0 {
		t.Errorf("pool still lends %d objects after Seek", stats.Lent)
	}

	tester.Clock().Advance(60 * time.Millisecond)
	fs := tester.Pump()
	if fs.Retrieved != 1 {
		t.Fatalf("Retrieved = %d, want b again", fs.Retrieved)
	}
	if infos := ctrl.Instances(); infos[0].Text != "b" {
		t.Errorf("re-entered item = %q, want b", infos[0].Text)
	}
}

func TestReset(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("again", 0, item.Scroll))
	tester.Pump()
	tester.PumpFor(100 * time.Millisecond)

	tester.Controller().Reset()
	tester.Clock().Set(dtesting.Epoch)
	fs := tester.Pump()
	if fs.Retrieved != 1 || fs.Active != 1 {
		t.Errorf("tick after Reset: %+v, want the item retrieved again", fs)
	}
	if got := tester.Surface().Children(); len(got) != 1 || got[0].Visible {
		t.Errorf("children after Reset = %d", len(got))
	}
}

func TestHitTest(t *testing.T) {
	var clicked []string
	tester := newTester(threeLanes, overlay.Options{
		OnClick: func(it item.Item) bool {
			clicked = append(clicked, it.Text)
			return true
		},
	})
	tester.SetData(item.New("hello", 0, item.Scroll))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	// Entered at 16ms at 0.17px/ms; after one second the left edge is at 630.
	tester.Clock().Advance(time.Second)
	tester.Pump()

	ctrl := tester.Controller()
	if !ctrl.HitTest(graphics.Offset{X: 640, Y: 10}) {
		t.Error("HitTest on the item returned false")
	}
	if ctrl.HitTest(graphics.Offset{X: 10, Y: 10}) {
		t.Error("HitTest on empty space returned true")
	}
	if ctrl.HitTest(graphics.Offset{X: 640, Y: 500}) {
		t.Error("HitTest outside the viewport returned true")
	}
	if len(clicked) != 1 || clicked[0] != "hello" {
		t.Errorf("clicked = %v, want [hello]", clicked)
	}
}

func TestHitTestWithoutHandler(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("hello", 0, item.Top))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	// Top items are centered in slot 0.
	if tester.Controller().HitTest(graphics.Offset{X: 400, Y: 10}) {
		t.Error("HitTest without handler returned true")
	}
}

func TestPaintFrameEveryTick(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.Pump()
	tester.PumpFor(3 * dtesting.DefaultFrameInterval)
	if n, last := tester.Surface().Frames(); n != 4 || last != 48 {
		t.Errorf("Frames() = %d, %d; want 4 frames ending at 48", n, last)
	}
}

func TestCustomDurations(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{ScrollDuration: time.Second})
	tester.SetData(item.New("quick", 0, item.Scroll))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)
	tester.PumpFor(time.Second)
	if got := tester.Controller().ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d after the scroll duration, want 0", got)
	}
}

func TestPostEntersNextTick(t *testing.T) {
	tester := newTester(threeLanes, overlay.Options{})
	tester.SetData(item.New("scheduled", 60_000, item.Scroll))
	ctrl := tester.Controller()

	ctrl.Post(item.Item{Text: "live\n", TimeMs: 90_000, Type: item.Top})
	fs := tester.Pump()
	if fs.Retrieved != 1 || fs.Placed != 0 {
		t.Fatalf("first tick: %+v, want the posted item retrieved and pending", fs)
	}

	fs = tester.PumpFor(dtesting.DefaultFrameInterval)
	if fs.Placed != 1 || fs.Visible != 1 {
		t.Errorf("second tick: %+v, want the posted item placed", fs)
	}
	infos := ctrl.Instances()
	if len(infos) != 1 || infos[0].Text != "live" || infos[0].Type != "top" {
		t.Errorf("Instances() = %+v, want the normalized posted item", infos)
	}
	if got := tester.Surface().Children()[0].Item.Color; got != graphics.ColorWhite {
		t.Errorf("posted color = %#x, want white", uint32(got))
	}
	if got := ctrl.Resolver().Len(); got != 1 {
		t.Errorf("resolver holds %d items, want the dataset untouched", got)
	}

	// Posting does not repeat on later ticks.
	if fs := tester.PumpFor(dtesting.DefaultFrameInterval); fs.Retrieved != 0 {
		t.Errorf("Retrieved = %d on a later tick, want 0", fs.Retrieved)
	}
}

func TestEmptyTextHitBox(t *testing.T) {
	clicked := 0
	tester := newTester(threeLanes, overlay.Options{
		OnClick: func(item.Item) bool {
			clicked++
			return true
		},
	})
	tester.SetData(item.New("", 0, item.Top))
	tester.Pump()
	tester.PumpFor(dtesting.DefaultFrameInterval)

	infos := tester.Controller().Instances()
	if len(infos) != 1 {
		t.Fatalf("len(Instances()) = %d, want 1", len(infos))
	}
	// Centered at the minimum width: (800 - 8) / 2.
	want := graphics.RectFromLTWH(396, 0, 8, dtesting.DefaultLineHeight)
	if infos[0].Bounds != want {
		t.Errorf("Bounds = %+v, want %+v", infos[0].Bounds, want)
	}
	if !tester.Controller().HitTest(graphics.Offset{X: 400, Y: 10}) || clicked != 1 {
		t.Errorf("HitTest on an empty comment: clicked = %d, want 1", clicked)
	}
}

func TestNoSameLaneOverlapAcrossResizes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []item.VisualType{item.Scroll, item.Scroll, item.Scroll, item.ScrollReverse, item.Top, item.Bottom}
	items := make([]item.Item, 400)
	for i := range items {
		text := strings.Repeat("w", 1+rng.Intn(24))
		items[i] = item.New(text, rng.Int63n(22_000), types[rng.Intn(len(types))])
	}

	tester := newTester(graphics.Size{Width: 800, Height: 180}, overlay.Options{})
	tester.SetData(items...)
	ctrl := tester.Controller()

	placed := 0
	for frame := range 1600 {
		switch frame {
		case 500:
			tester.SetSize(graphics.Size{Width: 800, Height: 72})
		case 1000:
			tester.SetSize(graphics.Size{Width: 600, Height: 216})
		}
		fs := tester.PumpFor(dtesting.DefaultFrameInterval)
		placed += fs.Placed

		var visible []overlay.InstanceInfo
		for _, info := range ctrl.Instances() {
			if info.State == overlay.Visible.String() {
				visible = append(visible, info)
			}
		}
		for i, a := range visible {
			for _, b := range visible[i+1:] {
				if a.Lane != b.Lane || !sameTrack(a.Item.Type, b.Item.Type) {
					continue
				}
				if a.Bounds.Left < b.Bounds.Right && b.Bounds.Left < a.Bounds.Right {
					t.Fatalf("frame %d: %q %+v and %q %+v overlap in lane %d",
						frame, a.Text, a.Bounds, b.Text, b.Bounds, a.Lane)
				}
			}
		}
	}
	if placed == 0 {
		t.Fatal("nothing was placed")
	}
}

// sameTrack reports whether two types share lane numbering: all scrolling
// types share the scroll lanes, and each fixed type has its own slots.
func sameTrack(a, b item.VisualType) bool {
	if a.IsScrolling() && b.IsScrolling() {
		return true
	}
	return a == b
}
