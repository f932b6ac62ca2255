package testing

import (
	"time"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/overlay"
)

const (
	// DefaultTestWidth is the default width of the test surface.
	DefaultTestWidth = 800
	// DefaultTestHeight is the default height of the test surface.
	DefaultTestHeight = 600
	// DefaultFrameInterval is the clock step used by PumpFor.
	DefaultFrameInterval = 16 * time.Millisecond
)

// OverlayTester drives a Controller against a RecordingSurface with a fake
// clock. Playback time is the clock's elapsed time since Epoch.
type OverlayTester struct {
	clock   *FakeClock
	surface *RecordingSurface
	ctrl    *overlay.Controller
	last    overlay.FrameStats
}

// NewOverlayTester returns a tester with a default-sized surface. Nil
// collaborators in opts get the controller's defaults.
func NewOverlayTester(opts overlay.Options) *OverlayTester {
	surface := NewRecordingSurface(graphics.Size{Width: DefaultTestWidth, Height: DefaultTestHeight})
	return &OverlayTester{
		clock:   NewFakeClock(),
		surface: surface,
		ctrl:    overlay.New(surface, opts),
	}
}

// Clock returns the fake clock for advancing playback time.
func (t *OverlayTester) Clock() *FakeClock { return t.clock }

// Surface returns the recording surface.
func (t *OverlayTester) Surface() *RecordingSurface { return t.surface }

// Controller returns the controller under test.
func (t *OverlayTester) Controller() *overlay.Controller { return t.ctrl }

// SetSize resizes the surface; the next Pump reflows.
func (t *OverlayTester) SetSize(size graphics.Size) {
	t.surface.SetSize(size)
}

// SetData queues a dataset for the next Pump.
func (t *OverlayTester) SetData(items ...item.Item) {
	t.ctrl.SetData(items)
}

// NowMs returns the current playback time.
func (t *OverlayTester) NowMs() int64 {
	return t.clock.ElapsedMs()
}

// Pump runs a single tick at the current playback time.
func (t *OverlayTester) Pump() overlay.FrameStats {
	t.last = t.ctrl.Tick(t.NowMs())
	return t.last
}

// PumpFor advances the clock by d in DefaultFrameInterval steps, ticking
// after each step, and returns the stats of the final tick.
func (t *OverlayTester) PumpFor(d time.Duration) overlay.FrameStats {
	for d > 0 {
		step := min(d, DefaultFrameInterval)
		t.clock.Advance(step)
		t.Pump()
		d -= step
	}
	return t.last
}

// LastFrame returns the stats of the latest tick.
func (t *OverlayTester) LastFrame() overlay.FrameStats {
	return t.last
}

// CaptureSnapshot records the surface's current objects.
func (t *OverlayTester) CaptureSnapshot() *Snapshot {
	return CaptureSnapshot(t.surface)
}
