// Package overlay drives comments across a host surface.
//
// The [Controller] runs once per frame on the render goroutine. Each
// [Controller.Tick] performs three passes in order:
//
//  1. Reflow: every instance that needs layout asks the locator for a
//     placement. Newly retrieved instances are placed here, one tick after
//     they arrive, so there is a single placement path. An instance the
//     locator cannot place is discarded and counted.
//  2. Retrieval: the resolver's newly due items each get a pooled render
//     object, attached hidden and marked for layout.
//  3. Draw: finished instances return their object to the pool; the rest
//     move to their position for the current time.
//
// Dataset replacement, posting a single item, seeking and reset may be
// requested from any goroutine. They are queued and applied at the start of
// the next tick.
package overlay

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/locator"
	"github.com/go-drift/danmaku/pkg/logging"
	"github.com/go-drift/danmaku/pkg/pool"
	"github.com/go-drift/danmaku/pkg/resolver"
)

// Default durations.
const (
	DefaultScrollDuration = 5 * time.Second
	DefaultFixedDuration  = 4 * time.Second
)

// Options configures a Controller. Nil collaborators get defaults.
type Options struct {
	Resolver *resolver.Resolver
	Locator  *locator.Locator
	// Pools creates render objects. The default manager creates them with
	// the surface's NewObject.
	Pools *pool.Manager[RenderObject]

	// ScrollDuration is the time a scrolling item takes to cross the viewport.
	ScrollDuration time.Duration
	// FixedDuration is the time a top or bottom item stays on screen.
	FixedDuration time.Duration

	OnClick ClickHandler
	Logger  *slog.Logger
}

// FrameStats describes one tick.
type FrameStats struct {
	NowMs     int64 `json:"nowMs"`
	Retrieved int   `json:"retrieved"`
	Placed    int   `json:"placed"`
	Discarded int   `json:"discarded"`
	Reclaimed int   `json:"reclaimed"`
	Active    int   `json:"active"`
	Visible   int   `json:"visible"`
	Relayout  bool  `json:"relayout"`
}

// Stats holds cumulative counters since the controller was created.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Retrieved uint64 `json:"retrieved"`
	Placed    uint64 `json:"placed"`
	Discarded uint64 `json:"discarded"`
	Reclaimed uint64 `json:"reclaimed"`
}

// Controller orchestrates resolver, locator and pools against a surface.
type Controller struct {
	surface  Surface
	resolver *resolver.Resolver
	locator  *locator.Locator
	pools    *pool.Manager[RenderObject]
	scrollMs int64
	fixedMs  int64
	onClick  ClickHandler
	logger   *slog.Logger

	// mailbox, guarded by mu
	mu          sync.Mutex
	pendingData  []item.Item
	hasData      bool
	pendingOps   []func()
	pendingPosts []item.Item

	// render goroutine state
	instances []*instance
	viewport  graphics.Size
	relayout  bool
	nextID    uint64
	nowMs     int64
	stats     Stats
}

// New returns a controller drawing onto surface.
func New(surface Surface, opts Options) *Controller {
	c := &Controller{
		surface:  surface,
		resolver: opts.Resolver,
		locator:  opts.Locator,
		pools:    opts.Pools,
		scrollMs: durationMs(opts.ScrollDuration, DefaultScrollDuration),
		fixedMs:  durationMs(opts.FixedDuration, DefaultFixedDuration),
		onClick:  opts.OnClick,
		logger:   logging.OrNop(opts.Logger),
	}
	if c.resolver == nil {
		c.resolver = resolver.New()
	}
	if c.locator == nil {
		c.locator = locator.New(locator.DefaultOptions())
	}
	if c.pools == nil {
		c.pools = pool.NewManager(surface.NewObject)
	}
	return c
}

func durationMs(d, fallback time.Duration) int64 {
	if d <= 0 {
		d = fallback
	}
	return d.Milliseconds()
}

// SetData replaces the dataset at the start of the next tick. Only the most
// recent call before a tick takes effect. Active instances are kept.
func (c *Controller) SetData(items []item.Item) {
	data := slices.Clone(items)
	c.mu.Lock()
	c.pendingData = data
	c.hasData = true
	c.mu.Unlock()
}

// Post queues it for display outside the dataset. The item enters the
// retrieval pass of the next tick regardless of its time and is placed on
// the tick after, like any retrieved item.
func (c *Controller) Post(it item.Item) {
	c.mu.Lock()
	c.pendingPosts = append(c.pendingPosts, it.Normalize())
	c.mu.Unlock()
}

// Seek clears the screen and repositions playback at ms on the next tick.
// Items later than ms fire again when reached.
func (c *Controller) Seek(ms int64) {
	c.enqueue(func() {
		c.clear()
		c.resolver.Seek(ms)
		c.logger.Debug("danmaku seek", "ms", ms)
	})
}

// Reset clears the screen and rewinds to the start of the session on the
// next tick.
func (c *Controller) Reset() {
	c.enqueue(func() {
		c.clear()
		c.resolver.Reset()
		c.logger.Debug("danmaku reset")
	})
}

// MarkNeedsLayout re-places every active instance on the next tick.
func (c *Controller) MarkNeedsLayout() {
	c.enqueue(func() { c.relayout = true })
}

func (c *Controller) enqueue(op func()) {
	c.mu.Lock()
	c.pendingOps = append(c.pendingOps, op)
	c.mu.Unlock()
}

// drainMailbox applies the pending dataset, then queued operations. It
// returns the posted items for the retrieval pass.
func (c *Controller) drainMailbox() []item.Item {
	c.mu.Lock()
	data, hasData := c.pendingData, c.hasData
	ops, posts := c.pendingOps, c.pendingPosts
	c.pendingData, c.hasData, c.pendingOps, c.pendingPosts = nil, false, nil, nil
	c.mu.Unlock()

	if hasData {
		c.resolver.SetData(data)
		c.logger.Debug("danmaku dataset swapped", "items", len(data))
	}
	for _, op := range ops {
		op()
	}
	return posts
}

// Tick advances the overlay to nowMs. It must be called from a single
// goroutine.
func (c *Controller) Tick(nowMs int64) FrameStats {
	posts := c.drainMailbox()
	c.nowMs = nowMs
	fs := FrameStats{NowMs: nowMs}

	if size := c.surface.Size(); !size.Equal(c.viewport) {
		c.logger.Debug("danmaku viewport changed", "width", size.Width, "height", size.Height)
		c.viewport = size
		c.relayout = true
	}
	if c.relayout {
		c.relayout = false
		fs.Relayout = true
		c.locator.Reset()
		for _, in := range c.instances {
			in.needsLayout = true
		}
	}

	c.reflow(nowMs, &fs)
	c.retrieve(nowMs, posts, &fs)
	c.draw(nowMs, &fs)

	if painter, ok := c.surface.(FramePainter); ok {
		painter.PaintFrame(nowMs)
	}

	fs.Active = len(c.instances)
	for _, in := range c.instances {
		if in.placed() {
			fs.Visible++
		}
	}
	c.stats.Ticks++
	c.stats.Retrieved += uint64(fs.Retrieved)
	c.stats.Placed += uint64(fs.Placed)
	c.stats.Discarded += uint64(fs.Discarded)
	c.stats.Reclaimed += uint64(fs.Reclaimed)
	return fs
}

func (c *Controller) reflow(nowMs int64, fs *FrameStats) {
	kept := c.instances[:0]
	for _, in := range c.instances {
		if !in.needsLayout {
			kept = append(kept, in)
			continue
		}
		enteredAt := nowMs
		if in.placed() {
			enteredAt = in.placement.EnteredAtMs
		}
		in.size = in.obj.Measure()
		in.size.Width = max(in.size.Width, locator.MinItemWidth)
		p, ok := c.locator.Locate(locator.Candidate{
			ID:          in.id,
			Type:        in.item.Type,
			Size:        in.size,
			DurationMs:  c.durationFor(in.item.Type),
			EnteredAtMs: enteredAt,
		}, nowMs, c.viewport)
		if !ok {
			c.logger.Debug("danmaku discarded", "item", in.item.String())
			c.release(in)
			fs.Discarded++
			continue
		}
		if !in.placed() {
			in.obj.SetVisible(true)
		}
		in.placement = p
		in.state = Visible
		in.needsLayout = false
		fs.Placed++
		kept = append(kept, in)
	}
	clear(c.instances[len(kept):])
	c.instances = kept
}

func (c *Controller) retrieve(nowMs int64, posts []item.Item, fs *FrameStats) {
	for _, it := range c.resolver.Retrieve(nowMs) {
		c.spawn(it)
		fs.Retrieved++
	}
	for _, it := range posts {
		c.spawn(it)
		fs.Retrieved++
	}
}

// spawn attaches a hidden render object for it, pending placement.
func (c *Controller) spawn(it item.Item) {
	obj := c.pools.Acquire(it.Type)
	obj.Bind(it)
	obj.SetVisible(false)
	c.surface.Attach(obj)
	c.nextID++
	c.instances = append(c.instances, &instance{
		id:          c.nextID,
		item:        it,
		obj:         obj,
		state:       PendingPlacement,
		needsLayout: true,
	})
}

func (c *Controller) draw(nowMs int64, fs *FrameStats) {
	kept := c.instances[:0]
	for _, in := range c.instances {
		if !in.placed() {
			kept = append(kept, in)
			continue
		}
		if in.placement.Finished(nowMs) {
			c.release(in)
			fs.Reclaimed++
			continue
		}
		in.obj.SetPosition(in.placement.PositionAt(nowMs))
		kept = append(kept, in)
	}
	clear(c.instances[len(kept):])
	c.instances = kept
}

func (c *Controller) durationFor(t item.VisualType) int64 {
	if t.IsFixed() {
		return c.fixedMs
	}
	return c.scrollMs
}

// release returns an instance's object to the pool and frees its
// reservation. The caller drops the instance from c.instances.
func (c *Controller) release(in *instance) {
	c.locator.Release(in.id)
	c.surface.Detach(in.obj)
	c.pools.Release(in.obj)
	in.state = Released
	in.obj = nil
}

// clear releases every active instance.
func (c *Controller) clear() {
	for _, in := range c.instances {
		c.release(in)
	}
	clear(c.instances)
	c.instances = c.instances[:0]
	c.locator.Reset()
}

// Discarded returns the number of items dropped because no placement was
// available.
func (c *Controller) Discarded() uint64 {
	return c.stats.Discarded
}

// Stats returns cumulative counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// ActiveCount returns the number of pending and visible instances.
func (c *Controller) ActiveCount() int {
	return len(c.instances)
}

// VisibleCount returns the number of placed instances.
func (c *Controller) VisibleCount() int {
	n := 0
	for _, in := range c.instances {
		if in.placed() {
			n++
		}
	}
	return n
}

// Instances returns a snapshot of the active instances in draw order.
func (c *Controller) Instances() []InstanceInfo {
	out := make([]InstanceInfo, len(c.instances))
	for i, in := range c.instances {
		out[i] = in.info(c.nowMs)
	}
	return out
}

// Viewport returns the surface size seen by the latest tick.
func (c *Controller) Viewport() graphics.Size {
	return c.viewport
}

// Resolver returns the controller's resolver.
func (c *Controller) Resolver() *resolver.Resolver {
	return c.resolver
}

// Locator returns the controller's locator.
func (c *Controller) Locator() *locator.Locator {
	return c.locator
}

// Pools returns the controller's pool manager.
func (c *Controller) Pools() *pool.Manager[RenderObject] {
	return c.pools
}
