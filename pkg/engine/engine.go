// Package engine drives an overlay controller in real time.
//
// An [Engine] owns a [PlaybackClock] and ticks the controller at a fixed
// frame rate with the clock's position. Every frame is recorded in a
// [FrameTraceBuffer], and an optional HTTP debug server exposes the trace
// and the controller's live state.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/logging"
	"github.com/go-drift/danmaku/pkg/overlay"
)

// DefaultFrameRate is the tick rate used when Options.FrameRate is zero.
const DefaultFrameRate = 60

// Options configures an Engine.
type Options struct {
	// Clock supplies wall time. Nil means SystemClock.
	Clock Clock
	// FrameRate is the number of ticks per second Run performs.
	FrameRate int
	// TraceSamples is the frame trace capacity.
	TraceSamples int
	// DebugServerPort starts the debug server in Run when positive; -1
	// picks an ephemeral port and 0 disables it.
	DebugServerPort int
	// ExitWhenIdle makes Run return once every item has been shown and the
	// screen is empty.
	ExitWhenIdle bool
	Logger       *slog.Logger
}

// Engine ticks a controller against a playback clock.
type Engine struct {
	ctrl     *overlay.Controller
	wall     Clock
	playback *PlaybackClock
	interval time.Duration
	trace    *FrameTraceBuffer
	opts     Options
	logger   *slog.Logger

	// frameMu serializes frames with debug handlers reading controller state.
	frameMu sync.Mutex
	last    overlay.FrameStats

	debug debugServer
}

// New returns an engine driving ctrl. The playback clock starts paused at 0.
func New(ctrl *overlay.Controller, opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	interval := time.Second / time.Duration(opts.FrameRate)
	return &Engine{
		ctrl:     ctrl,
		wall:     opts.Clock,
		playback: NewPlaybackClock(opts.Clock),
		interval: interval,
		trace:    NewFrameTraceBuffer(opts.TraceSamples, interval),
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
	}
}

// Controller returns the driven controller.
func (e *Engine) Controller() *overlay.Controller { return e.ctrl }

// Playback returns the playback clock.
func (e *Engine) Playback() *PlaybackClock { return e.playback }

// Trace returns the frame trace buffer.
func (e *Engine) Trace() *FrameTraceBuffer { return e.trace }

// FrameInterval returns the time between ticks in Run.
func (e *Engine) FrameInterval() time.Duration { return e.interval }

// Frame ticks the controller once at the current playback position and
// records the frame.
func (e *Engine) Frame() overlay.FrameStats {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()

	start := e.wall.Now()
	fs := e.ctrl.Tick(e.playback.Position())
	took := e.wall.Now().Sub(start)

	e.trace.Add(newFrameSample(start, fs, took), took)
	if took > e.interval {
		e.logger.Debug("danmaku frame over budget", "frameMs", durationToMillis(took), "active", fs.Active)
	}
	e.last = fs
	return fs
}

// Idle reports whether the dataset is exhausted and nothing is on screen.
func (e *Engine) Idle() bool {
	e.frameMu.Lock()
	defer e.frameMu.Unlock()
	return e.ctrl.Resolver().Remaining() == 0 && e.ctrl.ActiveCount() == 0
}

// Seek moves playback to ms and clears the screen on the next frame.
func (e *Engine) Seek(ms int64) {
	e.playback.Seek(ms)
	e.ctrl.Seek(ms)
}

// Pause freezes playback. Comments on screen stop moving.
func (e *Engine) Pause() { e.playback.Pause() }

// Resume continues playback.
func (e *Engine) Resume() { e.playback.Resume() }

// Run starts playback and ticks until ctx is done, or until the engine is
// idle when Options.ExitWhenIdle is set. A panic during a frame, such as
// pool misuse, stops the loop and is returned as *errors.PanicError.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer errors.RecoverWithCallback("engine.Run", func(p *errors.PanicError) { err = p })

	if port := e.opts.DebugServerPort; port != 0 {
		actual, err := e.StartDebugServer(port)
		if err != nil {
			return &errors.DanmakuError{Op: "engine.Run", Kind: errors.KindIO, Err: err}
		}
		defer e.StopDebugServer()
		e.logger.Info("danmaku debug server listening", "port", actual)
	}

	e.playback.Resume()
	e.logger.Info("danmaku engine started", "fps", e.opts.FrameRate)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("danmaku engine stopped", "position", e.playback.Position())
			return nil
		case <-ticker.C:
			e.Frame()
			if e.opts.ExitWhenIdle && e.Idle() {
				e.logger.Info("danmaku engine idle", "position", e.playback.Position())
				return nil
			}
		}
	}
}
