package engine

import (
	"sync"
	"time"
)

// Clock provides wall time. The default implementation uses system time;
// tests inject a fake clock to control playback deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock uses system time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// PlaybackClock converts wall time into a media position in milliseconds.
// Pausing freezes the position, which pauses every comment on screen.
// All methods are safe for concurrent use.
type PlaybackClock struct {
	mu      sync.Mutex
	wall    Clock
	playing bool
	rate    float64
	// position at anchor, and the wall time it was taken
	anchorMs   int64
	anchorWall time.Time
}

// NewPlaybackClock returns a paused clock at position 0. A nil wall clock
// means SystemClock.
func NewPlaybackClock(wall Clock) *PlaybackClock {
	if wall == nil {
		wall = SystemClock{}
	}
	return &PlaybackClock{wall: wall, rate: 1}
}

// Play starts playback from position 0.
func (c *PlaybackClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorMs = 0
	c.anchorWall = c.wall.Now()
	c.playing = true
}

// Pause freezes the position.
func (c *PlaybackClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.playing = false
}

// Resume continues playback from the current position.
func (c *PlaybackClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.playing = true
}

// Seek jumps to ms without changing the play state.
func (c *PlaybackClock) Seek(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anchorMs = ms
	c.anchorWall = c.wall.Now()
}

// SetRate changes the playback speed. Non-positive rates are ignored.
func (c *PlaybackClock) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rebase()
	c.rate = rate
}

// Rate returns the playback speed.
func (c *PlaybackClock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Playing reports whether the position advances with wall time.
func (c *PlaybackClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Position returns the current media position in milliseconds.
func (c *PlaybackClock) Position() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked(c.wall.Now())
}

func (c *PlaybackClock) positionLocked(now time.Time) int64 {
	if !c.playing {
		return c.anchorMs
	}
	elapsed := float64(now.Sub(c.anchorWall)) / float64(time.Millisecond)
	return c.anchorMs + int64(elapsed*c.rate)
}

// rebase moves the anchor to now so later rate or state changes apply
// from this point on.
func (c *PlaybackClock) rebase() {
	now := c.wall.Now()
	c.anchorMs = c.positionLocked(now)
	c.anchorWall = now
}
