package engine

import (
	"sync"
	"time"

	"github.com/go-drift/danmaku/pkg/overlay"
)

const (
	frameTraceSamplesDefault   = 240
	defaultFrameTraceThreshold = 16667 * time.Microsecond
)

// FrameSample is a single frame trace sample.
type FrameSample struct {
	Timestamp  int64   `json:"ts"`
	PositionMs int64   `json:"positionMs"`
	FrameMs    float64 `json:"frameMs"`
	Retrieved  int     `json:"retrieved"`
	Placed     int     `json:"placed"`
	Discarded  int     `json:"discarded"`
	Reclaimed  int     `json:"reclaimed"`
	Active     int     `json:"active"`
	Visible    int     `json:"visible"`
	Relayout   bool    `json:"relayout,omitempty"`
}

func newFrameSample(ts time.Time, fs overlay.FrameStats, took time.Duration) FrameSample {
	return FrameSample{
		Timestamp:  ts.UnixMilli(),
		PositionMs: fs.NowMs,
		FrameMs:    durationToMillis(took),
		Retrieved:  fs.Retrieved,
		Placed:     fs.Placed,
		Discarded:  fs.Discarded,
		Reclaimed:  fs.Reclaimed,
		Active:     fs.Active,
		Visible:    fs.Visible,
		Relayout:   fs.Relayout,
	}
}

// FrameTimeline is the debug server response shape.
type FrameTimeline struct {
	Samples          []FrameSample `json:"samples"`
	OverBudgetFrames int           `json:"overBudgetFrames"`
	ThresholdMs      float64       `json:"thresholdMs"`
}

// FrameTraceBuffer stores recent frame samples in a ring buffer.
type FrameTraceBuffer struct {
	mu         sync.RWMutex
	samples    []FrameSample
	index      int
	count      int
	overBudget int
	threshold  time.Duration
}

// NewFrameTraceBuffer creates a new frame trace buffer. Frames taking
// longer than threshold count as over budget.
func NewFrameTraceBuffer(capacity int, threshold time.Duration) *FrameTraceBuffer {
	if capacity <= 0 {
		capacity = frameTraceSamplesDefault
	}
	if threshold <= 0 {
		threshold = defaultFrameTraceThreshold
	}
	return &FrameTraceBuffer{
		samples:   make([]FrameSample, capacity),
		threshold: threshold,
	}
}

// Capacity returns the buffer capacity.
func (b *FrameTraceBuffer) Capacity() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.samples)
}

// Threshold returns the frame budget.
func (b *FrameTraceBuffer) Threshold() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.threshold
}

// Add records a frame sample and updates the over-budget count.
func (b *FrameTraceBuffer) Add(sample FrameSample, frameDuration time.Duration) {
	b.mu.Lock()
	b.samples[b.index] = sample
	b.index = (b.index + 1) % len(b.samples)
	if b.count < len(b.samples) {
		b.count++
	}
	if frameDuration > b.threshold {
		b.overBudget++
	}
	b.mu.Unlock()
}

// Snapshot returns a chronological copy of samples and stats.
func (b *FrameTraceBuffer) Snapshot() FrameTimeline {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return FrameTimeline{ThresholdMs: durationToMillis(b.threshold)}
	}

	result := make([]FrameSample, b.count)
	if b.count < len(b.samples) {
		copy(result, b.samples[:b.count])
	} else {
		copy(result, b.samples[b.index:])
		copy(result[len(b.samples)-b.index:], b.samples[:b.index])
	}

	return FrameTimeline{
		Samples:          result,
		OverBudgetFrames: b.overBudget,
		ThresholdMs:      durationToMillis(b.threshold),
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
