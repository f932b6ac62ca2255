package testing

import (
	"slices"
	"sync"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/overlay"
)

const (
	// DefaultCharWidth is the width a RecordingSurface measures per rune.
	DefaultCharWidth = 10
	// DefaultLineHeight is the height a RecordingSurface measures per item.
	DefaultLineHeight = 30
)

// RecordingSurface is an overlay.Surface that draws nothing and records
// every call. Text is measured with a fixed width per rune so placements
// are predictable.
//
// SetSize may be called from any goroutine; everything else belongs to the
// goroutine driving the controller.
type RecordingSurface struct {
	CharWidth  float64
	LineHeight float64

	mu   sync.Mutex
	size graphics.Size

	children    []*RecordedObject
	created     map[item.VisualType]int
	frames      int
	lastPaintMs int64
}

// NewRecordingSurface returns a surface of the given size.
func NewRecordingSurface(size graphics.Size) *RecordingSurface {
	return &RecordingSurface{
		CharWidth:  DefaultCharWidth,
		LineHeight: DefaultLineHeight,
		size:       size,
		created:    make(map[item.VisualType]int),
	}
}

// SetSize changes the viewport seen by the next tick.
func (s *RecordingSurface) SetSize(size graphics.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}

func (s *RecordingSurface) Size() graphics.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

func (s *RecordingSurface) NewObject(t item.VisualType) overlay.RenderObject {
	s.created[t]++
	return &RecordedObject{Type: t, surface: s}
}

func (s *RecordingSurface) Attach(obj overlay.RenderObject) {
	s.children = append(s.children, obj.(*RecordedObject))
}

func (s *RecordingSurface) Detach(obj overlay.RenderObject) {
	if i := slices.Index(s.children, obj.(*RecordedObject)); i >= 0 {
		s.children = slices.Delete(s.children, i, i+1)
	}
}

func (s *RecordingSurface) VisitChildren(fn func(overlay.RenderObject)) {
	for _, child := range s.children {
		fn(child)
	}
}

// PaintFrame counts painted frames.
func (s *RecordingSurface) PaintFrame(nowMs int64) {
	s.frames++
	s.lastPaintMs = nowMs
}

// Children returns the attached objects in draw order.
func (s *RecordingSurface) Children() []*RecordedObject {
	return slices.Clone(s.children)
}

// VisibleChildren returns the attached objects that are visible.
func (s *RecordingSurface) VisibleChildren() []*RecordedObject {
	var out []*RecordedObject
	for _, child := range s.children {
		if child.Visible {
			out = append(out, child)
		}
	}
	return out
}

// Created returns how many objects of type t the surface has created.
func (s *RecordingSurface) Created(t item.VisualType) int {
	return s.created[t]
}

// Frames returns the number of PaintFrame calls and the time of the last one.
func (s *RecordingSurface) Frames() (count int, lastMs int64) {
	return s.frames, s.lastPaintMs
}

// RecordedObject is the render object created by RecordingSurface.
type RecordedObject struct {
	Type     item.VisualType
	Item     item.Item
	Bound    bool
	Visible  bool
	Position graphics.Offset
	Resets   int

	surface *RecordingSurface
}

func (o *RecordedObject) Bind(it item.Item) {
	o.Item = it
	o.Bound = true
}

// Measure returns CharWidth per rune by LineHeight, both scaled by the
// item's text scale.
func (o *RecordedObject) Measure() graphics.Size {
	scale := o.Item.TextScale
	if scale <= 0 {
		scale = 1
	}
	runes := len([]rune(o.Item.Text))
	return graphics.Size{
		Width:  float64(runes) * o.surface.CharWidth * scale,
		Height: o.surface.LineHeight * scale,
	}
}

func (o *RecordedObject) SetVisible(visible bool) {
	o.Visible = visible
}

func (o *RecordedObject) SetPosition(pos graphics.Offset) {
	o.Position = pos
}

func (o *RecordedObject) Reset() {
	o.Item = item.Item{}
	o.Bound = false
	o.Visible = false
	o.Position = graphics.Offset{}
	o.Resets++
}
