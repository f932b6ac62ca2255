// Package raster is an overlay.Surface that renders comments into an RGBA
// image with gg. It backs the CLI's render command and serves as a
// reference render sink for hosts without their own view system.
package raster

import (
	"fmt"
	"image"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/cache"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/overlay"
)

const (
	// DefaultBaseTextSize is the font size in pixels at text scale 1.
	DefaultBaseTextSize = 25.0
	defaultFaceCache    = 64
	avatarGap           = 4
)

// DefaultOutline is the stroke drawn around comment text.
var DefaultOutline = graphics.RGBA(0, 0, 0, 0.8)

// Options configures a Surface.
type Options struct {
	// FontData is a TrueType or OpenType font. Nil means Go Regular.
	FontData []byte
	// BaseTextSize is the font size in pixels for an item with TextScale 1.
	BaseTextSize float64
	// TextScale is the user's scale preference applied to every item.
	TextScale float64
	// Outline is the text outline color. Zero means DefaultOutline.
	Outline graphics.Color
	// FaceCacheSize bounds the number of cached font sizes.
	FaceCacheSize int
}

// Surface renders attached objects into an in-memory image.
//
// All methods are safe for concurrent use; PaintFrame and Resize serialize
// on the same lock.
type Surface struct {
	opts   Options
	source *text.FontSource
	faces  *cache.ShardedCache[int, text.Face]

	mu       sync.Mutex
	dc       *gg.Context
	size     graphics.Size
	children []*Object
	frames   int
	lastMs   int64
}

// NewSurface returns a width x height surface.
func NewSurface(width, height int, opts Options) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("raster: invalid size %dx%d", width, height)
	}
	if opts.FontData == nil {
		opts.FontData = goregular.TTF
	}
	if opts.BaseTextSize <= 0 {
		opts.BaseTextSize = DefaultBaseTextSize
	}
	if opts.TextScale <= 0 {
		opts.TextScale = 1
	}
	if opts.Outline == 0 {
		opts.Outline = DefaultOutline
	}
	if opts.FaceCacheSize <= 0 {
		opts.FaceCacheSize = defaultFaceCache
	}

	source, err := text.NewFontSource(opts.FontData)
	if err != nil {
		return nil, fmt.Errorf("raster: load font: %w", err)
	}
	return &Surface{
		opts:   opts,
		source: source,
		faces:  cache.NewSharded[int, text.Face](opts.FaceCacheSize, cache.IntHasher),
		dc:     gg.NewContext(width, height),
		size:   graphics.Size{Width: float64(width), Height: float64(height)},
	}, nil
}

// face returns the font face for a pixel size, quantized to 1/4 px.
func (s *Surface) face(px float64) text.Face {
	key := int(math.Round(px * 4))
	if key < 1 {
		key = 1
	}
	return s.faces.GetOrCreate(key, func() text.Face {
		return s.source.Face(float64(key) / 4)
	})
}

func (s *Surface) Size() graphics.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Resize changes the image size. The next tick sees the new viewport.
func (s *Surface) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dc.Resize(width, height); err != nil {
		return err
	}
	s.size = graphics.Size{Width: float64(width), Height: float64(height)}
	return nil
}

func (s *Surface) NewObject(t item.VisualType) overlay.RenderObject {
	return &Object{surface: s, typ: t}
}

func (s *Surface) Attach(obj overlay.RenderObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, obj.(*Object))
}

func (s *Surface) Detach(obj overlay.RenderObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := slices.Index(s.children, obj.(*Object)); i >= 0 {
		s.children = slices.Delete(s.children, i, i+1)
	}
}

func (s *Surface) VisitChildren(fn func(overlay.RenderObject)) {
	s.mu.Lock()
	children := slices.Clone(s.children)
	s.mu.Unlock()
	for _, child := range children {
		fn(child)
	}
}

// Children returns the attached objects in draw order.
func (s *Surface) Children() []*Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.children)
}

// PaintFrame clears the image and draws every visible object.
func (s *Surface) PaintFrame(nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dc.Clear()
	for _, child := range s.children {
		if child.visible {
			child.paint(s.dc, s.opts.Outline)
		}
	}
	s.frames++
	s.lastMs = nowMs
}

// Frames returns the number of painted frames and the time of the last one.
func (s *Surface) Frames() (count int, lastMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames, s.lastMs
}

// Image returns the last painted frame.
func (s *Surface) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.Image()
}

// EncodePNG writes the last painted frame as PNG.
func (s *Surface) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dc.EncodePNG(w)
}

// Close releases the drawing context and font source.
func (s *Surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces.Clear()
	if err := s.dc.Close(); err != nil {
		return err
	}
	return s.source.Close()
}
