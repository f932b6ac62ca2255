// Package item defines the immutable comment record the engine schedules,
// and the codecs that load whole comment files into memory.
//
// An [Item] is a plain value. Every component receives and returns items by
// value, so once an item leaves a [Dataset] nothing downstream can mutate it.
package item

import (
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/go-drift/danmaku/pkg/graphics"
)

// VisualType selects how an item moves across the surface and which pool
// its render object comes from.
type VisualType int

const (
	// Scroll items travel from the right edge to the left edge.
	Scroll VisualType = iota
	// ScrollReverse items travel from the left edge to the right edge.
	ScrollReverse
	// Top items are pinned, centered, to slots stacked down from the top edge.
	Top
	// Bottom items are pinned, centered, to slots stacked up from the bottom edge.
	Bottom
)

// MinTextScale is the smallest text scale an item can carry after normalization.
const MinTextScale = 0.1

var visualTypeNames = [...]string{
	Scroll:        "scroll",
	ScrollReverse: "reverse",
	Top:           "top",
	Bottom:        "bottom",
}

func (t VisualType) String() string {
	if t.Valid() {
		return visualTypeNames[t]
	}
	return fmt.Sprintf("VisualType(%d)", int(t))
}

// Valid reports whether t is one of the defined visual types.
func (t VisualType) Valid() bool {
	return t >= Scroll && t <= Bottom
}

// IsScrolling reports whether items of this type move horizontally.
func (t VisualType) IsScrolling() bool {
	return t == Scroll || t == ScrollReverse
}

// IsFixed reports whether items of this type stay in place.
func (t VisualType) IsFixed() bool {
	return t == Top || t == Bottom
}

// Types returns every defined visual type in declaration order.
func Types() []VisualType {
	return []VisualType{Scroll, ScrollReverse, Top, Bottom}
}

// ParseVisualType accepts the String form of a type plus the rl/lr aliases.
// The empty string parses as Scroll.
func ParseVisualType(s string) (VisualType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "scroll", "rl":
		return Scroll, nil
	case "reverse", "lr":
		return ScrollReverse, nil
	case "top":
		return Top, nil
	case "bottom":
		return Bottom, nil
	}
	return Scroll, fmt.Errorf("unknown visual type %q", s)
}

// Item is one timed comment.
//
// The rendered font size is BaseTextSize * the user's text scale *
// TextScale; a regular comment has TextScale 1.
type Item struct {
	Text      string
	TimeMs    int64
	Type      VisualType
	Color     graphics.Color
	Priority  int
	TextScale float64
	ID        string
	Avatar    image.Image
}

// New returns a white, priority-0, unscaled item.
func New(text string, timeMs int64, typ VisualType) Item {
	return Item{
		Text:      text,
		TimeMs:    timeMs,
		Type:      typ,
		Color:     graphics.ColorWhite,
		TextScale: 1,
	}
}

// Normalize substitutes safe defaults for malformed fields instead of
// rejecting the item. Text loses trailing line breaks and is composed to NFC.
func (it Item) Normalize() Item {
	if it.TimeMs < 0 {
		it.TimeMs = 0
	}
	switch {
	case math.IsNaN(it.TextScale) || math.IsInf(it.TextScale, 0) || it.TextScale == 0:
		it.TextScale = 1
	case it.TextScale < MinTextScale:
		it.TextScale = MinTextScale
	}
	if !it.Type.Valid() {
		it.Type = Scroll
	}
	if it.Color == graphics.ColorTransparent {
		it.Color = graphics.ColorWhite
	}
	it.Text = norm.NFC.String(strings.TrimRight(it.Text, "\r\n"))
	return it
}

func (it Item) String() string {
	return fmt.Sprintf("%s/%d/%s", it.Text, it.TimeMs, it.Type)
}
