package overlay

import (
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

// RenderObject is one drawable comment owned by the host's render sink.
//
// Implementations must be comparable (typically a pointer type) because
// the pool tracks lent objects by identity.
type RenderObject interface {
	// Bind attaches an item to the object. Measure reflects it afterwards.
	Bind(it item.Item)
	// Measure returns the rendered size of the bound item.
	Measure() graphics.Size
	SetVisible(visible bool)
	// SetPosition moves the object's top-left corner.
	SetPosition(pos graphics.Offset)
	// Reset unbinds the item and hides the object before it returns to the pool.
	Reset()
}

// Surface is the capability set the controller needs from its host view.
type Surface interface {
	// Size returns the current viewport size.
	Size() graphics.Size
	// NewObject creates a render object for items of type t.
	NewObject(t item.VisualType) RenderObject
	// Attach adds obj to the surface's children; later children draw on top.
	Attach(obj RenderObject)
	// Detach removes obj from the surface's children.
	Detach(obj RenderObject)
	// VisitChildren calls fn for every attached object in draw order.
	VisitChildren(fn func(RenderObject))
}

// FramePainter is implemented by surfaces that draw once per tick, after
// every object has been positioned.
type FramePainter interface {
	PaintFrame(nowMs int64)
}

// ClickHandler receives the item under a hit. It returns true when the
// click was handled.
type ClickHandler func(it item.Item) bool
