package raster

import (
	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"

	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
)

var outlineOffsets = [...]graphics.Offset{{X: -1}, {X: 1}, {Y: -1}, {Y: 1}}

// Object is the render object created by Surface.
type Object struct {
	surface *Surface
	typ     item.VisualType

	it      item.Item
	bound   bool
	visible bool
	pos     graphics.Offset

	face   text.Face
	ascent float64
	size   graphics.Size
	avatar *gg.ImageBuf
}

// Bind attaches it and measures its text with the face for its scale.
func (o *Object) Bind(it item.Item) {
	o.it = it
	o.bound = true

	scale := it.TextScale
	if scale <= 0 {
		scale = 1
	}
	o.face = o.surface.face(o.surface.opts.BaseTextSize * o.surface.opts.TextScale * scale)
	metrics := o.face.Metrics()
	o.ascent = metrics.Ascent

	w, _ := text.Measure(it.Text, o.face)
	h := metrics.LineHeight()
	if it.Avatar != nil {
		o.avatar = gg.ImageBufFromImage(it.Avatar)
		w += h + avatarGap
	}
	o.size = graphics.Size{Width: w, Height: h}
}

func (o *Object) Measure() graphics.Size {
	return o.size
}

func (o *Object) SetVisible(visible bool) {
	o.visible = visible
}

func (o *Object) SetPosition(pos graphics.Offset) {
	o.pos = pos
}

func (o *Object) Reset() {
	*o = Object{surface: o.surface, typ: o.typ}
}

// Type returns the visual type the object was created for.
func (o *Object) Type() item.VisualType { return o.typ }

// Item returns the bound item.
func (o *Object) Item() item.Item { return o.it }

// Visible reports whether the object is drawn.
func (o *Object) Visible() bool { return o.visible }

// Bounds returns the object's rectangle on the surface.
func (o *Object) Bounds() graphics.Rect {
	return graphics.RectFromLTWH(o.pos.X, o.pos.Y, o.size.Width, o.size.Height)
}

func (o *Object) paint(dc *gg.Context, outline graphics.Color) {
	x, y := o.pos.X, o.pos.Y
	if o.avatar != nil {
		h := o.size.Height
		dc.DrawImageEx(o.avatar, gg.DrawImageOptions{X: x, Y: y, DstWidth: h, DstHeight: h})
		x += h + avatarGap
	}
	if o.it.Text == "" {
		return
	}

	baseline := y + o.ascent
	dc.SetFont(o.face)
	dc.SetColor(outline.NRGBA())
	for _, d := range outlineOffsets {
		dc.DrawString(o.it.Text, x+d.X, baseline+d.Y)
	}
	dc.SetColor(o.it.Color.NRGBA())
	dc.DrawString(o.it.Text, x, baseline)
}
