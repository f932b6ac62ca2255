package overlay

import (
	"github.com/go-drift/danmaku/pkg/graphics"
	"github.com/go-drift/danmaku/pkg/item"
	"github.com/go-drift/danmaku/pkg/locator"
)

// State is the lifecycle stage of an active instance.
type State int

const (
	// PendingPlacement instances are attached but hidden until the next
	// reflow pass places them.
	PendingPlacement State = iota
	// Visible instances hold a placement and are drawn every tick.
	Visible
	// Released instances have returned their object to the pool.
	Released
)

func (s State) String() string {
	switch s {
	case PendingPlacement:
		return "pending"
	case Visible:
		return "visible"
	case Released:
		return "released"
	}
	return "unknown"
}

// instance binds one due item to a pooled render object.
type instance struct {
	id          uint64
	item        item.Item
	obj         RenderObject
	state       State
	needsLayout bool
	placement   locator.Placement
	size        graphics.Size
}

func (in *instance) placed() bool {
	return in.state == Visible
}

// InstanceInfo is a snapshot of one active instance.
type InstanceInfo struct {
	ID     uint64        `json:"id"`
	Item   item.Item     `json:"-"`
	Text   string        `json:"text"`
	Type   string        `json:"type"`
	State  string        `json:"state"`
	Lane   int           `json:"lane"`
	Bounds graphics.Rect `json:"bounds"`
}

func (in *instance) info(nowMs int64) InstanceInfo {
	info := InstanceInfo{
		ID:    in.id,
		Item:  in.item,
		Text:  in.item.Text,
		Type:  in.item.Type.String(),
		State: in.state.String(),
		Lane:  -1,
	}
	if in.placed() {
		info.Lane = in.placement.Lane
		info.Bounds = in.placement.Bounds(nowMs, in.size)
	}
	return info
}
