// Package resolver turns a playback timestamp into the comments that have
// newly become due.
//
// A Resolver holds the session's full item set sorted by time and a cursor
// into it. Playback calls [Resolver.Retrieve] once per frame with a
// non-decreasing timestamp and receives each item exactly once.
//
// Two kinds of backward movement are distinguished:
//
//   - Implicit rewind: Retrieve called with an earlier timestamp than the
//     previous call. The cursor moves back, but items that were already
//     emitted stay consumed and do not fire again when playback moves
//     forward past them.
//   - Explicit seek: [Resolver.Seek] repositions playback. Items after the
//     seek target fire again when reached; items before it are skipped.
//
// A Resolver is not safe for concurrent use. It is owned by the render loop.
package resolver

import (
	"slices"
	"sort"

	"github.com/go-drift/danmaku/pkg/item"
)

// sessionStart is the retrieval mark before any Retrieve call, so items at
// time zero are due on the first frame.
const sessionStart = -1

// Resolver yields newly due items for a playback timestamp.
type Resolver struct {
	items []item.Item

	// cursor is the index of the first item with TimeMs > lastMs.
	cursor int
	// highWater is one past the last emitted (or deliberately skipped) item.
	// Items below it are never emitted again until the next Seek.
	highWater int
	lastMs    int64
}

// New returns an empty resolver positioned at the start of the session.
func New() *Resolver {
	return &Resolver{lastMs: sessionStart}
}

// SetData replaces the working set. The items are copied and stably sorted
// by time, so items sharing a timestamp keep their input order. The cursor
// moves to the first item later than the last retrieval time.
func (r *Resolver) SetData(items []item.Item) {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b item.Item) int {
		switch {
		case a.TimeMs < b.TimeMs:
			return -1
		case a.TimeMs > b.TimeMs:
			return 1
		}
		return 0
	})
	r.items = sorted
	r.cursor = r.firstAfter(r.lastMs)
	r.highWater = r.cursor
}

// Retrieve returns, in time order, every item with TimeMs in
// (last retrieval time, nowMs] that has not been returned before.
//
// The result aliases the resolver's storage and is valid until the next
// SetData. Callers must not modify it.
func (r *Resolver) Retrieve(nowMs int64) []item.Item {
	if nowMs < r.lastMs {
		r.cursor = r.firstAfter(nowMs)
		r.lastMs = nowMs
		return nil
	}

	start := max(r.cursor, r.highWater)
	end := start
	for end < len(r.items) && r.items[end].TimeMs <= nowMs {
		end++
	}
	r.cursor = end
	r.highWater = max(r.highWater, end)
	r.lastMs = nowMs
	return r.items[start:end:end]
}

// Seek repositions playback at ms. Items later than ms are due again when
// playback reaches them; items at or before ms are skipped.
func (r *Resolver) Seek(ms int64) {
	r.cursor = r.firstAfter(ms)
	r.highWater = r.cursor
	r.lastMs = ms
}

// Reset rewinds to the start of the session.
func (r *Resolver) Reset() {
	r.Seek(sessionStart)
}

// Len returns the number of items in the working set.
func (r *Resolver) Len() int {
	return len(r.items)
}

// Remaining returns how many items can still be emitted by forward playback.
func (r *Resolver) Remaining() int {
	return len(r.items) - max(r.cursor, r.highWater)
}

// LastRetrieved returns the timestamp of the latest Retrieve or Seek.
func (r *Resolver) LastRetrieved() int64 {
	return r.lastMs
}

func (r *Resolver) firstAfter(ms int64) int {
	return sort.Search(len(r.items), func(i int) bool {
		return r.items[i].TimeMs > ms
	})
}
