// Package pool recycles render objects per visual type.
//
// Each visual type has its own idle set; an object is only ever handed out
// for the type it was created for. The manager tracks every object it has
// lent, so releasing an object twice, or releasing one it never lent,
// panics with an [*errors.PoolError]. Both indicate a lifetime bug in the
// caller rather than a condition to recover from.
//
// Usage:
//
//	pools := pool.NewManager(func(t item.VisualType) *Label { return newLabel(t) })
//	obj := pools.Acquire(item.Scroll)
//	// bind and show obj...
//	pools.Release(obj)
//
// A Manager is not safe for concurrent use. It is owned by the render loop.
package pool

import (
	"github.com/go-drift/danmaku/pkg/errors"
	"github.com/go-drift/danmaku/pkg/item"
)

// Object is a poolable render object.
type Object interface {
	// Reset clears any bound item state before the object goes idle.
	Reset()
}

// Stats counts the objects of one visual type.
type Stats struct {
	Idle    int `json:"idle"`
	Lent    int `json:"lent"`
	Created int `json:"created"`
}

// Manager hands out objects by visual type and takes them back.
type Manager[T interface {
	comparable
	Object
}] struct {
	newFn   func(item.VisualType) T
	idle    map[item.VisualType][]T
	lent    map[T]item.VisualType
	parked  map[T]item.VisualType
	created map[item.VisualType]int
}

// NewManager returns an empty manager that creates objects with newFn.
func NewManager[T interface {
	comparable
	Object
}](newFn func(item.VisualType) T) *Manager[T] {
	return &Manager[T]{
		newFn:   newFn,
		idle:    make(map[item.VisualType][]T),
		lent:    make(map[T]item.VisualType),
		parked:  make(map[T]item.VisualType),
		created: make(map[item.VisualType]int),
	}
}

// Acquire returns an idle object of type t, creating one when none is idle.
func (m *Manager[T]) Acquire(t item.VisualType) T {
	var obj T
	if idle := m.idle[t]; len(idle) > 0 {
		obj = idle[len(idle)-1]
		var zero T
		idle[len(idle)-1] = zero
		m.idle[t] = idle[:len(idle)-1]
		delete(m.parked, obj)
	} else {
		obj = m.create(t)
	}
	m.lent[obj] = t
	return obj
}

// Release resets obj and returns it to the idle set of its type.
//
// Release panics with *errors.PoolError if obj is already idle or was never
// lent by this manager.
func (m *Manager[T]) Release(obj T) {
	t, ok := m.lent[obj]
	if !ok {
		if pt, idle := m.parked[obj]; idle {
			panic(&errors.PoolError{Op: "pool.Release", Type: pt.String(), Reason: "object released twice"})
		}
		panic(&errors.PoolError{Op: "pool.Release", Reason: "object was not lent by this pool"})
	}
	delete(m.lent, obj)
	obj.Reset()
	m.park(t, obj)
}

// Warmup creates idle objects until type t has at least n of them.
func (m *Manager[T]) Warmup(t item.VisualType, n int) {
	for len(m.idle[t]) < n {
		m.park(t, m.create(t))
	}
}

// Lent reports whether obj is currently lent out.
func (m *Manager[T]) Lent(obj T) bool {
	_, ok := m.lent[obj]
	return ok
}

// Stats returns per-type counters for every type the manager has created
// objects for.
func (m *Manager[T]) Stats() map[item.VisualType]Stats {
	stats := make(map[item.VisualType]Stats, len(m.created))
	for t, n := range m.created {
		stats[t] = Stats{Idle: len(m.idle[t]), Created: n}
	}
	for _, t := range m.lent {
		s := stats[t]
		s.Lent++
		stats[t] = s
	}
	return stats
}

func (m *Manager[T]) create(t item.VisualType) T {
	m.created[t]++
	return m.newFn(t)
}

func (m *Manager[T]) park(t item.VisualType, obj T) {
	m.idle[t] = append(m.idle[t], obj)
	m.parked[obj] = t
}
