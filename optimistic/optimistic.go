// Package optimistic applies list mutations locally before the remote side
// confirms them, and rolls them back when it does not.
//
// A Collection keeps the last server-confirmed items plus the ordered list of
// outstanding mutations. The visible items are always recomputed from the two
// as a full replacement, so rolling one mutation back never disturbs another
// that is still pending on a different item. At most one mutation per item id
// may be outstanding; a second one is rejected with ErrInFlight.
package optimistic

import (
	"context"
	"errors"
	"slices"
	"sync"
)

var (
	// ErrInFlight is returned when the item already has an outstanding
	// mutation.
	ErrInFlight = errors.New("mutation already in flight")
	// ErrNotFound is returned for ids not present in the collection.
	ErrNotFound = errors.New("item not found")
)

// Collection is safe for concurrent use.
type Collection[T any] struct {
	mu        sync.Mutex
	key       func(T) string
	confirmed []T
	pending   []*Pending[T]
	visible   []T
}

// New returns a Collection over items, identified by key.
func New[T any](key func(T) string, items []T) *Collection[T] {
	c := &Collection[T]{key: key}
	c.confirmed = slices.Clone(items)
	c.recompute()
	return c
}

// Pending is one outstanding mutation. Exactly one of Commit or Rollback
// should be called; later calls are no-ops.
type Pending[T any] struct {
	c       *Collection[T]
	id      string
	mutate  func(T) T
	settled bool
}

// ID returns the id of the mutated item.
func (p *Pending[T]) ID() string { return p.id }

// Begin applies mutate to the item with the given id. The change is visible
// as soon as Begin returns. mutate must not modify its argument in place.
func (c *Collection[T]) Begin(id string, mutate func(T) T) (*Pending[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index(c.visible, id) < 0 {
		return nil, ErrNotFound
	}
	if c.inFlight(id) {
		return nil, ErrInFlight
	}
	p := &Pending[T]{c: c, id: id, mutate: mutate}
	c.pending = append(c.pending, p)
	c.recompute()
	return p, nil
}

// Commit records remote success. The visible item keeps its new value and
// becomes part of the confirmed state.
func (p *Pending[T]) Commit() {
	c := p.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settle(p) {
		return
	}
	if i := c.index(c.confirmed, p.id); i >= 0 {
		c.confirmed[i] = p.mutate(c.confirmed[i])
	}
	c.recompute()
}

// Rollback records remote failure. The visible collection is recomputed
// without this mutation; if nothing else changed meanwhile it equals the
// snapshot taken before Begin.
func (p *Pending[T]) Rollback() {
	c := p.c
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settle(p) {
		return
	}
	c.recompute()
}

// Mutate runs Begin, then remote with the mutated item, and commits or rolls
// back depending on remote's result, which it returns.
func (c *Collection[T]) Mutate(ctx context.Context, id string, mutate func(T) T, remote func(context.Context, T) error) error {
	p, err := c.Begin(id, mutate)
	if err != nil {
		return err
	}
	item, _ := c.Get(id)
	if err := remote(ctx, item); err != nil {
		p.Rollback()
		return err
	}
	p.Commit()
	return nil
}

// Replace installs a freshly loaded confirmed state. Outstanding mutations
// stay applied on top of it; those whose item disappeared apply to nothing.
func (c *Collection[T]) Replace(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed = slices.Clone(items)
	c.recompute()
}

// Items returns a copy of the visible items.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.visible)
}

// Get returns the visible item with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(c.visible, id); i >= 0 {
		return c.visible[i], true
	}
	var zero T
	return zero, false
}

// InFlight reports whether id has an outstanding mutation.
func (c *Collection[T]) InFlight(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight(id)
}

// Len returns the number of visible items.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.visible)
}

func (c *Collection[T]) inFlight(id string) bool {
	return slices.ContainsFunc(c.pending, func(p *Pending[T]) bool { return p.id == id })
}

func (c *Collection[T]) settle(p *Pending[T]) bool {
	if p.settled {
		return false
	}
	p.settled = true
	c.pending = slices.DeleteFunc(c.pending, func(q *Pending[T]) bool { return q == p })
	return true
}

func (c *Collection[T]) index(items []T, id string) int {
	return slices.IndexFunc(items, func(item T) bool { return c.key(item) == id })
}

// recompute rebuilds visible from confirmed and the pending mutations.
func (c *Collection[T]) recompute() {
	next := slices.Clone(c.confirmed)
	for _, p := range c.pending {
		if i := c.index(next, p.id); i >= 0 {
			next[i] = p.mutate(next[i])
		}
	}
	c.visible = next
}
