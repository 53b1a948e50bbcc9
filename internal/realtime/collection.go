// ABOUTME: Insertion-ordered, id-keyed collection read model
// ABOUTME: Mutated only by the syncer's apply step; never holds duplicate ids

package realtime

import (
	"sync"
)

// Row is any entity with a stable identifier
type Row interface {
	RowID() string
}

// Collection holds the reconciled read model for one subscription. Elements
// keep their insertion order of arrival and no two elements share an id.
// All mutation goes through the syncer; readers use Snapshot and Get.
type Collection[T Row] struct {
	mu    sync.RWMutex
	items []T
	index map[string]int
}

// NewCollection creates an empty collection
func NewCollection[T Row]() *Collection[T] {
	return &Collection[T]{index: make(map[string]int)}
}

// Len returns the number of elements
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the element with the given id
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Snapshot returns a copy of the elements in insertion order
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// insert appends the element unless its id is already present. Returns true
// if the element was added.
func (c *Collection[T]) insert(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := item.RowID()
	if _, ok := c.index[id]; ok {
		return false
	}
	c.index[id] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// replace swaps the element with the matching id in place, keeping its
// position. Returns false if no element matches.
func (c *Collection[T]) replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[item.RowID()]
	if !ok {
		return false
	}
	c.items[i] = item
	return true
}

// update applies fn to the element with the matching id. Returns false if no
// element matches.
func (c *Collection[T]) update(id string, fn func(old T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items[i] = fn(c.items[i])
	return true
}

// remove deletes the element with the given id, preserving the order of the
// rest. Removing an absent id is a no-op.
func (c *Collection[T]) remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return false
	}
	c.items = append(c.items[:i], c.items[i+1:]...)
	delete(c.index, id)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].RowID()] = j
	}
	return true
}
