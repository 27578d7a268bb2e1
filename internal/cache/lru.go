// Inkstore - Handwriting Pipeline Caching and Storage Engine
// Copyright 2026 Inkwell AI
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/inkwell-ai/inkstore

// Package cache provides the in-memory LRU window used by the notebook store.
// The LRU is a pure performance layer: everything it holds also exists
// durably on disk, so eviction never loses data.
package cache

import "sync"

// entry is a node in the LRU's doubly-linked list.
type entry[V any] struct {
	key   string
	value V
	prev  *entry[V]
	next  *entry[V]
}

// LRU is a thread-safe least-recently-used cache with O(1) Get, Add, Remove
// and eviction. It uses a doubly-linked list for recency ordering and a map
// for lookup; head.next is the most recently used, tail.prev the least.
type LRU[V any] struct {
	mu sync.Mutex

	capacity int
	items    map[string]*entry[V]
	head     *entry[V]
	tail     *entry[V]

	// onEvict, if set, is called after a capacity eviction with the evicted
	// key and value. Called with the lock held; must not re-enter the cache.
	onEvict func(key string, value V)

	hits   int64
	misses int64
}

// New creates an LRU holding at most capacity entries.
func New[V any](capacity int, onEvict func(key string, value V)) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}

	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
		onEvict:  onEvict,
	}
	c.head.next = c.tail
	c.tail.prev = c.head

	return c
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.moveToFront(e)
		c.hits++
		return e.value, true
	}

	c.misses++
	var zero V
	return zero, false
}

// Add inserts or replaces a value, evicting the least recently used entry if
// the cache is at capacity.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value}
	c.addToFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.evictOldest()
	}
}

// Remove deletes an entry. Returns true if it was present.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
		return true
	}
	return false
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries without invoking the eviction callback.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
}

// Stats returns hit/miss counters and the current size.
func (c *LRU[V]) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

// Internal methods (must be called with lock held)

func (c *LRU[V]) addToFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[V]) moveToFront(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.addToFront(e)
}

func (c *LRU[V]) removeEntry(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}

func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
	if c.onEvict != nil {
		c.onEvict(oldest.key, oldest.value)
	}
}
