// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache provides a bounded, thread-safe LRU cache with optional
// per-entry expiry.
//
// The server uses it for the entity-tag table and the remote client for
// fetched prototypes.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 1000

// LRU is a fixed-size cache that evicts the least recently used entry
// once full. Entries stored with SetWithTTL also disappear after their
// deadline.
//
// Thread Safety: All methods are safe for concurrent use.
//
// Performance:
//
//	| Operation | Complexity |
//	|-----------|------------|
//	| Get       | O(1)       |
//	| Set       | O(1)       |
//	| Delete    | O(1)       |
//	| Purge     | O(n)       |
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front is most recent
	now      func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	deadline time.Time // zero means no expiry
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int   `json:"size"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
}

// New creates a cache holding at most capacity entries.
//
// Inputs:
//   - capacity: Maximum number of entries. Values <= 0 select DefaultCapacity.
//
// Outputs:
//   - *LRU[K, V]: The cache. Never nil.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, min(capacity, 4096)),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
// An expired entry is dropped and reported as a miss.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if c.expiredLocked(e) {
		c.removeElement(elem)
		c.expired.Add(1)
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return e.value, true
}

// Peek returns the value for key without touching recency or counters.
// Unlike Get it also returns expired entries, together with a flag saying
// whether the entry is still fresh; callers use this to revalidate stale
// data.
func (c *LRU[K, V]) Peek(key K) (value V, fresh bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return value, false, false
	}
	e := elem.Value.(*entry[K, V])
	return e.value, !c.expiredLocked(e), true
}

// Set stores value under key with no expiry.
func (c *LRU[K, V]) Set(key K, value V) {
	c.set(key, value, time.Time{})
}

// SetWithTTL stores value under key until ttl has elapsed. A non-positive
// ttl stores an entry that is already stale: Get misses on it, Peek still
// returns it.
func (c *LRU[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.set(key, value, c.now().Add(max(ttl, 0)))
}

func (c *LRU[K, V]) set(key K, value V, deadline time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[K, V])
		e.value = value
		e.deadline = deadline
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.evictions.Add(1)
		}
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, deadline: deadline})
}

// Delete removes key and reports whether it was present.
func (c *LRU[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		c.removeElement(elem)
	}
	return ok
}

// Purge removes every entry and resets the counters.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, min(c.capacity, 4096))
	c.order.Init()
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expired.Store(0)
}

// Len returns the number of entries, stale ones included.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the current counters.
func (c *LRU[K, V]) Stats() Stats {
	return Stats{
		Size:      c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Expired:   c.expired.Load(),
	}
}

// expiredLocked reports whether e is past its deadline.
// Caller must hold the lock.
func (c *LRU[K, V]) expiredLocked(e *entry[K, V]) bool {
	return !e.deadline.IsZero() && !c.now().Before(e.deadline)
}

// removeElement unlinks elem from the list and the index.
// Caller must hold the lock.
func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[K, V]).key)
}
