// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import (
	"sync/atomic"
	"unsafe"

	"github.com/cznic/mathutil"
)

// Heap is a concurrent dynamic memory allocator over a single fixed-size
// arena. It carves blocks from the arena's uninitialized tail, tracks free
// blocks in a ladder of segregated-by-size free lists, coalesces adjacent
// free neighbors on deallocation, and optionally fronts the free lists
// with per-requester thread caches for a lock-light fast path.
//
// A *Heap is safe for concurrent use by multiple goroutines.
type Heap struct {
	arena       *Arena
	classes     [numSizeClasses]freeList
	cacheCap    int
	caches      *xsyncMapOf
	nextCacheID atomic.Uint64
	stats       *heapStats
}

// New builds a Heap from cfg, reserving its arena immediately.
func New(cfg Config) *Heap {
	bytes := cfg.ArenaBytes
	if bytes == 0 {
		bytes = defaultArenaBytes
	}
	return &Heap{
		arena:    NewArena(bytes),
		cacheCap: cfg.ThreadCacheCapacity,
		caches:   newCacheRegistry(),
		stats:    newHeapStats(),
	}
}

// Stats returns a point-in-time snapshot of heap-wide allocation counters.
func (h *Heap) Stats() Stats { return h.stats.snapshot() }

// Allocate returns a pointer to a newly allocated region of at least bytes
// usable bytes, or an *OutOfMemoryError if the arena cannot satisfy the
// request. c may be nil to bypass the thread-cache fast path for this
// call.
func (h *Heap) Allocate(c *Cache, bytes uint32) (unsafe.Pointer, error) {
	words := wordsForBytes(bytes)
	class := classOf(words)

	if c != nil {
		off, ok := c.popFitting(class, words)
		if !ok {
			h.refillCache(c, class)
			off, ok = c.popFitting(class, words)
		}
		if ok {
			h.markAllocated(off)
			blockWords, _ := readHeaderTag(h.arena.mem, off)
			h.stats.addAlloc(blockWords)
			return h.arena.pointerAt(payloadOffset(off)), nil
		}
	}

	for cl := class; cl < numSizeClasses; cl++ {
		fl := &h.classes[cl]
		fl.mu.Lock()
		off, ok := fl.popFirstFit(h.arena.mem, words)
		if !ok {
			fl.mu.Unlock()
			continue
		}

		blockWords, _ := readHeaderTag(h.arena.mem, off)
		allocWords := blockWords
		remainder := blockWords - words
		if remainder >= overheadWords+1 {
			allocWords = words
			remOff := nextHeaderOffset(off, allocWords)
			remWords := remainder - overheadWords
			writeBlock(h.arena.mem, remOff, remWords, false, 0)
			h.insertFree(cl, remOff, remWords, fl)
		}
		writeHeaderTag(h.arena.mem, off, allocWords, true)
		writeFooterTag(h.arena.mem, footerOffset(off, allocWords), allocWords, true)
		fl.mu.Unlock()

		h.stats.addAlloc(allocWords)
		return h.arena.pointerAt(payloadOffset(off)), nil
	}

	if c != nil {
		if off, ok := h.refillFromArena(c, class, words); ok {
			h.markAllocated(off)
			h.stats.addAlloc(words)
			return h.arena.pointerAt(payloadOffset(off)), nil
		}
	}

	off, ok := h.arena.reserveFresh(words)
	if !ok {
		return nil, &OutOfMemoryError{Requested: bytes, Capacity: h.arena.Capacity()}
	}
	h.stats.addAlloc(words)
	return h.arena.pointerAt(payloadOffset(off)), nil
}

// refillCache tops up c's class stack from the global free list in one
// locked batch, amortizing lock acquisition over several future
// allocations instead of paying it on every single one.
func (h *Heap) refillCache(c *Cache, class int) {
	if h.cacheCap <= 0 || len(c.stacks[class]) > 0 {
		return
	}
	fl := &h.classes[class]
	fl.mu.Lock()
	batch := fl.popBatch(h.arena.mem, mathutil.Max(h.cacheCap/2, 1))
	fl.mu.Unlock()
	if len(batch) > 0 {
		c.fill(class, batch)
	}
}

// refillFromArena is the cache-miss, global-list-miss path: carve one
// fresh block directly from the arena tail and hand it straight back,
// without populating the cache (a single fresh carve isn't worth a batch
// refill; the next few allocations will simply repeat this path until the
// free lists start accumulating returned blocks).
func (h *Heap) refillFromArena(_ *Cache, _ int, words uint64) (uint64, bool) {
	return h.arena.reserveFresh(words)
}

func (h *Heap) markAllocated(off uint64) {
	words, _ := readHeaderTag(h.arena.mem, off)
	writeHeaderTag(h.arena.mem, off, words, true)
	writeFooterTag(h.arena.mem, footerOffset(off, words), words, true)
}

// insertFree inserts a freshly split-off remainder into the free list for
// its class. cur is the class lock the caller already holds (for the
// block being split); rc is the remainder's own class. When rc == cur the
// caller's lock already covers it. When rc < cur, the lock-ordering rule
// is ascending-by-class-index: withSecondaryClassLock releases cur,
// acquires rc, reacquires cur, pushes, and releases rc before returning,
// since rc's lock must never be taken while already holding a
// higher-indexed class lock.
func (h *Heap) insertFree(cur int, off, words uint64, curList *freeList) {
	rc := classOf(words)
	if rc == cur {
		curList.push(h.arena.mem, off)
		return
	}
	h.withSecondaryClassLock(cur, rc, curList, func(target *freeList) {
		target.push(h.arena.mem, off)
	})
}

// withSecondaryClassLock implements the heap's class-lock ordering
// discipline: locks are always acquired in ascending class-index order.
// The caller holds curList (class cur) locked on entry. If rc == cur, the
// held lock already covers the target and fn runs directly. If rc > cur, the
// secondary lock can simply be taken directly without releasing cur. If
// rc < cur, curList must be released first, then the two locks
// re-acquired in ascending order (rc, then cur), since acquiring a
// lower-indexed lock while holding a higher-indexed one risks deadlock
// against a concurrent operation going the other direction. On return the
// caller always holds cur locked again, exactly as on entry.
func (h *Heap) withSecondaryClassLock(cur, rc int, curList *freeList, fn func(target *freeList)) {
	if rc == cur {
		fn(curList)
		return
	}
	target := &h.classes[rc]
	if rc > cur {
		target.mu.Lock()
		fn(target)
		target.mu.Unlock()
		return
	}

	curList.mu.Unlock()
	target.mu.Lock()
	curList.mu.Lock()
	fn(target)
	target.mu.Unlock()
}

// Deallocate returns the block backing ptr to the heap. A nil ptr, or a
// ptr not backed by this heap's arena, is a no-op. c may be nil to bypass
// the thread-cache fast path for this call.
func (h *Heap) Deallocate(c *Cache, ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	headerOff, ok := h.arena.offsetOfPointer(ptr)
	if !ok {
		return
	}
	headerOff -= headerSize
	words, allocated := readHeaderTag(h.arena.mem, headerOff)
	if !allocated {
		return
	}

	writeHeaderTag(h.arena.mem, headerOff, words, false)
	writeFooterTag(h.arena.mem, footerOffset(headerOff, words), words, false)
	h.stats.addFree(words)

	if c != nil {
		class := classOf(words)
		if c.push(class, headerOff, h.cacheCap) {
			return
		}
		h.flushHalf(c, class)
		if c.push(class, headerOff, h.cacheCap) {
			return
		}
	}

	h.coalesceAndInsert(headerOff, words)
}

// flushHalf drains half of c's class stack back to the global free list,
// making room for the block that just overflowed it.
func (h *Heap) flushHalf(c *Cache, class int) {
	victims := c.drain(class, mathutil.Max(h.cacheCap/2, 1))
	if len(victims) == 0 {
		return
	}
	fl := &h.classes[class]
	fl.mu.Lock()
	for _, off := range victims {
		fl.push(h.arena.mem, off)
	}
	fl.mu.Unlock()
}

// coalesceAndInsert merges the block at off with its free neighbors, if
// any, and inserts the resulting (possibly larger) block into its class's
// free list. off is not linked into any free list on entry — the caller
// (Deallocate, CoalesceCaches) only just marked it free — so there is
// nothing to unlink for off itself, only for whichever neighbor gets
// absorbed. The forward neighbor is tried first, then the backward
// neighbor, each under withSecondaryClassLock's ordering discipline
// relative to off's own (possibly changing) class.
func (h *Heap) coalesceAndInsert(off, words uint64) {
	cur := classOf(words)
	curList := &h.classes[cur]
	curList.mu.Lock()

	off, words, cur, curList = h.coalesceForward(off, words, cur, curList)
	off, words, _, curList = h.coalesceBackward(off, words, cur, curList)

	writeBlock(h.arena.mem, off, words, false, 0)
	curList.push(h.arena.mem, off)
	curList.mu.Unlock()
}

// coalesceForward absorbs off's immediate successor if it is free,
// re-classifying and re-locking off under its (possibly larger) merged
// size class. The caller must hold curList (class cur) locked on entry
// and holds the returned list locked on return.
func (h *Heap) coalesceForward(off, words uint64, cur int, curList *freeList) (uint64, uint64, int, *freeList) {
	n := nextHeaderOffset(off, words)
	if !h.arena.contains(n) {
		return off, words, cur, curList
	}

	nWords, nAllocated := readHeaderTag(h.arena.mem, n)
	if nAllocated {
		return off, words, cur, curList
	}

	nClass := classOf(nWords)
	removed := false
	h.withSecondaryClassLock(cur, nClass, curList, func(target *freeList) {
		removed = target.remove(h.arena.mem, n)
		if removed {
			// Re-read the size under the neighbor's lock; the peek above
			// may be stale.
			nWords, _ = readHeaderTag(h.arena.mem, n)
		}
	})
	if !removed {
		// A concurrent coalesce already claimed the neighbor; list
		// membership, not a per-block flag, is the source of truth.
		return off, words, cur, curList
	}

	merged := words + overheadWords + nWords
	writeBlock(h.arena.mem, off, merged, false, 0)
	newClass := classOf(merged)
	curList = h.switchClassLock(cur, newClass, curList)
	return off, merged, newClass, curList
}

// coalesceBackward is coalesceForward's mirror: it absorbs off's
// immediate predecessor if free, relocating the merged block's header to
// the predecessor's offset.
func (h *Heap) coalesceBackward(off, words uint64, cur int, curList *freeList) (uint64, uint64, int, *freeList) {
	if off <= arenaReserve {
		return off, words, cur, curList
	}

	pf := prevFooterOffset(off)
	pWords, pAllocated := readFooterTag(h.arena.mem, pf)
	if pAllocated {
		return off, words, cur, curList
	}

	pHeaderOff := headerOffsetFromFooter(pf, pWords)
	pClass := classOf(pWords)
	removed := false
	h.withSecondaryClassLock(cur, pClass, curList, func(target *freeList) {
		if !target.remove(h.arena.mem, pHeaderOff) {
			return
		}
		if w, _ := readHeaderTag(h.arena.mem, pHeaderOff); w != pWords {
			// The predecessor changed size since the footer peek and no
			// longer ends at off: put it back and skip.
			target.push(h.arena.mem, pHeaderOff)
			return
		}
		removed = true
	})
	if !removed {
		return off, words, cur, curList
	}

	merged := pWords + overheadWords + words
	writeBlock(h.arena.mem, pHeaderOff, merged, false, 0)
	newClass := classOf(merged)
	curList = h.switchClassLock(cur, newClass, curList)
	return pHeaderOff, merged, newClass, curList
}

// switchClassLock moves the caller's held lock from class cur to class
// next, a no-op when they're the same class. Coalescing only ever grows a
// block, so next >= cur always; releasing cur and acquiring next directly
// (rather than going through withSecondaryClassLock's descending-order
// dance) is safe because no other lock is held at the same time.
func (h *Heap) switchClassLock(cur, next int, curList *freeList) *freeList {
	if next == cur {
		return curList
	}
	curList.mu.Unlock()
	nextList := &h.classes[next]
	nextList.mu.Lock()
	return nextList
}
