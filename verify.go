// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

// BlockInfo describes one block as seen by Heap.Walk: its arena-relative
// header offset, its payload size in words, and whether it is currently
// allocated.
type BlockInfo struct {
	Offset    uint64
	Words     uint64
	Allocated bool
}

// Walk visits every block from the arena's base to the high-water mark,
// in address order, calling fn for each. It stops early if fn returns
// false. Like Verify, this is a debug-only aid (spec.md's "show(base)")
// and not part of the allocator's contract; it performs no locking of
// its own, so callers driving it concurrently with Allocate/Deallocate
// may observe a torn snapshot.
func (h *Heap) Walk(fn func(BlockInfo) bool) {
	mem := h.arena.mem
	hw := h.arena.highWater.Load()
	for off := uint64(arenaReserve); off < hw; {
		words, allocated := readHeaderTag(mem, off)
		if words == 0 {
			return
		}
		if !fn(BlockInfo{Offset: off, Words: words, Allocated: allocated}) {
			return
		}
		off = nextHeaderOffset(off, words)
	}
}

// Verify walks the whole block list from the arena's base and checks the
// boundary-tag invariants a correct heap must maintain at every instant no
// operation is in flight: header/footer agreement, non-overlapping,
// monotone-forward traversal terminating exactly at the high-water mark,
// and that every free block is either linked into a segregated free list
// or held by a Cache still registered with h. A block that appears in more
// than one list or cache is not detected. It is a debug-only aid — not
// part of the allocator's contract — meant to be called between
// operations, e.g. after joining a batch of concurrent workers in a test,
// not concurrently with Allocate/Deallocate.
//
// Blocks held in a live Cache are free by their boundary tags but absent
// from every free list; Verify accepts them as valid free blocks. It does
// not check the "no two adjacent free blocks" maximal-coalescing property,
// which does not hold in general while thread caches are in use (see
// Heap.CoalesceCaches).
func (h *Heap) Verify() error {
	mem := h.arena.mem
	hw := h.arena.highWater.Load()

	free := h.freeListMembership()

	off := uint64(arenaReserve)
	for off < hw {
		words, allocated := readHeaderTag(mem, off)
		if words == 0 {
			return &VerifyError{Offset: off, Reason: "zero-sized block before high-water mark"}
		}

		fOff := footerOffset(off, words)
		if fOff+footerSize > hw {
			return &VerifyError{Offset: off, Reason: "block footer runs past high-water mark"}
		}

		fWords, fAllocated := readFooterTag(mem, fOff)
		if fWords != words {
			return &VerifyError{Offset: off, Reason: "header.size != footer.size"}
		}
		if fAllocated != allocated {
			return &VerifyError{Offset: off, Reason: "header.allocated != footer.allocated"}
		}

		if !allocated && !free[off] {
			return &VerifyError{Offset: off, Reason: "free block absent from every segregated free list"}
		}

		off = nextHeaderOffset(off, words)
	}

	if off != hw {
		return &VerifyError{Offset: off, Reason: "traversal overshot the high-water mark"}
	}

	return nil
}

// freeListMembership snapshots every class's list, and every registered
// cache's stacks, into a membership set, locking each class and each cache
// in turn. It is not a single atomic snapshot of the
// whole heap — Verify is a debug aid for quiescent periods, not a tool
// meant to race live mutation.
func (h *Heap) freeListMembership() map[uint64]bool {
	mem := h.arena.mem
	free := make(map[uint64]bool)
	for i := range h.classes {
		fl := &h.classes[i]
		fl.mu.Lock()
		for cur := fl.head; cur != 0; cur = readNext(mem, cur) {
			free[cur] = true
		}
		fl.mu.Unlock()
	}
	h.caches.Range(func(_ uint64, c *Cache) bool {
		c.mu.Lock()
		for _, s := range c.stacks {
			for _, off := range s {
				free[off] = true
			}
		}
		c.mu.Unlock()
		return true
	})
	return free
}
