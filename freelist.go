// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import "sync"

// freeList is one size class's singly-linked LIFO of free blocks, guarded
// by its own lock. head is the arena offset of the first free block in the
// list, or 0 if the list is empty.
//
// Each class gets its own independent lock rather than one lock for the
// whole heap: insertion and head-removal are O(1) and dominate the common
// case, while the only O(n) operation, remove, only runs during coalescing,
// which already costs O(neighbors) regardless of list implementation.
type freeList struct {
	mu   sync.Mutex
	head uint64
}

// push links off onto the head of the list. The caller must hold l.mu and
// must already have written off's boundary tags as free.
func (l *freeList) push(mem []byte, off uint64) {
	writeNext(mem, off, l.head)
	l.head = off
}

// remove splices off out of the list if present, reporting whether it was
// found. A miss means a concurrent coalesce elsewhere already claimed off;
// the caller must treat that as "skip", not an error. List membership,
// not a per-block flag, is what serializes a double coalesce against the
// same neighbor.
func (l *freeList) remove(mem []byte, off uint64) bool {
	if l.head == off {
		l.head = readNext(mem, off)
		return true
	}

	prev := l.head
	for prev != 0 {
		next := readNext(mem, prev)
		if next == off {
			writeNext(mem, prev, readNext(mem, off))
			return true
		}
		prev = next
	}
	return false
}

// popFirstFit returns the first block in the list with size >= words,
// unlinking it. No ordering invariant is kept on the list otherwise.
func (l *freeList) popFirstFit(mem []byte, words uint64) (uint64, bool) {
	prev := uint64(0)
	cur := l.head
	for cur != 0 {
		curWords, _ := readHeaderTag(mem, cur)
		if curWords >= words {
			next := readNext(mem, cur)
			if prev == 0 {
				l.head = next
			} else {
				writeNext(mem, prev, next)
			}
			return cur, true
		}
		prev = cur
		cur = readNext(mem, cur)
	}
	return 0, false
}

// popBatch unlinks up to n blocks from the head, for a thread cache's
// underflow refill.
func (l *freeList) popBatch(mem []byte, n int) []uint64 {
	var out []uint64
	cur := l.head
	for cur != 0 && len(out) < n {
		out = append(out, cur)
		cur = readNext(mem, cur)
	}
	l.head = cur
	return out
}
