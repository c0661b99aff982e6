// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import "github.com/puzpuzpuz/xsync/v3"

// heapStats holds lock-free, sharded counters for heap-wide bookkeeping, so
// that observing them never contends with the per-class allocate/
// deallocate locks.
type heapStats struct {
	allocs *xsync.Counter
	frees  *xsync.Counter
	live   *xsync.Counter // live payload bytes; signed delta counter
}

func newHeapStats() *heapStats {
	return &heapStats{
		allocs: xsync.NewCounter(),
		frees:  xsync.NewCounter(),
		live:   xsync.NewCounter(),
	}
}

func (s *heapStats) addAlloc(words uint64) {
	s.allocs.Add(1)
	s.live.Add(int64(words) * wordSize)
}

func (s *heapStats) addFree(words uint64) {
	s.frees.Add(1)
	s.live.Add(-int64(words) * wordSize)
}

// Stats is a point-in-time snapshot of heap-wide allocation counters.
type Stats struct {
	Allocations int64
	Frees       int64
	LiveBytes   int64
}

func (s *heapStats) snapshot() Stats {
	return Stats{
		Allocations: s.allocs.Value(),
		Frees:       s.frees.Value(),
		LiveBytes:   s.live.Value(),
	}
}
