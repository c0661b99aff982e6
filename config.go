// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

const (
	// defaultArenaBytes is a reasonably sized default arena, minus two
	// words of sentinel margin.
	defaultArenaBytes = 1<<30 - 2*wordSize

	// defaultThreadCacheCapacity is the default per-class thread-cache
	// stack depth.
	defaultThreadCacheCapacity = 64
)

// Config holds the tunables a Heap is built from: arena size and
// thread-cache depth. It is an explicit struct passed to New rather than
// package-level variables or environment variables, keeping New consistent
// with an explicit-config constructor style and allowing multiple
// independent heaps to coexist in one process.
//
// The size-class ladder itself (see sizeclass.go) is fixed at compile
// time rather than made configurable: it is a single canonical ladder,
// not a per-heap tunable.
type Config struct {
	// ArenaBytes is the total arena capacity. Zero selects
	// defaultArenaBytes.
	ArenaBytes uint64

	// ThreadCacheCapacity is the per-class bounded stack depth. Zero
	// disables the thread-cache fast path entirely.
	ThreadCacheCapacity int
}

// DefaultConfig returns a ~1 GiB arena and a 64-entry thread cache.
func DefaultConfig() Config {
	return Config{
		ArenaBytes:          defaultArenaBytes,
		ThreadCacheCapacity: defaultThreadCacheCapacity,
	}
}
