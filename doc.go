// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package segalloc implements a concurrent dynamic memory allocator over a
// single, fixed-size, contiguous byte arena.
//
// The design is a boundary-tag heap (adjacent blocks carry a header and a
// footer so either neighbor can be located in O(1)) combined with
// segregated free lists keyed by size class, each guarded by its own lock,
// plus an optional per-requester thread cache that services the common
// allocate/free-same-size-repeatedly workload without taking the shared
// free-list locks.
//
// A zero Heap is not usable; construct one with New. All exported methods
// on *Heap are safe for concurrent use by multiple goroutines, except that
// a *Cache returned by Heap.NewCache is meant to be used by a single
// goroutine at a time (see the Cache docs).
package segalloc
