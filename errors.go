// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is the sentinel matched by errors.Is against any
// *OutOfMemoryError returned by Heap.Allocate.
var ErrOutOfMemory = errors.New("segalloc: out of memory")

// OutOfMemoryError reports that neither the segregated free lists nor the
// arena's uninitialized tail could satisfy an allocation request. It
// carries the failed request size and arena capacity alongside errors.Is
// support against ErrOutOfMemory.
type OutOfMemoryError struct {
	Requested uint32
	Capacity  uint64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("segalloc: out of memory: requested %d bytes, arena capacity %d bytes", e.Requested, e.Capacity)
}

func (e *OutOfMemoryError) Is(target error) bool { return target == ErrOutOfMemory }

// VerifyError reports a heap-consistency check failure found by
// Heap.Verify. Corruption is otherwise undetected at runtime by contract;
// Verify is a debug-only aid, not part of the hot path.
type VerifyError struct {
	Offset uint64
	Reason string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("segalloc: corruption at offset %d: %s", e.Offset, e.Reason)
}
