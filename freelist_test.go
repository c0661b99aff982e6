// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import "testing"

// layoutBlocks writes n independent, non-adjacent free blocks of the
// given sizes into mem at well-separated offsets and returns their header
// offsets, purely for exercising freeList in isolation from Heap/Arena.
func layoutBlocks(mem []byte, sizes []uint64) []uint64 {
	offs := make([]uint64, len(sizes))
	off := uint64(arenaReserve)
	for i, words := range sizes {
		writeBlock(mem, off, words, false, 0)
		offs[i] = off
		off = nextHeaderOffset(off, words) + 64 // slack so blocks never touch
	}
	return offs
}

func TestFreeListPushIsLIFO(t *testing.T) {
	mem := make([]byte, 4096)
	offs := layoutBlocks(mem, []uint64{4, 4, 4})

	var fl freeList
	for _, off := range offs {
		fl.push(mem, off)
	}

	for i := len(offs) - 1; i >= 0; i-- {
		if fl.head != offs[i] {
			t.Fatalf("head = %d, want %d (LIFO order)", fl.head, offs[i])
		}
		fl.head = readNext(mem, fl.head)
	}
}

func TestFreeListRemoveHeadAndTail(t *testing.T) {
	mem := make([]byte, 4096)
	offs := layoutBlocks(mem, []uint64{4, 4, 4})

	var fl freeList
	for _, off := range offs {
		fl.push(mem, off)
	}

	if !fl.remove(mem, offs[2]) {
		t.Fatal("remove(head) reported not found")
	}
	if fl.remove(mem, offs[2]) {
		t.Fatal("remove(already-removed) reported found")
	}
	if !fl.remove(mem, offs[0]) {
		t.Fatal("remove(tail-of-remaining-list) reported not found")
	}
	if fl.head != offs[1] {
		t.Fatalf("head after removals = %d, want %d", fl.head, offs[1])
	}
}

func TestFreeListPopFirstFit(t *testing.T) {
	mem := make([]byte, 4096)
	offs := layoutBlocks(mem, []uint64{4, 32, 8})

	var fl freeList
	for _, off := range offs {
		fl.push(mem, off)
	}

	got, ok := fl.popFirstFit(mem, 8)
	if !ok {
		t.Fatal("popFirstFit found nothing")
	}
	if got != offs[2] {
		t.Fatalf("popFirstFit(8) = %d, want the 8-word head block at %d", got, offs[2])
	}

	_, ok = fl.popFirstFit(mem, 1000)
	if ok {
		t.Fatal("popFirstFit(1000) unexpectedly succeeded")
	}
}

func TestFreeListPopBatch(t *testing.T) {
	mem := make([]byte, 4096)
	offs := layoutBlocks(mem, []uint64{4, 4, 4, 4})

	var fl freeList
	for _, off := range offs {
		fl.push(mem, off)
	}

	batch := fl.popBatch(mem, 2)
	if len(batch) != 2 {
		t.Fatalf("popBatch(2) returned %d blocks, want 2", len(batch))
	}
	if batch[0] != offs[3] || batch[1] != offs[2] {
		t.Fatalf("popBatch returned %v, want head-first order [%d %d]", batch, offs[3], offs[2])
	}
	if fl.head != offs[1] {
		t.Fatalf("head after popBatch = %d, want %d", fl.head, offs[1])
	}
}
