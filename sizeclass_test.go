// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import "testing"

func TestClassOfBoundaries(t *testing.T) {
	cases := []struct {
		words uint64
		class int
	}{
		{1, 0},
		{8, 0},
		{9, 1},
		{16, 1},
		{17, 2},
		{512, 6},
		{513, 7},
		{1 << 20, 7},
	}
	for _, c := range cases {
		if got := classOf(c.words); got != c.class {
			t.Errorf("classOf(%d) = %d, want %d", c.words, got, c.class)
		}
	}
}

func TestClassOfMonotone(t *testing.T) {
	prev := classOf(1)
	for w := uint64(2); w <= 1024; w++ {
		cur := classOf(w)
		if cur < prev {
			t.Fatalf("classOf regressed at words=%d: %d -> %d", w, prev, cur)
		}
		prev = cur
	}
}
