// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package segalloc

import "math"

// numSizeClasses is the number of segregated free-list buckets.
const numSizeClasses = 8

// sizeClassLimits are the class upper bounds in words, each class holding
// blocks whose word count is greater than the previous limit and at most
// its own. The last class is unbounded and catches every oversized block.
var sizeClassLimits = [numSizeClasses]uint64{8, 16, 32, 64, 128, 256, 512, math.MaxUint64}

// classOf returns the smallest class index i with words <= limits[i].
func classOf(words uint64) int {
	for i, limit := range sizeClassLimits {
		if words <= limit {
			return i
		}
	}
	return numSizeClasses - 1
}
