// Copyright 2024 The Batkernel Authors
// This file is part of Batkernel.
//
// Batkernel is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Batkernel is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Batkernel. If not, see <http://www.gnu.org/licenses/>.

package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func countMatches(idx *Index, v any) int {
	next := idx.Lookup(v)
	n := 0
	for {
		_, ok := next()
		if !ok {
			break
		}
		n++
	}
	return n
}

func TestInsertLookupFindsExactPosition(t *testing.T) {
	idx := New(4, FixedMixer())
	idx.Insert(0, int32(10))
	idx.Insert(1, int32(20))
	idx.Insert(2, int32(10))

	next := idx.Lookup(int32(10))
	var positions []uint64
	for {
		p, ok := next()
		if !ok {
			break
		}
		if vals := int32(10); idx.values[p] == vals {
			positions = append(positions, p)
		}
	}
	require.ElementsMatch(t, []uint64{0, 2}, positions)
}

func TestLookupMissReturnsNothing(t *testing.T) {
	idx := New(4, FixedMixer())
	idx.Insert(0, int32(1))
	require.Equal(t, 0, countMatches(idx, int32(999)))
}

// TestGrowBucketsPreservesAllEntries forces growBuckets repeatedly by
// inserting far past the initial bucket count, and checks every
// inserted value is still reachable afterward. This is a regression
// test: an earlier version of growBuckets rehashed chains without
// access to the original values and silently dropped every entry.
func TestGrowBucketsPreservesAllEntries(t *testing.T) {
	const n = 5000
	idx := New(4, FixedMixer())
	for i := 0; i < n; i++ {
		idx.Insert(uint64(i), int64(i))
	}
	for i := 0; i < n; i++ {
		found := false
		next := idx.Lookup(int64(i))
		for {
			p, ok := next()
			if !ok {
				break
			}
			if p == uint64(i) {
				found = true
				break
			}
		}
		require.True(t, found, "position %d lost after bucket growth", i)
	}
}

func TestRebuildReconstructsFromGetter(t *testing.T) {
	vals := []int32{5, 6, 7, 8}
	idx := Rebuild(uint64(len(vals)), FixedMixer(), func(i uint64) any { return vals[i] })
	require.Equal(t, 1, countMatches(idx, int32(7)))
}

func TestStringMixerHashesDeterministically(t *testing.T) {
	mixer := StringMixer()
	require.Equal(t, mixer("abc"), mixer("abc"))
	require.NotEqual(t, mixer("abc"), mixer("abd"))
}

func TestFixedMixerPanicsOnUnsupportedType(t *testing.T) {
	mixer := FixedMixer()
	require.Panics(t, func() { mixer("not a number") })
}
