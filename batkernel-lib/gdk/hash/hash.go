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

// Package hash implements the bucket-chained equality index over a
// BAT's tail column (spec.md §4.7 "Hash index").
package hash

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Index is a bucket-chained hash table: nbucket buckets, each holding
// the head of a singly linked chain threaded through link (spec.md
// §4.7 "bucket array + link array").
type Index struct {
	mask    uint64 // nbucket-1, nbucket is always a power of two
	bucket  []int64
	link    []int64 // link[pos] = previous position with the same bucket, or -1
	values  []any   // values[pos] is the key stored at pos, kept to support rehashing on growth
	mixer   func(a any) uint64
	nbucket uint64
}

const noEntry = -1

// New builds an empty index sized for n elements (rounded up to the
// next power of two, min 4), using mixer to fold an atom value to a
// uint64 (spec.md §4.7 "type-specialized mixers").
func New(n uint64, mixer func(a any) uint64) *Index {
	nb := nextPow2(max(4, n))
	idx := &Index{
		nbucket: nb,
		mask:    nb - 1,
		bucket:  make([]int64, nb),
		link:    make([]int64, n),
		values:  make([]any, n),
		mixer:   mixer,
	}
	for i := range idx.bucket {
		idx.bucket[i] = noEntry
	}
	return idx
}

func max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func nextPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Insert adds position pos holding value v to the index, growing the
// bucket array first if the load factor would exceed 1 (spec.md §4.7
// "HASHgrowbucket").
func (idx *Index) Insert(pos uint64, v any) {
	if pos >= uint64(len(idx.link)) {
		idx.growLink(pos + 1)
	}
	idx.values[pos] = v
	if pos >= idx.nbucket {
		idx.growBuckets(pos + 1)
	}
	b := idx.mixer(v) & idx.mask
	idx.link[pos] = idx.bucket[b]
	idx.bucket[b] = int64(pos)
}

func (idx *Index) growLink(n uint64) {
	grown := make([]int64, nextPow2(n))
	copy(grown, idx.link)
	for i := len(idx.link); i < len(grown); i++ {
		grown[i] = noEntry
	}
	idx.link = grown
	grownVals := make([]any, len(grown))
	copy(grownVals, idx.values)
	idx.values = grownVals
}

// growBuckets doubles nbucket until it exceeds n, then rehashes every
// occupied chain (spec.md §4.7 "HASHgrowbucket: doubles the bucket
// array and rehashes").
func (idx *Index) growBuckets(n uint64) {
	newNB := idx.nbucket
	for newNB <= n {
		newNB <<= 1
	}
	old := idx.bucket
	idx.bucket = make([]int64, newNB)
	for i := range idx.bucket {
		idx.bucket[i] = noEntry
	}
	idx.nbucket = newNB
	idx.mask = newNB - 1
	for _, head := range old {
		for p := head; p != noEntry; {
			next := idx.link[p]
			b := idx.mixer(idx.values[p]) & idx.mask
			idx.link[p] = idx.bucket[b]
			idx.bucket[b] = p
			p = next
		}
	}
}

// Lookup returns an iterator-style callback: call next() repeatedly
// until ok is false to walk every position whose hashed value equals
// v's mix (callers still must compare actual values -- the hash may
// have collisions) (spec.md §4.7 "Lookup").
func (idx *Index) Lookup(v any) func() (pos uint64, ok bool) {
	b := idx.mixer(v) & idx.mask
	cur := idx.bucket[b]
	return func() (uint64, bool) {
		if cur == noEntry {
			return 0, false
		}
		p := uint64(cur)
		cur = idx.link[p]
		return p, true
	}
}

// Rebuild reconstructs the index from scratch over n elements using
// get(i) to fetch the value at position i -- the safe path after a
// bucket-array resize or a bulk load.
func Rebuild(n uint64, mixer func(a any) uint64, get func(i uint64) any) *Index {
	idx := New(n, mixer)
	for i := uint64(0); i < n; i++ {
		idx.Insert(i, get(i))
	}
	return idx
}

// FixedMixer returns a multi-shift XOR mixer for fixed-width integer
// keys folded to a uint64 (spec.md §4.7 "fixed-width types use a
// multi-shift XOR mixer").
func FixedMixer() func(a any) uint64 {
	return func(a any) uint64 {
		var x uint64
		switch v := a.(type) {
		case int8:
			x = uint64(uint8(v))
		case int16:
			x = uint64(uint16(v))
		case int32:
			x = uint64(uint32(v))
		case int64:
			x = uint64(v)
		case uint64:
			x = v
		default:
			panic(fmt.Sprintf("hash: fixed mixer: unsupported type %T", a))
		}
		x ^= x >> 33
		x *= 0xff51afd7ed558ccd
		x ^= x >> 33
		x *= 0xc4ceb9fe1a85ec53
		x ^= x >> 33
		return x
	}
}

// StringMixer hashes varsized/string keys with murmur3 (spec.md §4.7
// "varsized types use murmur3/xxhash").
func StringMixer() func(a any) uint64 {
	return func(a any) uint64 {
		s, ok := a.(string)
		if !ok {
			panic(fmt.Sprintf("hash: string mixer: unsupported type %T", a))
		}
		return murmur3.Sum64([]byte(s))
	}
}
