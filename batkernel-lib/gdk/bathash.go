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

package gdk

import "github.com/batkernel/batkernel-lib/gdk/hash"

// mixerFor picks the hash package's type-specialized mixer when the
// tail column's Go representation matches one (spec.md §4.7
// "type-specialized mixers: fixed-width primitives use a multi-shift
// XOR, varsized types use murmur3"), falling back to the atom's own
// Hash method for representations the package mixers don't cover
// (oid, bool, float, hge, the temporal atoms, uuid).
func (b *BAT) mixerFor(atom Atom) func(a any) uint64 {
	if b.Col.Varsized {
		return hash.StringMixer()
	}
	switch b.Col.Type {
	case TypeBte, TypeSht, TypeInt, TypeLng:
		return hash.FixedMixer()
	default:
		return atom.Hash
	}
}

// BAThash returns b's hash index over the tail column, building it
// lazily iff none exists yet, under the bat's hash lock taken
// exclusive, and caching the result on the column (spec.md §4.7
// "BAThash(b): builds a hash iff none exists, under the bat's hash
// rwlock taken exclusive").
func (b *BAT) BAThash() (*hash.Index, error) {
	b.hashLock.RLock()
	if idx, ok := b.Col.Hash.(*hash.Index); ok && idx != nil {
		b.hashLock.RUnlock()
		return idx, nil
	}
	b.hashLock.RUnlock()

	b.hashLock.Lock()
	defer b.hashLock.Unlock()
	if idx, ok := b.Col.Hash.(*hash.Index); ok && idx != nil {
		return idx, nil
	}
	atom := MustLookup(b.Col.Type)
	n := b.Delta.Count
	idx := hash.Rebuild(n, b.mixerFor(atom), func(i uint64) any {
		v, err := b.Fetch(i)
		if err != nil {
			// i < n is always in range; Fetch can't fail here.
			panic(err)
		}
		return v
	})
	b.Col.Hash = idx
	return idx, nil
}

// HASHdestroy drops the cached hash index, forcing the next BAThash
// call to rebuild (spec.md §4.7 "HASHdestroy").
func (b *BAT) HASHdestroy() {
	b.hashLock.Lock()
	defer b.hashLock.Unlock()
	b.Col.Hash = nil
}
