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

import "fmt"

// BATassertProps recomputes every cached property from the live data
// and reports the first mismatch against the cached flags (spec.md
// §4.3 "BATassertProps"). It is a debug-build validator, not part of
// the hot append/replace path.
func BATassertProps(b *BAT) error {
	n := b.Delta.Count
	if n == 0 {
		if !b.Col.Sorted || !b.Col.RevSorted || !b.Col.Key || !b.Col.NoNil {
			return fmt.Errorf("gdk: assertProps: empty bat %d must be sorted/revsorted/key/nonil", b.ID)
		}
		return nil
	}
	if b.Col.IsVoid() {
		if !b.Col.Sorted || !b.Col.Key {
			return fmt.Errorf("gdk: assertProps: void bat %d must be sorted and key", b.ID)
		}
		return nil
	}

	atom := MustLookup(b.Col.Type)
	seen := make(map[string]uint64, n)
	sorted, revSorted, key, noNil, anyNil := true, true, true, true, false

	var prev any
	for i := uint64(0); i < n; i++ {
		v, err := b.Fetch(i)
		if err != nil {
			return fmt.Errorf("gdk: assertProps: fetch %d: %w", i, err)
		}
		if isNilValue(atom, v) {
			anyNil = true
			noNil = false
		}
		fp := fingerprint(atom, v)
		if prevPos, dup := seen[fp]; dup {
			key = false
			b.Col.NoKey = [2]OID{b.HSeqBase + OID(prevPos), b.HSeqBase + OID(i)}
		} else {
			seen[fp] = i
		}
		if i > 0 {
			c := atom.Compare(prev, v)
			if c > 0 {
				sorted = false
				if b.Col.NoSorted == OIDNil {
					b.Col.NoSorted = b.HSeqBase + OID(i)
				}
			}
			if c < 0 {
				revSorted = false
				if b.Col.NoRevSorted == OIDNil {
					b.Col.NoRevSorted = b.HSeqBase + OID(i)
				}
			}
		}
		prev = v
	}

	if b.Col.Sorted && !sorted {
		return fmt.Errorf("gdk: assertProps: bat %d cached Sorted=true but data is not sorted", b.ID)
	}
	if b.Col.RevSorted && !revSorted {
		return fmt.Errorf("gdk: assertProps: bat %d cached RevSorted=true but data is not revsorted", b.ID)
	}
	if b.Col.Key && !key {
		return fmt.Errorf("gdk: assertProps: bat %d cached Key=true but duplicates exist", b.ID)
	}
	if b.Col.NoNil && anyNil {
		return fmt.Errorf("gdk: assertProps: bat %d cached NoNil=true but nils exist", b.ID)
	}
	if !b.Col.Nil && anyNil {
		return fmt.Errorf("gdk: assertProps: bat %d cached Nil=false but nils exist", b.ID)
	}
	return nil
}

// fingerprint turns a value into a map key for duplicate detection
// without requiring the atom's go-type to be comparable (e.g. *uint256.Int).
func fingerprint(atom Atom, v any) string {
	return atom.Format(v)
}
