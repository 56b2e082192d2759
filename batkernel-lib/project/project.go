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

// Package project implements BAT projection: resolving a candidate
// list of OIDs against a source BAT's dense head to produce a new BAT
// over the source's tail values (spec.md §4.8 "Project/join helpers").
package project

import (
	"fmt"

	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/gdk/candidate"
)

// BATproject resolves cand against src, producing one row per
// candidate. A varsized (string) source shares its vheap with the
// result and each row copies only the stored offset; every other type
// is copied value by value through BUNappend. Dense candidate ranges
// go through the same per-row loop, and there are no per-type
// specialized copy loops (spec.md §4.8 "Project / join helpers").
func BATproject(cand candidate.Iterator, src *gdk.BAT) (*gdk.BAT, error) {
	n := cand.Len()
	out, err := gdk.COLnew(0, src.Col.Type, n, gdk.RoleTransient)
	if err != nil {
		return nil, fmt.Errorf("project: allocate result: %w", err)
	}

	if src.Col.Varsized {
		out.Col.ShareVHeap(src.Col)
	}

	for i := uint64(0); i < n; i++ {
		oid := cand.Idx(i)
		pos, err := srcPosition(src, oid)
		if err != nil {
			return nil, fmt.Errorf("project: row %d: %w", i, err)
		}
		v, err := src.Fetch(pos)
		if err != nil {
			return nil, fmt.Errorf("project: fetch source row %d: %w", pos, err)
		}
		if src.Col.Varsized {
			// the value is already resident in the shared vheap; avoid
			// re-interning it through the string dictionary.
			off := srcOffsetFor(src, pos)
			if err := out.AppendSharedOffset(off); err != nil {
				return nil, err
			}
			continue
		}
		if err := out.BUNappend(v, true); err != nil {
			return nil, fmt.Errorf("project: append row %d: %w", i, err)
		}
	}
	return out, nil
}

// BATproject2 resolves cand (L's oid domain) against two tail sources
// whose ranges abut: a row comes from r1 when its oid precedes
// r1.hseq+r1.count, else from r2 (spec.md §4.8 "BATproject2(L, R1, R2)
// returns a BAT aligned with L whose tail values come from R1 ... else
// from R2. Constraints: ... R2.hseq == R1.hseq + R1.count"). Unlike
// BATproject, values are re-interned rather than vheap-shared, since a
// single result column cannot share two distinct source vheaps.
func BATproject2(cand candidate.Iterator, r1, r2 *gdk.BAT) (*gdk.BAT, error) {
	if r1.Col.Type != r2.Col.Type {
		return nil, fmt.Errorf("project2: mismatched tail types %d and %d", r1.Col.Type, r2.Col.Type)
	}
	boundary := r1.HSeqBase + gdk.OID(r1.Count())
	if r2.HSeqBase != boundary {
		return nil, fmt.Errorf("project2: r2 head seqbase %d does not continue r1 (want %d)", r2.HSeqBase, boundary)
	}
	n := cand.Len()
	out, err := gdk.COLnew(0, r1.Col.Type, n, gdk.RoleTransient)
	if err != nil {
		return nil, fmt.Errorf("project2: allocate result: %w", err)
	}
	for i := uint64(0); i < n; i++ {
		oid := cand.Idx(i)
		src := r1
		if oid >= boundary {
			src = r2
		}
		pos, err := srcPosition(src, oid)
		if err != nil {
			return nil, fmt.Errorf("project2: row %d: %w", i, err)
		}
		v, err := src.Fetch(pos)
		if err != nil {
			return nil, fmt.Errorf("project2: fetch row %d: %w", pos, err)
		}
		if err := out.BUNappend(v, true); err != nil {
			return nil, fmt.Errorf("project2: append row %d: %w", i, err)
		}
	}
	return out, nil
}

func srcPosition(src *gdk.BAT, oid gdk.OID) (uint64, error) {
	if oid < src.HSeqBase {
		return 0, fmt.Errorf("oid %d precedes head seqbase %d", oid, src.HSeqBase)
	}
	pos := uint64(oid - src.HSeqBase)
	if pos >= src.Count() {
		return 0, fmt.Errorf("oid %d out of range (count %d)", oid, src.Count())
	}
	return pos, nil
}

func srcOffsetFor(src *gdk.BAT, pos uint64) uint64 {
	return src.ReadOffset(pos)
}

// BATprojectchain composes project(f, project(g, h)) into a single
// pass by resolving each candidate through every link before reading
// the final value once (spec.md §4.8 "BATprojectchain"). A
// single-element chain is an alias for BATproject.
func BATprojectchain(cand candidate.Iterator, chain []*gdk.BAT) (*gdk.BAT, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("project: empty chain")
	}
	if len(chain) == 1 {
		return BATproject(cand, chain[0])
	}
	n := cand.Len()
	last := chain[len(chain)-1]
	out, err := gdk.COLnew(0, last.Col.Type, n, gdk.RoleTransient)
	if err != nil {
		return nil, fmt.Errorf("project: allocate result: %w", err)
	}
	if last.Col.Varsized {
		out.Col.ShareVHeap(last.Col)
	}
	for i := uint64(0); i < n; i++ {
		oid := cand.Idx(i)
		pos, err := chainResolve(chain, oid)
		if err != nil {
			return nil, fmt.Errorf("project: chain row %d: %w", i, err)
		}
		v, err := last.Fetch(pos)
		if err != nil {
			return nil, fmt.Errorf("project: fetch chain result %d: %w", pos, err)
		}
		if last.Col.Varsized {
			if err := out.AppendSharedOffset(last.ReadOffset(pos)); err != nil {
				return nil, err
			}
			continue
		}
		if err := out.BUNappend(v, true); err != nil {
			return nil, fmt.Errorf("project: append chain row %d: %w", i, err)
		}
	}
	return out, nil
}

// chainResolve walks oid through every link's void-indexed tail in
// turn: link k maps positions to OIDs which are themselves positions
// into link k+1.
func chainResolve(chain []*gdk.BAT, oid gdk.OID) (uint64, error) {
	cur := oid
	for i := 0; i < len(chain)-1; i++ {
		pos, err := srcPosition(chain[i], cur)
		if err != nil {
			return 0, fmt.Errorf("link %d: %w", i, err)
		}
		v, err := chain[i].Fetch(pos)
		if err != nil {
			return 0, fmt.Errorf("link %d fetch: %w", i, err)
		}
		next, ok := v.(gdk.OID)
		if !ok {
			return 0, fmt.Errorf("link %d: intermediate value is not an oid", i)
		}
		cur = next
	}
	return srcPosition(chain[len(chain)-1], cur)
}
