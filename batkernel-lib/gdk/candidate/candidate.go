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

// Package candidate implements selection-list iteration over a BAT:
// a candidate list is a strictly ascending sequence of OIDs, realized
// in whichever of four shapes is cheapest for the selection at hand
// (spec.md §4.9 "Candidate iterators").
package candidate

import (
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/tidwall/btree"

	"github.com/batkernel/batkernel-lib/gdk"
)

// Iterator walks a candidate list in ascending order.
type Iterator interface {
	// Next returns the next OID in the list, or (0, false) when
	// exhausted.
	Next() (gdk.OID, bool)
	// Idx returns the i'th (0-based) element without advancing Next.
	Idx(i uint64) gdk.OID
	// Len reports the total number of candidates.
	Len() uint64
	// Reset rewinds Next to the start.
	Reset()
}

// Dense realizes a contiguous range [Lo, Hi) with O(1) storage
// (spec.md §4.9 "Dense: a contiguous OID range, no storage at all").
type Dense struct {
	Lo, Hi gdk.OID
	pos    uint64
}

func NewDense(lo, hi gdk.OID) *Dense { return &Dense{Lo: lo, Hi: hi} }

func (d *Dense) Len() uint64 {
	if d.Hi <= d.Lo {
		return 0
	}
	return uint64(d.Hi - d.Lo)
}
func (d *Dense) Idx(i uint64) gdk.OID { return d.Lo + gdk.OID(i) }
func (d *Dense) Next() (gdk.OID, bool) {
	if uint64(d.pos) >= d.Len() {
		return 0, false
	}
	v := d.Idx(d.pos)
	d.pos++
	return v, true
}
func (d *Dense) Reset() { d.pos = 0 }

// Materialized realizes an arbitrary, possibly-sparse set of OIDs as a
// plain sorted slice (spec.md §4.9 "Materialized: an explicit sorted
// OID array").
type Materialized struct {
	OIDs []gdk.OID
	pos  int
}

// NewMaterialized builds a Materialized candidate list, sorting and
// validating strict ascent.
func NewMaterialized(oids []gdk.OID) (*Materialized, error) {
	cp := append([]gdk.OID(nil), oids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	for i := 1; i < len(cp); i++ {
		if cp[i] == cp[i-1] {
			return nil, fmt.Errorf("candidate: duplicate oid %d in candidate list", cp[i])
		}
	}
	return &Materialized{OIDs: cp}, nil
}

func (m *Materialized) Len() uint64        { return uint64(len(m.OIDs)) }
func (m *Materialized) Idx(i uint64) gdk.OID { return m.OIDs[i] }
func (m *Materialized) Next() (gdk.OID, bool) {
	if m.pos >= len(m.OIDs) {
		return 0, false
	}
	v := m.OIDs[m.pos]
	m.pos++
	return v, true
}
func (m *Materialized) Reset() { m.pos = 0 }

// DenseWithExceptions realizes a mostly-dense range with a sparse set
// of excluded positions (spec.md §4.9 "Dense with exceptions: a range
// plus a small sorted set of excluded OIDs"), backed by tidwall/btree
// for sub-linear exception lookups.
type DenseWithExceptions struct {
	Lo, Hi     gdk.OID
	exceptions *btree.BTreeG[gdk.OID]
	pos        uint64
	cur        gdk.OID
}

func lessOID(a, b gdk.OID) bool { return a < b }

// NewDenseWithExceptions builds the range [lo,hi) minus excluded.
func NewDenseWithExceptions(lo, hi gdk.OID, excluded []gdk.OID) *DenseWithExceptions {
	tr := btree.NewBTreeG(lessOID)
	for _, e := range excluded {
		tr.Set(e)
	}
	d := &DenseWithExceptions{Lo: lo, Hi: hi, exceptions: tr}
	d.Reset()
	return d
}

func (d *DenseWithExceptions) Len() uint64 {
	if d.Hi <= d.Lo {
		return 0
	}
	return uint64(d.Hi-d.Lo) - uint64(d.exceptions.Len())
}

func (d *DenseWithExceptions) Idx(i uint64) gdk.OID {
	cand := d.Lo
	skipped := uint64(0)
	for cand < d.Hi {
		if !d.hasException(cand) {
			if skipped == i {
				return cand
			}
			skipped++
		}
		cand++
	}
	panic(fmt.Sprintf("candidate: index %d out of range (len %d)", i, d.Len()))
}

func (d *DenseWithExceptions) hasException(v gdk.OID) bool {
	_, ok := d.exceptions.Get(v)
	return ok
}

func (d *DenseWithExceptions) Next() (gdk.OID, bool) {
	for d.cur < d.Hi {
		v := d.cur
		d.cur++
		if !d.hasException(v) {
			d.pos++
			return v, true
		}
	}
	return 0, false
}

func (d *DenseWithExceptions) Reset() {
	d.cur = d.Lo
	d.pos = 0
}

// Mask realizes a candidate list as a bitmap over [Base, Base+N)
// (spec.md §4.9 "Mask: a bitstring, one bit per row in the parent
// BAT's range"), backed by RoaringBitmap for compact storage over
// sparse or clustered selections.
type Mask struct {
	Base   gdk.OID
	Bitmap *roaring.Bitmap
	iter   roaring.IntPeekable
}

// NewMask builds a mask candidate list from the set of selected OIDs,
// relative to base.
func NewMask(base gdk.OID, selected []gdk.OID) *Mask {
	bm := roaring.New()
	for _, s := range selected {
		bm.Add(uint32(s - base))
	}
	m := &Mask{Base: base, Bitmap: bm}
	m.Reset()
	return m
}

func (m *Mask) Len() uint64 { return uint64(m.Bitmap.GetCardinality()) }
func (m *Mask) Idx(i uint64) gdk.OID {
	it := m.Bitmap.Iterator()
	var cur uint32
	for n := uint64(0); n <= i; n++ {
		cur = it.Next()
	}
	return m.Base + gdk.OID(cur)
}
func (m *Mask) Next() (gdk.OID, bool) {
	if !m.iter.HasNext() {
		return 0, false
	}
	return m.Base + gdk.OID(m.iter.Next()), true
}
func (m *Mask) Reset() { m.iter = m.Bitmap.Iterator() }

// NCand returns the total candidate count, a convenience matching the
// original kernel's canditer_ncand.
func NCand(it Iterator) uint64 { return it.Len() }
