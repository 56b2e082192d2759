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

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/holiman/uint256"
)

// Delta is the BAT-local insert/count/capacity bookkeeping (original
// source: gdk_delta.h). batInserted marks the first unflushed insert
// position, so BATcommit/BATabort know what a crash must roll back
// (spec.md §4.6).
type Delta struct {
	Inserted uint64
	Count    uint64
	Capacity uint64
}

// BAT is the Binary Association Table descriptor (spec.md §3 "BAT").
type BAT struct {
	ID        int
	HSeqBase  OID
	Col       *Column

	CopiedToDisk bool
	DirtyFlushed bool
	DirtyDesc    bool
	Transient    bool
	Restricted   AccessMode
	Role         Role
	ShareCount   int

	Delta Delta

	heapLock sync.Mutex
	hashLock sync.RWMutex
	propLock sync.Mutex
}

// COLnew allocates a descriptor, a main heap sized for capacity *
// width(ttype), and -- if ttype is varsized -- a variable heap seeded
// via HEAPInitialize (spec.md §4.2 "COLnew").
func COLnew(hseq OID, ttype Type, capacity uint64, role Role) (*BAT, error) {
	if _, ok := Lookup(ttype); !ok {
		return nil, fmt.Errorf("gdk: unknown type %d", ttype)
	}
	col := NewColumn(ttype)
	b := &BAT{
		HSeqBase:   hseq,
		Col:        col,
		Role:       role,
		Restricted: AccessWrite,
		Transient:  role == RoleTransient,
		Delta:      Delta{Capacity: capacity},
	}
	if ttype != TypeVoid {
		width := uint64(col.Width)
		if width == 0 {
			width = 8 // varsized offsets start at 1 byte but reserve room to grow; main heap stores bytes, not items, once widths are known
		}
		h := NewHeap(0, capacity*width)
		h.SetFree(0)
		col.Heap = h
		if col.Varsized {
			vh, err := NewVarsizedHeap(0, capacity*16)
			if err != nil {
				return nil, err
			}
			col.VHeap = vh
		}
	} else {
		col.Seq = hseq
	}
	// trivial sortedness (spec.md §4.3 BATsettrivprop: count 0/1 cases)
	col.Sorted = true
	col.RevSorted = true
	col.Key = true
	col.NoNil = true
	return b, nil
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// BATdense constructs a zero-storage void BAT whose tail is the dense
// sequence [tseq, tseq+cnt) (spec.md §4.2 "BATdense").
func BATdense(hseq, tseq OID, cnt uint64) *BAT {
	col := NewColumn(TypeVoid)
	col.Seq = tseq
	col.Sorted = true
	col.RevSorted = cnt <= 1
	col.Key = true
	col.NoNil = true
	return &BAT{
		HSeqBase:   hseq,
		Col:        col,
		Restricted: AccessWrite,
		Delta:      Delta{Count: cnt, Capacity: cnt},
	}
}

// Count returns the number of rows.
func (b *BAT) Count() uint64 { return b.Delta.Count }

// BUNtoid returns the OID at heap position p for a void BAT (spec.md
// §8 Invariant: "BUNtoid(b, i) == tseqbase + i").
func (b *BAT) BUNtoid(p uint64) OID {
	if b.Col.IsVoid() {
		return b.Col.Seq + OID(p)
	}
	panic("gdk: BUNtoid called on non-void BAT without a candidate iterator")
}

// BATextend grows the heap(s); capacity is monotonically non-decreasing
// (spec.md §4.2 "BATextend").
func (b *BAT) BATextend(newcap uint64) error {
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	if newcap <= b.Delta.Capacity {
		return nil
	}
	if b.Col.Heap != nil {
		width := uint64(b.Col.Width)
		if b.Col.Varsized {
			width = currentOffsetWidth(b.Col)
		}
		if width > 0 {
			if err := b.Col.Heap.HEAPextend(newcap*width, true); err != nil {
				return fmt.Errorf("gdk: extend bat %d: %w", b.ID, err)
			}
		}
	}
	b.Delta.Capacity = newcap
	return nil
}

// BUNappend appends a single value (spec.md §4.2 "Appending"). force
// bypasses the BAT_APPEND/BAT_READ restriction check.
func (b *BAT) BUNappend(v any, force bool) error {
	return b.appendOne(v, force)
}

func (b *BAT) appendOne(v any, force bool) error {
	if !force && b.Restricted == AccessRead {
		return fmt.Errorf("gdk: append to read-only bat %d", b.ID)
	}
	if b.Delta.Count >= BUN_MAX {
		return fmt.Errorf("gdk: bat %d reached BUN_MAX", b.ID)
	}
	b.heapLock.Lock()
	defer b.heapLock.Unlock()

	if b.Delta.Count >= b.Delta.Capacity {
		newcap := b.Delta.Capacity*2 + 1
		if err := b.batExtendLocked(newcap); err != nil {
			return err
		}
	}

	if b.Col.IsVoid() {
		oid, ok := v.(OID)
		if !ok || oid != b.Col.Seq+OID(b.Delta.Count) {
			// appending a non-consecutive value to a void column
			// breaks denseness; materialize it.
			if err := b.materializeVoidLocked(); err != nil {
				return err
			}
		} else {
			b.Delta.Count++
			return nil
		}
	}

	if b.Col.Varsized {
		off, err := b.putVarLocked(v)
		if err != nil {
			return err
		}
		b.writeOffsetLocked(b.Delta.Count, off)
	} else if b.Col.Width > 0 {
		b.writeFixedLocked(b.Delta.Count, v)
	}
	b.Delta.Count++
	b.Col.InvalidateProps()
	b.DirtyDesc = true
	if b.Col.Heap != nil {
		b.Col.Heap.MarkDirty()
	}
	return nil
}

func (b *BAT) batExtendLocked(newcap uint64) error {
	if b.Col.Heap != nil {
		width := uint64(b.Col.Width)
		if b.Col.Varsized {
			width = currentOffsetWidth(b.Col)
		}
		if width > 0 {
			if err := b.Col.Heap.HEAPextend(newcap*width, true); err != nil {
				return err
			}
		}
	}
	b.Delta.Capacity = newcap
	return nil
}

// materializeVoidLocked converts a void column to a stored int/oid
// column containing its implicit sequence, used when an append would
// otherwise violate denseness.
func (b *BAT) materializeVoidLocked() error {
	seq := b.Col.Seq
	count := b.Delta.Count
	col := NewColumn(TypeOid)
	h := NewHeap(0, max64(8, (count+1)*8))
	col.Heap = h
	for i := uint64(0); i < count; i++ {
		writeFixedAt(h.Bytes(), i, 8, seq+OID(i))
	}
	h.SetFree(count * 8)
	b.Col = col
	b.Delta.Capacity = max64(b.Delta.Capacity, count+1)
	return nil
}

// BUNappendMulti vectorizes BUNappend over a slice (spec.md §4.2
// "BUNappendmulti and BATappend are vectorized").
func (b *BAT) BUNappendMulti(vs []any, force bool) error {
	for _, v := range vs {
		if err := b.appendOne(v, force); err != nil {
			return err
		}
	}
	return nil
}

// BATappend appends every row of other onto b.
func (b *BAT) BATappend(other *BAT, force bool) error {
	n := other.Count()
	for i := uint64(0); i < n; i++ {
		v, err := other.Fetch(i)
		if err != nil {
			return err
		}
		if err := b.appendOne(v, force); err != nil {
			return err
		}
	}
	return nil
}

// BUNreplace overwrites the slot at oid-hseqbase (spec.md §4.2
// "Replacing / deleting").
func (b *BAT) BUNreplace(oid OID, v any, force bool) error {
	if !force && b.Restricted != AccessWrite {
		return fmt.Errorf("gdk: replace on non-writable bat %d", b.ID)
	}
	if oid < b.HSeqBase || uint64(oid-b.HSeqBase) >= b.Delta.Count {
		return fmt.Errorf("gdk: replace out of range oid %d on bat %d", oid, b.ID)
	}
	pos := uint64(oid - b.HSeqBase)
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	if b.Col.IsVoid() {
		if err := b.materializeVoidLocked(); err != nil {
			return err
		}
	}
	if b.Col.Varsized {
		off, err := b.putVarLocked(v)
		if err != nil {
			return err
		}
		b.writeOffsetLocked(pos, off)
	} else {
		b.writeFixedLocked(pos, v)
	}
	b.Col.InvalidateProps()
	b.DirtyDesc = true
	return nil
}

// BUNdelete removes a BUN. The model has no holes: deleting anything
// but the last BUN moves the last BUN into the vacated slot, which
// breaks order properties (spec.md §4.2 "Replacing / deleting").
func (b *BAT) BUNdelete(oid OID) error {
	if b.Restricted != AccessWrite {
		return fmt.Errorf("gdk: delete on non-writable bat %d", b.ID)
	}
	if oid < b.HSeqBase || uint64(oid-b.HSeqBase) >= b.Delta.Count {
		return fmt.Errorf("gdk: delete out of range oid %d on bat %d", oid, b.ID)
	}
	pos := uint64(oid - b.HSeqBase)
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	last := b.Delta.Count - 1
	if pos != last {
		if b.Col.IsVoid() {
			if err := b.materializeVoidLocked(); err != nil {
				return err
			}
		}
		lastVal, err := b.fetchLocked(last)
		if err != nil {
			return err
		}
		if b.Col.Varsized {
			off, err := b.putVarLocked(lastVal)
			if err != nil {
				return err
			}
			b.writeOffsetLocked(pos, off)
		} else {
			b.writeFixedLocked(pos, lastVal)
		}
		b.Col.Sorted = false
		b.Col.RevSorted = false
	}
	b.Delta.Count--
	b.Col.InvalidateProps()
	b.DirtyDesc = true
	return nil
}

// ReadOffset exposes the stored varsized offset at heap position pos,
// for callers (e.g. package project) that need to share an already
// interned value into another column's vheap without re-parsing it.
func (b *BAT) ReadOffset(pos uint64) uint64 {
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	return b.readOffsetLocked(pos)
}

// AppendSharedOffset appends a row whose varsized payload already
// lives at off in a vheap b's column shares with another BAT (spec.md
// §4.4 "projecting a string column need not re-intern values that are
// already resident in a shared vheap").
func (b *BAT) AppendSharedOffset(off uint64) error {
	if b.Delta.Count >= BUN_MAX {
		return fmt.Errorf("gdk: bat %d reached BUN_MAX", b.ID)
	}
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	if b.Delta.Count >= b.Delta.Capacity {
		if err := b.batExtendLocked(b.Delta.Capacity*2 + 1); err != nil {
			return err
		}
	}
	b.writeOffsetLocked(b.Delta.Count, off)
	b.Delta.Count++
	b.Col.InvalidateProps()
	b.DirtyDesc = true
	return nil
}

// BATclear resets the BAT to empty, keeping properties' initial state
// (spec.md §4.2 "BATclear").
func (b *BAT) BATclear() {
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	b.Delta.Count = 0
	b.Delta.Inserted = 0
	if b.Col.Heap != nil {
		b.Col.Heap.SetFree(0)
	}
	b.Col.Sorted = true
	b.Col.RevSorted = true
	b.Col.Key = true
	b.Col.NoNil = true
	b.Col.Nil = false
	b.Col.Hash = nil
}

// BATsetaccess changes between read, append, write (spec.md §4.2
// "Access restriction").
func (b *BAT) BATsetaccess(mode AccessMode) {
	b.Restricted = mode
	if mode == AccessRead && b.Col.Heap != nil && b.Col.Heap.storage == StorageMalloc && !b.Transient {
		b.Col.Heap.newstorage = StorageMMap
	}
}

// Fetch returns the value at heap position p (0-based), resolving the
// void/dense case without requiring a candidate iterator.
func (b *BAT) Fetch(p uint64) (any, error) {
	b.heapLock.Lock()
	defer b.heapLock.Unlock()
	return b.fetchLocked(p)
}

func (b *BAT) fetchLocked(p uint64) (any, error) {
	if p >= b.Delta.Count {
		return nil, fmt.Errorf("gdk: fetch out of range position %d on bat %d", p, b.ID)
	}
	if b.Col.IsVoid() {
		return b.Col.Seq + OID(p), nil
	}
	if b.Col.Varsized {
		off := b.readOffsetLocked(p)
		return readVarAt(b.Col, off)
	}
	return readFixedAt(b.Col.Heap.Bytes(), p, b.Col.Width, b.Col.Type), nil
}

// isNilValue reports whether v is atom's designated nil sentinel
// (spec.md §4.10 "nil representation per atom"). Float atoms store nil
// as NaN, which never compares equal to itself, so it needs its own
// check rather than a plain Compare-against-Nil().
func isNilValue(atom Atom, v any) bool {
	switch x := v.(type) {
	case float32:
		return isNaN32(x)
	case float64:
		return math.IsNaN(x)
	case *uint256.Int:
		if nilv, ok := atom.Nil().(*uint256.Int); ok {
			return x.Cmp(nilv) == 0
		}
		return false
	case string:
		return x == ""
	default:
		return v == atom.Nil()
	}
}

// BATsort returns (sorted values, permutation-of-input, group
// boundaries) (spec.md §4.2 "Sort / order"). nilsLast places nil
// values after every non-nil value regardless of reverse; when false,
// nils sort first (spec.md §4.2 "Policy: ... nils-first or nils-last
// per flag").
func (b *BAT) BATsort(stable, reverse, nilsLast bool) (sorted []any, order []int, groups []int, err error) {
	n := int(b.Delta.Count)
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		v, ferr := b.Fetch(uint64(i))
		if ferr != nil {
			return nil, nil, nil, ferr
		}
		vals[i] = v
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	atom := MustLookup(b.Col.Type)
	less := func(i, j int) bool {
		vi, vj := vals[idx[i]], vals[idx[j]]
		ni, nj := isNilValue(atom, vi), isNilValue(atom, vj)
		if ni || nj {
			if ni && nj {
				if stable {
					return idx[i] < idx[j]
				}
				return false
			}
			if nilsLast {
				return !ni
			}
			return ni
		}
		c := atom.Compare(vi, vj)
		if c == 0 {
			if stable {
				return idx[i] < idx[j]
			}
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	}
	if stable {
		sort.SliceStable(idx, less)
	} else {
		sort.Slice(idx, less)
	}
	sorted = make([]any, n)
	order = make([]int, n)
	for i, p := range idx {
		sorted[i] = vals[p]
		order[i] = p
	}
	groups = groupBoundaries(sorted, atom)
	return sorted, order, groups, nil
}

func groupBoundaries(sorted []any, atom Atom) []int {
	if len(sorted) == 0 {
		return nil
	}
	bounds := []int{0}
	for i := 1; i < len(sorted); i++ {
		if atom.Compare(sorted[i-1], sorted[i]) != 0 {
			bounds = append(bounds, i)
		}
	}
	return bounds
}

// BATcommit sets batInserted = size and clears the dirty flag
// (spec.md §4.6 "BAT-local delta").
func (b *BAT) BATcommit(size uint64) {
	b.Delta.Inserted = size
	b.DirtyDesc = false
	if b.Col.Heap != nil {
		b.Col.Heap.dirty = false
	}
}

// BATabort restores batCount = batInserted, undoing transient inserts
// (spec.md §4.6 "BAT-local delta").
func (b *BAT) BATabort() {
	b.Delta.Count = b.Delta.Inserted
}
