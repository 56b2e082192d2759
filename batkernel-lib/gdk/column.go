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

// Column is the COLrec attached to a BAT (spec.md §3 "Column
// (COLrec)").
type Column struct {
	Type     Type
	Width    int // bytes per slot; 0 for void
	Shift    uint
	Varsized bool

	Key   bool // unique
	NoNil bool
	Nil   bool

	Sorted    bool
	RevSorted bool

	NoKey       [2]OID // witness positions proving Key false
	NoSorted    OID    // witness position proving Sorted false
	NoRevSorted OID    // witness position proving RevSorted false

	Seq OID // dense OID start; OIDNil disables denseness

	Heap  *Heap
	BaseOff uint64 // offset in whole items into Heap.base

	VHeap *Heap // nil for fixed-width types

	Hash    any // *hash.Index, typed any here to avoid an import cycle with gdk/hash
	Imprints any
	OrderIdx any

	Props map[string]any
}

// NewColumn builds the initial, optimistic property state for a fresh
// column of the given type (spec.md §4.2 "Properties are initialized
// to optimistic defaults").
func NewColumn(t Type) *Column {
	a := MustLookup(t)
	shift := 0
	for w := a.Width(); w > 1; w >>= 1 {
		shift++
	}
	return &Column{
		Type:     t,
		Width:    a.Width(),
		Shift:    uint(shift),
		Varsized: a.Varsized(),
		NoNil:    false,
		Seq:      OIDNil,
		Props:    map[string]any{},
	}
}

// IsVoid reports whether this column has no backing storage and
// yields the dense sequence Seq..Seq+count-1 (spec.md §3 "Void
// column").
func (c *Column) IsVoid() bool {
	return c.Type == TypeVoid && c.Seq != OIDNil
}

// InvalidateProps conservatively clears cached properties after a
// mutation (spec.md §4.2 "On any mutation, property flags are
// invalidated conservatively").
func (c *Column) InvalidateProps() {
	c.Key = false
	c.Sorted = false
	c.RevSorted = false
	c.Nil = false
	c.NoNil = false
	c.Hash = nil
}
