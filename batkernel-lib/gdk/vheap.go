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
	"encoding/binary"
	"fmt"
)

// reservedVHeapPrefix is the prefix HEAPInitialize reserves at the head
// of a fresh variable heap (spec.md §4.1 "privateBytes"): offset 0 is
// never a legal string position, so it can double as a nil marker.
const reservedVHeapPrefix = 8

// NewVarsizedHeap allocates and initializes a variable heap sized for
// at least minSize bytes, reserving reservedVHeapPrefix at its head.
// Shared by COLnew and the BBP loader (bbp.defaultLoader) so a
// reconstructed column gets the same heap shape as a freshly created
// one (spec.md §4.1 "HEAP_initialize").
func NewVarsizedHeap(parentID int, minSize uint64) (*Heap, error) {
	vh := NewHeap(parentID, 0)
	if err := vh.HEAPInitialize(max64(4096, minSize), reservedVHeapPrefix); err != nil {
		return nil, err
	}
	return vh, nil
}

// offwidthKey indexes the current offset-class (1, 2, 4 or 8 bytes)
// inside Column.Props (spec.md §4.4 "GDKupgradevarheap ... 1/2/4/8-byte
// offset width upgrades").
const offwidthKey = "offwidth"

func currentOffsetWidth(col *Column) uint64 {
	if w, ok := col.Props[offwidthKey].(uint64); ok {
		return w
	}
	return 1
}

// SetOffsetWidth seeds col's stored-offset width class directly,
// without replaying every append. The BBP loader uses this to restore
// a reloaded varsized column's width bucket from the byte length of
// its recovered main heap (spec.md §6 "BBP.dir line format").
func (c *Column) SetOffsetWidth(w uint64) {
	if w == 0 {
		w = 1
	}
	c.Props[offwidthKey] = w
}

func widthFor(maxOffset uint64) uint64 {
	switch {
	case maxOffset < 1<<8:
		return 1
	case maxOffset < 1<<16:
		return 2
	case maxOffset < 1<<32:
		return 4
	default:
		return 8
	}
}

// readOffsetLocked reads the stored offset at item position pos,
// resolving it against the column's current offset-width class.
func (b *BAT) readOffsetLocked(pos uint64) uint64 {
	width := currentOffsetWidth(b.Col)
	buf := b.Col.Heap.Bytes()
	off := pos * width
	switch width {
	case 1:
		return uint64(buf[off])
	case 2:
		return uint64(binary.LittleEndian.Uint16(buf[off:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf[off:]))
	default:
		return binary.LittleEndian.Uint64(buf[off:])
	}
}

// writeOffsetLocked stores off at item position pos, first upgrading
// the offset-width class in place if off no longer fits the current
// class (spec.md §4.4 "GDKupgradevarheap").
func (b *BAT) writeOffsetLocked(pos, off uint64) {
	width := currentOffsetWidth(b.Col)
	need := widthFor(off)
	if need > width {
		b.upgradeOffsetWidthLocked(need)
		width = need
	}
	buf := b.Col.Heap.Bytes()
	at := pos * width
	switch width {
	case 1:
		buf[at] = byte(off)
	case 2:
		binary.LittleEndian.PutUint16(buf[at:], uint16(off))
	case 4:
		binary.LittleEndian.PutUint32(buf[at:], uint32(off))
	default:
		binary.LittleEndian.PutUint64(buf[at:], off)
	}
	end := at + width
	if n := b.Delta.Count * width; n > end {
		end = n
	}
	if end > b.Col.Heap.Free() {
		b.Col.Heap.SetFree(end)
	}
}

// upgradeOffsetWidthLocked rewrites every already-stored offset from
// the old width to newWidth, growing the main heap if the wider
// encoding no longer fits in the existing allocation.
func (b *BAT) upgradeOffsetWidthLocked(newWidth uint64) {
	old := currentOffsetWidth(b.Col)
	if newWidth <= old {
		return
	}
	n := b.Delta.Count
	offsets := make([]uint64, n)
	src := b.Col.Heap.Bytes()
	for i := uint64(0); i < n; i++ {
		at := i * old
		switch old {
		case 1:
			offsets[i] = uint64(src[at])
		case 2:
			offsets[i] = uint64(binary.LittleEndian.Uint16(src[at:]))
		case 4:
			offsets[i] = uint64(binary.LittleEndian.Uint32(src[at:]))
		default:
			offsets[i] = binary.LittleEndian.Uint64(src[at:])
		}
	}
	needBytes := b.Delta.Capacity * newWidth
	if needBytes > uint64(len(b.Col.Heap.Bytes())) {
		_ = b.Col.Heap.HEAPextend(needBytes, true)
	}
	dst := b.Col.Heap.Bytes()
	for i, off := range offsets {
		at := uint64(i) * newWidth
		switch newWidth {
		case 1:
			dst[at] = byte(off)
		case 2:
			binary.LittleEndian.PutUint16(dst[at:], uint16(off))
		case 4:
			binary.LittleEndian.PutUint32(dst[at:], uint32(off))
		default:
			binary.LittleEndian.PutUint64(dst[at:], off)
		}
	}
	b.Col.Props[offwidthKey] = newWidth
}

// writeFixedLocked encodes v at item position pos in the main heap,
// growing the backing slice first if the current allocation is too
// small (e.g. after a void->stored materialization).
func (b *BAT) writeFixedLocked(pos uint64, v any) {
	width := b.Col.Width
	need := (pos + 1) * uint64(width)
	if need > uint64(len(b.Col.Heap.Bytes())) {
		_ = b.Col.Heap.HEAPextend(need, true)
	}
	writeFixedAt(b.Col.Heap.Bytes(), pos, width, v)
	if need > b.Col.Heap.Free() {
		b.Col.Heap.SetFree(need)
	}
}

// putVarLocked interns a value into the column's variable heap,
// returning its offset. For strings this deduplicates via an in-memory
// dictionary keyed on content (spec.md §4.4 "string-trick": "identical
// strings share one vheap slot").
func (b *BAT) putVarLocked(v any) (uint64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("gdk: putVar: unsupported varsized go-type %T", v)
	}
	dict, _ := b.Col.Props["vdict"].(map[string]uint64)
	if dict == nil {
		dict = map[string]uint64{}
		b.Col.Props["vdict"] = dict
	}
	if off, ok := dict[s]; ok {
		return off, nil
	}
	vh := b.Col.VHeap
	if vh == nil {
		vh = NewHeap(0, 0)
		if err := vh.HEAPInitialize(4096, reservedVHeapPrefix); err != nil {
			return 0, err
		}
		b.Col.VHeap = vh
	}
	off, err := vh.HEAPMalloc(uint64(len(s)+1), 1)
	if err != nil {
		return 0, fmt.Errorf("gdk: intern string: %w", err)
	}
	buf := vh.Bytes()
	copy(buf[off:], s)
	buf[off+uint64(len(s))] = 0
	if off+uint64(len(s))+1 > vh.Free() {
		vh.SetFree(off + uint64(len(s)) + 1)
	}
	vh.MarkDirty()
	dict[s] = off
	return off, nil
}

// readVarAt reads the nil-terminated string stored at off in col's
// variable heap.
func readVarAt(col *Column, off uint64) (any, error) {
	if col.VHeap == nil {
		return nil, fmt.Errorf("gdk: read varsized value: column has no vheap")
	}
	buf := col.VHeap.Bytes()
	if off >= uint64(len(buf)) {
		return nil, fmt.Errorf("gdk: varsized offset %d out of range", off)
	}
	end := off
	for end < uint64(len(buf)) && buf[end] != 0 {
		end++
	}
	return string(buf[off:end]), nil
}

// ShareVHeap attaches other's variable heap to b's column, bumping its
// refcount instead of copying bytes -- the mechanism BATprojectchain
// relies on to keep a chain of string projections cheap (spec.md §4.4
// "Sharing (the 'string trick')").
func (c *Column) ShareVHeap(other *Column) {
	if other.VHeap == nil {
		return
	}
	c.VHeap = other.VHeap.Fix()
}
