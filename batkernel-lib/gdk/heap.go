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
	"os"
	"sync"
	"sync/atomic"

	"github.com/edsrzf/mmap-go"

	"github.com/batkernel/batkernel-lib/mathutil"
)

// StorageMode is a Heap's backing representation (spec.md §3 Heap
// "storage").
type StorageMode int

const (
	StorageMalloc StorageMode = iota
	StorageMMap                // shared, file-backed
	StoragePriv                // copy-on-write private mmap
	StorageExternal             // externally owned, never freed here
	StorageMMapAbs              // mmap at an absolute path
)

const pageSize = 4096

// freeBlockHeader is the 16-byte header threaded through free blocks
// (spec.md §4.1: "Free blocks are threaded through headers embedded in
// the blocks themselves").
type freeBlockHeader struct {
	size uint64
	next uint64 // offset of next free block, or noNext
}

const noNext = ^uint64(0)
const freeHeaderSize = 16

// Heap is a contiguous byte region, possibly file-backed (spec.md §3
// "Heap").
type Heap struct {
	mu sync.Mutex

	base   []byte
	mapped mmap.MMap // non-nil when storage is an mmap mode

	size uint64 // bytes allocated
	free uint64 // logical end of live bytes

	storage    StorageMode
	newstorage StorageMode

	farmID   int
	parentID int // self id when not a view; a different BAT's id when a view

	filename string
	dirty    bool
	remove   bool

	refcount int32 // atomic; final decref releases

	freeListHead uint64 // offset of first free block, or noNext
	privateBytes uint64 // prefix reserved by HEAP_initialize, never allocated
}

// NewHeap allocates an in-memory heap of the given byte size.
func NewHeap(parentID int, size uint64) *Heap {
	h := &Heap{
		base:         make([]byte, size),
		size:         size,
		storage:      StorageMalloc,
		newstorage:   StorageMalloc,
		parentID:     parentID,
		refcount:     1,
		freeListHead: noNext,
	}
	return h
}

// Fix/Unfix implement the heap's refcount discipline (spec.md §9
// "C-style refcounted heaps -> ownership discipline"): Fix bumps the
// count, Unfix decrements and, on reaching zero, releases memory and
// optionally unlinks the backing file.
func (h *Heap) Fix() *Heap {
	atomic.AddInt32(&h.refcount, 1)
	return h
}

func (h *Heap) Unfix() error {
	if atomic.AddInt32(&h.refcount, -1) > 0 {
		return nil
	}
	return h.release()
}

func (h *Heap) RefCount() int32 { return atomic.LoadInt32(&h.refcount) }

func (h *Heap) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mapped != nil {
		if err := h.mapped.Unmap(); err != nil {
			return fmt.Errorf("heap: unmap %s: %w", h.filename, err)
		}
		h.mapped = nil
	}
	h.base = nil
	if h.remove && h.filename != "" {
		if err := os.Remove(h.filename); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("heap: remove %s: %w", h.filename, err)
		}
	}
	return nil
}

// IsView reports whether this heap's bytes are owned by a different
// BAT (spec.md §3 "Views").
func (h *Heap) IsView(ownerID int) bool { return h.parentID != ownerID }

// HEAPInitialize reserves privateBytes at the head of the heap (never
// allocated from) then seeds a free-list block spanning the rest
// (spec.md §4.1 "HEAP_initialize").
func (h *Heap) HEAPInitialize(totalBytes, privateBytes uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if privateBytes > totalBytes {
		return fmt.Errorf("heap: private bytes %d exceed total %d", privateBytes, totalBytes)
	}
	if totalBytes > uint64(len(h.base)) {
		h.base = append(h.base, make([]byte, totalBytes-uint64(len(h.base)))...)
		h.size = totalBytes
	}
	h.privateBytes = privateBytes
	h.free = totalBytes
	remaining := totalBytes - privateBytes
	if remaining >= freeHeaderSize {
		h.writeFreeHeader(privateBytes, freeBlockHeader{size: remaining, next: noNext})
		h.freeListHead = privateBytes
	} else {
		h.freeListHead = noNext
	}
	return nil
}

func (h *Heap) writeFreeHeader(off uint64, hdr freeBlockHeader) {
	binary.LittleEndian.PutUint64(h.base[off:], hdr.size)
	binary.LittleEndian.PutUint64(h.base[off+8:], hdr.next)
}

func (h *Heap) readFreeHeader(off uint64) freeBlockHeader {
	return freeBlockHeader{
		size: binary.LittleEndian.Uint64(h.base[off:]),
		next: binary.LittleEndian.Uint64(h.base[off+8:]),
	}
}

// align rounds n up to the next multiple of a, or of 8 when a is 0 (spec.md §4.1:
// "aligned to 8 bytes (or the type-declared alignment)").
func align(n, a uint64) uint64 {
	if a == 0 {
		a = 8
	}
	return (n + a - 1) / a * a
}

// HEAPMalloc allocates a variable-sized block, extending the heap by
// doubling (up to the next pagesize) when the free list is exhausted
// (spec.md §4.1 "HEAP_malloc").
func (h *Heap) HEAPMalloc(nbytes, alignment uint64) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	want := align(nbytes, alignment) + freeHeaderSize
	off, ok := h.firstFit(want)
	if !ok {
		if err := h.growLocked(want); err != nil {
			return 0, err
		}
		off, ok = h.firstFit(want)
		if !ok {
			return 0, fmt.Errorf("heap: allocation of %d bytes failed after grow", nbytes)
		}
	}
	h.dirty = true
	return off + freeHeaderSize, nil
}

// firstFit walks the free list and splits the first block large
// enough to satisfy want bytes (header included).
func (h *Heap) firstFit(want uint64) (uint64, bool) {
	var prev uint64 = noNext
	cur := h.freeListHead
	for cur != noNext {
		blk := h.readFreeHeader(cur)
		if blk.size >= want {
			remaining := blk.size - want
			next := blk.next
			if remaining >= freeHeaderSize*2 {
				newFree := cur + want
				h.writeFreeHeader(newFree, freeBlockHeader{size: remaining, next: next})
				next = newFree
			} else {
				want = blk.size // absorb the slack into this allocation
			}
			if prev == noNext {
				h.freeListHead = next
			} else {
				ph := h.readFreeHeader(prev)
				ph.next = next
				h.writeFreeHeader(prev, ph)
			}
			h.writeFreeHeader(cur, freeBlockHeader{size: want, next: noNext}) // allocated-block bookkeeping
			return cur, true
		}
		prev = cur
		cur = blk.next
	}
	return 0, false
}

// growLocked doubles the heap up to the next pagesize and links the
// new region onto the free list (spec.md §4.1 "extends the heap by
// doubling up to the next pagesize").
func (h *Heap) growLocked(minExtra uint64) error {
	cur := uint64(len(h.base))
	doubled, overflow := mathutil.SafeMul(cur, 2)
	if overflow {
		doubled = cur
	}
	next := doubled
	withExtra, overflow := mathutil.SafeAdd(cur, minExtra)
	if overflow {
		return fmt.Errorf("heap: grow request overflows uint64 (cur=%d extra=%d)", cur, minExtra)
	}
	if next < withExtra {
		next = withExtra
	}
	next = align(next, pageSize)
	grown := make([]byte, next-cur)
	h.base = append(h.base, grown...)
	h.size = next
	h.writeFreeHeader(cur, freeBlockHeader{size: next - cur, next: h.freeListHead})
	h.freeListHead = cur
	return nil
}

// HEAPFree returns the block at offset to the free list (spec.md §4.1
// "HEAP_free").
func (h *Heap) HEAPFree(offset uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	blkOff := offset - freeHeaderSize
	blk := h.readFreeHeader(blkOff)
	blk.next = h.freeListHead
	h.writeFreeHeader(blkOff, blk)
	h.freeListHead = blkOff
	h.dirty = true
}

// HEAPextend grows the heap to newsize, switching storage per
// newstorage if requested (spec.md §4.1 "Extend"). No pointer derived
// before the call survives it.
func (h *Heap) HEAPextend(newsize uint64, mayshare bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if newsize <= uint64(len(h.base)) {
		return nil
	}
	switch h.storage {
	case StorageMalloc:
		grown := make([]byte, newsize-uint64(len(h.base)))
		h.base = append(h.base, grown...)
	case StorageMMap, StoragePriv, StorageMMapAbs:
		if h.filename == "" {
			return fmt.Errorf("heap: extend file-backed heap with no filename")
		}
		if err := h.remapLocked(newsize); err != nil {
			return err
		}
	default:
		return fmt.Errorf("heap: cannot extend storage mode %d", h.storage)
	}
	h.size = newsize
	if h.newstorage != h.storage {
		h.storage = h.newstorage
	}
	return nil
}

func (h *Heap) remapLocked(newsize uint64) error {
	if h.mapped != nil {
		if err := h.mapped.Unmap(); err != nil {
			return fmt.Errorf("heap: unmap during extend: %w", err)
		}
	}
	f, err := os.OpenFile(h.filename, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("heap: open %s: %w", h.filename, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(newsize)); err != nil {
		return fmt.Errorf("heap: truncate %s: %w", h.filename, err)
	}
	flags := mmap.RDWR
	m, err := mmap.MapRegion(f, int(newsize), flags, 0, 0)
	if err != nil {
		return fmt.Errorf("heap: mmap %s: %w", h.filename, err)
	}
	h.mapped = m
	h.base = m
	return nil
}

// HEAPsave writes h.free bytes to filename (spec.md §4.1 "Save /
// load"). Failure leaves the prior on-disk file untouched.
func (h *Heap) HEAPsave(filename string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, h.base[:h.free], 0o644); err != nil {
		return fmt.Errorf("heap: save %s: %w", filename, err)
	}
	f, err := os.OpenFile(tmp, os.O_RDWR, 0o644)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("heap: commit save %s: %w", filename, err)
	}
	h.filename = filename
	h.dirty = false
	return nil
}

// HEAPload reads filename into a fresh in-memory slice, setting free to
// the file's length; the file is not mapped (spec.md §4.1 "Save /
// load"). On failure returns a zero-filled heap and an error.
func HEAPload(parentID int, filename string, sizeHint uint64, writable bool) (*Heap, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return NewHeap(parentID, sizeHint), fmt.Errorf("heap: load %s: %w", filename, err)
	}
	h := &Heap{
		parentID:     parentID,
		filename:     filename,
		free:         uint64(len(data)),
		refcount:     1,
		freeListHead: noNext,
	}
	size := uint64(len(data))
	if sizeHint > size {
		size = align(sizeHint, pageSize)
	}
	h.base = make([]byte, size)
	copy(h.base, data)
	h.size = size
	if writable {
		h.storage = StorageMMap
		h.newstorage = StorageMMap
	} else {
		h.storage = StoragePriv
		h.newstorage = StoragePriv
	}
	return h, nil
}

func (h *Heap) Free() uint64 { return h.free }
func (h *Heap) Size() uint64 { return h.size }
func (h *Heap) Bytes() []byte {
	return h.base
}
func (h *Heap) SetFree(n uint64) { h.free = n }
func (h *Heap) Dirty() bool      { return h.dirty }
func (h *Heap) MarkDirty()       { h.dirty = true }
func (h *Heap) Filename() string { return h.filename }
