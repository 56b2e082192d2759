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

// Package bbp is the BAT Buffer Pool: the process-wide registry that
// maps a small integer bat id to its descriptor, tracks dual
// (physical/logical) refcounts, and lazily loads/unloads heaps on
// demand (spec.md §4.5 "BBP").
package bbp

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/btree"

	"github.com/batkernel/batkernel-lib/gdk"
)

// Entry is one BBP slot: a bat descriptor plus its bookkeeping.
type Entry struct {
	ID       int
	Name     string
	Bat      *gdk.BAT
	physical int32 // BBPfix/unfix: pins the in-memory descriptor
	logical  int32 // BBPretain/release: pins the on-disk existence
	Status   string

	// Directory metadata: a snapshot of enough of the bat descriptor to
	// reconstruct it from disk (spec.md §6 "BBP.dir line format":
	// "... column type, count, capacity, heap sizes, and property
	// cache"). Refreshed from Bat whenever it is memory-resident;
	// otherwise carried over unchanged from the last LoadDir, so a cold
	// slot still has what the loader needs.
	Type       gdk.Type
	BatRole    gdk.Role
	Count      uint64
	Capacity   uint64
	HSeqBase   gdk.OID
	TSeqBase   gdk.OID // gdk.OIDNil when the column is not void
	BaseBytes  uint64
	VHeapBytes uint64
	PropsBits  uint64
}

// Property bitmask bits persisted in a BBP.dir record's
// properties_bitmap field (spec.md §6).
const (
	propSorted uint64 = 1 << iota
	propRevSorted
	propKey
	propNoNil
	propNil
)

// snapshot refreshes e's directory metadata from its resident bat
// descriptor. A no-op for a cold entry (Bat == nil), which keeps
// whatever metadata LoadDir last gave it.
func snapshot(e *Entry) {
	b := e.Bat
	if b == nil {
		return
	}
	e.Type = b.Col.Type
	e.BatRole = b.Role
	e.Count = b.Delta.Count
	e.Capacity = b.Delta.Capacity
	e.HSeqBase = b.HSeqBase
	e.TSeqBase = b.Col.Seq
	e.BaseBytes = 0
	if b.Col.Heap != nil {
		e.BaseBytes = b.Col.Heap.Free()
	}
	e.VHeapBytes = 0
	if b.Col.VHeap != nil {
		e.VHeapBytes = b.Col.VHeap.Free()
	}
	var bits uint64
	if b.Col.Sorted {
		bits |= propSorted
	}
	if b.Col.RevSorted {
		bits |= propRevSorted
	}
	if b.Col.Key {
		bits |= propKey
	}
	if b.Col.NoNil {
		bits |= propNoNil
	}
	if b.Col.Nil {
		bits |= propNil
	}
	e.PropsBits = bits
}

// Pool is one farm's worth of slots, held in a single flat slice
// indexed by bat id; the slots are not split into fixed-size pages.
type Pool struct {
	mu      sync.Mutex
	slots   []*Entry // slots[0] is never used, matching bat-id 1-based convention
	byName  *btree.BTreeG[nameKey]
	farm    *gdk.Farm
	loader  func(id int) (*gdk.BAT, error)
}

type nameKey struct {
	name string
	id   int
}

func lessName(a, b nameKey) bool { return a.name < b.name }

// New creates an empty pool rooted at farm. loader resolves a bat id
// to its descriptor when a slot is present on disk but not memory
// resident (spec.md §4.5 "lazy load on miss"). A nil loader falls back
// to the pool's own defaultLoader, which reconstructs the bat from its
// BBP.dir metadata and on-disk heap file(s); pass a non-nil loader only
// to override that behavior (e.g. in tests).
func New(farm *gdk.Farm, loader func(id int) (*gdk.BAT, error)) *Pool {
	p := &Pool{
		slots:  make([]*Entry, 1, 64),
		byName: btree.NewG(32, lessName),
		farm:   farm,
	}
	if loader != nil {
		p.loader = loader
	} else {
		p.loader = p.defaultLoader
	}
	return p
}

// defaultLoader rebuilds a *gdk.BAT from the cold slot's directory
// metadata and its on-disk heap file(s) (spec.md §4.5 "BATdescriptor
// ... on miss it reads the descriptor from the BBP directory, loads
// heaps via HEAPload"). Called from BATdescriptor, which already holds
// p.mu -- it must not try to re-acquire it.
func (p *Pool) defaultLoader(id int) (*gdk.BAT, error) {
	e := p.slots[id]
	col := gdk.NewColumn(e.Type)
	col.Sorted = e.PropsBits&propSorted != 0
	col.RevSorted = e.PropsBits&propRevSorted != 0
	col.Key = e.PropsBits&propKey != 0
	col.NoNil = e.PropsBits&propNoNil != 0
	col.Nil = e.PropsBits&propNil != 0

	b := &gdk.BAT{
		HSeqBase:   e.HSeqBase,
		Col:        col,
		Role:       e.BatRole,
		Restricted: gdk.AccessWrite,
		Transient:  e.BatRole == gdk.RoleTransient,
		Delta:      gdk.Delta{Count: e.Count, Capacity: e.Capacity},
	}

	if e.Type == gdk.TypeVoid {
		col.Seq = e.TSeqBase
		return b, nil
	}

	width := uint64(col.Width)
	if width == 0 {
		width = 8
	}
	h, err := loadHeapOrEmpty(p.farm.HeapPath(e.Name, "heap"), e.Capacity*width)
	if err != nil {
		return nil, fmt.Errorf("bbp: load heap for bat %d (%s): %w", id, e.Name, err)
	}
	col.Heap = h

	if col.Varsized {
		vh, err := loadVHeapOrEmpty(p.farm.HeapPath(e.Name, "theap"), e.Capacity*16)
		if err != nil {
			return nil, fmt.Errorf("bbp: load vheap for bat %d (%s): %w", id, e.Name, err)
		}
		col.VHeap = vh
		if e.Count > 0 && h.Free() > 0 {
			col.SetOffsetWidth(h.Free() / e.Count)
		}
	}
	return b, nil
}

// loadHeapOrEmpty loads path's main heap, or -- when a column was
// committed before it ever took a dirty write (e.g. created but never
// appended to) -- returns a fresh zero-length heap matching what
// COLnew would have allocated.
func loadHeapOrEmpty(path string, capBytes uint64) (*gdk.Heap, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			h := gdk.NewHeap(0, capBytes)
			h.SetFree(0)
			return h, nil
		}
		return nil, err
	}
	return gdk.HEAPload(0, path, capBytes, true)
}

// loadVHeapOrEmpty is loadHeapOrEmpty's variable-heap counterpart,
// falling back to NewVarsizedHeap so the reconstructed column keeps
// the same reserved-prefix shape a freshly created one would have.
func loadVHeapOrEmpty(path string, minSize uint64) (*gdk.Heap, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return gdk.NewVarsizedHeap(0, minSize)
		}
		return nil, err
	}
	return gdk.HEAPload(0, path, minSize, true)
}

// Register inserts b under name, assigning it the next free slot.
func (p *Pool) Register(name string, b *gdk.BAT) *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := len(p.slots)
	e := &Entry{ID: id, Name: name, Bat: b, Status: "loaded"}
	p.slots = append(p.slots, e)
	p.byName.ReplaceOrInsert(nameKey{name: name, id: id})
	return e
}

// BATdescriptor resolves id to a bat descriptor, loading from disk on
// a cold slot (spec.md §4.5 "BATdescriptor").
func (p *Pool) BATdescriptor(id int) (*gdk.BAT, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id <= 0 || id >= len(p.slots) || p.slots[id] == nil {
		return nil, fmt.Errorf("bbp: no such bat id %d", id)
	}
	e := p.slots[id]
	if e.Bat == nil {
		if p.loader == nil {
			return nil, fmt.Errorf("bbp: bat %d is unloaded and no loader is configured", id)
		}
		b, err := p.loader(id)
		if err != nil {
			return nil, fmt.Errorf("bbp: load bat %d: %w", id, err)
		}
		e.Bat = b
		e.Status = "loaded"
	}
	p.fixLocked(e)
	return e.Bat, nil
}

// BBPfix pins the in-memory descriptor (spec.md §4.5 "BBPfix/unfix:
// pins the in-memory descriptor"), preventing unload.
func (p *Pool) BBPfix(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryLocked(id)
	if err != nil {
		return err
	}
	p.fixLocked(e)
	return nil
}

func (p *Pool) fixLocked(e *Entry) { e.physical++ }

// BBPunfix releases one physical pin, unloading (but not deleting) the
// descriptor once it reaches zero and the bat holds no logical
// reference either.
func (p *Pool) BBPunfix(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryLocked(id)
	if err != nil {
		return err
	}
	if e.physical == 0 {
		return fmt.Errorf("bbp: unfix bat %d with zero physical refcount", id)
	}
	e.physical--
	if e.physical == 0 && e.logical == 0 {
		e.Bat = nil
		e.Status = "unloaded"
	}
	return nil
}

// BBPretain pins the bat's logical (on-disk) existence -- the bat
// survives a commit's garbage sweep even with no physical pins
// (spec.md §4.5 "BBPretain/release: pins on-disk existence").
func (p *Pool) BBPretain(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryLocked(id)
	if err != nil {
		return err
	}
	e.logical++
	return nil
}

func (p *Pool) BBPrelease(id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, err := p.entryLocked(id)
	if err != nil {
		return err
	}
	if e.logical == 0 {
		return fmt.Errorf("bbp: release bat %d with zero logical refcount", id)
	}
	e.logical--
	return nil
}

// BBPkeepref fixes then retains logical ownership in one call, the
// common pattern for a caller that wants a bat to outlive its own
// scope (e.g. storing it in a catalog).
func (p *Pool) BBPkeepref(id int) error {
	if err := p.BBPfix(id); err != nil {
		return err
	}
	return p.BBPretain(id)
}

// BBPshare increments a vheap's refcount without copying bytes, the
// mechanism behind string-trick sharing across bats (spec.md §4.5
// "BBPshare").
func (p *Pool) BBPshare(h *gdk.Heap) *gdk.Heap { return h.Fix() }

func (p *Pool) entryLocked(id int) (*Entry, error) {
	if id <= 0 || id >= len(p.slots) || p.slots[id] == nil {
		return nil, fmt.Errorf("bbp: no such bat id %d", id)
	}
	return p.slots[id], nil
}

// BBPrename changes a bat's logical name, maintaining the name index
// and rejecting collisions (spec.md §4.5 "BBPrename").
const (
	RenameOK = iota
	RenameAlreadyInUse
	RenameIllegalName
	RenameNoSuchBat
)

func (p *Pool) BBPrename(id int, newName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if newName == "" || strings.ContainsAny(newName, "/\\") {
		return RenameIllegalName
	}
	if id <= 0 || id >= len(p.slots) || p.slots[id] == nil {
		return RenameNoSuchBat
	}
	if _, ok := p.byName.Get(nameKey{name: newName}); ok {
		return RenameAlreadyInUse
	}
	e := p.slots[id]
	p.byName.Delete(nameKey{name: e.Name})
	e.Name = newName
	p.byName.ReplaceOrInsert(nameKey{name: newName, id: id})
	return RenameOK
}

// Lookup finds a bat id by name.
func (p *Pool) Lookup(name string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.byName.Get(nameKey{name: name})
	if !ok {
		return 0, false
	}
	return k.id, true
}

// NameOf returns the logical name registered for id.
func (p *Pool) NameOf(id int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id <= 0 || id >= len(p.slots) || p.slots[id] == nil {
		return "", false
	}
	return p.slots[id].Name, true
}

// DirPath is the path to BBP.dir under farm (spec.md §6 "BBP.dir").
func (p *Pool) DirPath() string {
	return filepath.Join(p.farm.Path, gdk.BATDir, "BBP.dir")
}

// dirFields is the column count of one BBP.dir record (spec.md §6
// "BBP.dir line format": "batid logical_name physical_basename options
// batRole count capacity base_heap_bytes vheap_bytes properties_bitmap
// type_id hseqbase tseqbase").
const dirFields = 13

// SaveDir writes the text BBP.dir catalog: one header line with the
// format version, then one line per live slot carrying enough of the
// bat descriptor to reconstruct it without ever loading the heaps
// (spec.md §6 "BBP.dir format").
func (p *Pool) SaveDir() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	tmp := p.DirPath() + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("bbp: create %s: %w", tmp, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "BBP.dir 1")
	for _, e := range p.slots {
		if e == nil {
			continue
		}
		snapshot(e)
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			e.ID, e.Name, e.Name, 0, int(e.BatRole),
			e.Count, e.Capacity, e.BaseBytes, e.VHeapBytes, e.PropsBits,
			int(e.Type), uint64(e.HSeqBase), uint64(e.TSeqBase))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("bbp: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("bbp: sync %s: %w", tmp, err)
	}
	return nil
}

// CommitDir atomically installs the just-written BBP.dir.new as
// BBP.dir (spec.md §4.6 "rename BBP.dir.new over BBP.dir is the commit
// point").
func (p *Pool) CommitDir() error {
	return os.Rename(p.DirPath()+".new", p.DirPath())
}

// LoadDir parses an existing BBP.dir into bare slots (bat descriptors
// themselves load lazily via the configured loader).
func LoadDir(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bbp: open %s: %w", path, err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var entries []*Entry
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			first = false
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) != dirFields {
			return nil, fmt.Errorf("bbp: malformed BBP.dir line %q", line)
		}
		e, err := parseDirEntry(parts)
		if err != nil {
			return nil, fmt.Errorf("bbp: malformed BBP.dir line %q: %w", line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("bbp: scan %s: %w", path, err)
	}
	return entries, nil
}

func parseDirEntry(parts []string) (*Entry, error) {
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	role, err := strconv.Atoi(parts[4])
	if err != nil {
		return nil, fmt.Errorf("batRole: %w", err)
	}
	count, err := strconv.ParseUint(parts[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	capacity, err := strconv.ParseUint(parts[6], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("capacity: %w", err)
	}
	baseBytes, err := strconv.ParseUint(parts[7], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("base_heap_bytes: %w", err)
	}
	vheapBytes, err := strconv.ParseUint(parts[8], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("vheap_bytes: %w", err)
	}
	props, err := strconv.ParseUint(parts[9], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("properties_bitmap: %w", err)
	}
	typeID, err := strconv.Atoi(parts[10])
	if err != nil {
		return nil, fmt.Errorf("type_id: %w", err)
	}
	hseq, err := strconv.ParseUint(parts[11], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("hseqbase: %w", err)
	}
	tseq, err := strconv.ParseUint(parts[12], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("tseqbase: %w", err)
	}
	return &Entry{
		ID:         id,
		Name:       parts[1],
		Status:     "unloaded",
		Type:       gdk.Type(typeID),
		BatRole:    gdk.Role(role),
		Count:      count,
		Capacity:   capacity,
		HSeqBase:   gdk.OID(hseq),
		TSeqBase:   gdk.OID(tseq),
		BaseBytes:  baseBytes,
		VHeapBytes: vheapBytes,
		PropsBits:  props,
	}, nil
}

// LoadDir repopulates the pool's slot table and name index from its
// farm's existing BBP.dir, if any (spec.md §8 "Invariant: a bat
// committed before a restart is loadable by the same name after it").
// Every repopulated slot starts unloaded; BATdescriptor resolves it
// through the pool's loader on first use.
func (p *Pool) LoadDir() error {
	if _, err := os.Stat(p.DirPath()); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("bbp: stat %s: %w", p.DirPath(), err)
	}
	entries, err := LoadDir(p.DirPath())
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		for len(p.slots) <= e.ID {
			p.slots = append(p.slots, nil)
		}
		p.slots[e.ID] = e
		p.byName.ReplaceOrInsert(nameKey{name: e.Name, id: e.ID})
	}
	return nil
}
