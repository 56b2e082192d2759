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
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/holiman/uint256"
)

// Atom is a type descriptor: byte width, comparator, hasher,
// parse-from-text, format-to-text, nil value, and storage-type
// metadata (spec.md §3 "Atom").
type Atom interface {
	ID() Type
	Name() string
	Width() int // 0 for void; for varsized this is the *offset* width class, resolved per-BAT
	Varsized() bool
	Nil() any
	Compare(a, b any) int
	Hash(a any) uint64
	Parse(s string) (any, error)
	Format(a any) string
}

// registry is the process-wide atom table (spec.md §9 "Atom registry
// with first-class polymorphism"). Registration happens at init; new
// atoms are appended, never removed, so type ids stay stable across
// the process lifetime (they appear in on-disk files).
var registry = map[Type]Atom{}

func register(a Atom) {
	registry[a.ID()] = a
}

// Lookup returns the registered atom descriptor for a type id.
func Lookup(t Type) (Atom, bool) {
	a, ok := registry[t]
	return a, ok
}

// MustLookup panics only on a corrupt/unregistered type id encountered
// while loading on-disk state — per spec.md §9 "panics are reserved
// for corrupt on-disk state detected during load".
func MustLookup(t Type) Atom {
	a, ok := registry[t]
	if !ok {
		panic(fmt.Sprintf("gdk: unregistered atom type %d", t))
	}
	return a
}

func init() {
	register(voidAtom{})
	register(mskAtom{})
	register(bitAtom{})
	register(numAtom[int8]{id: TypeBte, width: 1, nilv: int8(-1 << 7)})
	register(numAtom[int16]{id: TypeSht, width: 2, nilv: int16(-1 << 15)})
	register(numAtom[int32]{id: TypeInt, width: 4, nilv: int32(-1 << 31)})
	register(numAtom[int64]{id: TypeLng, width: 8, nilv: int64(-1 << 63)})
	register(oidAtom{})
	register(numAtom[float32]{id: TypeFlt, width: 4, nilv: float32(nanFlt())})
	register(numAtom[float64]{id: TypeDbl, width: 8, nilv: nanDbl()})
	register(hgeAtom{})
	register(dateAtom{})
	register(daytimeAtom{})
	register(timestampAtom{})
	register(uuidAtom{})
	register(strAtom{})
}

func nanFlt() float32 { return float32frombits(0x7fc00000) }
func float32frombits(b uint32) float32 {
	var f float32
	// avoid importing math bit-cast helpers twice; simple union via unsafe is
	// overkill here, math.Float32frombits is the idiomatic call.
	f = mathFloat32frombits(b)
	return f
}

// --- void ---

type voidAtom struct{}

func (voidAtom) ID() Type       { return TypeVoid }
func (voidAtom) Name() string   { return "void" }
func (voidAtom) Width() int     { return 0 }
func (voidAtom) Varsized() bool { return false }
func (voidAtom) Nil() any       { return OIDNil }
func (voidAtom) Compare(a, b any) int {
	x, y := a.(OID), b.(OID)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (voidAtom) Hash(a any) uint64 { return uint64(a.(OID)) }
func (voidAtom) Parse(s string) (any, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return OID(n), nil
}
func (voidAtom) Format(a any) string { return strconv.FormatUint(uint64(a.(OID)), 10) }

// --- msk (bitmask, 1 logical bit per slot) ---

type mskAtom struct{}

func (mskAtom) ID() Type       { return TypeMsk }
func (mskAtom) Name() string   { return "msk" }
func (mskAtom) Width() int     { return 0 }
func (mskAtom) Varsized() bool { return false }
func (mskAtom) Nil() any       { return false }
func (mskAtom) Compare(a, b any) int {
	x, y := a.(bool), b.(bool)
	if x == y {
		return 0
	}
	if !x {
		return -1
	}
	return 1
}
func (mskAtom) Hash(a any) uint64 {
	if a.(bool) {
		return 1
	}
	return 0
}
func (mskAtom) Parse(s string) (any, error) { return strconv.ParseBool(s) }
func (mskAtom) Format(a any) string         { return strconv.FormatBool(a.(bool)) }

// --- bit ---

type bitAtom struct{}

func (bitAtom) ID() Type       { return TypeBit }
func (bitAtom) Name() string   { return "bit" }
func (bitAtom) Width() int     { return 1 }
func (bitAtom) Varsized() bool { return false }
func (bitAtom) Nil() any       { return int8(-1 << 7) }
func (bitAtom) Compare(a, b any) int {
	x, y := a.(int8), b.(int8)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (bitAtom) Hash(a any) uint64 { return uint64(uint8(a.(int8))) }
func (bitAtom) Parse(s string) (any, error) {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	if v {
		return int8(1), nil
	}
	return int8(0), nil
}
func (bitAtom) Format(a any) string {
	if a.(int8) != 0 {
		return "true"
	}
	return "false"
}

// --- oid ---

type oidAtom struct{}

func (oidAtom) ID() Type       { return TypeOid }
func (oidAtom) Name() string   { return "oid" }
func (oidAtom) Width() int     { return 8 }
func (oidAtom) Varsized() bool { return false }
func (oidAtom) Nil() any       { return OIDNil }
func (oidAtom) Compare(a, b any) int {
	x, y := a.(OID), b.(OID)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (oidAtom) Hash(a any) uint64 { return uint64(a.(OID)) }
func (oidAtom) Parse(s string) (any, error) {
	if s == "nil" {
		return OIDNil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	return OID(n), err
}
func (oidAtom) Format(a any) string {
	v := a.(OID)
	if v == OIDNil {
		return "nil"
	}
	return strconv.FormatUint(uint64(v), 10)
}

// --- hge (optional 128-bit), backed by uint256.Int's low 128 bits ---

type hgeAtom struct{}

func (hgeAtom) ID() Type       { return TypeHge }
func (hgeAtom) Name() string   { return "hge" }
func (hgeAtom) Width() int     { return 16 }
func (hgeAtom) Varsized() bool { return false }
func (hgeAtom) Nil() any       { return hgeNil() }
func hgeNil() *uint256.Int {
	n := new(uint256.Int)
	n.Not(n) // all-ones sentinel
	return n
}
func (hgeAtom) Compare(a, b any) int { return a.(*uint256.Int).Cmp(b.(*uint256.Int)) }
func (hgeAtom) Hash(a any) uint64 {
	v := a.(*uint256.Int)
	return xxhash.Sum64(v.Bytes())
}
func (hgeAtom) Parse(s string) (any, error) {
	n := new(uint256.Int)
	if err := n.SetFromDecimal(s); err != nil {
		return nil, fmt.Errorf("hge: parse %q: %w", s, err)
	}
	return n, nil
}
func (hgeAtom) Format(a any) string { return a.(*uint256.Int).Dec() }

// --- str (storage is extern: offsets live in the main heap, bytes in vheap) ---

type strAtom struct{}

func (strAtom) ID() Type       { return TypeStr }
func (strAtom) Name() string   { return "str" }
func (strAtom) Width() int     { return 0 } // resolved per-BAT as the offset width
func (strAtom) Varsized() bool { return true }
func (strAtom) Nil() any       { return "" } // the empty string is the str nil value
func (strAtom) Compare(a, b any) int {
	return strings.Compare(a.(string), b.(string))
}
func (strAtom) Hash(a any) uint64    { return xxhash.Sum64String(a.(string)) }
func (strAtom) Parse(s string) (any, error) { return s, nil }
func (strAtom) Format(a any) string         { return a.(string) }
