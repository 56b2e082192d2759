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

// ValRecord is a tagged-union runtime value (spec.md §4.11
// "ValRecord"): a vtype discriminator plus the payload, used wherever
// a single scalar needs to travel without its owning BAT.
type ValRecord struct {
	VType Type
	Val   any // primitive go-value for fixed atoms; string for extern atoms
	IsNil bool
}

// NewValRecord wraps v as a value of type t, normalizing the nil
// sentinel per the atom's own Nil() representation.
func NewValRecord(t Type, v any) (*ValRecord, error) {
	atom, ok := Lookup(t)
	if !ok {
		return nil, fmt.Errorf("gdk: valrecord: unknown type %d", t)
	}
	vr := &ValRecord{VType: t, Val: v}
	vr.IsNil = isNilValue(atom, v)
	return vr, nil
}

// NilValRecord returns the nil value of type t.
func NilValRecord(t Type) *ValRecord {
	atom := MustLookup(t)
	return &ValRecord{VType: t, Val: atom.Nil(), IsNil: true}
}

// Copy returns an independent ValRecord with the same type and value.
func (v *ValRecord) Copy() *ValRecord {
	return &ValRecord{VType: v.VType, Val: v.Val, IsNil: v.IsNil}
}

// Compare orders two ValRecords of the same type, nil-aware: nil sorts
// before any non-nil value and two nils compare equal (spec.md §4.11
// "Compare is nil-aware: nil < any non-nil value, nil == nil").
func (v *ValRecord) Compare(other *ValRecord) (int, error) {
	if v.VType != other.VType {
		return 0, fmt.Errorf("gdk: valrecord compare: mismatched types %d/%d", v.VType, other.VType)
	}
	switch {
	case v.IsNil && other.IsNil:
		return 0, nil
	case v.IsNil:
		return -1, nil
	case other.IsNil:
		return 1, nil
	}
	atom := MustLookup(v.VType)
	return atom.Compare(v.Val, other.Val), nil
}

// ParseValRecord parses a textual value of type t, per the atom's
// Parse contract. A partially consumed input (the atom's Parse
// returning without error but the caller expecting the full string
// consumed) is the caller's responsibility -- ParseValRecord itself
// fails loudly on any parse error instead of silently truncating.
func ParseValRecord(t Type, s string) (*ValRecord, error) {
	atom, ok := Lookup(t)
	if !ok {
		return nil, fmt.Errorf("gdk: valrecord: unknown type %d", t)
	}
	if s == "nil" {
		return NilValRecord(t), nil
	}
	v, err := atom.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("gdk: valrecord: parse %q as %s: %w", s, atom.Name(), err)
	}
	return NewValRecord(t, v)
}

// String formats the value for display, respecting the nil flag.
func (v *ValRecord) String() string {
	if v.IsNil {
		return "nil"
	}
	return MustLookup(v.VType).Format(v.Val)
}

// ConvertTo produces a new ValRecord of type target, going through the
// atom's Format/Parse round-trip when no direct numeric conversion
// applies (spec.md §4.11 "Convert goes through a type's own
// format/parse pair when no narrower path exists").
func (v *ValRecord) ConvertTo(target Type) (*ValRecord, error) {
	if v.VType == target {
		return v.Copy(), nil
	}
	if v.IsNil {
		return NilValRecord(target), nil
	}
	if n, ok := toFloat64(v.Val); ok {
		if conv, ok2 := fromFloat64(target, n); ok2 {
			return NewValRecord(target, conv)
		}
	}
	text := MustLookup(v.VType).Format(v.Val)
	return ParseValRecord(target, text)
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case OID:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

func fromFloat64(t Type, n float64) (any, bool) {
	switch t {
	case TypeBte:
		return int8(n), true
	case TypeSht:
		return int16(n), true
	case TypeInt:
		return int32(n), true
	case TypeLng:
		return int64(n), true
	case TypeOid:
		return OID(n), true
	case TypeFlt:
		return float32(n), true
	case TypeDbl:
		return n, true
	default:
		return nil, false
	}
}
