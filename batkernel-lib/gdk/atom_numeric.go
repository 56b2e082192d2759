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
	"strconv"
)

func mathFloat32frombits(b uint32) float32 { return math.Float32frombits(b) }
func nanDbl() float64                      { return math.NaN() }

// numOrdered constrains numAtom to the primitive numeric kinds the engine
// stores fixed-width (spec.md §3 Atom: bte/sht/int/lng/flt/dbl).
type numOrdered interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// numAtom is the single generic implementation backing every
// fixed-width numeric atom, replacing the C source's per-type
// HASHloop/compare macros with Go generics (spec.md §9 "Macro-heavy
// hash loops -> monomorphized generics").
type numAtom[T numOrdered] struct {
	id    Type
	width int
	nilv  T
}

func (n numAtom[T]) ID() Type       { return n.id }
func (n numAtom[T]) Width() int     { return n.width }
func (n numAtom[T]) Varsized() bool { return false }
func (n numAtom[T]) Nil() any       { return n.nilv }

func (n numAtom[T]) Name() string {
	switch n.id {
	case TypeBte:
		return "bte"
	case TypeSht:
		return "sht"
	case TypeInt:
		return "int"
	case TypeLng:
		return "lng"
	case TypeFlt:
		return "flt"
	case TypeDbl:
		return "dbl"
	default:
		return "num"
	}
}

func (n numAtom[T]) Compare(a, b any) int {
	x, y := a.(T), b.(T)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

// Hash applies the spec's multi-shift XOR mixer for fixed-width
// primitives (spec.md §3 "Hash index": "type-specialized mixers for
// fixed-width primitives (multi-shift XOR)").
func (n numAtom[T]) Hash(a any) uint64 {
	v := a.(T)
	var bits uint64
	switch n.width {
	case 1:
		bits = uint64(uint8(int8OrFloatBits(v)))
	case 2:
		bits = uint64(uint16(int8OrFloatBits(v)))
	case 4:
		bits = uint64(uint32(int8OrFloatBits(v)))
	default:
		bits = uint64(int8OrFloatBits(v))
	}
	h := bits
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return h
}

// int8OrFloatBits returns the raw bit pattern of v, widened to uint64,
// so both integer and float primitives share one mixer.
func int8OrFloatBits[T numOrdered](v T) uint64 {
	switch x := any(v).(type) {
	case int8:
		return uint64(uint8(x))
	case int16:
		return uint64(uint16(x))
	case int32:
		return uint64(uint32(x))
	case int64:
		return uint64(x)
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	default:
		return 0
	}
}

func (n numAtom[T]) Parse(s string) (any, error) {
	if s == "nil" {
		return n.nilv, nil
	}
	switch n.id {
	case TypeFlt:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("flt: parse %q: %w", s, err)
		}
		return any(float32(v)).(T), nil
	case TypeDbl:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("dbl: parse %q: %w", s, err)
		}
		return any(v).(T), nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: parse %q: %w", n.Name(), s, err)
		}
		switch n.id {
		case TypeBte:
			return any(int8(v)).(T), nil
		case TypeSht:
			return any(int16(v)).(T), nil
		case TypeInt:
			return any(int32(v)).(T), nil
		default:
			return any(v).(T), nil
		}
	}
}

func (n numAtom[T]) Format(a any) string {
	v := a.(T)
	if v == n.nilv && !isFloatNil(n.id) {
		return "nil"
	}
	switch x := any(v).(type) {
	case float32:
		if isNaN32(x) {
			return "nil"
		}
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		if math.IsNaN(x) {
			return "nil"
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		return fmt.Sprintf("%d", x)
	}
}

func isFloatNil(t Type) bool { return t == TypeFlt || t == TypeDbl }
func isNaN32(f float32) bool { return f != f }
