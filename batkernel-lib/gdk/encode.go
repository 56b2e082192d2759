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
	"math"

	"github.com/holiman/uint256"

	"github.com/batkernel/batkernel-lib/temporal"
)

// writeFixedAt encodes v into buf at item index pos, per the storage
// layout its atom type dictates (spec.md §3 "fixed-width columns
// store BUN_MAX-bounded arrays of raw atom values").
func writeFixedAt(buf []byte, pos uint64, width int, v any) {
	off := pos * uint64(width)
	switch x := v.(type) {
	case int8:
		buf[off] = byte(x)
	case int16:
		binary.LittleEndian.PutUint16(buf[off:], uint16(x))
	case int32:
		binary.LittleEndian.PutUint32(buf[off:], uint32(x))
	case int64:
		binary.LittleEndian.PutUint64(buf[off:], uint64(x))
	case OID:
		binary.LittleEndian.PutUint64(buf[off:], uint64(x))
	case float32:
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(x))
	case bool:
		if x {
			buf[off] = 1
		} else {
			buf[off] = 0
		}
	case temporal.Date:
		binary.LittleEndian.PutUint32(buf[off:], uint32(x))
	case temporal.Daytime:
		binary.LittleEndian.PutUint64(buf[off:], uint64(x))
	case temporal.Timestamp:
		binary.LittleEndian.PutUint64(buf[off:], uint64(x))
	case [16]byte:
		copy(buf[off:off+16], x[:])
	case *uint256.Int:
		b32 := x.Bytes32()
		copy(buf[off:off+16], b32[16:32])
	default:
		panic("gdk: writeFixedAt: unhandled atom go-type")
	}
}

// readFixedAt decodes the value stored at item index pos for the given
// atom type, the inverse of writeFixedAt.
func readFixedAt(buf []byte, pos uint64, width int, t Type) any {
	off := pos * uint64(width)
	switch t {
	case TypeBte, TypeBit:
		return int8(buf[off])
	case TypeSht:
		return int16(binary.LittleEndian.Uint16(buf[off:]))
	case TypeInt:
		return int32(binary.LittleEndian.Uint32(buf[off:]))
	case TypeLng:
		return int64(binary.LittleEndian.Uint64(buf[off:]))
	case TypeOid:
		return OID(binary.LittleEndian.Uint64(buf[off:]))
	case TypeFlt:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	case TypeDbl:
		return math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	case TypeMsk:
		return buf[off] != 0
	case TypeDate:
		return temporal.Date(binary.LittleEndian.Uint32(buf[off:]))
	case TypeDaytime:
		return temporal.Daytime(binary.LittleEndian.Uint64(buf[off:]))
	case TypeTimestamp:
		return temporal.Timestamp(binary.LittleEndian.Uint64(buf[off:]))
	case TypeUUID:
		var v [16]byte
		copy(v[:], buf[off:off+16])
		return v
	case TypeHge:
		var b32 [32]byte
		copy(b32[16:32], buf[off:off+16])
		n := new(uint256.Int)
		n.SetBytes32(b32[:])
		return n
	default:
		panic("gdk: readFixedAt: unhandled atom type")
	}
}
