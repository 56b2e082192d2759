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

// Package gdk is the storage engine core: the heap layer, the atom type
// registry, the BAT/column model, the variable heap with string
// deduplication, and value records. Named after the original kernel's
// "GDK" (Goblin Database Kernel) layer, whose contract spec.md §3-4.4
// describes.
package gdk

import "math"

// OID is an object identifier: a non-negative dense or sparse row
// reference (spec.md GLOSSARY "OID").
type OID uint64

// OIDNil is the maximum value of OID, the nil sentinel (GLOSSARY).
const OIDNil OID = math.MaxUint64

// Type is the small integer atom-type id (spec.md §3 "Atom").
type Type int

const (
	TypeVoid Type = iota
	TypeMsk
	TypeBit
	TypeBte
	TypeSht
	TypeBat
	TypeInt
	TypeOid
	TypePtr
	TypeFlt
	TypeDbl
	TypeLng
	TypeHge
	TypeDate
	TypeDaytime
	TypeTimestamp
	TypeUUID
	TypeStr
	TypeAny Type = 255
)

// IsExtern reports whether values of this storage type live in a
// variable heap and are represented in the main heap as offsets
// (spec.md §3: "Storage types >= TYPE_str are 'extern'").
func (t Type) IsExtern() bool {
	return t >= TypeStr && t != TypeAny
}

// BUN_MAX bounds the number of rows a single BAT may hold (spec.md §8
// boundary case "Append exactly BUN_MAX elements").
const BUN_MAX = math.MaxUint64 - 1

// Role selects which farm a BAT's heaps are allocated from (spec.md
// §3 BAT "batRole").
type Role int

const (
	RolePersistent Role = iota
	RoleTransient
)

// AccessMode restricts mutation of a BAT (spec.md §3 BAT
// "batRestricted").
type AccessMode int

const (
	AccessRead AccessMode = iota
	AccessAppend
	AccessWrite
)
