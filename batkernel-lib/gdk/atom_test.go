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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNumericAtomParseFormatRoundTrip(t *testing.T) {
	for _, tt := range []Type{TypeBte, TypeSht, TypeInt, TypeLng, TypeFlt, TypeDbl} {
		atom := MustLookup(tt)
		v, err := atom.Parse("42")
		require.NoError(t, err, atom.Name())
		require.Equal(t, "42", atom.Format(v), atom.Name())
	}
}

func TestNumericAtomCompareOrdering(t *testing.T) {
	atom := MustLookup(TypeInt)
	a, _ := atom.Parse("1")
	b, _ := atom.Parse("2")
	require.Equal(t, -1, atom.Compare(a, b))
	require.Equal(t, 1, atom.Compare(b, a))
	require.Equal(t, 0, atom.Compare(a, a))
}

func TestOidAtomNil(t *testing.T) {
	atom := MustLookup(TypeOid)
	require.Equal(t, "nil", atom.Format(OIDNil))
	v, err := atom.Parse("nil")
	require.NoError(t, err)
	require.Equal(t, OIDNil, v)
}

func TestStrAtomIsVarsized(t *testing.T) {
	atom := MustLookup(TypeStr)
	require.True(t, atom.Varsized())
	require.Equal(t, 0, atom.Width())
}

func TestHgeAtomDecimalRoundTrip(t *testing.T) {
	atom := MustLookup(TypeHge)
	v, err := atom.Parse("123456789012345678")
	require.NoError(t, err)
	require.Equal(t, "123456789012345678", atom.Format(v))
}

func TestUUIDParseFormat(t *testing.T) {
	atom := MustLookup(TypeUUID)
	v, err := atom.Parse("00112233-4455-6677-8899-aabbccddeeff")
	require.NoError(t, err)
	require.Equal(t, "00112233-4455-6677-8899-aabbccddeeff", atom.Format(v))
}

func TestUnregisteredTypeLookupFails(t *testing.T) {
	_, ok := Lookup(Type(250))
	require.False(t, ok)
}

func TestDateAtomParsesAlternateForms(t *testing.T) {
	atom := MustLookup(TypeDate)
	iso, err := atom.Parse("2019-04-21")
	require.NoError(t, err)

	named, err := atom.Parse("21 April 2019")
	require.NoError(t, err)
	require.Equal(t, iso, named)

	abbrev, err := atom.Parse("21-Apr-2019")
	require.NoError(t, err)
	require.Equal(t, iso, abbrev)

	require.Equal(t, "2019-04-21", atom.Format(iso))
}

func TestDateAtomRejectsGarbage(t *testing.T) {
	atom := MustLookup(TypeDate)
	_, err := atom.Parse("not-a-date")
	require.Error(t, err)
}

func TestFloatNilIsNaN(t *testing.T) {
	atom := MustLookup(TypeDbl)
	nilv := atom.Nil().(float64)
	require.True(t, nilv != nilv) // NaN != NaN
}
