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

func TestValRecordNilCompareOrdering(t *testing.T) {
	nilv := NilValRecord(TypeInt)
	v, err := NewValRecord(TypeInt, int32(5))
	require.NoError(t, err)

	c, err := nilv.Compare(v)
	require.NoError(t, err)
	require.Equal(t, -1, c)

	c, err = v.Compare(nilv)
	require.NoError(t, err)
	require.Equal(t, 1, c)

	c, err = nilv.Compare(NilValRecord(TypeInt))
	require.NoError(t, err)
	require.Equal(t, 0, c)
}

func TestValRecordCompareMismatchedTypesErrors(t *testing.T) {
	a, _ := NewValRecord(TypeInt, int32(1))
	b, _ := NewValRecord(TypeLng, int64(1))
	_, err := a.Compare(b)
	require.Error(t, err)
}

func TestValRecordParseAndString(t *testing.T) {
	v, err := ParseValRecord(TypeInt, "42")
	require.NoError(t, err)
	require.Equal(t, "42", v.String())

	nilv, err := ParseValRecord(TypeInt, "nil")
	require.NoError(t, err)
	require.True(t, nilv.IsNil)
	require.Equal(t, "nil", nilv.String())
}

func TestValRecordConvertNumericFastPath(t *testing.T) {
	v, err := NewValRecord(TypeInt, int32(7))
	require.NoError(t, err)
	dbl, err := v.ConvertTo(TypeDbl)
	require.NoError(t, err)
	require.Equal(t, float64(7), dbl.Val)
}

func TestValRecordConvertNilPreservesNil(t *testing.T) {
	nilv := NilValRecord(TypeInt)
	converted, err := nilv.ConvertTo(TypeDbl)
	require.NoError(t, err)
	require.True(t, converted.IsNil)
}

func TestValRecordConvertViaFormatParseRoundTrip(t *testing.T) {
	v, err := NewValRecord(TypeStr, "123")
	require.NoError(t, err)
	asInt, err := v.ConvertTo(TypeInt)
	require.NoError(t, err)
	require.Equal(t, int32(123), asInt.Val)
}

func TestValRecordCopyIsIndependent(t *testing.T) {
	v, err := NewValRecord(TypeInt, int32(1))
	require.NoError(t, err)
	cp := v.Copy()
	cp.Val = int32(2)
	require.Equal(t, int32(1), v.Val)
}
