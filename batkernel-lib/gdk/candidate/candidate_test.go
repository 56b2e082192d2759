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

package candidate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batkernel/batkernel-lib/gdk"
)

func drain(it Iterator) []gdk.OID {
	it.Reset()
	var out []gdk.OID
	for {
		v, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

func TestDenseIteration(t *testing.T) {
	d := NewDense(10, 15)
	require.EqualValues(t, 5, d.Len())
	require.Equal(t, []gdk.OID{10, 11, 12, 13, 14}, drain(d))
	require.Equal(t, gdk.OID(12), d.Idx(2))
}

func TestDenseEmptyRange(t *testing.T) {
	d := NewDense(5, 5)
	require.EqualValues(t, 0, d.Len())
	require.Empty(t, drain(d))
}

func TestMaterializedSorts(t *testing.T) {
	m, err := NewMaterialized([]gdk.OID{5, 1, 3})
	require.NoError(t, err)
	require.Equal(t, []gdk.OID{1, 3, 5}, drain(m))
}

func TestMaterializedRejectsDuplicates(t *testing.T) {
	_, err := NewMaterialized([]gdk.OID{1, 1, 2})
	require.Error(t, err)
}

func TestDenseWithExceptionsSkipsExcluded(t *testing.T) {
	d := NewDenseWithExceptions(0, 10, []gdk.OID{2, 5, 9})
	require.EqualValues(t, 7, d.Len())
	require.Equal(t, []gdk.OID{0, 1, 3, 4, 6, 7, 8}, drain(d))
}

func TestDenseWithExceptionsIdx(t *testing.T) {
	d := NewDenseWithExceptions(0, 10, []gdk.OID{2, 5, 9})
	require.Equal(t, gdk.OID(3), d.Idx(2))
}

func TestDenseWithExceptionsIdxOutOfRangePanics(t *testing.T) {
	d := NewDenseWithExceptions(0, 10, []gdk.OID{2, 5, 9})
	require.Panics(t, func() { d.Idx(d.Len()) })
}

func TestDenseWithExceptionsNoExceptionsMatchesDense(t *testing.T) {
	d := NewDenseWithExceptions(100, 103, nil)
	require.Equal(t, []gdk.OID{100, 101, 102}, drain(d))
}

func TestMaskIterationOverSparseSelection(t *testing.T) {
	m := NewMask(1000, []gdk.OID{1000, 1002, 1050})
	require.EqualValues(t, 3, m.Len())
	require.Equal(t, []gdk.OID{1000, 1002, 1050}, drain(m))
}

func TestMaskIdx(t *testing.T) {
	m := NewMask(0, []gdk.OID{3, 7, 9})
	require.Equal(t, gdk.OID(7), m.Idx(1))
}

func TestNCandMatchesLenAcrossRealizations(t *testing.T) {
	dense := NewDense(0, 4)
	mat, err := NewMaterialized([]gdk.OID{0, 1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, NCand(dense), NCand(mat))
}
