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

package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/gdk/candidate"
)

func TestBATprojectDenseIdentity(t *testing.T) {
	src, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, src.BUNappendMulti([]any{int32(10), int32(20), int32(30)}, false))

	cand := candidate.NewDense(src.HSeqBase, src.HSeqBase+gdk.OID(src.Count()))
	out, err := BATproject(cand, src)
	require.NoError(t, err)
	require.EqualValues(t, 3, out.Count())
	for i := uint64(0); i < 3; i++ {
		v, err := out.Fetch(i)
		require.NoError(t, err)
		sv, err := src.Fetch(i)
		require.NoError(t, err)
		require.Equal(t, sv, v)
	}
}

func TestBATprojectSharesVHeapForStrings(t *testing.T) {
	src, err := gdk.COLnew(0, gdk.TypeStr, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, src.BUNappendMulti([]any{"alpha", "beta", "gamma"}, false))

	cand := candidate.NewDense(src.HSeqBase, src.HSeqBase+gdk.OID(src.Count()))
	before := src.Col.VHeap.RefCount()
	out, err := BATproject(cand, src)
	require.NoError(t, err)
	require.Same(t, src.Col.VHeap, out.Col.VHeap)
	require.Equal(t, before+1, src.Col.VHeap.RefCount())

	v, err := out.Fetch(1)
	require.NoError(t, err)
	require.Equal(t, "beta", v)
}

func TestBATprojectWithMaterializedCandidates(t *testing.T) {
	src, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, src.BUNappendMulti([]any{int32(1), int32(2), int32(3), int32(4)}, false))

	cand, err := candidate.NewMaterialized([]gdk.OID{src.HSeqBase, src.HSeqBase + 2})
	require.NoError(t, err)
	out, err := BATproject(cand, src)
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Count())
	v0, _ := out.Fetch(0)
	v1, _ := out.Fetch(1)
	require.Equal(t, int32(1), v0)
	require.Equal(t, int32(3), v1)
}

func TestBATprojectchainSingleElementAliasesBATproject(t *testing.T) {
	src, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, src.BUNappendMulti([]any{int32(7), int32(8)}, false))

	cand := candidate.NewDense(src.HSeqBase, src.HSeqBase+gdk.OID(src.Count()))
	out, err := BATprojectchain(cand, []*gdk.BAT{src})
	require.NoError(t, err)
	v, err := out.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, int32(7), v)
}

func TestBATprojectchainMultiHop(t *testing.T) {
	// link1: oid -> oid (void-indexed positions into link2)
	link1, err := gdk.COLnew(0, gdk.TypeOid, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, link1.BUNappendMulti([]any{gdk.OID(2), gdk.OID(0), gdk.OID(1)}, false))

	link2, err := gdk.COLnew(0, gdk.TypeStr, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, link2.BUNappendMulti([]any{"zero", "one", "two"}, false))

	cand := candidate.NewDense(link1.HSeqBase, link1.HSeqBase+gdk.OID(link1.Count()))
	out, err := BATprojectchain(cand, []*gdk.BAT{link1, link2})
	require.NoError(t, err)
	require.EqualValues(t, 3, out.Count())

	v0, _ := out.Fetch(0)
	v1, _ := out.Fetch(1)
	v2, _ := out.Fetch(2)
	require.Equal(t, "two", v0)
	require.Equal(t, "zero", v1)
	require.Equal(t, "one", v2)
}

func TestBATprojectOutOfRangeOidErrors(t *testing.T) {
	src, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, src.BUNappend(int32(1), false))

	cand := candidate.NewDense(src.HSeqBase, src.HSeqBase+5)
	_, err = BATproject(cand, src)
	require.Error(t, err)
}

func TestBATproject2SelectsAcrossAbuttingSources(t *testing.T) {
	r1, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, r1.BUNappendMulti([]any{int32(10), int32(20)}, false)) // oids 0,1

	r2, err := gdk.COLnew(2, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, r2.BUNappendMulti([]any{int32(30), int32(40)}, false)) // oids 2,3

	cand, err := candidate.NewMaterialized([]gdk.OID{1, 2, 3, 0})
	require.NoError(t, err)
	out, err := BATproject2(cand, r1, r2)
	require.NoError(t, err)
	require.EqualValues(t, 4, out.Count())
	v0, _ := out.Fetch(0)
	v1, _ := out.Fetch(1)
	v2, _ := out.Fetch(2)
	v3, _ := out.Fetch(3)
	// NewMaterialized sorts the list, so rows come out as oids 0,1,2,3.
	require.Equal(t, int32(10), v0) // oid 0 -> r1
	require.Equal(t, int32(20), v1) // oid 1 -> r1
	require.Equal(t, int32(30), v2) // oid 2 -> r2 (boundary)
	require.Equal(t, int32(40), v3) // oid 3 -> r2
}

func TestBATproject2RejectsNonAbuttingSources(t *testing.T) {
	r1, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, r1.BUNappend(int32(1), false))

	r2, err := gdk.COLnew(5, gdk.TypeInt, 0, gdk.RolePersistent) // gap: should start at 1
	require.NoError(t, err)
	require.NoError(t, r2.BUNappend(int32(2), false))

	cand := candidate.NewDense(0, 1)
	_, err = BATproject2(cand, r1, r2)
	require.Error(t, err)
}

func TestBATproject2RejectsMismatchedTailTypes(t *testing.T) {
	r1, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, r1.BUNappend(int32(1), false))

	r2, err := gdk.COLnew(1, gdk.TypeStr, 0, gdk.RolePersistent)
	require.NoError(t, err)
	require.NoError(t, r2.BUNappend("x", false))

	cand := candidate.NewDense(0, 1)
	_, err = BATproject2(cand, r1, r2)
	require.Error(t, err)
}
