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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeapInitializeSeedsFreeList(t *testing.T) {
	h := NewHeap(1, 4096)
	require.NoError(t, h.HEAPInitialize(4096, 8))
	require.Equal(t, uint64(4096), h.Free())
}

func TestHeapMallocFreeFirstFit(t *testing.T) {
	h := NewHeap(1, 4096)
	require.NoError(t, h.HEAPInitialize(4096, 0))

	a, err := h.HEAPMalloc(64, 8)
	require.NoError(t, err)
	b, err := h.HEAPMalloc(64, 8)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	h.HEAPFree(a)
	c, err := h.HEAPMalloc(64, 8)
	require.NoError(t, err)
	require.Equal(t, a, c, "first-fit should reuse the freed block")
}

func TestHeapMallocGrowsWhenExhausted(t *testing.T) {
	h := NewHeap(1, 64)
	require.NoError(t, h.HEAPInitialize(64, 0))

	// Exhaust the small heap, forcing growLocked to extend it.
	var last uint64
	for i := 0; i < 8; i++ {
		off, err := h.HEAPMalloc(32, 8)
		require.NoError(t, err)
		last = off
	}
	require.Greater(t, h.Size(), uint64(64))
	require.Greater(t, last, uint64(0))
}

func TestHeapExtendMalloc(t *testing.T) {
	h := NewHeap(1, 64)
	require.NoError(t, h.HEAPInitialize(64, 0))
	require.NoError(t, h.HEAPextend(8192, false))
	require.Equal(t, uint64(8192), h.Size())
}

func TestHeapSaveLoadRoundTrip(t *testing.T) {
	h := NewHeap(1, 4096)
	require.NoError(t, h.HEAPInitialize(4096, 0))
	off, err := h.HEAPMalloc(16, 8)
	require.NoError(t, err)
	copy(h.Bytes()[off:], []byte("hello-world-1234"))
	h.SetFree(off + 16)

	path := filepath.Join(t.TempDir(), "test.heap")
	require.NoError(t, h.HEAPsave(path))
	require.False(t, h.Dirty())

	loaded, err := HEAPload(1, path, 0, false)
	require.NoError(t, err)
	require.Equal(t, h.Free(), loaded.Free())
	require.Equal(t, []byte("hello-world-1234"), loaded.Bytes()[off:off+16])
}

func TestHeapFixUnfixRefcount(t *testing.T) {
	h := NewHeap(1, 64)
	require.EqualValues(t, 1, h.RefCount())
	h.Fix()
	require.EqualValues(t, 2, h.RefCount())
	require.NoError(t, h.Unfix())
	require.EqualValues(t, 1, h.RefCount())
}

func TestHeapLoadMissingFileReturnsError(t *testing.T) {
	_, err := HEAPload(1, filepath.Join(t.TempDir(), "does-not-exist"), 4096, false)
	require.Error(t, err)
}
