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

package tm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batkernel/batkernel-lib/bbp"
	"github.com/batkernel/batkernel-lib/gdk"
)

func newTestFarm(t *testing.T) *gdk.Farm {
	f := &gdk.Farm{ID: 1, Name: "test", Path: t.TempDir(), Role: gdk.FarmPersistent}
	require.NoError(t, f.EnsureLayout())
	return f
}

func TestTMcommitHappyPath(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	b, err := gdk.COLnew(0, gdk.TypeInt, 0, gdk.RolePersistent)
	require.NoError(t, err)
	pool.Register("tbl1", b)

	mgr := New(farm, pool)
	heapPath := farm.HeapPath("tbl1", "tail")
	require.NoError(t, os.MkdirAll(filepath.Dir(heapPath), 0o755))

	h := gdk.NewHeap(0, 64)
	require.NoError(t, h.HEAPInitialize(64, 0))
	h.MarkDirty()

	require.NoError(t, mgr.TMcommit([]*gdk.Heap{h}, []string{heapPath}))
	require.FileExists(t, pool.DirPath())
	require.NoDirExists(t, mgr.backupDir())
}

func TestTMcommitMismatchedLengthsErrors(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	mgr := New(farm, pool)
	err := mgr.TMcommit([]*gdk.Heap{gdk.NewHeap(0, 8)}, nil)
	require.Error(t, err)
}

func TestRecoverRollsForwardWhenNewDirExists(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	mgr := New(farm, pool)

	require.NoError(t, os.WriteFile(pool.DirPath()+".new", []byte("BBP.dir 1\n"), 0o644))
	require.NoError(t, mgr.Recover())
	require.FileExists(t, pool.DirPath())
	require.NoFileExists(t, pool.DirPath()+".new")
}

func TestRecoverRollsBackFromBackup(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	mgr := New(farm, pool)

	require.NoError(t, os.MkdirAll(mgr.backupDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mgr.backupDir(), "BBP.dir"), []byte("BBP.dir 1\n"), 0o644))

	require.NoError(t, mgr.Recover())
	require.FileExists(t, pool.DirPath())
	require.NoDirExists(t, mgr.backupDir())
}

func TestSweepLeftoversMovesFiles(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	mgr := New(farm, pool)

	stray := filepath.Join(farm.Path, gdk.BATDir, "DELETE_ME", "orphan.tail")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o644))

	require.NoError(t, mgr.SweepLeftovers())
	require.NoFileExists(t, stray)
	require.FileExists(t, filepath.Join(farm.Path, gdk.BATDir, "LEFTOVERS", "orphan.tail"))
}

func TestSweepLeftoversNoopWhenEmpty(t *testing.T) {
	farm := newTestFarm(t)
	pool := bbp.New(farm, nil)
	mgr := New(farm, pool)
	require.NoError(t, mgr.SweepLeftovers())
}
