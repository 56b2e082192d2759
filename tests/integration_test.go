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

// Package tests holds cross-package integration scenarios exercising
// the full farm/BBP/TM/engine stack end to end, the way a real
// embedding application would drive it.
package tests

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/batkernel/batkernel-lib/config"
	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/log"
	"github.com/batkernel/batkernel-lib/temporal"

	"github.com/batkernel/batkernel/engine"
)

// TestEndToEndFarmLifecycle walks a new farm through the full
// lifecycle a CLI session or embedding application would: open,
// create a couple of columns, append rows, commit, simulate a crash
// by reopening against the same path, then project and sort.
func TestEndToEndFarmLifecycle(t *testing.T) {
	root := filepath.Join(t.TempDir(), "farm")
	cfg := &config.Farm{Name: "main", Path: root, Persistent: true}

	eng, err := engine.Open(cfg, log.Nop(), nil)
	require.NoError(t, err)

	names, err := eng.CreateColumn("name", gdk.TypeStr, 0)
	require.NoError(t, err)
	ages, err := eng.CreateColumn("age", gdk.TypeInt, 0)
	require.NoError(t, err)

	rows := []struct {
		name string
		age  int32
	}{
		{"alice", 30},
		{"bob", 25},
		{"carol", 25}, // duplicate age on purpose, to exercise non-Key props
		{"alice", 30}, // duplicate name too, to exercise the string-trick dictionary
	}
	for _, r := range rows {
		require.NoError(t, names.BUNappend(r.name, false))
		require.NoError(t, ages.BUNappend(r.age, false))
	}
	require.EqualValues(t, 4, names.Count())

	// String interning: the two "alice" rows must share one vheap slot.
	require.Equal(t, names.ReadOffset(0), names.ReadOffset(3))

	names.Col.Heap.MarkDirty()
	ages.Col.Heap.MarkDirty()
	require.NoError(t, eng.Commit())

	// Simulate a process restart against the same farm path: a fresh
	// Open must run recovery cleanly (no interrupted commit pending),
	// repopulate the pool from the on-disk BBP.dir, and actually
	// reload the committed columns' values -- not merely see the
	// directory file on disk.
	reopened, err := engine.Open(cfg, log.Nop(), nil)
	require.NoError(t, err)
	require.FileExists(t, reopened.Pool.DirPath())

	reopenedNames, err := reopened.Lookup("name")
	require.NoError(t, err)
	require.EqualValues(t, 4, reopenedNames.Count())
	v, err := reopenedNames.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, "alice", v)
	v, err = reopenedNames.Fetch(2)
	require.NoError(t, err)
	require.Equal(t, "carol", v)

	reopenedAges, err := reopened.Lookup("age")
	require.NoError(t, err)
	require.EqualValues(t, 4, reopenedAges.Count())
	v, err = reopenedAges.Fetch(1)
	require.NoError(t, err)
	require.Equal(t, int32(25), v)

	// Project the first two rows by name over a dense candidate range,
	// relying on vheap sharing.
	out, err := eng.Project("name", names.HSeqBase, names.HSeqBase+2)
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Count())
	v0, err := out.Fetch(0)
	require.NoError(t, err)
	require.Equal(t, "alice", v0)

	// Stable sort on age: the two age-25 rows (bob, carol) must keep
	// their relative input order as a tie-break.
	sorted, order, groups, err := ages.BATsort(true, false, false)
	require.NoError(t, err)
	require.Equal(t, []any{int32(25), int32(25), int32(30), int32(30)}, sorted)
	require.Equal(t, 1, order[0]) // bob (position 1) sorts before carol (position 2)
	require.Equal(t, 2, order[1])
	require.Len(t, groups, 2)

	// Build a hash index over the age column via the BAT's own lazy
	// hash cache and confirm both age-25 positions are reachable.
	idx, err := ages.BAThash()
	require.NoError(t, err)
	next := idx.Lookup(int32(25))
	var hits int
	for {
		p, ok := next()
		if !ok {
			break
		}
		v, _ := ages.Fetch(p)
		if v == int32(25) {
			hits++
		}
	}
	require.Equal(t, 2, hits)
}

// TestCrashRecoveryRollsBackInterruptedCommit exercises the
// roll-back path: a stray BACKUP directory left by an interrupted
// commit must be restored by the next Open.
func TestCrashRecoveryRollsBackInterruptedCommit(t *testing.T) {
	root := filepath.Join(t.TempDir(), "farm")
	cfg := &config.Farm{Name: "main", Path: root, Persistent: true}

	eng, err := engine.Open(cfg, log.Nop(), nil)
	require.NoError(t, err)
	_, err = eng.CreateColumn("c1", gdk.TypeInt, 0)
	require.NoError(t, err)
	require.NoError(t, eng.Commit())

	// Drop a backup snapshot to simulate a commit that began but never
	// reached the clear-backup step.
	backupDir := filepath.Join(root, gdk.BATDir, "BACKUP")
	require.NoError(t, os.MkdirAll(backupDir, 0o755))
	data, err := os.ReadFile(eng.Pool.DirPath())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "BBP.dir"), data, 0o644))

	reopened, err := engine.Open(cfg, log.Nop(), nil)
	require.NoError(t, err)
	require.FileExists(t, reopened.Pool.DirPath())
	require.NoDirExists(t, backupDir)
}

// TestDateArithmeticAcrossLeapYear exercises the temporal package the
// way a column of date values would: adding a day across Feb 29.
func TestDateArithmeticAcrossLeapYear(t *testing.T) {
	d, err := temporal.NewDate(2024, 2, 29)
	require.NoError(t, err)
	next := d.AddDays(1)
	require.Equal(t, 2024, next.Year())
	require.Equal(t, 3, next.Month())
	require.Equal(t, 1, next.Day())
}
