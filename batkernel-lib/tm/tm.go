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

// Package tm is the transaction manager: atomic whole-farm commit and
// crash recovery via a backup directory (spec.md §4.6 "Transaction
// manager").
package tm

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/batkernel/batkernel-lib/bbp"
	"github.com/batkernel/batkernel-lib/gdk"
)

// Manager drives commit/recovery for one farm.
type Manager struct {
	Farm *gdk.Farm
	Pool *bbp.Pool
	lock *flock.Flock
}

// New builds the manager and the handle for the farm's commit lock
// file; the file is created and locked by TMcommit.
func New(farm *gdk.Farm, pool *bbp.Pool) *Manager {
	return &Manager{
		Farm: farm,
		Pool: pool,
		lock: flock.New(filepath.Join(farm.Path, gdk.BATDir, ".tm.lock")),
	}
}

func (m *Manager) backupDir() string { return filepath.Join(m.Farm.Path, gdk.BATDir, "BACKUP") }
func (m *Manager) deleteDir() string { return filepath.Join(m.Farm.Path, gdk.BATDir, "DELETE_ME") }

// TMcommit performs a whole-farm commit: a backup of the previous
// BBP.dir is taken, every dirty heap is backed up (if already on disk)
// and saved, the new directory is written to BBP.dir.new and
// atomically renamed over BBP.dir, then the backup is cleared (spec.md
// §4.6 "TMcommit").
func (m *Manager) TMcommit(heaps []*gdk.Heap, paths []string) error {
	if len(heaps) != len(paths) {
		return errors.New("tm: heaps/paths length mismatch")
	}
	locked, err := m.lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "tm: acquire commit lock")
	}
	if !locked {
		return errors.New("tm: commit already in progress")
	}
	defer m.lock.Unlock()

	if err := m.backupExistingDir(); err != nil {
		return errors.Wrap(err, "tm: backup BBP.dir")
	}
	for i, h := range heaps {
		if !h.Dirty() {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(paths[i]), 0o755); err != nil {
			return errors.Wrapf(err, "tm: create heap dir for %s", paths[i])
		}
		if err := m.backupBeforeOverwrite(paths[i]); err != nil {
			return errors.Wrapf(err, "tm: backup heap %s", paths[i])
		}
		if err := h.HEAPsave(paths[i]); err != nil {
			return errors.Wrapf(err, "tm: save heap %s", paths[i])
		}
	}
	if err := m.Pool.SaveDir(); err != nil {
		return errors.Wrap(err, "tm: write BBP.dir.new")
	}
	if err := m.Pool.CommitDir(); err != nil {
		return errors.Wrap(err, "tm: install BBP.dir")
	}
	if err := m.clearBackup(); err != nil {
		return errors.Wrap(err, "tm: clear backup dir")
	}
	return nil
}

func (m *Manager) backupExistingDir() error {
	src := m.Pool.DirPath()
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(m.backupDir(), 0o755); err != nil {
		return err
	}
	return copyFile(src, filepath.Join(m.backupDir(), "BBP.dir"))
}

func (m *Manager) backupBeforeOverwrite(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.MkdirAll(m.backupDir(), 0o755); err != nil {
		return err
	}
	dst := filepath.Join(m.backupDir(), filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		return nil // already backed up this commit cycle
	}
	return copyFile(path, dst)
}

func (m *Manager) clearBackup() error {
	return os.RemoveAll(m.backupDir())
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// Recover replays the BACKUP directory on startup (spec.md §4.6
// "Crash recovery"): if BBP.dir.new exists alongside a complete
// BACKUP, the interrupted commit is rolled forward by re-running the
// rename; if BBP.dir.new is missing or partial, BACKUP is rolled back
// onto the live farm and discarded.
func (m *Manager) Recover() error {
	newDir := m.Pool.DirPath() + ".new"
	backupExists := dirExists(m.backupDir())

	if fileExists(newDir) {
		if err := m.Pool.CommitDir(); err != nil {
			return errors.Wrap(err, "tm: recover: roll commit forward")
		}
		if backupExists {
			return errors.Wrap(m.clearBackup(), "tm: recover: clear backup after roll-forward")
		}
		return nil
	}
	if backupExists {
		if err := m.rollBack(); err != nil {
			return errors.Wrap(err, "tm: recover: roll back")
		}
	}
	return nil
}

func (m *Manager) rollBack() error {
	entries, err := os.ReadDir(m.backupDir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(m.backupDir(), e.Name())
		dst := filepath.Join(m.Farm.Path, gdk.BATDir, e.Name())
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return m.clearBackup()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// SweepLeftovers moves anything in DELETE_ME that survived a crash
// into LEFTOVERS, where an operator can inspect and remove it by hand
// (spec.md §4.6 "DELETE_ME / LEFTOVERS sweep").
func (m *Manager) SweepLeftovers() error {
	entries, err := os.ReadDir(m.deleteDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "tm: read DELETE_ME")
	}
	leftovers := filepath.Join(m.Farm.Path, gdk.BATDir, "LEFTOVERS")
	if err := os.MkdirAll(leftovers, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		src := filepath.Join(m.deleteDir(), e.Name())
		dst := filepath.Join(leftovers, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return errors.Wrapf(err, "tm: sweep %s", e.Name())
		}
	}
	return nil
}
