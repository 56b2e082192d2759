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
	"fmt"
	"os"
	"path/filepath"
)

// FarmRole is a bitmask of what a farm may hold (spec.md §4.1
// "Farms": "a named storage root with a role bitmask").
type FarmRole int

const (
	FarmPersistent FarmRole = 1 << iota
	FarmTransient
)

// Farm is a named storage root.
type Farm struct {
	ID   int
	Name string
	Path string
	Role FarmRole
}

// BATDir is the fixed subdirectory name under a farm root holding all
// BAT-related files (spec.md §6 "bat/...").
const BATDir = "bat"

// HeapPath constructs <farm>/bat/<hex2-hi>/<hex2-lo>/<name>.<ext>
// (spec.md §4.1 "Farms", §6 "On-disk layout").
func (f *Farm) HeapPath(name, ext string) string {
	hi, lo := hashedDir(name)
	return filepath.Join(f.Path, BATDir, hi, lo, name+"."+ext)
}

// hashedDir derives the two-level hex directory prefix for a BAT's
// physical base name, spreading files across subdirectories so no
// single directory holds every BAT in a large farm.
func hashedDir(name string) (hi, lo string) {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return fmt.Sprintf("%02x", byte(h>>8)), fmt.Sprintf("%02x", byte(h))
}

// EnsureLayout creates the farm's fixed directory skeleton (spec.md
// §6): BACKUP, BACKUP/SUBCOMMIT, DELETE_ME, LEFTOVERS, TEMP_DATA.
func (f *Farm) EnsureLayout() error {
	dirs := []string{
		filepath.Join(f.Path, BATDir),
		filepath.Join(f.Path, BATDir, "BACKUP"),
		filepath.Join(f.Path, BATDir, "BACKUP", "SUBCOMMIT"),
		filepath.Join(f.Path, BATDir, "DELETE_ME"),
		filepath.Join(f.Path, BATDir, "LEFTOVERS"),
		filepath.Join(f.Path, BATDir, "TEMP_DATA"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("farm: create %s: %w", d, err)
		}
	}
	return nil
}
