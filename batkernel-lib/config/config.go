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

// Package config loads the engine's farm/debug/checkpoint configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/batkernel/batkernel-lib/mathutil"
)

// Farm describes one storage root (spec.md §4.1 "Farms").
type Farm struct {
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	Persistent bool  `toml:"persistent"`
	Transient  bool  `toml:"transient"`
}

// Config is the engine's top-level configuration file shape.
type Config struct {
	Farms              []Farm          `toml:"farms"`
	HeapInitialSize    datasize.ByteSize `toml:"heap_initial_size"`
	HashGrowThreshold  int             `toml:"hash_grow_threshold"`
	CheckpointInterval int             `toml:"checkpoint_interval_seconds"`
	GDKDebug           uint32          `toml:"-"`
}

// Default returns a configuration with two farms: a persistent "default"
// farm at ./batdata and a transient "tmp" farm at ./batdata/tmp.
func Default() *Config {
	return &Config{
		Farms: []Farm{
			{Name: "default", Path: "./batdata", Persistent: true},
			{Name: "tmp", Path: "./batdata/tmp", Transient: true},
		},
		HeapInitialSize:    64 * datasize.MB,
		HashGrowThreshold:  8,
		CheckpointInterval: 30,
	}
}

// Load parses a TOML configuration file and applies the GDKdebug
// environment-variable override (spec.md §6).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.GDKDebug = debugMaskFromEnv()
	return cfg, nil
}

// debugNames maps GDKdebug bitmask bit names to bit position, in the
// order spec.md §6 enumerates them.
var debugNames = []string{
	"check", "io", "bat", "perf", "delta", "load", "heap", "algo",
	"nosync", "deadbeef", "alloc",
}

func debugMaskFromEnv() uint32 {
	raw := os.Getenv("GDKdebug")
	if raw == "" {
		return 0
	}
	if n, ok := mathutil.ParseUint64(raw); ok {
		return uint32(n)
	}
	var mask uint32
	for _, name := range strings.Split(raw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		for i, known := range debugNames {
			if known == name {
				mask |= 1 << uint(i)
			}
		}
	}
	return mask
}
