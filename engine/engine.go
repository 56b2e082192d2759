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

// Package engine is the embedding-application facade: it wires the
// farm, BBP, transaction manager, and candidate/project helpers into
// one handle so a caller doesn't need to understand gdk's internal
// package boundaries.
package engine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/batkernel/batkernel-lib/bbp"
	"github.com/batkernel/batkernel-lib/config"
	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/gdk/candidate"
	"github.com/batkernel/batkernel-lib/log"
	"github.com/batkernel/batkernel-lib/project"
	"github.com/batkernel/batkernel-lib/tm"
)

// Engine is one open farm plus its BBP and transaction manager.
type Engine struct {
	Farm *gdk.Farm
	Pool *bbp.Pool
	TM   *tm.Manager
	log  log.Logger

	commits   prometheus.Counter
	bats      prometheus.Gauge
}

// Open initializes farm.Path's on-disk layout, recovers from any
// interrupted commit, and returns a ready-to-use Engine (spec.md §4.5,
// §4.6: BBP/TM startup sequence).
func Open(cfg *config.Farm, logger log.Logger, reg *prometheus.Registry) (*Engine, error) {
	if logger == nil {
		logger = log.Nop()
	}
	farm := &gdk.Farm{Name: cfg.Name, Path: cfg.Path, Role: farmRoleOf(cfg)}
	if err := farm.EnsureLayout(); err != nil {
		return nil, fmt.Errorf("engine: layout %s: %w", farm.Path, err)
	}
	pool := bbp.New(farm, nil)
	manager := tm.New(farm, pool)
	if err := manager.Recover(); err != nil {
		return nil, fmt.Errorf("engine: recover %s: %w", farm.Path, err)
	}
	if err := manager.SweepLeftovers(); err != nil {
		return nil, fmt.Errorf("engine: sweep leftovers %s: %w", farm.Path, err)
	}
	// Repopulate the pool from any BBP.dir a prior process left behind,
	// now that recovery has settled on its final contents (spec.md §8
	// "a bat committed before a restart is loadable by the same name
	// after it").
	if err := pool.LoadDir(); err != nil {
		return nil, fmt.Errorf("engine: load directory %s: %w", farm.Path, err)
	}

	e := &Engine{Farm: farm, Pool: pool, TM: manager, log: logger}
	if reg != nil {
		e.commits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "batkernel_commits_total",
			Help: "Number of completed TMcommit calls.",
		})
		e.bats = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "batkernel_bats_registered",
			Help: "Number of bat descriptors currently registered in the BBP.",
		})
		reg.MustRegister(e.commits, e.bats)
	}
	logger.Info("engine opened", "farm", farm.Name, "path", farm.Path)
	return e, nil
}

func farmRoleOf(cfg *config.Farm) gdk.FarmRole {
	if cfg.Transient {
		return gdk.FarmTransient
	}
	return gdk.FarmPersistent
}

// CreateColumn allocates a new BAT of type ttype and registers it
// under name.
func (e *Engine) CreateColumn(name string, ttype gdk.Type, capacity uint64) (*gdk.BAT, error) {
	b, err := gdk.COLnew(0, ttype, capacity, gdk.RolePersistent)
	if err != nil {
		return nil, fmt.Errorf("engine: create column %s: %w", name, err)
	}
	e.Pool.Register(name, b)
	if e.bats != nil {
		e.bats.Inc()
	}
	e.log.Debug("column created", "name", name, "type", ttype)
	return b, nil
}

// Lookup resolves a registered column by name.
func (e *Engine) Lookup(name string) (*gdk.BAT, error) {
	id, ok := e.Pool.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("engine: no such column %q", name)
	}
	return e.Pool.BATdescriptor(id)
}

// Project resolves a dense candidate range against a named source
// column (spec.md §4.8, §4.9).
func (e *Engine) Project(name string, lo, hi gdk.OID) (*gdk.BAT, error) {
	src, err := e.Lookup(name)
	if err != nil {
		return nil, err
	}
	cand := candidate.NewDense(lo, hi)
	return project.BATproject(cand, src)
}

// Commit flushes every dirty heap registered in the pool and installs
// a new BBP.dir (spec.md §4.6 "TMcommit").
func (e *Engine) Commit() error {
	var heaps []*gdk.Heap
	var paths []string
	for id := 1; ; id++ {
		b, err := e.Pool.BATdescriptor(id)
		if err != nil {
			break
		}
		name, ok := e.Pool.NameOf(id)
		if !ok {
			continue
		}
		if b.Col.Heap != nil {
			heaps = append(heaps, b.Col.Heap)
			paths = append(paths, e.Farm.HeapPath(name, "heap"))
		}
		if b.Col.VHeap != nil {
			heaps = append(heaps, b.Col.VHeap)
			paths = append(paths, e.Farm.HeapPath(name, "theap"))
		}
	}
	if err := e.TM.TMcommit(heaps, paths); err != nil {
		return fmt.Errorf("engine: commit: %w", err)
	}
	if e.commits != nil {
		e.commits.Inc()
	}
	e.log.Info("commit complete", "farm", e.Farm.Name, "heaps", len(heaps))
	return nil
}

