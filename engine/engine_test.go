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

package engine

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/batkernel/batkernel-lib/config"
	"github.com/batkernel/batkernel-lib/gdk"
	"github.com/batkernel/batkernel-lib/log"
)

func openTestEngine(t *testing.T) *Engine {
	cfg := &config.Farm{Name: "test", Path: filepath.Join(t.TempDir(), "farm"), Persistent: true}
	e, err := Open(cfg, log.Nop(), nil)
	require.NoError(t, err)
	return e
}

func TestOpenCreatesLayoutAndRecovers(t *testing.T) {
	e := openTestEngine(t)
	require.Equal(t, gdk.FarmPersistent, e.Farm.Role)
}

func TestCreateColumnAndLookup(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.CreateColumn("price", gdk.TypeInt, 4)
	require.NoError(t, err)

	b, err := e.Lookup("price")
	require.NoError(t, err)
	require.NotNil(t, b)
	require.NoError(t, b.BUNappend(int32(42), false))
}

func TestLookupMissingColumnErrors(t *testing.T) {
	e := openTestEngine(t)
	_, err := e.Lookup("nope")
	require.Error(t, err)
}

func TestProjectDenseRange(t *testing.T) {
	e := openTestEngine(t)
	b, err := e.CreateColumn("qty", gdk.TypeInt, 0)
	require.NoError(t, err)
	require.NoError(t, b.BUNappendMulti([]any{int32(1), int32(2), int32(3)}, false))

	out, err := e.Project("qty", b.HSeqBase, b.HSeqBase+2)
	require.NoError(t, err)
	require.EqualValues(t, 2, out.Count())
}

func TestCommitWritesBBPDir(t *testing.T) {
	e := openTestEngine(t)
	b, err := e.CreateColumn("tbl", gdk.TypeInt, 0)
	require.NoError(t, err)
	require.NoError(t, b.BUNappend(int32(1), false))
	b.Col.Heap.MarkDirty()

	require.NoError(t, e.Commit())
	require.FileExists(t, e.Pool.DirPath())
}

func TestOpenRegistersPrometheusMetricsWhenGiven(t *testing.T) {
	cfg := &config.Farm{Name: "metrics", Path: filepath.Join(t.TempDir(), "farm"), Persistent: true}
	reg := prometheus.NewRegistry()
	e, err := Open(cfg, log.Nop(), reg)
	require.NoError(t, err)
	require.NotNil(t, e.commits)
}
