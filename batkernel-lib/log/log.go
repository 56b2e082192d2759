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

// Package log is the engine's thin structured-logging facade. Leaf
// packages depend on the Logger interface, not on zap directly, so the
// embedding application can supply its own sink.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger every engine package takes. Fields are
// alternating key/value pairs, mirroring the convention used throughout
// this codebase's diagnostic categories (spec's GDKdebug bitmask).
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// New builds a production logger at the given level ("debug", "info",
// "warn", "error"). Category gating (GDKdebug's check/io/bat/perf/...
// bitmask) is layered on top by Gated.
func New(level string) Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	z, err := cfg.Build()
	if err != nil {
		z = zap.NewNop()
	}
	return &zapLogger{l: z.Sugar()}
}

// Nop returns a Logger that discards everything, useful in tests.
func Nop() Logger {
	return &zapLogger{l: zap.NewNop().Sugar()}
}

func (z *zapLogger) Debug(msg string, kv ...any) { z.l.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...any)  { z.l.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...any)  { z.l.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...any) { z.l.Errorw(msg, kv...) }
func (z *zapLogger) With(kv ...any) Logger {
	return &zapLogger{l: z.l.With(kv...)}
}

// Category is one bit of the GDKdebug diagnostic mask (spec.md §6).
type Category uint32

const (
	CatCheck Category = 1 << iota
	CatIO
	CatBAT
	CatPerf
	CatDelta
	CatLoad
	CatHeap
	CatAlgo
	CatNoSync
	CatDeadbeef
	CatAlloc
)

// Gated wraps a Logger so Debug calls are dropped unless the category bit
// is set in mask, matching GDKdebug's category-selective diagnostics.
type Gated struct {
	Logger
	Mask Category
}

func (g Gated) Debugf(cat Category, msg string, kv ...any) {
	if g.Mask&cat != 0 {
		g.Logger.Debug(msg, kv...)
	}
}
