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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/batkernel/batkernel-lib/temporal"
)

// --- date ---

type dateAtom struct{}

func (dateAtom) ID() Type       { return TypeDate }
func (dateAtom) Name() string   { return "date" }
func (dateAtom) Width() int     { return 4 }
func (dateAtom) Varsized() bool { return false }
func (dateAtom) Nil() any       { return temporal.DateNil }
func (dateAtom) Compare(a, b any) int {
	x, y := a.(temporal.Date), b.(temporal.Date)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (dateAtom) Hash(a any) uint64 { return uint64(a.(temporal.Date)) }
// dateAltLayouts are the non-ISO forms spec.md §4.10 requires Parse to
// accept in addition to YYYY-MM-DD: "21 April 2019" and "21-Apr-2019".
var dateAltLayouts = []string{"2 January 2006", "2-Jan-2006"}

func (dateAtom) Parse(s string) (any, error) {
	if s == "nil" {
		return temporal.DateNil, nil
	}
	var y, m, d int
	if n, err := fmt.Sscanf(s, "%d-%d-%d", &y, &m, &d); err == nil && n == 3 {
		return temporal.NewDate(y, m, d)
	}
	for _, layout := range dateAltLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return temporal.NewDate(t.Year(), int(t.Month()), t.Day())
		}
	}
	return nil, fmt.Errorf("date: parse %q: unrecognized format (want YYYY-MM-DD, DD month YYYY, or DD-Mon-YYYY)", s)
}
func (dateAtom) Format(a any) string { return a.(temporal.Date).String() }

// --- daytime ---

type daytimeAtom struct{}

func (daytimeAtom) ID() Type       { return TypeDaytime }
func (daytimeAtom) Name() string   { return "daytime" }
func (daytimeAtom) Width() int     { return 8 }
func (daytimeAtom) Varsized() bool { return false }
func (daytimeAtom) Nil() any       { return temporal.DaytimeNil }
func (daytimeAtom) Compare(a, b any) int {
	x, y := a.(temporal.Daytime), b.(temporal.Daytime)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (daytimeAtom) Hash(a any) uint64 { return uint64(a.(temporal.Daytime)) }
func (daytimeAtom) Parse(s string) (any, error) {
	if s == "nil" {
		return temporal.DaytimeNil, nil
	}
	var h, m, sec, us int
	parts := strings.SplitN(s, ".", 2)
	if _, err := fmt.Sscanf(parts[0], "%d:%d:%d", &h, &m, &sec); err != nil {
		return nil, fmt.Errorf("daytime: parse %q: %w", s, err)
	}
	if len(parts) == 2 {
		frac := parts[1]
		for len(frac) < 6 {
			frac += "0"
		}
		us, _ = strconv.Atoi(frac[:6])
	}
	return temporal.NewDaytime(h, m, sec, us)
}
func (daytimeAtom) Format(a any) string { return a.(temporal.Daytime).String() }

// --- timestamp ---

type timestampAtom struct{}

func (timestampAtom) ID() Type       { return TypeTimestamp }
func (timestampAtom) Name() string   { return "timestamp" }
func (timestampAtom) Width() int     { return 8 }
func (timestampAtom) Varsized() bool { return false }
func (timestampAtom) Nil() any       { return temporal.TimestampNil }
func (timestampAtom) Compare(a, b any) int {
	x, y := a.(temporal.Timestamp), b.(temporal.Timestamp)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}
func (timestampAtom) Hash(a any) uint64 { return uint64(a.(temporal.Timestamp)) }
func (timestampAtom) Parse(s string) (any, error) {
	if s == "nil" {
		return temporal.TimestampNil, nil
	}
	parts := strings.SplitN(s, " ", 2)
	var y, m, d int
	if _, err := fmt.Sscanf(parts[0], "%d-%d-%d", &y, &m, &d); err != nil {
		return nil, fmt.Errorf("timestamp: parse %q: %w", s, err)
	}
	h, mi, sec, us := 0, 0, 0, 0
	if len(parts) == 2 {
		tparts := strings.SplitN(parts[1], ".", 2)
		if _, err := fmt.Sscanf(tparts[0], "%d:%d:%d", &h, &mi, &sec); err != nil {
			return nil, fmt.Errorf("timestamp: parse %q: %w", s, err)
		}
		if len(tparts) == 2 {
			frac := tparts[1]
			for len(frac) < 6 {
				frac += "0"
			}
			us, _ = strconv.Atoi(frac[:6])
		}
	}
	return temporal.NewTimestamp(y, m, d, h, mi, sec, us)
}
func (timestampAtom) Format(a any) string { return a.(temporal.Timestamp).String() }

// Now returns the current instant as a Timestamp, used by callers that
// need a wall-clock reference (e.g. BBP.dir housekeeping timestamps).
func Now() temporal.Timestamp {
	t := time.Now().UTC()
	ts, _ := temporal.NewTimestamp(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1000)
	return ts
}

// --- uuid ---

type uuidAtom struct{}

func (uuidAtom) ID() Type       { return TypeUUID }
func (uuidAtom) Name() string   { return "uuid" }
func (uuidAtom) Width() int     { return 16 }
func (uuidAtom) Varsized() bool { return false }
func (uuidAtom) Nil() any       { return [16]byte{} }
func (uuidAtom) Compare(a, b any) int {
	x, y := a.([16]byte), b.([16]byte)
	for i := range x {
		if x[i] != y[i] {
			if x[i] < y[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
func (uuidAtom) Hash(a any) uint64 {
	v := a.([16]byte)
	var h uint64 = 0xcbf29ce484222325
	for _, b := range v {
		h ^= uint64(b)
		h *= 0x100000001b3
	}
	return h
}
func (uuidAtom) Parse(s string) (any, error) {
	var out [16]byte
	clean := strings.ReplaceAll(s, "-", "")
	if len(clean) != 32 {
		return nil, fmt.Errorf("uuid: parse %q: wrong length", s)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("uuid: parse %q: %w", s, err)
	}
	copy(out[:], b)
	return out, nil
}
func (uuidAtom) Format(a any) string {
	v := a.([16]byte)
	return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16])
}

// NewUUID generates a random (version 4) uuid value.
func NewUUID() ([16]byte, error) {
	var v [16]byte
	if _, err := rand.Read(v[:]); err != nil {
		return v, err
	}
	v[6] = (v[6] & 0x0f) | 0x40
	v[8] = (v[8] & 0x3f) | 0x80
	return v, nil
}
