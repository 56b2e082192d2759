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

package temporal

import "fmt"

// Timestamp packs a Daytime into its low 37 bits and a Date into the
// next 26 bits (spec.md §4.10).
type Timestamp uint64

const (
	tsTimeWidth = 37
	tsTimeShift = 0
	tsDateWidth = dayWidth + monthWidth // 26
	tsDateShift = tsTimeShift + tsTimeWidth
)

// TimestampNil is the all-zero bit pattern (spec.md §3).
const TimestampNil Timestamp = 0

// UnixEpoch is the defined constant for 1970-01-01 00:00:00 UTC
// (spec.md §8 boundary case).
var UnixEpoch = MustNewTimestamp(1970, 1, 1, 0, 0, 0, 0)

func NewTimestamp(y, m, d, h, mi, s, us int) (Timestamp, error) {
	dt, err := NewDate(y, m, d)
	if err != nil {
		return TimestampNil, err
	}
	tm, err := NewDaytime(h, mi, s, us)
	if err != nil {
		return TimestampNil, err
	}
	return mkTimestamp(dt, tm), nil
}

func MustNewTimestamp(y, m, d, h, mi, s, us int) Timestamp {
	ts, err := NewTimestamp(y, m, d, h, mi, s, us)
	if err != nil {
		panic(err)
	}
	return ts
}

func mkTimestamp(dt Date, tm Daytime) Timestamp {
	return Timestamp(uint64(dt)<<tsDateShift) | Timestamp(uint64(tm)&((1<<tsTimeWidth)-1))
}

func (ts Timestamp) Date() Date {
	return Date((uint64(ts) >> tsDateShift) & ((1 << tsDateWidth) - 1))
}

func (ts Timestamp) Daytime() Daytime {
	v := uint64(ts) & ((1 << tsTimeWidth) - 1)
	return Daytime(int64(v))
}

func (ts Timestamp) IsNil() bool { return ts == TimestampNil }

// Diff returns a-b in microseconds (spec.md §4.10 "timestamp_diff
// returns microseconds").
func Diff(a, b Timestamp) int64 {
	dayDiff := DateDiff(a.Date(), b.Date())
	return dayDiff*DayUsec + a.Daytime().Diff(b.Daytime())
}

func (ts Timestamp) String() string {
	if ts.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%s %s", ts.Date(), ts.Daytime())
}
