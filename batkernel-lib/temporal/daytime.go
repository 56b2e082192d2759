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

import (
	"fmt"
	"math"
)

// Daytime is microseconds since midnight, in [0, 86_400_000_000)
// (spec.md §4.10).
type Daytime int64

const DayUsec int64 = 24 * 60 * 60 * 1000000

// DaytimeNil is the dedicated minimum int64 (spec.md §3 "Nil
// sentinel").
const DaytimeNil Daytime = math.MinInt64

func (t Daytime) IsNil() bool { return t == DaytimeNil }

// NewDaytime validates h/m/s/us and packs them into microseconds.
func NewDaytime(h, m, s, us int) (Daytime, error) {
	if !(h >= 0 && h < 24 && m >= 0 && m < 60 && s >= 0 && s <= 60 && us >= 0 && us < 1000000) {
		return DaytimeNil, fmt.Errorf("temporal: invalid time %02d:%02d:%02d.%06d", h, m, s, us)
	}
	return Daytime((int64(h)*60+int64(m))*60+int64(s))*1000000 + Daytime(us), nil
}

func (t Daytime) Hour() int   { return int(int64(t) / 3600000000) }
func (t Daytime) Minute() int { return int((int64(t) / 60000000) % 60) }
func (t Daytime) Second() int { return int((int64(t) / 1000000) % 60) }
func (t Daytime) Micro() int  { return int(int64(t) % 1000000) }

func (t Daytime) String() string {
	if t.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", t.Hour(), t.Minute(), t.Second(), t.Micro())
}

// Diff returns a-b in microseconds (used by the timestamp Diff too).
func (a Daytime) Diff(b Daytime) int64 { return int64(a) - int64(b) }
