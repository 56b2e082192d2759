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

// Package temporal implements the engine's date/daytime/timestamp bit
// layouts and calendar arithmetic (spec.md §4.10). The encodings are
// part of the on-disk format and must not be redesigned (spec.md §9
// "Temporal encoding stability").
package temporal

import "fmt"

// Date packs day (5 bits) and a combined year/month field (21 bits)
// into a uint32, per spec.md §4.10:
//
//	low 5 bits  = day (1..31)
//	next 21 bits = (year + 4712) * 12 + (month - 1)
type Date uint32

const (
	yearMin       = -4712
	yearOffset    = -yearMin
	dayWidth      = 5
	dayShift      = 0
	monthWidth    = 21
	monthShift    = dayWidth + dayShift
	// YearMax is the largest representable year: YEAR_MIN + 2^21/12 - 1.
	YearMax = yearMin + (1<<monthWidth)/12 - 1
)

// DateNil is the all-zero bit pattern (spec.md §3 "Nil sentinel").
const DateNil Date = 0

var leapdays = [13]int{0, 31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
var cumdays = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// IsLeapYear applies the Gregorian rule (spec.md §4.10).
func IsLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// MonthDays returns the number of days in month m of year y.
func MonthDays(y, m int) int {
	d := leapdays[m]
	if m == 2 && !IsLeapYear(y) {
		d--
	}
	return d
}

// IsValidDate reports whether y-m-d is a representable calendar date.
func IsValidDate(y, m, d int) bool {
	return m > 0 && m <= 12 && d > 0 && y >= yearMin && y <= YearMax && d <= MonthDays(y, m)
}

// NewDate constructs a Date, returning an error (rather than the
// original's undefined behavior) when the triple is not a valid
// calendar date.
func NewDate(y, m, d int) (Date, error) {
	if !IsValidDate(y, m, d) {
		return DateNil, fmt.Errorf("temporal: invalid date %04d-%02d-%02d", y, m, d)
	}
	return mkdate(y, m, d), nil
}

func mkdate(y, m, d int) Date {
	return Date((uint32((y+yearOffset)*12+m-1) << monthShift) | uint32(d)<<dayShift)
}

// Day, Month, Year extract the three calendar fields.
func (dt Date) Day() int {
	return int((uint32(dt) >> dayShift) & ((1 << dayWidth) - 1))
}
func (dt Date) Month() int {
	return int((uint32(dt)>>monthShift)&((1<<monthWidth)-1))%12 + 1
}
func (dt Date) Year() int {
	return int((uint32(dt)>>monthShift)&((1<<monthWidth)-1))/12 - yearOffset
}

func (dt Date) IsNil() bool { return dt == DateNil }

// AddDays normalizes out-of-month-range additions by rolling the
// month/year forward or backward (spec.md §4.10 "date_add_day"),
// returning DateNil on overflow past YearMax/yearMin.
func (dt Date) AddDays(days int) Date {
	if dt.IsNil() {
		return DateNil
	}
	y, m, d := dt.Year(), dt.Month(), dt.Day()
	d += days
	for d > MonthDays(y, m) {
		d -= MonthDays(y, m)
		m++
		if m > 12 {
			m = 1
			y++
			if y > YearMax {
				return DateNil
			}
		}
	}
	for d < 1 {
		m--
		if m < 1 {
			m = 12
			y--
			if y < yearMin {
				return DateNil
			}
		}
		d += MonthDays(y, m)
	}
	return mkdate(y, m, d)
}

// AddMonths adds whole months, clamping the day-of-month down when the
// target month is shorter (spec.md §8 scenario: Feb 29 + 1 year -> Feb
// 28, via month arithmetic).
func (dt Date) AddMonths(months int) Date {
	if dt.IsNil() {
		return DateNil
	}
	y, m, d := dt.Year(), dt.Month(), dt.Day()
	total := (y+yearOffset)*12 + (m - 1) + months
	y = total/12 - yearOffset
	m = total%12 + 1
	if m < 1 {
		m += 12
		y--
	}
	if y > YearMax || y < yearMin {
		return DateNil
	}
	if d > MonthDays(y, m) {
		d = MonthDays(y, m)
	}
	return mkdate(y, m, d)
}

// AddYears is a convenience wrapper over AddMonths (spec.md §8
// scenario 5 phrases "+1 year" as month arithmetic).
func (dt Date) AddYears(years int) Date { return dt.AddMonths(years * 12) }

// cntOff anchors DaysSinceOffset's accumulator at a multiple of 400
// years before yearMin, so the leap-year correction below stays exact
// (mirrors the original's CNT_OFF).
const cntOff = ((yearOffset + 399) / 400) * 400

// daysSinceOffset counts days (including leap days) since a fixed
// epoch well before yearMin, used internally by Diff and Weekday.
func daysSinceOffset(dt Date) int64 {
	y := dt.Year() + cntOff
	m := dt.Month()
	d := dt.Day()
	days := int64(y)*365 + int64(y-1)/4 - int64(y-1)/100 + int64(y-1)/400
	days += int64(cumdays[m])
	if m > 2 && IsLeapYear(dt.Year()) {
		days++
	}
	days += int64(d)
	return days
}

// DateDiff returns a - b in days (spec.md §8: date_diff(2000-01-01,
// 1999-12-31) = 1).
func DateDiff(a, b Date) int64 {
	return daysSinceOffset(a) - daysSinceOffset(b)
}

// dowOffset is calibrated so Weekday(2019-04-21) == Sunday (7), the
// stipulation spec.md §4.10 anchors day-of-week on.
var dowOffset = computeDowOffset()

func computeDowOffset() int64 {
	ref, _ := NewDate(2019, 4, 21)
	raw := daysSinceOffset(ref) % 7
	// Sunday must read as 7; solve for the additive offset once at
	// init instead of hand-deriving the original's DOW_OFF constant.
	return (7 - raw - 1 + 7) % 7
}

// Weekday returns Monday=1..Sunday=7 (spec.md §4.10).
func Weekday(dt Date) int {
	raw := (daysSinceOffset(dt) + dowOffset) % 7
	if raw < 0 {
		raw += 7
	}
	wd := int(raw) + 1
	if wd == 8 {
		wd = 1
	}
	return wd
}

// ISOWeek returns the ISO-8601 week number: the week containing
// January 4th is week 1 (spec.md §4.10).
func ISOWeek(dt Date) int {
	jan4, _ := NewDate(dt.Year(), 1, 4)
	return isoWeekFrom(dt, jan4)
}

func isoWeekFrom(dt, jan4 Date) int {
	jan4Monday := jan4.AddDays(-(Weekday(jan4) - 1))
	diff := DateDiff(dt, jan4Monday)
	if diff < 0 {
		// dt falls in the last ISO week of the previous year.
		prevJan4, _ := NewDate(dt.Year()-1, 1, 4)
		return isoWeekFrom(dt, prevJan4)
	}
	return int(diff)/7 + 1
}

// USWeek returns the US week number: the week containing January 1st
// is week 1 (spec.md §4.10).
func USWeek(dt Date) int {
	jan1, _ := NewDate(dt.Year(), 1, 1)
	jan1Sunday := jan1.AddDays(-(Weekday(jan1) % 7))
	diff := DateDiff(dt, jan1Sunday)
	return int(diff)/7 + 1
}

// DayOfYear returns the 1-based ordinal day within the year.
func DayOfYear(dt Date) int {
	d := cumdays[dt.Month()] + dt.Day()
	if dt.Month() > 2 && IsLeapYear(dt.Year()) {
		d++
	}
	return d
}

func (dt Date) String() string {
	if dt.IsNil() {
		return "nil"
	}
	return fmt.Sprintf("%04d-%02d-%02d", dt.Year(), dt.Month(), dt.Day())
}
