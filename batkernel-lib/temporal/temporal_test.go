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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLeapYears(t *testing.T) {
	require.True(t, IsLeapYear(2000))
	require.False(t, IsLeapYear(1900))
	require.True(t, IsLeapYear(2024))
	require.False(t, IsLeapYear(2023))
}

func TestDateRoundTrip(t *testing.T) {
	d, err := NewDate(2024, 2, 29)
	require.NoError(t, err)
	require.Equal(t, 2024, d.Year())
	require.Equal(t, 2, d.Month())
	require.Equal(t, 29, d.Day())
	require.Equal(t, "2024-02-29", d.String())
}

func TestInvalidDateRejected(t *testing.T) {
	_, err := NewDate(2023, 2, 29)
	require.Error(t, err)
}

func TestWeekdayAnchor(t *testing.T) {
	d, err := NewDate(2019, 4, 21)
	require.NoError(t, err)
	require.Equal(t, 7, Weekday(d)) // Sunday == 7, per the calibration anchor
}

func TestAddDaysAcrossMonthBoundary(t *testing.T) {
	d, err := NewDate(2024, 1, 31)
	require.NoError(t, err)
	next := d.AddDays(1)
	require.Equal(t, 2024, next.Year())
	require.Equal(t, 2, next.Month())
	require.Equal(t, 1, next.Day())
}

func TestAddMonthsClampsShortMonth(t *testing.T) {
	d, err := NewDate(2024, 1, 31)
	require.NoError(t, err)
	next := d.AddMonths(1)
	require.Equal(t, 2, next.Month())
	require.LessOrEqual(t, next.Day(), 29)
}

func TestDateDiff(t *testing.T) {
	a, _ := NewDate(2024, 1, 1)
	b, _ := NewDate(2024, 1, 11)
	require.Equal(t, int64(10), DateDiff(b, a))
	require.Equal(t, int64(-10), DateDiff(a, b))
}

func TestDaytimeRoundTrip(t *testing.T) {
	dt, err := NewDaytime(13, 45, 30, 250000)
	require.NoError(t, err)
	require.Equal(t, 13, dt.Hour())
	require.Equal(t, 45, dt.Minute())
	require.Equal(t, 30, dt.Second())
	require.Equal(t, 250000, dt.Micro())
}

func TestTimestampUnixEpoch(t *testing.T) {
	require.Equal(t, 1970, UnixEpoch.Date().Year())
	require.Equal(t, 1, UnixEpoch.Date().Month())
	require.Equal(t, 1, UnixEpoch.Date().Day())
}

func TestTimestampRoundTrip(t *testing.T) {
	ts, err := NewTimestamp(2026, 7, 30, 12, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2026, ts.Date().Year())
	require.Equal(t, 12, ts.Daytime().Hour())
}

func TestISOWeekKnownValue(t *testing.T) {
	// 2024-01-01 is a Monday, ISO week 1.
	d, _ := NewDate(2024, 1, 1)
	require.Equal(t, 1, ISOWeek(d))
}

func TestNilSentinels(t *testing.T) {
	require.True(t, DateNil.IsNil())
	require.True(t, DaytimeNil.IsNil())
	require.True(t, TimestampNil.IsNil())
}
