/* Copyright 2026 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSchedule(t *testing.T, modify func(*Settings)) *Schedule {
	s := testSettings()
	s.NonStopSession = false
	s.TimeZone = "UTC"
	modify(&s)
	require.NoError(t, s.Validate())
	sched, err := NewSchedule(&s)
	require.NoError(t, err)
	return sched
}

func at(day, hour, min int) time.Time {
	// January 2026 starts on a Thursday; the 4th is a Sunday.
	return time.Date(2026, 1, day, hour, min, 0, 0, time.UTC)
}

func TestScheduleDaily(t *testing.T) {
	sched := mustSchedule(t, func(s *Settings) {
		s.StartTime = "08:00:00"
		s.EndTime = "17:00:00"
	})

	for _, tc := range []struct {
		t  time.Time
		in bool
	}{
		{at(5, 7, 59), false},
		{at(5, 8, 0), true},
		{at(5, 12, 0), true},
		{at(5, 16, 59), true},
		{at(5, 17, 0), false},
		{at(5, 23, 0), false},
	} {
		assert.Equal(t, tc.in, sched.IsSessionTime(tc.t), tc.t.String())
	}

	assert.True(t, sched.IsSameSession(at(5, 9, 0), at(5, 16, 0)))
	assert.False(t, sched.IsSameSession(at(5, 9, 0), at(6, 9, 0)))
	assert.False(t, sched.IsSameSession(at(5, 9, 0), at(5, 18, 0)))

	start, in := sched.Start(at(5, 12, 0))
	require.True(t, in)
	assert.Equal(t, at(5, 8, 0), start)
}

func TestScheduleOvernight(t *testing.T) {
	sched := mustSchedule(t, func(s *Settings) {
		s.StartTime = "17:00:00"
		s.EndTime = "08:00:00"
	})

	assert.True(t, sched.IsSessionTime(at(5, 23, 0)))
	assert.True(t, sched.IsSessionTime(at(6, 7, 0)))
	assert.False(t, sched.IsSessionTime(at(6, 12, 0)))
	assert.True(t, sched.IsSameSession(at(5, 23, 0), at(6, 7, 0)))
}

func TestScheduleWeekly(t *testing.T) {
	sched := mustSchedule(t, func(s *Settings) {
		s.StartDay = "Sunday"
		s.StartTime = "17:00:00"
		s.EndDay = "fri"
		s.EndTime = "16:00:00"
	})

	assert.False(t, sched.IsSessionTime(at(4, 16, 0)), "Sunday before the open")
	assert.True(t, sched.IsSessionTime(at(4, 18, 0)), "Sunday evening")
	assert.True(t, sched.IsSessionTime(at(7, 3, 0)), "Wednesday night")
	assert.True(t, sched.IsSessionTime(at(9, 15, 59)), "Friday afternoon")
	assert.False(t, sched.IsSessionTime(at(9, 16, 0)), "Friday close")
	assert.False(t, sched.IsSessionTime(at(10, 12, 0)), "Saturday")
	assert.True(t, sched.IsSameSession(at(5, 9, 0), at(8, 9, 0)))
	assert.False(t, sched.IsSameSession(at(5, 9, 0), at(12, 9, 0)))
}

func TestScheduleAllDay(t *testing.T) {
	sched := mustSchedule(t, func(s *Settings) {
		s.StartTime = "00:00:00"
		s.EndTime = "00:00:00"
	})
	assert.True(t, sched.IsSessionTime(at(5, 0, 0)))
	assert.True(t, sched.IsSessionTime(at(5, 23, 59)))
	assert.False(t, sched.IsSameSession(at(5, 23, 59), at(6, 0, 1)))
}

func TestScheduleTimeZone(t *testing.T) {
	sched := mustSchedule(t, func(s *Settings) {
		s.StartTime = "08:00:00"
		s.EndTime = "17:00:00"
		s.TimeZone = "America/New_York"
	})
	// 08:30 in New York in January is 13:30 UTC.
	assert.True(t, sched.IsSessionTime(at(5, 13, 30)))
	assert.False(t, sched.IsSessionTime(at(5, 12, 30)))
}

func TestNonStop(t *testing.T) {
	s := testSettings()
	sched, err := NewSchedule(&s)
	require.NoError(t, err)
	assert.True(t, sched.IsSessionTime(at(10, 3, 0)))
	assert.True(t, sched.IsSameSession(at(1, 0, 0), at(30, 0, 0)))
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"Sunday": time.Sunday,
		"mon":    time.Monday,
		"TUE":    time.Tuesday,
		" sat ":  time.Saturday,
	} {
		d, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, d, in)
	}
	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}
