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
	"fmt"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
)

// Schedule says when a session may be connected.
//
// A period runs from a start to the next end.  Daily schedules start
// every day at StartTime; weekly ones start on StartDay.  When the end
// comes before the start on the clock, the period crosses midnight
// (or the weekend).  Equal start and end make a 24 hour period.
type Schedule struct {
	nonStop    bool
	start, end *cronexpr.Expression
	loc        *time.Location
	lookback   time.Duration
}

// NewSchedule builds the schedule from the settings' StartTime,
// EndTime, StartDay, EndDay, TimeZone and NonStopSession.
func NewSchedule(s *Settings) (*Schedule, error) {
	if s.NonStopSession {
		return &Schedule{nonStop: true}, nil
	}

	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return nil, err
	}

	sched := &Schedule{
		loc:      loc,
		lookback: 2 * 24 * time.Hour,
	}

	startDOW, endDOW := "*", "*"
	if s.StartDay != "" {
		d, err := ParseWeekday(s.StartDay)
		if err != nil {
			return nil, err
		}
		startDOW = fmt.Sprint(int(d))
		if d, err = ParseWeekday(s.EndDay); err != nil {
			return nil, err
		}
		endDOW = fmt.Sprint(int(d))
		sched.lookback = 8 * 24 * time.Hour
	}

	if sched.start, err = clockExpr(s.StartTime, startDOW); err != nil {
		return nil, fmt.Errorf("StartTime: %w", err)
	}
	if sched.end, err = clockExpr(s.EndTime, endDOW); err != nil {
		return nil, fmt.Errorf("EndTime: %w", err)
	}

	return sched, nil
}

func clockExpr(clock, dow string) (*cronexpr.Expression, error) {
	h, m, s, err := parseClock(clock)
	if err != nil {
		return nil, err
	}
	// Fields: second minute hour day-of-month month day-of-week year.
	return cronexpr.Parse(fmt.Sprintf("%d %d %d * * %s *", s, m, h, dow))
}

func parseClock(s string) (h, m, sec int, err error) {
	t, err := time.Parse("15:04:05", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad time of day %q", s)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// ParseWeekday accepts English day names and their three letter
// abbreviations in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || (len(name) == 3 && name == full[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("bad day %q", s)
}

// Start returns the start of the period containing t.  The second
// value is false when t is outside every period.
func (s *Schedule) Start(t time.Time) (time.Time, bool) {
	if s.nonStop {
		return time.Time{}, true
	}
	t = t.In(s.loc)

	// The most recent start at or before t.
	var last time.Time
	for next := s.start.Next(t.Add(-s.lookback)); !next.IsZero() && !next.After(t); next = s.start.Next(next) {
		last = next
	}
	if last.IsZero() {
		return time.Time{}, false
	}
	if end := s.end.Next(last); end.IsZero() || !t.Before(end) {
		return time.Time{}, false
	}
	return last, true
}

// IsSessionTime reports whether t falls in a period.
func (s *Schedule) IsSessionTime(t time.Time) bool {
	_, in := s.Start(t)
	return in
}

// IsSameSession reports whether a and b fall in the same period.
func (s *Schedule) IsSameSession(a, b time.Time) bool {
	if s.nonStop {
		return true
	}
	sa, ina := s.Start(a)
	sb, inb := s.Start(b)
	return ina && inb && sa.Equal(sb)
}
