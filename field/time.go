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

package field

import (
	"fmt"
	"time"
)

// Precision is the number of fractional-second digits written in
// outbound timestamps.
type Precision int

const (
	Seconds Precision = 0
	Millis  Precision = 3
	Micros  Precision = 6
	Nanos   Precision = 9
)

// ParsePrecision accepts 0, 3, 6 or 9.
func ParsePrecision(digits int) (Precision, error) {
	switch p := Precision(digits); p {
	case Seconds, Millis, Micros, Nanos:
		return p, nil
	}
	return Millis, fmt.Errorf("timestamp precision %d not one of 0, 3, 6, 9", digits)
}

func (p Precision) timestampLayout() string {
	return "20060102-" + p.timeLayout()
}

func (p Precision) timeLayout() string {
	switch p {
	case Seconds:
		return "15:04:05"
	case Micros:
		return "15:04:05.000000"
	case Nanos:
		return "15:04:05.000000000"
	}
	return "15:04:05.000"
}

// Go's parser accepts fractional seconds after the seconds field
// even when the layout has none, so these layouts cover every
// precision.  The lengths are checked separately.
const (
	timestampLayout = "20060102-15:04:05"
	timeOnlyLayout  = "15:04:05"
	dateLayout      = "20060102"
)

// ParseTimestamp parses a UTCTIMESTAMP with 0, 3, 6 or 9
// fractional-second digits.
func ParseTimestamp(raw []byte) (time.Time, error) {
	switch len(raw) {
	case 17, 21, 24, 27:
	default:
		return time.Time{}, fmt.Errorf("bad timestamp %q", raw)
	}
	return time.Parse(timestampLayout, string(raw))
}

// ParseTimeOnly parses a UTCTIMEONLY.
func ParseTimeOnly(raw []byte) (time.Time, error) {
	switch len(raw) {
	case 8, 12, 15, 18:
	default:
		return time.Time{}, fmt.Errorf("bad time %q", raw)
	}
	return time.Parse(timeOnlyLayout, string(raw))
}

// ParseDate parses a UTCDATEONLY or LOCALMKTDATE.
func ParseDate(raw []byte) (time.Time, error) {
	if len(raw) != 8 {
		return time.Time{}, fmt.Errorf("bad date %q", raw)
	}
	return time.Parse(dateLayout, string(raw))
}

// FormatTimestamp renders t (in UTC) as a UTCTIMESTAMP.
func FormatTimestamp(t time.Time, p Precision) string {
	return t.UTC().Format(p.timestampLayout())
}
