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

// Package field is the FIX field codec.
//
// A Field is a tag, the exact bytes that appeared on the wire for its
// value, and optionally that value decoded according to a data
// dictionary type.  Fields are values.  Changing a message field means
// installing a new Field.
package field

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const maxInt = int(^uint(0) >> 1)

// Field is one tag=value pair.
type Field struct {
	Tag int

	// Raw is the value exactly as it appears on the wire.
	Raw []byte

	// Value is the decoded value: int, float64, decimal.Decimal,
	// byte, bool, time.Time, []string or string.  Nil when the
	// field hasn't been decoded (for example, an unknown tag).
	Value interface{}

	// Type is the dictionary type used to decode Value.
	Type Type
}

// FormatError occurs when a value can't be decoded as its type.
type FormatError struct {
	Tag  int
	Type Type
	Raw  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("tag %d: %q is not a valid %s", e.Tag, e.Raw, e.Type)
}

// New makes an undecoded field with the given raw value.
func New(tag int, raw []byte) Field {
	return Field{
		Tag: tag,
		Raw: raw,
	}
}

// Decode makes a field by decoding raw according to t.
//
// On failure, the returned Field still has Tag and Raw set (and a nil
// Value) so callers can keep the field and report the error later.
func Decode(tag int, raw []byte, t Type, mode NumericMode) (Field, error) {
	f := Field{
		Tag:  tag,
		Raw:  raw,
		Type: t,
	}
	v, err := decode(raw, t, mode)
	if err != nil {
		return Field{Tag: tag, Raw: raw}, &FormatError{Tag: tag, Type: t, Raw: string(raw)}
	}
	f.Value = v
	return f, nil
}

func decode(raw []byte, t Type, mode NumericMode) (interface{}, error) {
	switch {
	case t.IsInt():
		return ParseInt(raw)
	case t.IsFloat():
		if mode == DecimalMode {
			return ParseDecimal(raw)
		}
		return ParseFloat(raw)
	}

	switch t {
	case Char:
		if len(raw) != 1 {
			return nil, fmt.Errorf("want one character")
		}
		return raw[0], nil
	case Boolean:
		return ParseBool(raw)
	case UTCTimestamp:
		return ParseTimestamp(raw)
	case UTCTimeOnly:
		return ParseTimeOnly(raw)
	case UTCDateOnly, LocalMktDate:
		return ParseDate(raw)
	case MonthYear:
		if !validMonthYear(raw) {
			return nil, fmt.Errorf("bad month-year")
		}
		return string(raw), nil
	case MultipleValueString:
		return strings.Fields(string(raw)), nil
	case MultipleCharValue:
		vs := strings.Fields(string(raw))
		for _, v := range vs {
			if len(v) != 1 {
				return nil, fmt.Errorf("want single characters")
			}
		}
		return vs, nil
	}
	return string(raw), nil
}

// ParseInt parses a FIX integer: an optional '-' followed by digits.
func ParseInt(raw []byte) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("empty integer")
	}
	neg := false
	bs := raw
	if bs[0] == '-' {
		neg = true
		bs = bs[1:]
		if len(bs) == 0 {
			return 0, fmt.Errorf("bad integer %q", raw)
		}
	}
	n := 0
	for _, b := range bs {
		if b < '0' || '9' < b {
			return 0, fmt.Errorf("bad integer %q", raw)
		}
		if (maxInt-int(b-'0'))/10 < n {
			return 0, &strconv.NumError{Func: "ParseInt", Num: string(raw), Err: strconv.ErrRange}
		}
		n = n*10 + int(b-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

func validFloat(raw []byte) bool {
	if len(raw) == 0 {
		return false
	}
	bs := raw
	if bs[0] == '-' {
		bs = bs[1:]
	}
	digits, dots := 0, 0
	for _, b := range bs {
		switch {
		case '0' <= b && b <= '9':
			digits++
		case b == '.':
			dots++
		default:
			return false
		}
	}
	return 0 < digits && dots <= 1
}

// ParseFloat parses a FIX float.  Exponents aren't allowed.
func ParseFloat(raw []byte) (float64, error) {
	if !validFloat(raw) {
		return 0, fmt.Errorf("bad float %q", raw)
	}
	return strconv.ParseFloat(string(raw), 64)
}

// ParseDecimal parses a FIX float without losing precision.
func ParseDecimal(raw []byte) (decimal.Decimal, error) {
	if !validFloat(raw) {
		return decimal.Zero, fmt.Errorf("bad float %q", raw)
	}
	return decimal.NewFromString(string(raw))
}

// ParseBool accepts "Y" and "N".
func ParseBool(raw []byte) (bool, error) {
	switch string(raw) {
	case "Y":
		return true, nil
	case "N":
		return false, nil
	}
	return false, fmt.Errorf("bad boolean %q", raw)
}

func validMonthYear(raw []byte) bool {
	if len(raw) < 6 {
		return false
	}
	if _, err := time.Parse("200601", string(raw[:6])); err != nil {
		return false
	}
	switch rest := raw[6:]; {
	case len(rest) == 0:
		return true
	case len(rest) == 2 && (rest[0] == 'w' || rest[0] == 'W'):
		return '1' <= rest[1] && rest[1] <= '5'
	case len(rest) == 2:
		d, err := ParseInt(rest)
		return err == nil && 1 <= d && d <= 31
	}
	return false
}

// String gives the raw value as a string.
func (f Field) String() string {
	return string(f.Raw)
}

// Int gives the value as an int.
func (f Field) Int() (int, error) {
	if v, is := f.Value.(int); is {
		return v, nil
	}
	return ParseInt(f.Raw)
}

// Float gives the value as a float64.
func (f Field) Float() (float64, error) {
	switch v := f.Value.(type) {
	case float64:
		return v, nil
	case decimal.Decimal:
		x, _ := v.Float64()
		return x, nil
	}
	return ParseFloat(f.Raw)
}

// Decimal gives the value as a decimal.Decimal.
func (f Field) Decimal() (decimal.Decimal, error) {
	if v, is := f.Value.(decimal.Decimal); is {
		return v, nil
	}
	return ParseDecimal(f.Raw)
}

// Bool gives the value as a bool.
func (f Field) Bool() (bool, error) {
	if v, is := f.Value.(bool); is {
		return v, nil
	}
	return ParseBool(f.Raw)
}

// Char gives the value as a single byte.
func (f Field) Char() (byte, error) {
	if v, is := f.Value.(byte); is {
		return v, nil
	}
	if len(f.Raw) != 1 {
		return 0, &FormatError{Tag: f.Tag, Type: Char, Raw: string(f.Raw)}
	}
	return f.Raw[0], nil
}

// Time gives the value as a UTC timestamp.
func (f Field) Time() (time.Time, error) {
	if v, is := f.Value.(time.Time); is {
		return v, nil
	}
	return ParseTimestamp(f.Raw)
}

// Values gives a multiple-value field's values.
func (f Field) Values() []string {
	if v, is := f.Value.([]string); is {
		return v
	}
	return strings.Fields(string(f.Raw))
}

// Equal compares tags and raw values.
func (f Field) Equal(g Field) bool {
	return f.Tag == g.Tag && bytes.Equal(f.Raw, g.Raw)
}

// AppendTo appends "tag=value<sep>" to buf.
func (f Field) AppendTo(buf []byte, sep byte) []byte {
	buf = strconv.AppendInt(buf, int64(f.Tag), 10)
	buf = append(buf, '=')
	buf = append(buf, f.Raw...)
	return append(buf, sep)
}

// FromString makes a STRING field.
func FromString(tag int, s string) Field {
	return Field{Tag: tag, Raw: []byte(s), Value: s, Type: String}
}

// FromInt makes an INT field.
func FromInt(tag int, n int) Field {
	return Field{Tag: tag, Raw: strconv.AppendInt(nil, int64(n), 10), Value: n, Type: Int}
}

// FromBool makes a BOOLEAN field.
func FromBool(tag int, b bool) Field {
	raw := []byte{'N'}
	if b {
		raw[0] = 'Y'
	}
	return Field{Tag: tag, Raw: raw, Value: b, Type: Boolean}
}

// FromChar makes a CHAR field.
func FromChar(tag int, c byte) Field {
	return Field{Tag: tag, Raw: []byte{c}, Value: c, Type: Char}
}

// FromFloat makes a FLOAT field with the fewest digits that represent
// f exactly.
func FromFloat(tag int, f float64) Field {
	return Field{Tag: tag, Raw: strconv.AppendFloat(nil, f, 'f', -1, 64), Value: f, Type: Float}
}

// FromDecimal makes a FLOAT field from a decimal.
func FromDecimal(tag int, d decimal.Decimal) Field {
	return Field{Tag: tag, Raw: []byte(d.String()), Value: d, Type: Float}
}

// FromTime makes a UTCTIMESTAMP field.
func FromTime(tag int, t time.Time, p Precision) Field {
	t = t.UTC()
	return Field{Tag: tag, Raw: []byte(t.Format(p.timestampLayout())), Value: t, Type: UTCTimestamp}
}

// FromValues makes a MULTIPLEVALUESTRING field.
func FromValues(tag int, vs ...string) Field {
	return Field{Tag: tag, Raw: []byte(strings.Join(vs, " ")), Value: vs, Type: MultipleValueString}
}
