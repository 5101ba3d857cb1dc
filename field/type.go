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

import "strings"

// Type is a FIX field data type as named in a data dictionary.
type Type int

const (
	Unknown Type = iota
	String
	Char
	Boolean
	Int
	Length
	SeqNum
	NumInGroup
	DayOfMonth
	TagNum
	Float
	Price
	Qty
	Amt
	PriceOffset
	Percentage
	Currency
	Exchange
	Country
	Language
	MultipleValueString
	MultipleCharValue
	UTCTimestamp
	UTCTimeOnly
	UTCDateOnly
	LocalMktDate
	MonthYear
	TZTimestamp
	TZTimeOnly
	Data
	XMLData
)

var typeNames = map[string]Type{
	"STRING":              String,
	"CHAR":                Char,
	"BOOLEAN":             Boolean,
	"INT":                 Int,
	"LENGTH":              Length,
	"SEQNUM":              SeqNum,
	"NUMINGROUP":          NumInGroup,
	"DAYOFMONTH":          DayOfMonth,
	"TAGNUM":              TagNum,
	"FLOAT":               Float,
	"PRICE":               Price,
	"QTY":                 Qty,
	"QUANTITY":            Qty,
	"AMT":                 Amt,
	"PRICEOFFSET":         PriceOffset,
	"PERCENTAGE":          Percentage,
	"CURRENCY":            Currency,
	"EXCHANGE":            Exchange,
	"COUNTRY":             Country,
	"LANGUAGE":            Language,
	"MULTIPLEVALUESTRING": MultipleValueString,
	"MULTIPLESTRINGVALUE": MultipleValueString,
	"MULTIPLECHARVALUE":   MultipleCharValue,
	"UTCTIMESTAMP":        UTCTimestamp,
	"TIME":                UTCTimestamp,
	"UTCTIMEONLY":         UTCTimeOnly,
	"UTCDATEONLY":         UTCDateOnly,
	"UTCDATE":             UTCDateOnly,
	"DATE":                UTCDateOnly,
	"LOCALMKTDATE":        LocalMktDate,
	"MONTHYEAR":           MonthYear,
	"TZTIMESTAMP":         TZTimestamp,
	"TZTIMEONLY":          TZTimeOnly,
	"DATA":                Data,
	"XMLDATA":             XMLData,
}

// ParseType maps a dictionary type name (e.g. "PRICE") to a Type.
// Unrecognized names give Unknown and false.
func ParseType(name string) (Type, bool) {
	t, have := typeNames[strings.ToUpper(name)]
	return t, have
}

func (t Type) String() string {
	for name, u := range typeNames {
		if u == t {
			switch name {
			case "QUANTITY", "TIME", "UTCDATE", "DATE", "MULTIPLESTRINGVALUE":
				continue
			}
			return name
		}
	}
	return "UNKNOWN"
}

// IsInt reports whether values of this type are integers.
func (t Type) IsInt() bool {
	switch t {
	case Int, Length, SeqNum, NumInGroup, DayOfMonth, TagNum:
		return true
	}
	return false
}

// IsFloat reports whether values of this type are decimal numbers.
func (t Type) IsFloat() bool {
	switch t {
	case Float, Price, Qty, Amt, PriceOffset, Percentage:
		return true
	}
	return false
}

// IsData reports whether values of this type may contain the field
// separator, with their length given by a preceding LENGTH field.
func (t Type) IsData() bool {
	return t == Data || t == XMLData
}

// NumericMode chooses how FLOAT-family values are represented.
type NumericMode int

const (
	// Float64Mode decodes FLOAT values as float64.
	Float64Mode NumericMode = iota

	// DecimalMode decodes FLOAT values as decimal.Decimal, which
	// preserves the exact wire value.
	DecimalMode
)

// ParseNumericMode accepts "float" (or "") and "decimal".
func ParseNumericMode(s string) (NumericMode, bool) {
	switch strings.ToLower(s) {
	case "", "float", "float64", "double":
		return Float64Mode, true
	case "decimal", "bigdecimal":
		return DecimalMode, true
	}
	return Float64Mode, false
}
