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

// Package testutil has helpers for building FIX messages in tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// SOH is the standard FIX field separator.
const SOH = '\x01'

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Msg builds a wire message from a '|'-separated list of fields.
//
// The given fields should start with 8= and should not include 9=
// or 10=.  Msg inserts BodyLength after BeginString and appends the
// CheckSum.
//
//	Msg("8=FIX.4.4|35=0|34=2|49=A|56=B|52=20200101-00:00:00")
func Msg(fields string) []byte {
	fields = strings.TrimSuffix(fields, "|")
	i := strings.IndexByte(fields, '|')
	if i < 0 {
		panic("testutil.Msg: need at least BeginString and MsgType")
	}
	begin := fields[:i+1]
	body := fields[i+1:] + "|"

	var buf bytes.Buffer
	buf.WriteString(begin)
	fmt.Fprintf(&buf, "9=%d|", len(body))
	buf.WriteString(body)

	bs := SOHify(buf.String())
	return append(bs, []byte(fmt.Sprintf("10=%03d\x01", Checksum(bs)))...)
}

// Raw converts a '|'-separated message into SOH-separated bytes as
// is.  No BodyLength or CheckSum is computed.
func Raw(s string) []byte {
	return SOHify(s)
}

// SOHify replaces every '|' with SOH.
func SOHify(s string) []byte {
	return []byte(strings.ReplaceAll(s, "|", string(SOH)))
}

// Pipes replaces every SOH with '|' for readable output.
func Pipes(bs []byte) string {
	return strings.ReplaceAll(string(bs), string(SOH), "|")
}

// Checksum is the byte sum modulo 256.
func Checksum(bs []byte) int {
	var n int
	for _, b := range bs {
		n += int(b)
	}
	return n % 256
}
