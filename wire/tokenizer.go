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

// Package wire reads and writes the FIX tag=value wire format.
//
// The Tokenizer splits one message into tag/value tokens without
// copying.  The Framer cuts complete messages out of a byte stream.
package wire

import (
	"bytes"
	"fmt"

	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
)

const maxInt = int(^uint(0) >> 1)

// SOH is the standard field separator.
const SOH byte = 0x01

// Token is one tag=value pair.  Value aliases the tokenizer's input.
type Token struct {
	Tag   int
	Value []byte

	// Offset is the index of the first byte of the tag.
	Offset int

	// End is the index just past the field's separator.
	End int
}

// ParseError reports malformed input.
type ParseError struct {
	Offset int

	// Tag is the tag involved if known.
	Tag int

	// Reason is the SessionRejectReason a Reject for this error
	// should carry.
	Reason reject.Reason

	Msg string
}

func (e *ParseError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("fix: %s (tag %d) at offset %d", e.Msg, e.Tag, e.Offset)
	}
	return fmt.Sprintf("fix: %s at offset %d", e.Msg, e.Offset)
}

// Reject gives the rejection corresponding to this error.
func (e *ParseError) Reject() *reject.Error {
	return reject.Newf(e.Reason, e.Tag, "%s", e.Msg)
}

// DefaultDataFields maps standard LENGTH tags to the DATA tags whose
// byte counts they carry.
var DefaultDataFields = map[int]int{
	90:  91,
	93:  89,
	95:  96,
	212: 213,
	348: 349,
	350: 351,
	352: 353,
	354: 355,
	356: 357,
	358: 359,
	360: 361,
	362: 363,
	364: 365,
	445: 446,
	618: 619,
	621: 622,
}

// Tokenizer lazily splits a message into tokens.
//
//	t := NewTokenizer(bs, SOH)
//	for t.Next() {
//		tok := t.Token()
//		...
//	}
//	if err := t.Err(); err != nil {
//		...
//	}
type Tokenizer struct {
	// DataFields maps LENGTH tags to DATA tags.  Defaults to
	// DefaultDataFields.
	DataFields map[int]int

	buf      []byte
	sep      byte
	pos      int
	tok      Token
	err      error
	finished bool

	dataTag int
	dataLen int
}

// NewTokenizer makes a Tokenizer for buf using the given separator.
func NewTokenizer(buf []byte, sep byte) *Tokenizer {
	return &Tokenizer{
		DataFields: DefaultDataFields,
		buf:        buf,
		sep:        sep,
		dataTag:    -1,
	}
}

// Next advances to the next token.  It returns false at the end of
// the input, after the CheckSum field, or on error.
func (t *Tokenizer) Next() bool {
	if t.finished || t.err != nil || len(t.buf) <= t.pos {
		return false
	}

	start := t.pos
	i := start
	n := 0
	for ; i < len(t.buf) && t.buf[i] != '='; i++ {
		b := t.buf[i]
		if b < '0' || '9' < b {
			t.fail(start, 0, reject.InvalidTagNumber, "non-digit in tag")
			return false
		}
		if (maxInt-int(b-'0'))/10 < n {
			t.fail(start, 0, reject.InvalidTagNumber, "tag out of range")
			return false
		}
		n = n*10 + int(b-'0')
	}
	if i == len(t.buf) {
		t.fail(start, 0, reject.Other, "missing '='")
		return false
	}
	if i == start {
		t.fail(start, 0, reject.InvalidTagNumber, "empty tag")
		return false
	}
	if start == 0 && n != tag.BeginString {
		t.fail(start, tag.BeginString, reject.RequiredTagMissing, "first field is not BeginString")
		return false
	}

	vstart := i + 1
	var vend int
	if n == t.dataTag {
		if len(t.buf)-vstart <= t.dataLen || t.buf[vstart+t.dataLen] != t.sep {
			t.fail(start, n, reject.IncorrectDataFormat, "data field length mismatch")
			return false
		}
		vend = vstart + t.dataLen
	} else {
		j := bytes.IndexByte(t.buf[vstart:], t.sep)
		if j < 0 {
			t.fail(start, n, reject.Other, "missing field separator")
			return false
		}
		vend = vstart + j
	}
	t.dataTag = -1

	t.tok = Token{
		Tag:    n,
		Value:  t.buf[vstart:vend],
		Offset: start,
		End:    vend + 1,
	}
	t.pos = vend + 1

	if dataTag, is := t.DataFields[n]; is {
		length, err := parseLength(t.tok.Value)
		if err != nil {
			t.fail(start, n, reject.IncorrectDataFormat, err.Error())
			return false
		}
		t.dataTag = dataTag
		t.dataLen = length
	}
	if n == tag.CheckSum {
		t.finished = true
	}
	return true
}

func (t *Tokenizer) fail(offset, tag int, r reject.Reason, msg string) {
	t.err = &ParseError{
		Offset: offset,
		Tag:    tag,
		Reason: r,
		Msg:    msg,
	}
}

func parseLength(bs []byte) (int, error) {
	if len(bs) == 0 {
		return 0, fmt.Errorf("empty length")
	}
	n := 0
	for _, b := range bs {
		if b < '0' || '9' < b {
			return 0, fmt.Errorf("bad length %q", bs)
		}
		if (maxInt-int(b-'0'))/10 < n {
			return 0, fmt.Errorf("length %q out of range", bs)
		}
		n = n*10 + int(b-'0')
	}
	return n, nil
}

// Token returns the current token.
func (t *Tokenizer) Token() Token {
	return t.tok
}

// Err returns the first error encountered, if any.
func (t *Tokenizer) Err() error {
	return t.err
}

// Finished reports whether the CheckSum field has been consumed.
func (t *Tokenizer) Finished() bool {
	return t.finished
}

// Pos is the offset of the next unread byte.
func (t *Tokenizer) Pos() int {
	return t.pos
}

// Checksum is the sum of the bytes modulo 256.
func Checksum(bs []byte) int {
	var n int
	for _, b := range bs {
		n += int(b)
	}
	return n % 256
}

// FormatChecksum renders a checksum as exactly three digits.
func FormatChecksum(n int) []byte {
	n %= 256
	return []byte{byte('0' + n/100), byte('0' + n/10%10), byte('0' + n%10)}
}

// AppendChecksum appends "10=nnn<sep>" computed over buf.
func AppendChecksum(buf []byte, sep byte) []byte {
	sum := FormatChecksum(Checksum(buf))
	buf = append(buf, '1', '0', '=')
	buf = append(buf, sum...)
	return append(buf, sep)
}
