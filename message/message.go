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

// Package message is the FIX message model.
//
// A Message has a header, a body and a trailer, each an ordered
// FieldGraph.  Messages come from a Parser, which uses data
// dictionaries to decode fields and to rebuild repeating groups, or
// from New for outbound messages.
package message

import (
	"strings"
	"time"

	"github.com/Comcast/fixsession/msgtype"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/wire"
)

// Message is a FIX message.
type Message struct {
	Header  FieldGraph
	Body    FieldGraph
	Trailer FieldGraph

	MsgType string

	// Err is the first problem the Parser found that didn't stop
	// it from building the message: a duplicated tag, a bad group
	// count, a value that doesn't decode.  Validation reports it.
	Err error

	// OutOfOrderTag is the first header or trailer tag that showed
	// up in the wrong section, or zero.
	OutOfOrderTag int

	raw []byte
}

// New makes an outbound message.
func New(beginString, msgType string) *Message {
	m := &Message{
		MsgType: msgType,
	}
	m.Header.SetString(tag.BeginString, beginString)
	m.Header.SetString(tag.MsgType, msgType)
	return m
}

// Raw returns the bytes the message was parsed from, or nil for
// messages that weren't parsed.
func (m *Message) Raw() []byte {
	return m.raw
}

// IsAdmin reports whether this is a session-level message.
func (m *Message) IsAdmin() bool {
	return msgtype.IsAdmin(m.MsgType)
}

// BeginString is the header's BeginString.
func (m *Message) BeginString() string {
	f, _ := m.Header.Get(tag.BeginString)
	return f.String()
}

// SeqNum is the header's MsgSeqNum.
func (m *Message) SeqNum() (int, error) {
	return m.Header.GetInt(tag.MsgSeqNum)
}

// SendingTime is the header's SendingTime.
func (m *Message) SendingTime() (time.Time, error) {
	return m.Header.GetTime(tag.SendingTime)
}

// IsPossDup reports whether PossDupFlag is "Y".
func (m *Message) IsPossDup() bool {
	b, err := m.Header.GetBool(tag.PossDupFlag)
	return err == nil && b
}

// Clone makes a deep copy.
func (m *Message) Clone() *Message {
	c := &Message{
		MsgType:       m.MsgType,
		Err:           m.Err,
		OutOfOrderTag: m.OutOfOrderTag,
		raw:           m.raw,
	}
	m.Header.copyTo(&c.Header)
	m.Body.copyTo(&c.Body)
	m.Trailer.copyTo(&c.Trailer)
	return c
}

// Build serializes the message with the given separator.
// BodyLength and CheckSum are computed and stored in the message.
//
// BeginString, BodyLength and MsgType come first, then the rest of
// the header, the body and the trailer in field order, then CheckSum.
func (m *Message) Build(sep byte) []byte {
	if m.MsgType != "" {
		m.Header.SetString(tag.MsgType, m.MsgType)
	}

	var body []byte
	if f, have := m.Header.Get(tag.MsgType); have {
		body = f.AppendTo(body, sep)
	}
	body = m.Header.appendTo(body, sep, tag.BeginString, tag.BodyLength, tag.MsgType)
	body = m.Body.appendTo(body, sep)
	body = m.Trailer.appendTo(body, sep, tag.CheckSum)

	m.Header.SetInt(tag.BodyLength, len(body))

	buf := make([]byte, 0, len(body)+32)
	if f, have := m.Header.Get(tag.BeginString); have {
		buf = f.AppendTo(buf, sep)
	}
	bl, _ := m.Header.Get(tag.BodyLength)
	buf = bl.AppendTo(buf, sep)
	buf = append(buf, body...)

	sum := wire.FormatChecksum(wire.Checksum(buf))
	m.Trailer.SetString(tag.CheckSum, string(sum))
	cs, _ := m.Trailer.Get(tag.CheckSum)
	return cs.AppendTo(buf, sep)
}

// Bytes serializes the message with SOH separators.
func (m *Message) Bytes() []byte {
	return m.Build(wire.SOH)
}

// String renders the message with '|' separators for logs.
func (m *Message) String() string {
	if m.raw != nil {
		return strings.ReplaceAll(string(m.raw), "\x01", "|")
	}
	return string(m.Clone().Build('|'))
}
