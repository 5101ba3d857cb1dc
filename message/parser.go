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

package message

import (
	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/wire"
)

// Parser builds Messages from wire bytes.
//
// With a Registry, fields are decoded according to their dictionary
// types and repeating groups are rebuilt.  Without one (or for a
// BeginString the Registry doesn't know), every field is kept
// undecoded and no groups are recognized.
//
// A Parser isn't modified by Parse, so one can be shared.
type Parser struct {
	Registry *dict.Registry

	// DefaultApplVerID is the application version for FIXT.1.1
	// messages without ApplVerID (1128).
	DefaultApplVerID string

	// Separator defaults to SOH.
	Separator byte

	// SkipChecksum disables CheckSum verification.
	SkipChecksum bool
}

type parse struct {
	tz     *wire.Tokenizer
	m      *Message
	tok    wire.Token
	peeked bool

	transport *dict.DataDictionary
	fields    *dict.Fields
	md        *dict.Message
}

func (ps *parse) next() (wire.Token, bool) {
	if ps.peeked {
		ps.peeked = false
		return ps.tok, true
	}
	if !ps.tz.Next() {
		return wire.Token{}, false
	}
	ps.tok = ps.tz.Token()
	return ps.tok, true
}

func (ps *parse) unread() {
	ps.peeked = true
}

// note records the first non-fatal problem.
func (ps *parse) note(r reject.Reason, t int) {
	if ps.m.Err == nil {
		ps.m.Err = reject.New(r, t)
	}
}

func (ps *parse) isHeader(t int) bool {
	if ps.transport != nil {
		return ps.transport.IsHeaderField(t)
	}
	return tag.IsHeader(t)
}

func (ps *parse) isTrailer(t int) bool {
	if ps.transport != nil {
		return ps.transport.IsTrailerField(t)
	}
	return tag.IsTrailer(t)
}

func (ps *parse) headerField(tok wire.Token) field.Field {
	if ps.transport != nil {
		return ps.transport.Fields.CreateField(tok.Tag, tok.Value)
	}
	return field.New(tok.Tag, tok.Value)
}

func (ps *parse) bodyField(tok wire.Token) field.Field {
	if ps.fields != nil {
		return ps.fields.CreateField(tok.Tag, tok.Value)
	}
	return ps.headerField(tok)
}

func structural(offset, t int, r reject.Reason, msg string) *wire.ParseError {
	return &wire.ParseError{
		Offset: offset,
		Tag:    t,
		Reason: r,
		Msg:    msg,
	}
}

// Parse builds a message from raw, which isn't retained.
//
// Problems with the framing fields (BeginString, BodyLength, MsgType
// out of place, a wrong BodyLength or CheckSum) give a
// *wire.ParseError.  If the header could be read, the partial message
// is returned along with that error so that the caller can still see
// its MsgSeqNum.  Other problems are recorded in the Message's Err.
func (p *Parser) Parse(raw []byte) (*Message, error) {
	sep := p.Separator
	if sep == 0 {
		sep = wire.SOH
	}
	buf := append([]byte(nil), raw...)

	ps := &parse{
		tz: wire.NewTokenizer(buf, sep),
		m:  &Message{raw: buf},
	}

	// BeginString, BodyLength and MsgType must lead.
	var begin, length, mtype wire.Token
	for i, want := range []int{tag.BeginString, tag.BodyLength, tag.MsgType} {
		tok, ok := ps.next()
		if !ok {
			if err := ps.tz.Err(); err != nil {
				return nil, err
			}
			return nil, structural(len(buf), want, reject.RequiredTagMissing, "message too short")
		}
		if tok.Tag != want {
			return nil, structural(tok.Offset, want, reject.TagSpecifiedOutOfRequiredOrder, "header out of order")
		}
		switch i {
		case 0:
			begin = tok
		case 1:
			length = tok
		case 2:
			mtype = tok
		}
	}

	beginString := string(begin.Value)
	ps.transport, _ = p.Registry.Transport(beginString)
	if ps.transport != nil {
		ps.tz.DataFields = mergeDataFields(ps.transport.DataFields())
	}

	m := ps.m
	m.MsgType = string(mtype.Value)
	m.Header.Set(ps.headerField(begin))
	m.Header.Set(ps.headerField(length))
	m.Header.Set(ps.headerField(mtype))

	// Header.
	for {
		tok, ok := ps.next()
		if !ok {
			break
		}
		if !ps.isHeader(tok.Tag) {
			ps.unread()
			break
		}
		ps.add(&m.Header, tok, ps.headerField(tok), ps.transportHeader())
	}

	// Find the message definition now that ApplVerID is known.
	appl := ""
	if f, have := m.Header.Get(tag.ApplVerID); have {
		appl, _ = dict.ApplVerID(f.String())
	} else if p.DefaultApplVerID != "" {
		appl, _ = dict.ApplVerID(p.DefaultApplVerID)
	}
	if p.Registry != nil {
		md, bd, _ := p.Registry.MessageDictionary(beginString, appl, m.MsgType)
		ps.md = md
		if bd != nil {
			ps.fields = bd.Fields
		}
	}

	// Body.
	inTrailer := false
	var checksum wire.Token
	for {
		tok, ok := ps.next()
		if !ok {
			break
		}
		if tok.Tag == tag.CheckSum {
			checksum = tok
			m.Trailer.Set(ps.headerField(tok))
			break
		}
		switch {
		case ps.isTrailer(tok.Tag):
			inTrailer = true
			ps.add(&m.Trailer, tok, ps.headerField(tok), nil)
		case ps.isHeader(tok.Tag):
			if m.OutOfOrderTag == 0 {
				m.OutOfOrderTag = tok.Tag
			}
			ps.add(&m.Header, tok, ps.headerField(tok), ps.transportHeader())
		default:
			if inTrailer && m.OutOfOrderTag == 0 {
				m.OutOfOrderTag = tok.Tag
			}
			var groups *dict.Graph
			if ps.md != nil {
				groups = &ps.md.Graph
			}
			ps.add(&m.Body, tok, ps.bodyField(tok), groups)
		}
	}

	if err := ps.tz.Err(); err != nil {
		return m, err
	}
	if !ps.tz.Finished() {
		return m, structural(len(buf), tag.CheckSum, reject.RequiredTagMissing, "missing CheckSum")
	}

	declared, err := field.ParseInt(length.Value)
	if err != nil {
		return m, structural(length.Offset, tag.BodyLength, reject.IncorrectDataFormat, "bad BodyLength")
	}
	if actual := checksum.Offset - length.End; actual != declared {
		return m, structural(length.Offset, tag.BodyLength, reject.ValueIsIncorrect, "BodyLength mismatch")
	}
	if !p.SkipChecksum {
		if len(checksum.Value) != 3 {
			return m, structural(checksum.Offset, tag.CheckSum, reject.IncorrectDataFormat, "CheckSum must be three digits")
		}
		got, err := field.ParseInt(checksum.Value)
		if err != nil || got != wire.Checksum(buf[:checksum.Offset]) {
			return m, structural(checksum.Offset, tag.CheckSum, reject.ValueIsIncorrect, "CheckSum mismatch")
		}
	}

	return m, nil
}

func (ps *parse) transportHeader() *dict.Graph {
	if ps.transport != nil {
		return ps.transport.Header
	}
	return nil
}

func mergeDataFields(fs map[int]int) map[int]int {
	if len(fs) == 0 {
		return wire.DefaultDataFields
	}
	acc := make(map[int]int, len(wire.DefaultDataFields)+len(fs))
	for k, v := range wire.DefaultDataFields {
		acc[k] = v
	}
	for k, v := range fs {
		acc[k] = v
	}
	return acc
}

// add puts a field into g and, when the field is a group count in
// gd, reads the group instances that follow.
func (ps *parse) add(g *FieldGraph, tok wire.Token, f field.Field, gd *dict.Graph) {
	if g.Has(tok.Tag) {
		ps.note(reject.TagAppearsMoreThanOnce, tok.Tag)
		return
	}
	g.Set(f)
	if gd == nil {
		return
	}
	if sub, is := gd.Group(tok.Tag); is {
		ps.groups(g, sub, f)
	}
}

// groups reads the instances of a repeating group.  Each instance
// starts with the delimiter and runs until a tag that isn't a member
// of the group, the next delimiter, or a member that repeats.
func (ps *parse) groups(parent *FieldGraph, gd *dict.Group, count field.Field) {
	n, err := count.Int()
	if err != nil {
		ps.note(reject.IncorrectDataFormat, count.Tag)
		return
	}

	var acc []*Group
	for {
		tok, ok := ps.next()
		if !ok {
			break
		}
		if tok.Tag != gd.Delimiter {
			ps.unread()
			if len(acc) == 0 && 0 < n && gd.Has(tok.Tag) {
				ps.note(reject.RepeatingGroupFieldsOutOfOrder, tok.Tag)
			}
			break
		}
		gr := NewGroup(gd.Delimiter)
		ps.add(&gr.FieldGraph, tok, ps.bodyField(tok), &gd.Graph)
		ps.instance(gr, gd)
		acc = append(acc, gr)
	}

	parent.setGroups(count.Tag, acc)
	if len(acc) != n {
		ps.note(reject.IncorrectNumInGroupCount, count.Tag)
	}
}

func (ps *parse) instance(gr *Group, gd *dict.Group) {
	for {
		tok, ok := ps.next()
		if !ok {
			return
		}
		if tok.Tag == gd.Delimiter || !gd.Has(tok.Tag) {
			ps.unread()
			return
		}
		if gr.Has(tok.Tag) {
			ps.note(reject.RepeatingGroupFieldsOutOfOrder, tok.Tag)
			ps.unread()
			return
		}
		ps.add(&gr.FieldGraph, tok, ps.bodyField(tok), &gd.Graph)
	}
}
