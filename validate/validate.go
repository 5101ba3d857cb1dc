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

// Package validate checks messages against data dictionaries.
package validate

import (
	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
)

// Options turn individual checks on and off.
type Options struct {
	// CheckFieldsOutOfOrder rejects header or trailer fields found
	// in the wrong section and group members out of their declared
	// order.
	CheckFieldsOutOfOrder bool

	// CheckBodyOrder also requires body fields to follow the
	// message definition's declared order.  Most counterparties
	// don't, so it is off by default.
	CheckBodyOrder bool

	// CheckFieldsHaveValues rejects empty values.
	CheckFieldsHaveValues bool

	// CheckUserDefinedFields applies the usual checks to tags of
	// 5000 and above.  When false, those tags are accepted anywhere.
	CheckUserDefinedFields bool

	// AllowUnknownMessageFields accepts fields that the message
	// definition doesn't list, including tags the dictionary
	// doesn't know.
	AllowUnknownMessageFields bool

	// CheckGroups verifies NumInGroup counts and that each
	// instance starts with its delimiter.
	CheckGroups bool

	// AllowOtherEnumValues accepts values outside a field's
	// enumeration.
	AllowOtherEnumValues bool
}

// DefaultOptions turns on every check.
func DefaultOptions() Options {
	return Options{
		CheckFieldsOutOfOrder:  true,
		CheckFieldsHaveValues:  true,
		CheckUserDefinedFields: true,
		CheckGroups:            true,
	}
}

// UserDefinedMin is the first user-defined tag.
const UserDefinedMin = 5000

// Validator checks messages.  It has no mutable state.
type Validator struct {
	opts Options
}

// New makes a Validator.
func New(opts Options) *Validator {
	return &Validator{
		opts: opts,
	}
}

// Options returns the validator's options.
func (v *Validator) Options() Options {
	return v.opts
}

// Validate checks a message whose header, body and trailer are all
// described by dd.  When bodyOnly is true, the header and trailer
// are skipped.
//
// The first problem found is returned as a *reject.Error.
func (v *Validator) Validate(dd *dict.DataDictionary, m *message.Message, bodyOnly bool) error {
	return v.ValidateWith(dd, dd, m, bodyOnly)
}

// ValidateWith is Validate for FIXT.1.1, where the transport
// dictionary describes the header and trailer and the application
// dictionary describes the body.
//
// Checks run in this order: problems recorded while parsing, the
// MsgType, unknown fields, required fields, field order, repeating
// groups, then field values.
func (v *Validator) ValidateWith(transport, app *dict.DataDictionary, m *message.Message, bodyOnly bool) error {
	if m.Err != nil {
		return m.Err
	}

	md, have := app.Message(m.MsgType)
	if !have {
		return reject.New(reject.InvalidMsgType, tag.MsgType)
	}

	// (1) Every field belongs.
	if !bodyOnly {
		if err := v.known(transport.Fields, &m.Header, transport.Header); err != nil {
			return err
		}
		if err := v.known(transport.Fields, &m.Trailer, transport.Trailer); err != nil {
			return err
		}
	}
	if err := v.known(app.Fields, &m.Body, &md.Graph); err != nil {
		return err
	}

	// (2) Required fields are present.
	if !bodyOnly {
		if err := required(&m.Header, transport.Header); err != nil {
			return err
		}
		if err := required(&m.Trailer, transport.Trailer); err != nil {
			return err
		}
	}
	if err := required(&m.Body, &md.Graph); err != nil {
		return err
	}

	// (3) Order.
	if v.opts.CheckFieldsOutOfOrder {
		if m.OutOfOrderTag != 0 {
			return reject.New(reject.TagSpecifiedOutOfRequiredOrder, m.OutOfOrderTag)
		}
		if v.opts.CheckBodyOrder {
			if err := bodyOrder(&m.Body, &md.Graph); err != nil {
				return err
			}
		}
		if err := groupOrder(&m.Body, &md.Graph); err != nil {
			return err
		}
	}

	// (4) Repeating groups.
	if v.opts.CheckGroups {
		if !bodyOnly {
			if err := groups(&m.Header, transport.Header); err != nil {
				return err
			}
		}
		if err := groups(&m.Body, &md.Graph); err != nil {
			return err
		}
	}

	// (5) Values.
	if !bodyOnly {
		if err := v.values(transport.Fields, &m.Header); err != nil {
			return err
		}
		if err := v.values(transport.Fields, &m.Trailer); err != nil {
			return err
		}
	}
	return v.values(app.Fields, &m.Body)
}

func (v *Validator) userDefined(t int) bool {
	return UserDefinedMin <= t && !v.opts.CheckUserDefinedFields
}

func (v *Validator) known(fs *dict.Fields, g *message.FieldGraph, gd *dict.Graph) error {
	for _, t := range g.Tags() {
		if t <= 0 {
			return reject.New(reject.InvalidTagNumber, t)
		}
		if v.opts.CheckFieldsHaveValues {
			if f, _ := g.Get(t); len(f.Raw) == 0 {
				return reject.New(reject.TagSpecifiedWithoutValue, t)
			}
		}
		if v.userDefined(t) {
			continue
		}
		if _, defined := fs.Lookup(t); !defined {
			if v.opts.AllowUnknownMessageFields {
				continue
			}
			return reject.New(reject.UndefinedTag, t)
		}
		if !gd.Has(t) {
			if v.opts.AllowUnknownMessageFields {
				continue
			}
			return reject.New(reject.TagNotDefinedForMessageType, t)
		}
		sub, is := gd.Group(t)
		if !is {
			continue
		}
		for _, gr := range g.Groups(t) {
			if err := v.known(fs, &gr.FieldGraph, &sub.Graph); err != nil {
				return err
			}
		}
	}
	return nil
}

func required(g *message.FieldGraph, gd *dict.Graph) error {
	for _, t := range gd.Required() {
		if !g.Has(t) {
			return reject.MissingTag(t)
		}
	}
	for _, t := range g.GroupTags() {
		sub, is := gd.Group(t)
		if !is {
			continue
		}
		for _, gr := range g.Groups(t) {
			if err := required(&gr.FieldGraph, &sub.Graph); err != nil {
				return err
			}
		}
	}
	return nil
}

func bodyOrder(g *message.FieldGraph, gd *dict.Graph) error {
	last := -1
	for _, t := range g.Tags() {
		pos, have := gd.Position(t)
		if !have {
			continue
		}
		if pos < last {
			return reject.New(reject.TagSpecifiedOutOfRequiredOrder, t)
		}
		last = pos
	}
	return nil
}

// groupOrder checks that members of each group instance follow the
// declared order.
func groupOrder(g *message.FieldGraph, gd *dict.Graph) error {
	for _, t := range g.GroupTags() {
		sub, is := gd.Group(t)
		if !is {
			continue
		}
		for _, gr := range g.Groups(t) {
			last := -1
			for _, mt := range gr.Tags() {
				pos, have := sub.Position(mt)
				if !have {
					continue
				}
				if pos < last {
					return reject.New(reject.RepeatingGroupFieldsOutOfOrder, mt)
				}
				last = pos
			}
			if err := groupOrder(&gr.FieldGraph, &sub.Graph); err != nil {
				return err
			}
		}
	}
	return nil
}

func groups(g *message.FieldGraph, gd *dict.Graph) error {
	for _, t := range g.Tags() {
		sub, is := gd.Group(t)
		if !is {
			continue
		}
		n, err := g.GetInt(t)
		if err != nil {
			return reject.New(reject.IncorrectDataFormat, t)
		}
		instances := g.Groups(t)
		if n != len(instances) {
			return reject.New(reject.IncorrectNumInGroupCount, t)
		}
		for _, gr := range instances {
			tags := gr.Tags()
			if len(tags) == 0 || tags[0] != sub.Delimiter {
				return reject.New(reject.RepeatingGroupFieldsOutOfOrder, sub.Delimiter)
			}
			if err := groups(&gr.FieldGraph, &sub.Graph); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *Validator) values(fs *dict.Fields, g *message.FieldGraph) error {
	for _, t := range g.Tags() {
		f, _ := g.Get(t)
		def, have := fs.Lookup(t)
		if !have || len(f.Raw) == 0 {
			continue
		}
		if len(def.Values) != 0 && !v.opts.AllowOtherEnumValues {
			switch def.Type {
			case field.MultipleValueString, field.MultipleCharValue:
				for _, x := range f.Values() {
					if !def.Allows(x) {
						return reject.New(reject.ValueIsIncorrect, t)
					}
				}
			default:
				if !def.Allows(f.String()) {
					return reject.New(reject.ValueIsIncorrect, t)
				}
			}
		}
		if _, err := field.Decode(t, f.Raw, def.Type, fs.Numeric); err != nil {
			return reject.New(reject.IncorrectDataFormat, t)
		}
		for _, gr := range g.Groups(t) {
			if err := v.values(fs, &gr.FieldGraph); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckValidTagNumber parses a tag, which must be a positive integer.
func CheckValidTagNumber(s string) (int, error) {
	n, err := field.ParseInt([]byte(s))
	if err != nil || n <= 0 || s[0] == '-' {
		return 0, reject.Newf(reject.InvalidTagNumber, 0, "invalid tag number %q", s)
	}
	return n, nil
}
