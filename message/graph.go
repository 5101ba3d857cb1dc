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
	"time"

	"github.com/shopspring/decimal"

	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/reject"
)

// FieldGraph is an ordered collection of fields with unique tags.
// Some fields are NumInGroup counts, and they carry repeating groups.
//
// The zero value is an empty graph.
type FieldGraph struct {
	tags   []int
	fields map[int]field.Field
	groups map[int][]*Group
}

// Group is one instance of a repeating group.
type Group struct {
	FieldGraph

	// Delimiter is the tag that must come first.
	Delimiter int
}

// NewGroup makes an empty group instance.
func NewGroup(delimiter int) *Group {
	return &Group{
		Delimiter: delimiter,
	}
}

// Set installs a field.  A field with the same tag is replaced in
// place.  Otherwise the field goes at the end.
func (g *FieldGraph) Set(f field.Field) {
	if g.fields == nil {
		g.fields = make(map[int]field.Field)
	}
	if _, have := g.fields[f.Tag]; !have {
		g.tags = append(g.tags, f.Tag)
	}
	g.fields[f.Tag] = f
}

func (g *FieldGraph) SetString(tag int, s string) {
	g.Set(field.FromString(tag, s))
}

func (g *FieldGraph) SetInt(tag int, n int) {
	g.Set(field.FromInt(tag, n))
}

func (g *FieldGraph) SetBool(tag int, b bool) {
	g.Set(field.FromBool(tag, b))
}

func (g *FieldGraph) SetChar(tag int, c byte) {
	g.Set(field.FromChar(tag, c))
}

func (g *FieldGraph) SetFloat(tag int, f float64) {
	g.Set(field.FromFloat(tag, f))
}

func (g *FieldGraph) SetDecimal(tag int, d decimal.Decimal) {
	g.Set(field.FromDecimal(tag, d))
}

func (g *FieldGraph) SetTime(tag int, t time.Time, p field.Precision) {
	g.Set(field.FromTime(tag, t, p))
}

// Get finds a field.
func (g *FieldGraph) Get(tag int) (field.Field, bool) {
	f, have := g.fields[tag]
	return f, have
}

// Has reports whether the tag is present.
func (g *FieldGraph) Has(tag int) bool {
	_, have := g.fields[tag]
	return have
}

// GetString returns the field's value.  A missing field gives a
// RequiredTagMissing rejection.
func (g *FieldGraph) GetString(tag int) (string, error) {
	f, have := g.fields[tag]
	if !have {
		return "", reject.MissingTag(tag)
	}
	return f.String(), nil
}

// GetInt is GetString for integers.  A bad value gives an
// IncorrectDataFormat rejection.
func (g *FieldGraph) GetInt(tag int) (int, error) {
	f, have := g.fields[tag]
	if !have {
		return 0, reject.MissingTag(tag)
	}
	n, err := f.Int()
	if err != nil {
		return 0, reject.New(reject.IncorrectDataFormat, tag)
	}
	return n, nil
}

// GetBool is GetString for booleans.
func (g *FieldGraph) GetBool(tag int) (bool, error) {
	f, have := g.fields[tag]
	if !have {
		return false, reject.MissingTag(tag)
	}
	b, err := f.Bool()
	if err != nil {
		return false, reject.New(reject.IncorrectDataFormat, tag)
	}
	return b, nil
}

// GetTime is GetString for UTC timestamps.
func (g *FieldGraph) GetTime(tag int) (time.Time, error) {
	f, have := g.fields[tag]
	if !have {
		return time.Time{}, reject.MissingTag(tag)
	}
	t, err := f.Time()
	if err != nil {
		return time.Time{}, reject.New(reject.IncorrectDataFormat, tag)
	}
	return t, nil
}

// Remove deletes a field and any groups it counts.
func (g *FieldGraph) Remove(tag int) {
	if _, have := g.fields[tag]; !have {
		return
	}
	delete(g.fields, tag)
	delete(g.groups, tag)
	for i, t := range g.tags {
		if t == tag {
			g.tags = append(g.tags[:i:i], g.tags[i+1:]...)
			break
		}
	}
}

// Tags lists the tags in order.
func (g *FieldGraph) Tags() []int {
	return append([]int(nil), g.tags...)
}

// Len is the number of fields, not counting fields inside groups.
func (g *FieldGraph) Len() int {
	return len(g.tags)
}

// Groups returns the instances of the group counted by countTag.
func (g *FieldGraph) Groups(countTag int) []*Group {
	return g.groups[countTag]
}

// GroupTags lists the count tags that have groups, in field order.
func (g *FieldGraph) GroupTags() []int {
	var acc []int
	for _, t := range g.tags {
		if _, have := g.groups[t]; have {
			acc = append(acc, t)
		}
	}
	return acc
}

// AddGroup appends a new instance of a group and updates the count
// field.
func (g *FieldGraph) AddGroup(countTag, delimiter int) *Group {
	gr := NewGroup(delimiter)
	g.SetGroups(countTag, append(g.Groups(countTag), gr))
	return gr
}

// SetGroups replaces the instances of a group and sets the count
// field to match.
func (g *FieldGraph) SetGroups(countTag int, gs []*Group) {
	g.SetInt(countTag, len(gs))
	g.setGroups(countTag, gs)
}

func (g *FieldGraph) setGroups(countTag int, gs []*Group) {
	if g.groups == nil {
		g.groups = make(map[int][]*Group)
	}
	g.groups[countTag] = gs
}

// Clone makes a deep copy.
func (g *FieldGraph) Clone() *FieldGraph {
	c := &FieldGraph{}
	g.copyTo(c)
	return c
}

func (g *FieldGraph) copyTo(c *FieldGraph) {
	c.tags = append([]int(nil), g.tags...)
	if g.fields != nil {
		c.fields = make(map[int]field.Field, len(g.fields))
		for t, f := range g.fields {
			f.Raw = append([]byte(nil), f.Raw...)
			c.fields[t] = f
		}
	}
	if g.groups != nil {
		c.groups = make(map[int][]*Group, len(g.groups))
		for t, gs := range g.groups {
			cs := make([]*Group, len(gs))
			for i, gr := range gs {
				cs[i] = gr.Clone()
			}
			c.groups[t] = cs
		}
	}
}

// Clone makes a deep copy of a group instance.
func (gr *Group) Clone() *Group {
	c := &Group{Delimiter: gr.Delimiter}
	gr.copyTo(&c.FieldGraph)
	return c
}

// appendTo writes the fields (and groups) in order, skipping the
// given tags.
func (g *FieldGraph) appendTo(buf []byte, sep byte, skip ...int) []byte {
LOOP:
	for _, t := range g.tags {
		for _, s := range skip {
			if t == s {
				continue LOOP
			}
		}
		buf = g.fields[t].AppendTo(buf, sep)
		for _, gr := range g.groups[t] {
			buf = gr.appendTo(buf, sep)
		}
	}
	return buf
}
