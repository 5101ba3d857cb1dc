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

// Package dict has FIX data dictionaries.
//
// A DataDictionary says which fields exist, their types, which fields
// each message carries, which of those are required, and how repeating
// groups nest.  Dictionaries are built once (see Parse, Load and
// Builtin) and are then read-only, so they can be shared by any number
// of sessions without locking.
package dict

import (
	"sort"

	"github.com/Comcast/fixsession/field"
)

// FieldDef describes one field.
type FieldDef struct {
	Tag  int
	Name string
	Type field.Type

	// Values, when not empty, are the allowed values mapped to
	// their descriptions.
	Values map[string]string
}

// Allows reports whether v is one of the field's enumerated values.
// Fields without enumerations allow anything.
func (d *FieldDef) Allows(v string) bool {
	if len(d.Values) == 0 {
		return true
	}
	_, have := d.Values[v]
	return have
}

// Fields is the field dictionary: every field a DataDictionary knows
// about.
type Fields struct {
	// Numeric chooses the representation of FLOAT values.
	Numeric field.NumericMode

	byTag  map[int]*FieldDef
	byName map[string]*FieldDef
}

func newFields() *Fields {
	return &Fields{
		byTag:  make(map[int]*FieldDef),
		byName: make(map[string]*FieldDef),
	}
}

// Lookup finds a field by tag.
func (fs *Fields) Lookup(tag int) (*FieldDef, bool) {
	d, have := fs.byTag[tag]
	return d, have
}

// ByName finds a field by name.
func (fs *Fields) ByName(name string) (*FieldDef, bool) {
	d, have := fs.byName[name]
	return d, have
}

// Len is the number of defined fields.
func (fs *Fields) Len() int {
	return len(fs.byTag)
}

// Decode makes a typed field.  Unknown tags give an undecoded field
// and no error.
func (fs *Fields) Decode(tag int, raw []byte) (field.Field, error) {
	d, have := fs.byTag[tag]
	if !have {
		return field.New(tag, raw), nil
	}
	return field.Decode(tag, raw, d.Type, fs.Numeric)
}

// CreateField makes the best field it can.  A value that doesn't
// decode is kept undecoded.  The validator reports it.
func (fs *Fields) CreateField(tag int, raw []byte) field.Field {
	f, _ := fs.Decode(tag, raw)
	return f
}

// Graph is an ordered set of member tags with required flags and
// nested group definitions.
type Graph struct {
	order    []int
	index    map[int]int
	required map[int]bool
	groups   map[int]*Group
}

func newGraph() *Graph {
	return &Graph{
		index:    make(map[int]int),
		required: make(map[int]bool),
		groups:   make(map[int]*Group),
	}
}

func (g *Graph) add(tag int, required bool) bool {
	if _, have := g.index[tag]; have {
		if required {
			g.required[tag] = true
		}
		return false
	}
	g.index[tag] = len(g.order)
	g.order = append(g.order, tag)
	if required {
		g.required[tag] = true
	}
	return true
}

// Has reports whether the tag is a direct member.
func (g *Graph) Has(tag int) bool {
	_, have := g.index[tag]
	return have
}

// Position gives the tag's declared position.
func (g *Graph) Position(tag int) (int, bool) {
	i, have := g.index[tag]
	return i, have
}

// IsRequired reports whether the tag is a required direct member.
func (g *Graph) IsRequired(tag int) bool {
	return g.required[tag]
}

// Required returns the required tags in declared order.
func (g *Graph) Required() []int {
	acc := make([]int, 0, len(g.required))
	for t := range g.required {
		acc = append(acc, t)
	}
	sort.Slice(acc, func(i, j int) bool {
		return g.index[acc[i]] < g.index[acc[j]]
	})
	return acc
}

// Order returns the member tags in declared order.
func (g *Graph) Order() []int {
	return append([]int(nil), g.order...)
}

// Group finds a nested group by its count (NumInGroup) tag.
func (g *Graph) Group(countTag int) (*Group, bool) {
	gd, have := g.groups[countTag]
	return gd, have
}

// Group is a repeating group definition.
type Group struct {
	Graph

	Name string

	// CountTag is the NumInGroup field that precedes the group
	// instances.
	CountTag int

	// Delimiter is the tag that starts every instance.
	Delimiter int
}

// Message is a message definition.
type Message struct {
	Graph

	Name    string
	MsgType string

	// Admin is true for session-level messages.
	Admin bool
}

// DataDictionary is a complete dictionary for one FIX version.
type DataDictionary struct {
	// BeginString is the transport version, like "FIX.4.4" or
	// "FIXT.1.1".
	BeginString string

	// Application is the application version for FIX 5 and later
	// (e.g. "FIX.5.0SP2").  Empty for transport dictionaries and
	// FIX 4.
	Application string

	Fields  *Fields
	Header  *Graph
	Trailer *Graph

	messages   map[string]*Message
	dataFields map[int]int
}

// Message finds a message definition by MsgType.
func (d *DataDictionary) Message(msgType string) (*Message, bool) {
	m, have := d.messages[msgType]
	return m, have
}

// MessageTypes lists the defined MsgTypes in sorted order.
func (d *DataDictionary) MessageTypes() []string {
	acc := make([]string, 0, len(d.messages))
	for t := range d.messages {
		acc = append(acc, t)
	}
	sort.Strings(acc)
	return acc
}

// IsHeaderField reports whether the tag belongs in the header.
func (d *DataDictionary) IsHeaderField(tag int) bool {
	return d.Header.Has(tag)
}

// IsTrailerField reports whether the tag belongs in the trailer.
func (d *DataDictionary) IsTrailerField(tag int) bool {
	return d.Trailer.Has(tag)
}

// DataFields maps LENGTH tags to the DATA tags that follow them.
func (d *DataDictionary) DataFields() map[int]int {
	return d.dataFields
}
