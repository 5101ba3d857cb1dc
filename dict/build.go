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

package dict

import (
	"fmt"
	"strings"

	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/msgtype"
)

// member is a message, group or component member before components
// are expanded.
type member struct {
	Kind     string // "field", "group" or "component"
	Name     string
	Required bool
	Members  []member
}

type messageSource struct {
	Name     string
	MsgType  string
	Category string
	Members  []member
}

type fieldSource struct {
	Number int
	Name   string
	Type   string
	Values map[string]string
}

// source is a dictionary as read from XML or YAML.
type source struct {
	Type        string
	Major       int
	Minor       int
	ServicePack int

	Fields     []fieldSource
	Header     []member
	Trailer    []member
	Messages   []messageSource
	Components map[string][]member
}

// maxDepth bounds component and group nesting.
const maxDepth = 32

// versions gives the BeginString and Application for the source.
func (s *source) versions() (string, string) {
	typ := strings.ToUpper(s.Type)
	if typ == "" {
		typ = "FIX"
	}
	v := fmt.Sprintf("%s.%d.%d", typ, s.Major, s.Minor)
	if typ == "FIX" && 5 <= s.Major {
		if 0 < s.ServicePack {
			v = fmt.Sprintf("%sSP%d", v, s.ServicePack)
		}
		return "FIXT.1.1", v
	}
	return v, ""
}

type builder struct {
	src    *source
	fields *Fields
}

func (s *source) build(opts *options) (*DataDictionary, error) {
	b := &builder{
		src:    s,
		fields: newFields(),
	}
	b.fields.Numeric = opts.numeric

	for _, fs := range s.Fields {
		if fs.Number <= 0 {
			return nil, fmt.Errorf("field %q: bad number %d", fs.Name, fs.Number)
		}
		if _, have := b.fields.byTag[fs.Number]; have {
			return nil, fmt.Errorf("field %d defined twice", fs.Number)
		}
		if _, have := b.fields.byName[fs.Name]; have {
			return nil, fmt.Errorf("field %q defined twice", fs.Name)
		}
		typ, ok := field.ParseType(fs.Type)
		if !ok {
			// Types this codec doesn't know (XID, Reserved100Plus
			// and friends) are carried as strings.
			typ = field.String
		}
		d := &FieldDef{
			Tag:    fs.Number,
			Name:   fs.Name,
			Type:   typ,
			Values: fs.Values,
		}
		b.fields.byTag[d.Tag] = d
		b.fields.byName[d.Name] = d
	}

	bs, appl := s.versions()
	dd := &DataDictionary{
		BeginString: bs,
		Application: appl,
		Fields:      b.fields,
		messages:    make(map[string]*Message),
		dataFields:  make(map[int]int),
	}

	var err error
	if dd.Header, err = b.graph("header", s.Header); err != nil {
		return nil, err
	}
	if dd.Trailer, err = b.graph("trailer", s.Trailer); err != nil {
		return nil, err
	}

	for _, ms := range s.Messages {
		if ms.MsgType == "" {
			return nil, fmt.Errorf("message %q has no msgtype", ms.Name)
		}
		if _, have := dd.messages[ms.MsgType]; have {
			return nil, fmt.Errorf("message %q defined twice", ms.MsgType)
		}
		g, err := b.graph(ms.Name, ms.Members)
		if err != nil {
			return nil, err
		}
		admin := strings.EqualFold(ms.Category, "admin")
		if ms.Category == "" {
			admin = msgtype.IsAdmin(ms.MsgType)
		}
		dd.messages[ms.MsgType] = &Message{
			Graph:   *g,
			Name:    ms.Name,
			MsgType: ms.MsgType,
			Admin:   admin,
		}
	}

	for _, d := range b.fields.byTag {
		if !d.Type.IsData() {
			continue
		}
		for _, suffix := range []string{"Length", "Len"} {
			if l, have := b.fields.byName[d.Name+suffix]; have {
				dd.dataFields[l.Tag] = d.Tag
				break
			}
		}
	}

	return dd, nil
}

func (b *builder) graph(name string, ms []member) (*Graph, error) {
	g := newGraph()
	if err := b.fill(g, name, ms, true, 0); err != nil {
		return nil, err
	}
	return g, nil
}

// fill adds members to g, expanding components.  Fields inside an
// optional component aren't required at this level.
func (b *builder) fill(g *Graph, where string, ms []member, required bool, depth int) error {
	if maxDepth < depth {
		return fmt.Errorf("%s: nesting too deep", where)
	}
	for _, m := range ms {
		req := required && m.Required
		switch m.Kind {
		case "field":
			d, have := b.fields.byName[m.Name]
			if !have {
				return fmt.Errorf("%s: undefined field %q", where, m.Name)
			}
			g.add(d.Tag, req)
		case "component":
			cms, have := b.src.Components[m.Name]
			if !have {
				return fmt.Errorf("%s: undefined component %q", where, m.Name)
			}
			if err := b.fill(g, where+"/"+m.Name, cms, req, depth+1); err != nil {
				return err
			}
		case "group":
			d, have := b.fields.byName[m.Name]
			if !have {
				return fmt.Errorf("%s: undefined group count field %q", where, m.Name)
			}
			gd := &Group{
				Graph:    *newGraph(),
				Name:     m.Name,
				CountTag: d.Tag,
			}
			// Members of a group are required relative to each
			// instance, whatever the group's own requiredness.
			if err := b.fill(&gd.Graph, where+"/"+m.Name, m.Members, true, depth+1); err != nil {
				return err
			}
			if len(gd.order) == 0 {
				return fmt.Errorf("%s: empty group %q", where, m.Name)
			}
			gd.Delimiter = gd.order[0]
			g.add(d.Tag, req)
			g.groups[d.Tag] = gd
		default:
			return fmt.Errorf("%s: unknown member kind %q", where, m.Kind)
		}
	}
	return nil
}
