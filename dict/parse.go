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
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/Comcast/fixsession/field"
)

//go:embed data/*.xml
var builtins embed.FS

var builtinFiles = map[string]string{
	"FIX.4.4": "data/FIX44.xml",
}

type options struct {
	numeric field.NumericMode
}

// Option adjusts how a dictionary is built.
type Option func(*options)

// WithNumericMode sets how FLOAT-family fields are decoded.
func WithNumericMode(m field.NumericMode) Option {
	return func(o *options) {
		o.numeric = m
	}
}

// Parse reads a dictionary in QuickFIX XML form or the equivalent
// YAML form.  Input that starts with '<' is XML.
func Parse(r io.Reader, opts ...Option) (*DataDictionary, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	bs, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	bs = bytes.TrimLeft(bs, " \t\r\n\uFEFF")

	var src *source
	if 0 < len(bs) && bs[0] == '<' {
		src, err = parseXML(bytes.NewReader(bs))
	} else {
		src, err = parseYAML(bs)
	}
	if err != nil {
		return nil, err
	}
	return src.build(o)
}

// Load reads a dictionary from a file.
func Load(filename string, opts ...Option) (*DataDictionary, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dd, err := Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return dd, nil
}

// Builtin returns one of the dictionaries compiled into this package.
// Currently "FIX.4.4".
func Builtin(name string, opts ...Option) (*DataDictionary, error) {
	filename, have := builtinFiles[name]
	if !have {
		return nil, fmt.Errorf("no builtin dictionary %q", name)
	}
	f, err := builtins.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, opts...)
}

// FIX44 returns the builtin FIX.4.4 dictionary.  It panics if the
// embedded dictionary is broken.
func FIX44(opts ...Option) *DataDictionary {
	dd, err := Builtin("FIX.4.4", opts...)
	if err != nil {
		panic(err)
	}
	return dd
}

// node is a minimal XML element tree.
type node struct {
	name     string
	attrs    map[string]string
	children []*node
}

func parseXMLTree(r io.Reader) (*node, error) {
	decoder := xml.NewDecoder(r)

	var stack []*node
	var root *node

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{
				name:  t.Name.Local,
				attrs: make(map[string]string, len(t.Attr)),
			}
			for _, a := range t.Attr {
				n.attrs[a.Name.Local] = a.Value
			}
			if 0 < len(stack) {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			} else if root == nil {
				root = n
			} else {
				return nil, fmt.Errorf("unexpected element %s after document end", t.Name.Local)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if 0 < len(stack) {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (n *node) intAttr(name string) (int, error) {
	s, have := n.attrs[name]
	if !have || s == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("<%s %s=%q>: %w", n.name, name, s, err)
	}
	return i, nil
}

func yes(s string) bool {
	switch strings.ToUpper(s) {
	case "Y", "YES", "TRUE":
		return true
	}
	return false
}

func parseXML(r io.Reader) (*source, error) {
	root, err := parseXMLTree(r)
	if err != nil {
		return nil, err
	}
	if root.name != "fix" {
		return nil, fmt.Errorf("root element is <%s>, not <fix>", root.name)
	}

	src := &source{
		Type:       root.attrs["type"],
		Components: make(map[string][]member),
	}
	if src.Major, err = root.intAttr("major"); err != nil {
		return nil, err
	}
	if src.Minor, err = root.intAttr("minor"); err != nil {
		return nil, err
	}
	if src.ServicePack, err = root.intAttr("servicepack"); err != nil {
		return nil, err
	}

	if n := root.child("header"); n != nil {
		src.Header = xmlMembers(n)
	}
	if n := root.child("trailer"); n != nil {
		src.Trailer = xmlMembers(n)
	}
	if n := root.child("messages"); n != nil {
		for _, m := range n.children {
			if m.name != "message" {
				continue
			}
			src.Messages = append(src.Messages, messageSource{
				Name:     m.attrs["name"],
				MsgType:  m.attrs["msgtype"],
				Category: m.attrs["msgcat"],
				Members:  xmlMembers(m),
			})
		}
	}
	if n := root.child("components"); n != nil {
		for _, c := range n.children {
			if c.name == "component" {
				src.Components[c.attrs["name"]] = xmlMembers(c)
			}
		}
	}
	if n := root.child("fields"); n != nil {
		for _, f := range n.children {
			if f.name != "field" {
				continue
			}
			num, err := f.intAttr("number")
			if err != nil {
				return nil, err
			}
			fs := fieldSource{
				Number: num,
				Name:   f.attrs["name"],
				Type:   f.attrs["type"],
			}
			for _, v := range f.children {
				if v.name != "value" {
					continue
				}
				if fs.Values == nil {
					fs.Values = make(map[string]string)
				}
				fs.Values[v.attrs["enum"]] = v.attrs["description"]
			}
			src.Fields = append(src.Fields, fs)
		}
	}
	return src, nil
}

func xmlMembers(n *node) []member {
	var acc []member
	for _, c := range n.children {
		switch c.name {
		case "field", "group", "component":
		default:
			continue
		}
		m := member{
			Kind:     c.name,
			Name:     c.attrs["name"],
			Required: yes(c.attrs["required"]),
		}
		if c.name == "group" {
			m.Members = xmlMembers(c)
		}
		acc = append(acc, m)
	}
	return acc
}

// The YAML form:
//
//	type: FIX
//	major: 4
//	minor: 4
//	fields:
//	  - {number: 8, name: BeginString, type: STRING}
//	  - {number: 54, name: Side, type: CHAR, values: {"1": BUY, "2": SELL}}
//	header:
//	  - {field: BeginString, required: true}
//	messages:
//	  - name: Heartbeat
//	    msgtype: "0"
//	    msgcat: admin
//	    members:
//	      - {field: TestReqID}
//	      - {group: NoPartyIDs, members: [{field: PartyID}]}
//	      - {component: Parties}
//	components:
//	  - {name: Parties, members: [...]}

type yamlMember struct {
	Field     string       `yaml:"field,omitempty"`
	Group     string       `yaml:"group,omitempty"`
	Component string       `yaml:"component,omitempty"`
	Required  bool         `yaml:"required,omitempty"`
	Members   []yamlMember `yaml:"members,omitempty"`
}

type yamlMessage struct {
	Name    string       `yaml:"name"`
	MsgType string       `yaml:"msgtype"`
	MsgCat  string       `yaml:"msgcat,omitempty"`
	Members []yamlMember `yaml:"members"`
}

type yamlComponent struct {
	Name    string       `yaml:"name"`
	Members []yamlMember `yaml:"members"`
}

type yamlField struct {
	Number int               `yaml:"number"`
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Values map[string]string `yaml:"values,omitempty"`
}

type yamlDictionary struct {
	Type        string          `yaml:"type"`
	Major       int             `yaml:"major"`
	Minor       int             `yaml:"minor"`
	ServicePack int             `yaml:"servicepack,omitempty"`
	Fields      []yamlField     `yaml:"fields"`
	Header      []yamlMember    `yaml:"header"`
	Trailer     []yamlMember    `yaml:"trailer"`
	Messages    []yamlMessage   `yaml:"messages"`
	Components  []yamlComponent `yaml:"components,omitempty"`
}

func parseYAML(bs []byte) (*source, error) {
	var y yamlDictionary
	if err := yaml.UnmarshalStrict(bs, &y); err != nil {
		return nil, err
	}

	src := &source{
		Type:        y.Type,
		Major:       y.Major,
		Minor:       y.Minor,
		ServicePack: y.ServicePack,
		Components:  make(map[string][]member),
	}
	var err error
	if src.Header, err = yamlMembers(y.Header); err != nil {
		return nil, err
	}
	if src.Trailer, err = yamlMembers(y.Trailer); err != nil {
		return nil, err
	}
	for _, m := range y.Messages {
		ms, err := yamlMembers(m.Members)
		if err != nil {
			return nil, fmt.Errorf("message %q: %w", m.Name, err)
		}
		src.Messages = append(src.Messages, messageSource{
			Name:     m.Name,
			MsgType:  m.MsgType,
			Category: m.MsgCat,
			Members:  ms,
		})
	}
	for _, c := range y.Components {
		ms, err := yamlMembers(c.Members)
		if err != nil {
			return nil, fmt.Errorf("component %q: %w", c.Name, err)
		}
		src.Components[c.Name] = ms
	}
	for _, f := range y.Fields {
		src.Fields = append(src.Fields, fieldSource{
			Number: f.Number,
			Name:   f.Name,
			Type:   f.Type,
			Values: f.Values,
		})
	}
	return src, nil
}

func yamlMembers(ys []yamlMember) ([]member, error) {
	acc := make([]member, 0, len(ys))
	for _, y := range ys {
		var m member
		switch {
		case y.Field != "":
			m = member{Kind: "field", Name: y.Field}
		case y.Group != "":
			ms, err := yamlMembers(y.Members)
			if err != nil {
				return nil, err
			}
			m = member{Kind: "group", Name: y.Group, Members: ms}
		case y.Component != "":
			m = member{Kind: "component", Name: y.Component}
		default:
			return nil, fmt.Errorf("member needs field, group or component")
		}
		m.Required = y.Required
		acc = append(acc, m)
	}
	return acc, nil
}

// BuiltinPrefix marks a dictionary reference naming a builtin
// dictionary, as in "builtin:FIX.4.4".
const BuiltinPrefix = "builtin:"

// Resolve loads the dictionary a settings reference names: either
// "builtin:" followed by a builtin name, or a file name.
func Resolve(ref string, opts ...Option) (*DataDictionary, error) {
	if strings.HasPrefix(ref, BuiltinPrefix) {
		return Builtin(strings.TrimPrefix(ref, BuiltinPrefix), opts...)
	}
	return Load(ref, opts...)
}
