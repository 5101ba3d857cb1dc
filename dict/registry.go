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

	"github.com/Comcast/fixsession/msgtype"
)

type key struct {
	beginString string
	application string
}

// Registry holds the dictionaries of an engine, keyed by BeginString
// and application version.  It's immutable once made.
type Registry struct {
	dicts map[key]*DataDictionary
}

// NewRegistry makes a Registry from the given dictionaries.
func NewRegistry(ds ...*DataDictionary) (*Registry, error) {
	r := &Registry{
		dicts: make(map[key]*DataDictionary, len(ds)),
	}
	for _, d := range ds {
		k := key{d.BeginString, d.Application}
		if _, have := r.dicts[k]; have {
			return nil, fmt.Errorf("dictionary for %s %s given twice", d.BeginString, d.Application)
		}
		r.dicts[k] = d
	}
	return r, nil
}

// Lookup finds a dictionary.  For FIXT.1.1, an application version
// without a FIX 5 dictionary falls back to a plain FIX 4 dictionary of
// that version.
func (r *Registry) Lookup(beginString, application string) (*DataDictionary, bool) {
	if r == nil {
		return nil, false
	}
	if d, have := r.dicts[key{beginString, application}]; have {
		return d, true
	}
	if application != "" {
		d, have := r.dicts[key{application, ""}]
		return d, have
	}
	return nil, false
}

// Transport finds the dictionary that defines the header, trailer and
// session messages for a BeginString.
func (r *Registry) Transport(beginString string) (*DataDictionary, bool) {
	return r.Lookup(beginString, "")
}

// MessageDictionary finds the definition of a message along with the
// dictionary defining its body fields.
//
// Session messages and FIX 4 messages come from the transport
// dictionary.  Application messages under FIXT.1.1 come from the
// dictionary for the application version.
func (r *Registry) MessageDictionary(beginString, application, msgType string) (*Message, *DataDictionary, bool) {
	var d *DataDictionary
	var have bool
	if application == "" || msgtype.IsAdmin(msgType) {
		d, have = r.Transport(beginString)
	} else {
		d, have = r.Lookup(beginString, application)
	}
	if !have {
		return nil, nil, false
	}
	m, have := d.Message(msgType)
	return m, d, have
}

var applVerIDs = map[string]string{
	"0": "FIX.2.7",
	"1": "FIX.3.0",
	"2": "FIX.4.0",
	"3": "FIX.4.1",
	"4": "FIX.4.2",
	"5": "FIX.4.3",
	"6": "FIX.4.4",
	"7": "FIX.5.0",
	"8": "FIX.5.0SP1",
	"9": "FIX.5.0SP2",
}

// ApplVerID maps an ApplVerID (1128) or DefaultApplVerID (1137) value
// to an application version.  Version names are accepted as they are.
func ApplVerID(v string) (string, bool) {
	if s, have := applVerIDs[v]; have {
		return s, true
	}
	for _, s := range applVerIDs {
		if s == v {
			return s, true
		}
	}
	return "", false
}
