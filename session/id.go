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

package session

import (
	"strings"

	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/tag"
)

// SessionID identifies a session from the local side: Sender is us
// and Target is the counterparty.
type SessionID struct {
	BeginString      string `json:"beginString"`
	SenderCompID     string `json:"senderCompID"`
	SenderSubID      string `json:"senderSubID,omitempty"`
	SenderLocationID string `json:"senderLocationID,omitempty"`
	TargetCompID     string `json:"targetCompID"`
	TargetSubID      string `json:"targetSubID,omitempty"`
	TargetLocationID string `json:"targetLocationID,omitempty"`
	Qualifier        string `json:"qualifier,omitempty"`
}

func compID(comp, sub, loc string) string {
	s := comp
	if sub != "" {
		s += "/" + sub
	}
	if loc != "" {
		if sub == "" {
			s += "/"
		}
		s += "/" + loc
	}
	return s
}

// String renders the ID as "FIX.4.4:SENDER->TARGET", with sub and
// location IDs after slashes and the qualifier after a colon.
func (id SessionID) String() string {
	var b strings.Builder
	b.WriteString(id.BeginString)
	b.WriteByte(':')
	b.WriteString(compID(id.SenderCompID, id.SenderSubID, id.SenderLocationID))
	b.WriteString("->")
	b.WriteString(compID(id.TargetCompID, id.TargetSubID, id.TargetLocationID))
	if id.Qualifier != "" {
		b.WriteByte(':')
		b.WriteString(id.Qualifier)
	}
	return b.String()
}

// Reverse swaps the sender and target.
func (id SessionID) Reverse() SessionID {
	return SessionID{
		BeginString:      id.BeginString,
		SenderCompID:     id.TargetCompID,
		SenderSubID:      id.TargetSubID,
		SenderLocationID: id.TargetLocationID,
		TargetCompID:     id.SenderCompID,
		TargetSubID:      id.SenderSubID,
		TargetLocationID: id.SenderLocationID,
		Qualifier:        id.Qualifier,
	}
}

// IDFromHeader reads a SessionID from a message header as its sender
// sees it.  With reversed, the ID is from the receiver's side, which
// is what an acceptor wants for an inbound Logon.
func IDFromHeader(m *message.Message, reversed bool) SessionID {
	get := func(t int) string {
		f, _ := m.Header.Get(t)
		return f.String()
	}
	id := SessionID{
		BeginString:      get(tag.BeginString),
		SenderCompID:     get(tag.SenderCompID),
		SenderSubID:      get(tag.SenderSubID),
		SenderLocationID: get(tag.SenderLocationID),
		TargetCompID:     get(tag.TargetCompID),
		TargetSubID:      get(tag.TargetSubID),
		TargetLocationID: get(tag.TargetLocationID),
	}
	if reversed {
		return id.Reverse()
	}
	return id
}
