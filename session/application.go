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
	"fmt"
	"sync"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/tag"
)

// Application receives session callbacks.
//
// Callbacks run on the session's dispatch path with the session lock
// held.  FromAdmin, FromApp, OnLogon and OnLogout may call
// Session.Send.  ToAdmin and ToApp run while a message is being sent
// and must not send.
type Application interface {
	// OnCreate is called once when the session is made.
	OnCreate(id SessionID)

	// OnLogon is called when the session becomes logged on.
	OnLogon(id SessionID)

	// OnLogout is called when a logged-on (or logging-on) session
	// goes away.
	OnLogout(id SessionID)

	// ToAdmin sees every outbound session message after its header
	// is filled in.  It may add fields such as credentials.
	ToAdmin(m *message.Message, id SessionID)

	// ToApp sees every outbound application message, including
	// resends.  Returning an error (ErrDoNotSend, say) stops the
	// message.
	ToApp(m *message.Message, id SessionID) error

	// FromAdmin sees inbound session messages that passed session
	// checks.  For a Logon, returning *RejectLogon refuses it.  A
	// *reject.Error is answered with a Reject.
	FromAdmin(m *message.Message, id SessionID) error

	// FromApp sees inbound application messages.  m.Err holds any
	// validation problem.  A returned *reject.Error is answered
	// with a Reject or BusinessMessageReject.
	FromApp(m *message.Message, id SessionID) error
}

// NopApplication does nothing.  Embed it to implement only some
// callbacks.
type NopApplication struct{}

func (NopApplication) OnCreate(SessionID)                          {}
func (NopApplication) OnLogon(SessionID)                           {}
func (NopApplication) OnLogout(SessionID)                          {}
func (NopApplication) ToAdmin(*message.Message, SessionID)         {}
func (NopApplication) ToApp(*message.Message, SessionID) error     { return nil }
func (NopApplication) FromAdmin(*message.Message, SessionID) error { return nil }
func (NopApplication) FromApp(*message.Message, SessionID) error   { return nil }

// Responder is the session's connection.
type Responder interface {
	// Send transmits one complete message.
	Send(raw []byte) error

	// Disconnect closes the connection.  It shouldn't block.
	Disconnect()
}

// Listener hears about session lifecycle changes.  An engine uses it
// to keep its registry and dispatchers current without the session
// holding a reference back.
type Listener interface {
	OnLogon(id SessionID)
	OnLogout(id SessionID)
	OnDisconnect(id SessionID)
}

type nopListener struct{}

func (nopListener) OnLogon(SessionID)      {}
func (nopListener) OnLogout(SessionID)     {}
func (nopListener) OnDisconnect(SessionID) {}

// Handler processes one inbound application message.
type Handler func(m *message.Message, id SessionID) error

type route struct {
	beginString, application, msgType string
}

// Router dispatches application messages to handlers registered by
// (BeginString, application version, MsgType).
//
// A Router can serve as Application.FromApp:
//
//	func (a *app) FromApp(m *message.Message, id session.SessionID) error {
//		return a.router.Route(m, id)
//	}
type Router struct {
	sync.RWMutex

	routes map[route]Handler
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[route]Handler),
	}
}

// AddRoute registers h.  The application is the ApplVerID version
// name ("FIX.5.0SP2") for FIXT.1.1 messages and empty otherwise.
func (r *Router) AddRoute(beginString, application, msgType string, h Handler) {
	r.Lock()
	r.routes[route{beginString, application, msgType}] = h
	r.Unlock()
}

// Route finds the handler for m.  A FIXT.1.1 message without a route
// for its ApplVerID falls back to a route with no application.
// Without any route, Route returns ErrUnsupportedMessageType.
func (r *Router) Route(m *message.Message, id SessionID) error {
	bs := m.BeginString()
	var appl string
	if f, have := m.Header.Get(tag.ApplVerID); have {
		appl, _ = dict.ApplVerID(f.String())
	}

	r.RLock()
	h, have := r.routes[route{bs, appl, m.MsgType}]
	if !have && appl != "" {
		h, have = r.routes[route{bs, "", m.MsgType}]
	}
	r.RUnlock()

	if !have {
		return fmt.Errorf("%w: %s %s", ErrUnsupportedMessageType, bs, m.MsgType)
	}
	return h(m, id)
}
