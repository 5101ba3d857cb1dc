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
	"errors"
)

var (
	// ErrNotLoggedOn is returned by Send when the session isn't
	// logged on.  The message is neither sent nor stored.
	ErrNotLoggedOn = errors.New("session not logged on")

	// ErrNotConnected means the session has no Responder.
	ErrNotConnected = errors.New("session not connected")

	// ErrAlreadyConnected is returned by Connect when the session
	// already has a Responder.
	ErrAlreadyConnected = errors.New("session already connected")

	// ErrNotSessionTime is returned by Connect outside the
	// session's schedule.
	ErrNotSessionTime = errors.New("not session time")

	// ErrDoNotSend can be returned by Application.ToApp to keep a
	// message from going out.  During a resend, the message is
	// replaced by a gap fill.
	ErrDoNotSend = errors.New("do not send")

	// ErrUnsupportedMessageType can be returned by
	// Application.FromApp.  The session answers with a
	// BusinessMessageReject.
	ErrUnsupportedMessageType = errors.New("unsupported message type")

	// ErrDisconnect can be returned by Application.FromApp or
	// FromAdmin to drop the connection.
	ErrDisconnect = errors.New("disconnect requested")
)

// RejectLogon is returned by Application.FromAdmin to refuse a Logon.
// The session sends a Logout with Text and disconnects.
type RejectLogon struct {
	Text string
}

func (e *RejectLogon) Error() string {
	return "logon rejected: " + e.Text
}
