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
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

// Connection states.
const (
	StateDisconnected   = "disconnected"
	StateLogonSent      = "logon_sent"
	StateLogonReceived  = "logon_received"
	StateLoggedOn       = "logged_on"
	StateLogoutSent     = "logout_sent"
	StateLogoutReceived = "logout_received"
)

const (
	evSendLogon     = "send_logon"
	evReceiveLogon  = "receive_logon"
	evLoggedOn      = "complete_logon"
	evSendLogout    = "send_logout"
	evReceiveLogout = "receive_logout"
	evDisconnect    = "disconnect"
)

func (s *Session) newFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: evSendLogon, Src: []string{StateDisconnected}, Dst: StateLogonSent},
			{Name: evReceiveLogon, Src: []string{StateDisconnected}, Dst: StateLogonReceived},
			{Name: evLoggedOn, Src: []string{StateLogonSent, StateLogonReceived}, Dst: StateLoggedOn},
			{Name: evSendLogout, Src: []string{StateLogonSent, StateLogonReceived, StateLoggedOn, StateLogoutReceived}, Dst: StateLogoutSent},
			{Name: evReceiveLogout, Src: []string{StateLogonSent, StateLoggedOn, StateLogoutSent}, Dst: StateLogoutReceived},
			{Name: evDisconnect, Src: []string{StateLogonSent, StateLogonReceived, StateLoggedOn, StateLogoutSent, StateLogoutReceived}, Dst: StateDisconnected},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				on := e.Dst == StateLoggedOn
				s.loggedOn.Store(on)
				if on {
					LoggedOn.WithLabelValues(s.label).Set(1)
				} else {
					LoggedOn.WithLabelValues(s.label).Set(0)
				}
				s.logger.Debug("state", zap.String("from", e.Src), zap.String("to", e.Dst))
			},
		},
	)
}

// transition fires an event, ignoring events that don't apply in the
// current state.
func (s *Session) transition(event string) {
	if !s.fsm.Can(event) {
		s.logger.Debug("ignoring transition", zap.String("event", event), zap.String("state", s.fsm.Current()))
		return
	}
	if err := s.fsm.Event(context.Background(), event); err != nil {
		var nt fsm.NoTransitionError
		if !errors.As(err, &nt) {
			s.logger.Warn("transition", zap.String("event", event), zap.Error(err))
		}
	}
}

// state is what the session tracks beyond the store.
type state struct {
	heartBtInt   time.Duration
	lastReceived time.Time
	connectedAt  time.Time

	testRequests      int
	testRequestSentAt time.Time

	logonSent, logonReceived   bool
	logoutSent, logoutReceived bool
	logonSentAt, logoutSentAt  time.Time
	resetSent                  bool

	// established is set once the logon exchange completes.
	established bool

	// [resendBegin, resendEnd] is the outstanding resend range.
	// resendBegin is zero when nothing is outstanding.
	resendBegin, resendEnd int

	// errors counts garbled messages in a row.
	errors int
}

// State is a snapshot of a session.
type State struct {
	Connection          string        `json:"connection"`
	NextSenderMsgSeqNum int           `json:"nextSenderMsgSeqNum"`
	NextTargetMsgSeqNum int           `json:"nextTargetMsgSeqNum"`
	HeartBtInt          time.Duration `json:"heartBtInt"`
	LastSentTime        time.Time     `json:"lastSentTime"`
	LastReceivedTime    time.Time     `json:"lastReceivedTime"`
	LogonSent           bool          `json:"logonSent"`
	LogonReceived       bool          `json:"logonReceived"`
	LogoutSent          bool          `json:"logoutSent"`
	LogoutReceived      bool          `json:"logoutReceived"`
	TestRequestCounter  int           `json:"testRequestCounter"`
	ResendBegin         int           `json:"resendBegin,omitempty"`
	ResendEnd           int           `json:"resendEnd,omitempty"`
	Queued              int           `json:"queued"`
}
