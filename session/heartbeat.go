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
	"time"

	"go.uber.org/zap"
)

// Tick drives heartbeats, test requests, timeouts and the schedule.
// Call it about once a second.
//
// A logged-on session that hears nothing for HeartBtInt sends a
// TestRequest.  If another HeartBtInt passes without any inbound
// message, it disconnects.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendMu.Lock()
	connected := s.responder != nil
	s.sendMu.Unlock()
	if !connected {
		return
	}

	cur := s.fsm.Current()

	if cur != StateLogoutSent {
		if !s.schedule.IsSessionTime(now) {
			if cur == StateLoggedOn {
				if err := s.sendLogout("End of session time"); err != nil {
					s.logger.Debug("logout", zap.Error(err))
				}
			} else {
				s.disconnect("Outside session time")
			}
			return
		}
		if s.st.established && !s.schedule.IsSameSession(s.store.CreationTime(), now) {
			s.logoutAndDisconnect("New session period")
			if err := s.resetStore(); err != nil {
				s.logger.Error("new session period", zap.Error(err))
			}
			return
		}
	}

	switch cur {
	case StateDisconnected, StateLogonReceived, StateLogonSent:
		from := s.st.connectedAt
		if s.st.logonSent {
			from = s.st.logonSentAt
		}
		if now.Sub(from) >= time.Duration(s.settings.LogonTimeout)*time.Second {
			s.disconnect("Timed out waiting for logon")
		}
		return
	case StateLogoutSent:
		if now.Sub(s.st.logoutSentAt) >= time.Duration(s.settings.LogoutTimeout)*time.Second {
			s.disconnect("Timed out waiting for logout response")
		}
		return
	case StateLogoutReceived:
		return
	}

	hb := s.st.heartBtInt
	if hb <= 0 {
		return
	}

	if s.st.testRequests == 0 {
		if now.Sub(s.st.lastReceived) >= hb {
			if err := s.sendTestRequest(); err != nil {
				s.logger.Warn("test request", zap.Error(err))
			}
		}
	} else if now.Sub(s.st.testRequestSentAt) >= hb {
		s.disconnect("Timed out waiting for heartbeat")
		return
	}

	s.sendMu.Lock()
	lastSent := s.lastSent
	s.sendMu.Unlock()
	if now.Sub(lastSent) >= hb {
		if err := s.sendHeartbeat(""); err != nil {
			s.logger.Warn("heartbeat", zap.Error(err))
		}
	}
}
