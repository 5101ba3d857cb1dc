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
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/msgtype"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
)

// Send sends an application (or admin) message.  The header is filled
// in, the message is stored and then transmitted.
//
// When the session isn't logged on, Send returns ErrNotLoggedOn and
// neither sends nor stores the message.
func (s *Session) Send(m *message.Message) error {
	if !s.loggedOn.Load() {
		return ErrNotLoggedOn
	}
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sendLocked(m)
}

// send is for session messages generated by the session itself.
func (s *Session) send(m *message.Message) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.sendLocked(m)
}

// newMessage starts a session message for this session's version.
func (s *Session) newMessage(msgType string) *message.Message {
	return message.New(s.id.BeginString, msgType)
}

func (s *Session) fillHeader(m *message.Message) {
	h := &m.Header
	h.SetString(tag.BeginString, s.id.BeginString)
	h.SetString(tag.SenderCompID, s.id.SenderCompID)
	if s.id.SenderSubID != "" {
		h.SetString(tag.SenderSubID, s.id.SenderSubID)
	}
	if s.id.SenderLocationID != "" {
		h.SetString(tag.SenderLocationID, s.id.SenderLocationID)
	}
	h.SetString(tag.TargetCompID, s.id.TargetCompID)
	if s.id.TargetSubID != "" {
		h.SetString(tag.TargetSubID, s.id.TargetSubID)
	}
	if s.id.TargetLocationID != "" {
		h.SetString(tag.TargetLocationID, s.id.TargetLocationID)
	}
	h.SetTime(tag.SendingTime, s.now().UTC(), s.precision)
	if s.settings.EnableLastMsgSeqNumProcessed {
		h.SetInt(tag.LastMsgSeqNumProcessed, s.store.NextTargetMsgSeqNum()-1)
	}
}

// sendLocked holds sendMu.
func (s *Session) sendLocked(m *message.Message) error {
	s.fillHeader(m)
	seq := s.store.NextSenderMsgSeqNum()
	m.Header.SetInt(tag.MsgSeqNum, seq)

	if m.IsAdmin() {
		s.app.ToAdmin(m, s.id)
	} else if err := s.app.ToApp(m, s.id); err != nil {
		return err
	}

	raw := m.Bytes()
	var err error
	if s.settings.PersistMessages {
		err = s.store.SaveMessageAndIncrNextSenderMsgSeqNum(seq, raw)
	} else {
		err = s.store.IncrNextSenderMsgSeqNum()
	}
	if err != nil {
		return fmt.Errorf("storing message %d: %w", seq, err)
	}

	return s.transmit(m.MsgType, raw)
}

// transmit holds sendMu.
func (s *Session) transmit(msgType string, raw []byte) error {
	if s.responder == nil {
		return ErrNotConnected
	}
	s.log.OnOutgoing(raw)
	MessagesSent.WithLabelValues(s.label, msgType).Inc()
	s.lastSent = s.now()
	if err := s.responder.Send(raw); err != nil {
		return fmt.Errorf("transmitting: %w", err)
	}
	return nil
}

func (s *Session) sendLogon(reset bool) error {
	m := s.newMessage(msgtype.Logon)
	m.Body.SetInt(tag.EncryptMethod, 0)
	m.Body.SetInt(tag.HeartBtInt, int(s.st.heartBtInt.Seconds()))
	if reset {
		m.Body.SetBool(tag.ResetSeqNumFlag, true)
		s.st.resetSent = true
	}
	if s.id.BeginString == "FIXT.1.1" {
		m.Body.SetString(tag.DefaultApplVerID, s.settings.DefaultApplVerID)
	}
	if err := s.send(m); err != nil {
		return fmt.Errorf("sending logon: %w", err)
	}
	s.st.logonSent = true
	s.st.logonSentAt = s.now()
	s.transition(evSendLogon)
	s.event("Sent logon")
	return nil
}

func (s *Session) sendLogout(text string) error {
	m := s.newMessage(msgtype.Logout)
	if text != "" {
		m.Body.SetString(tag.Text, text)
	}
	err := s.send(m)
	s.st.logoutSent = true
	s.st.logoutSentAt = s.now()
	s.transition(evSendLogout)
	if text == "" {
		s.event("Sent logout")
	} else {
		s.event("Sent logout: " + text)
	}
	if err != nil {
		return fmt.Errorf("sending logout: %w", err)
	}
	return nil
}

// logoutAndDisconnect sends a Logout with text, when connected, and
// then disconnects.
func (s *Session) logoutAndDisconnect(text string) {
	if err := s.sendLogout(text); err != nil {
		s.logger.Debug("logout", zap.Error(err))
	}
	s.disconnect(text)
}

func (s *Session) sendHeartbeat(testReqID string) error {
	m := s.newMessage(msgtype.Heartbeat)
	if testReqID != "" {
		m.Body.SetString(tag.TestReqID, testReqID)
	}
	return s.send(m)
}

func (s *Session) sendTestRequest() error {
	m := s.newMessage(msgtype.TestRequest)
	m.Body.SetString(tag.TestReqID, uuid.NewString())
	if err := s.send(m); err != nil {
		return err
	}
	s.st.testRequests++
	s.st.testRequestSentAt = s.now()
	s.event("Sent test request")
	return nil
}

// infinity is the EndSeqNo meaning "everything after BeginSeqNo".
func (s *Session) infinity() int {
	switch s.id.BeginString {
	case "FIX.4.0", "FIX.4.1":
		return 999999
	}
	return 0
}

// sendResendRequest asks for [begin, end] and records the range.
// With open, the request has no end.
func (s *Session) sendResendRequest(begin, end int, open bool) error {
	m := s.newMessage(msgtype.ResendRequest)
	m.Body.SetInt(tag.BeginSeqNo, begin)
	if open {
		m.Body.SetInt(tag.EndSeqNo, s.infinity())
	} else {
		m.Body.SetInt(tag.EndSeqNo, end)
	}
	if err := s.send(m); err != nil {
		return fmt.Errorf("sending resend request: %w", err)
	}
	s.st.resendBegin, s.st.resendEnd = begin, end
	ResendRequestsSent.WithLabelValues(s.label).Inc()
	s.event(fmt.Sprintf("Sent ResendRequest FROM: %d TO: %d", begin, end))
	return nil
}

// sendReject answers the message with refSeq with a Reject or, for
// business reasons, a BusinessMessageReject.
func (s *Session) sendReject(refSeq int, refMsgType string, e *reject.Error) error {
	var m *message.Message
	if e.Business && s.id.BeginString >= "FIX.4.2" {
		m = s.newMessage(msgtype.BusinessMessageReject)
		m.Body.SetInt(tag.RefSeqNum, refSeq)
		m.Body.SetString(tag.RefMsgType, refMsgType)
		m.Body.SetInt(tag.BusinessRejectReason, int(e.BusinessReason))
	} else {
		m = s.newMessage(msgtype.Reject)
		m.Body.SetInt(tag.RefSeqNum, refSeq)
		if s.id.BeginString >= "FIX.4.2" {
			if refMsgType != "" {
				m.Body.SetString(tag.RefMsgType, refMsgType)
			}
			if e.Tag > 0 {
				m.Body.SetInt(tag.RefTagID, e.Tag)
			}
			m.Body.SetInt(tag.SessionRejectReason, int(e.Reason))
		}
	}
	m.Body.SetString(tag.Text, e.Error())

	if err := s.send(m); err != nil {
		return fmt.Errorf("sending reject: %w", err)
	}
	RejectsSent.WithLabelValues(s.label, m.MsgType).Inc()
	s.event(fmt.Sprintf("Message %d rejected: %s", refSeq, e.Error()))
	return nil
}

// sendGapFill tells the counterparty that [seq, newSeqNo) won't be
// resent.  Holds sendMu.  The gap fill takes seq and isn't stored.
func (s *Session) sendGapFill(seq, newSeqNo int) error {
	m := s.newMessage(msgtype.SequenceReset)
	s.fillHeader(m)
	m.Header.SetInt(tag.MsgSeqNum, seq)
	m.Header.SetBool(tag.PossDupFlag, true)
	if f, have := m.Header.Get(tag.SendingTime); have {
		m.Header.SetString(tag.OrigSendingTime, f.String())
	}
	m.Body.SetBool(tag.GapFillFlag, true)
	m.Body.SetInt(tag.NewSeqNo, newSeqNo)
	s.app.ToAdmin(m, s.id)
	s.event(fmt.Sprintf("Sent SequenceReset-GapFill FROM: %d TO: %d", seq, newSeqNo))
	return s.transmit(m.MsgType, m.Bytes())
}

// resend answers a ResendRequest for [begin, end] from the store.
// Application messages go out again with PossDupFlag and
// OrigSendingTime.  Session messages, messages ToApp refuses and
// anything the store doesn't have become gap fills.
func (s *Session) resend(begin, end int) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	next := s.store.NextSenderMsgSeqNum()
	if end == 0 || end == 999999 || end >= next {
		end = next - 1
	}
	if begin > end {
		s.event(fmt.Sprintf("Nothing to resend FROM: %d TO: %d", begin, end))
		return nil
	}

	raws, err := s.store.GetMessages(begin, end)
	if err != nil {
		return fmt.Errorf("loading messages %d-%d: %w", begin, end, err)
	}
	s.event(fmt.Sprintf("Resending FROM: %d TO: %d", begin, end))

	// gap is the first sequence number of a pending gap fill.
	gap, expected := 0, begin
	for _, raw := range raws {
		m, err := s.parser.Parse(raw)
		if err != nil {
			s.logger.Warn("stored message unreadable", zap.Error(err))
			continue
		}
		seq, err := m.SeqNum()
		if err != nil || seq < expected {
			continue
		}
		if seq > expected && gap == 0 {
			gap = expected
		}
		expected = seq + 1

		if m.IsAdmin() || !s.prepareResend(m) {
			if gap == 0 {
				gap = seq
			}
			continue
		}

		if gap != 0 {
			if err := s.sendGapFill(gap, seq); err != nil {
				return err
			}
			gap = 0
		}
		if err := s.transmit(m.MsgType, m.Bytes()); err != nil {
			return err
		}
	}

	if gap == 0 && expected <= end {
		gap = expected
	}
	if gap != 0 {
		return s.sendGapFill(gap, end+1)
	}
	return nil
}

// prepareResend marks a stored application message as a possible
// duplicate and asks the application whether to send it.
func (s *Session) prepareResend(m *message.Message) bool {
	orig, have := m.Header.Get(tag.SendingTime)
	if have {
		m.Header.SetString(tag.OrigSendingTime, orig.String())
	}
	m.Header.SetBool(tag.PossDupFlag, true)
	m.Header.SetTime(tag.SendingTime, s.now().UTC(), s.precision)

	if err := s.app.ToApp(m, s.id); err != nil {
		if !errors.Is(err, ErrDoNotSend) {
			s.logger.Debug("resend refused", zap.Error(err))
		}
		return false
	}
	return true
}

// applVerID is the application version of an inbound message.
func (s *Session) applVerID(m *message.Message) string {
	if f, have := m.Header.Get(tag.ApplVerID); have {
		appl, _ := dict.ApplVerID(f.String())
		return appl
	}
	appl, _ := dict.ApplVerID(s.settings.DefaultApplVerID)
	return appl
}
