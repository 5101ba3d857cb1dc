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
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/msgtype"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/wire"
)

// Next processes one inbound message.
//
// A message that can't be parsed is rejected when possible and
// counted toward MaxConsecutiveErrors.  Protocol problems are
// handled here and aren't returned.
func (s *Session) Next(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendMu.Lock()
	connected := s.responder != nil
	s.sendMu.Unlock()

	m, err := s.parser.Parse(raw)

	if !connected {
		if err == nil && m.MsgType == msgtype.Logout {
			s.event("Received logout while disconnected")
			return nil
		}
		return ErrNotConnected
	}

	s.log.OnIncoming(raw)
	s.st.lastReceived = s.now()
	s.st.testRequests = 0

	if err != nil {
		return s.garbled(m, err)
	}
	s.st.errors = 0
	MessagesReceived.WithLabelValues(s.label, m.MsgType).Inc()

	s.process(m)
	s.drainQueue()
	return nil
}

// garbled handles a message the parser couldn't make sense of.  The
// message doesn't consume a sequence number.
func (s *Session) garbled(m *message.Message, err error) error {
	s.st.errors++
	s.event("Garbled message: " + err.Error())

	if !s.st.established {
		s.disconnect("Invalid message before logon")
		return fmt.Errorf("garbled message: %w", err)
	}

	var re *reject.Error
	var pe *wire.ParseError
	if errors.As(err, &pe) {
		re = pe.Reject()
	} else {
		re = reject.New(reject.Other, 0)
	}
	if m != nil {
		if seq, serr := m.SeqNum(); serr == nil {
			if rerr := s.sendReject(seq, m.MsgType, re); rerr != nil {
				s.logger.Warn("reject", zap.Error(rerr))
			}
		}
	}

	if limit := s.settings.MaxConsecutiveErrors; limit > 0 && s.st.errors >= limit {
		s.logoutAndDisconnect("Too many consecutive garbled messages")
	}
	return fmt.Errorf("garbled message: %w", err)
}

// validateMessage checks m against the dictionaries, if any.
func (s *Session) validateMessage(m *message.Message) error {
	if s.registry == nil {
		return m.Err
	}
	transport, have := s.registry.Transport(m.BeginString())
	if !have {
		return m.Err
	}
	app := transport
	if !m.IsAdmin() && m.BeginString() == "FIXT.1.1" {
		if d, have := s.registry.Lookup(m.BeginString(), s.applVerID(m)); have {
			app = d
		}
	}
	return s.validator.ValidateWith(transport, app, m, false)
}

// process handles one parsed message.  Holds mu.
func (s *Session) process(m *message.Message) {
	if bs := m.BeginString(); bs != s.id.BeginString {
		s.logoutAndDisconnect("Incorrect BeginString " + bs)
		return
	}
	if m.MsgType == msgtype.Logon {
		s.handleLogon(m)
		return
	}

	switch s.fsm.Current() {
	case StateDisconnected, StateLogonReceived:
		s.disconnect(fmt.Sprintf("First message was not a logon (MsgType %s)", m.MsgType))
		return
	case StateLogonSent:
		if m.MsgType == msgtype.Logout {
			s.handleLogout(m)
			return
		}
		s.disconnect(fmt.Sprintf("Logon response was not a logon (MsgType %s)", m.MsgType))
		return
	}

	if err := s.validateMessage(m); err != nil {
		if m.IsAdmin() || s.settings.RejectInvalidMessage {
			re, ok := reject.As(err)
			if !ok {
				re = reject.Newf(reject.Other, 0, "%v", err)
			}
			s.rejectMessage(m, re)
			return
		}
		m.Err = err
	}

	switch m.MsgType {
	case msgtype.Heartbeat:
		s.handleHeartbeat(m)
	case msgtype.TestRequest:
		s.handleTestRequest(m)
	case msgtype.ResendRequest:
		s.handleResendRequest(m)
	case msgtype.Reject:
		s.handleReject(m)
	case msgtype.SequenceReset:
		s.handleSequenceReset(m)
	case msgtype.Logout:
		s.handleLogout(m)
	default:
		s.handleApp(m)
	}
}

// drainQueue processes queued messages that are now in sequence.
func (s *Session) drainQueue() {
	for len(s.queue) > 0 {
		expected := s.store.NextTargetMsgSeqNum()
		for seq := range s.queue {
			if seq < expected {
				delete(s.queue, seq)
			}
		}
		m, have := s.queue[expected]
		if !have {
			return
		}
		delete(s.queue, expected)
		s.event(fmt.Sprintf("Processing queued message: %d", expected))

		switch m.MsgType {
		case msgtype.Logon, msgtype.ResendRequest:
			// Already acted on when they arrived.
			s.incrTarget()
		default:
			s.process(m)
		}
	}
}

func (s *Session) incrTarget() {
	if err := s.store.IncrNextTargetMsgSeqNum(); err != nil {
		s.logger.Error("incrementing target sequence", zap.Error(err))
	}
}

func (s *Session) correctCompID(m *message.Message) bool {
	sender, _ := m.Header.GetString(tag.SenderCompID)
	target, _ := m.Header.GetString(tag.TargetCompID)
	return sender == s.id.TargetCompID && target == s.id.SenderCompID
}

func (s *Session) goodTime(m *message.Message) bool {
	if !s.settings.CheckLatency {
		return true
	}
	sent, err := m.SendingTime()
	if err != nil {
		return false
	}
	d := s.now().Sub(sent)
	if d < 0 {
		d = -d
	}
	return d <= time.Duration(s.settings.MaxLatency)*time.Second
}

// verify runs the session checks that every message after the
// Logon gets.  It returns false when the message has been dealt
// with and shouldn't be processed further.
func (s *Session) verify(m *message.Message, checkHigh, checkLow bool) bool {
	seq, err := m.SeqNum()
	if err != nil {
		s.rejectMessage(m, reject.MissingTag(tag.MsgSeqNum))
		return false
	}

	if !s.correctCompID(m) {
		s.rejectAndLogout(seq, m, reject.New(reject.CompIDProblem, 0), "CompID problem")
		return false
	}
	if !s.goodTime(m) {
		s.rejectAndLogout(seq, m, reject.New(reject.SendingTimeAccuracyProblem, tag.SendingTime), "SendingTime accuracy problem")
		return false
	}

	expected := s.store.NextTargetMsgSeqNum()
	if checkHigh && seq > expected {
		s.targetTooHigh(m, seq, expected)
		return false
	}
	if checkLow && seq < expected {
		s.targetTooLow(m, seq, expected)
		return false
	}
	if m.IsPossDup() && !s.checkPossDup(m, seq) {
		return false
	}

	if s.st.resendBegin != 0 && seq >= s.st.resendEnd {
		s.event(fmt.Sprintf("ResendRequest for messages FROM: %d TO: %d has been satisfied.", s.st.resendBegin, s.st.resendEnd))
		s.st.resendBegin, s.st.resendEnd = 0, 0
	}
	return true
}

// checkPossDup looks at OrigSendingTime on a possible duplicate.
func (s *Session) checkPossDup(m *message.Message, seq int) bool {
	if m.MsgType == msgtype.SequenceReset {
		return true
	}
	orig, err := m.Header.GetTime(tag.OrigSendingTime)
	if err != nil {
		if !m.Header.Has(tag.OrigSendingTime) && !s.settings.RequiresOrigSendingTime {
			return true
		}
		s.rejectMessage(m, reject.MissingTag(tag.OrigSendingTime))
		return false
	}
	if sent, err := m.SendingTime(); err == nil && orig.After(sent) {
		s.rejectAndLogout(seq, m, reject.New(reject.SendingTimeAccuracyProblem, tag.OrigSendingTime), "OrigSendingTime after SendingTime")
		return false
	}
	return true
}

func (s *Session) targetTooHigh(m *message.Message, seq, expected int) {
	SequenceGaps.WithLabelValues(s.label).Inc()
	s.event(fmt.Sprintf("MsgSeqNum too high, expecting %d but received %d", expected, seq))

	if s.settings.QueueOutOfOrder {
		if _, have := s.queue[seq]; !have {
			s.queue[seq] = m
		}
	}

	if s.st.resendBegin != 0 && seq >= s.st.resendBegin && !s.settings.SendRedundantResendRequests {
		s.event(fmt.Sprintf("Already sent ResendRequest FROM: %d TO: %d.  Not sending another.", s.st.resendBegin, s.st.resendEnd))
		return
	}

	if err := s.sendResendRequest(expected, seq-1, !s.settings.QueueOutOfOrder); err != nil {
		s.logger.Warn("resend request", zap.Error(err))
	}
}

func (s *Session) targetTooLow(m *message.Message, seq, expected int) {
	if m.IsPossDup() {
		if s.checkPossDup(m, seq) {
			s.event(fmt.Sprintf("Ignoring possible duplicate %d, expecting %d", seq, expected))
		}
		return
	}

	text := fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", expected, seq)
	if s.settings.SeqNumStrictness == Lenient {
		s.event(text + ", ignoring")
		return
	}
	s.logoutAndDisconnect(text)
}

// rejectMessage sends a Reject for m and moves past it when it was
// the expected message.
func (s *Session) rejectMessage(m *message.Message, re *reject.Error) {
	seq, _ := m.SeqNum()
	if err := s.sendReject(seq, m.MsgType, re); err != nil {
		s.logger.Warn("reject", zap.Error(err))
	}
	if seq != 0 && seq == s.store.NextTargetMsgSeqNum() {
		s.incrTarget()
	}
}

func (s *Session) rejectAndLogout(seq int, m *message.Message, re *reject.Error, text string) {
	if err := s.sendReject(seq, m.MsgType, re); err != nil {
		s.logger.Warn("reject", zap.Error(err))
	}
	s.logoutAndDisconnect(text)
}

// fromAdmin hands m to the application and acts on its answer.
func (s *Session) fromAdmin(m *message.Message) {
	s.applicationError(m, s.app.FromAdmin(m, s.id))
}

func (s *Session) applicationError(m *message.Message, err error) {
	if err == nil {
		return
	}
	seq, _ := m.SeqNum()
	switch {
	case errors.Is(err, ErrDisconnect):
		s.disconnect("Application requested disconnect")
	case errors.Is(err, ErrUnsupportedMessageType):
		re := reject.NewBusiness(reject.UnsupportedMessageType, tag.MsgType, "Unsupported Message Type")
		if err := s.sendReject(seq, m.MsgType, re); err != nil {
			s.logger.Warn("reject", zap.Error(err))
		}
	default:
		if re, ok := reject.As(err); ok {
			if err := s.sendReject(seq, m.MsgType, re); err != nil {
				s.logger.Warn("reject", zap.Error(err))
			}
			return
		}
		s.event("Application error: " + err.Error())
		s.logger.Warn("application error", zap.String("msgType", m.MsgType), zap.Int("seq", seq), zap.Error(err))
	}
}

// afterOutOfBand advances past a message whose sequence number wasn't
// checked up front.
func (s *Session) afterOutOfBand(m *message.Message) {
	seq, _ := m.SeqNum()
	expected := s.store.NextTargetMsgSeqNum()
	switch {
	case seq == expected:
		s.incrTarget()
	case seq > expected:
		s.targetTooHigh(m, seq, expected)
	default:
		s.targetTooLow(m, seq, expected)
	}
}

func (s *Session) handleLogon(m *message.Message) {
	initiator := s.settings.ConnectionType == Initiator
	switch cur := s.fsm.Current(); {
	case cur == StateLoggedOn:
		s.handleLogonWhileLoggedOn(m)
		return
	case initiator && cur != StateLogonSent:
		s.disconnect("Received logon response before sending logon")
		return
	case !initiator && cur != StateDisconnected:
		s.disconnect("Received unexpected logon")
		return
	}

	if err := s.validateMessage(m); err != nil {
		s.logoutAndDisconnect("Invalid logon: " + err.Error())
		return
	}
	if !s.correctCompID(m) {
		s.logoutAndDisconnect("Invalid logon: CompID problem")
		return
	}
	hb, err := m.Body.GetInt(tag.HeartBtInt)
	if err != nil || hb < 0 {
		s.logoutAndDisconnect("Invalid logon: bad HeartBtInt")
		return
	}
	reset, _ := m.Body.GetBool(tag.ResetSeqNumFlag)

	if !initiator {
		s.checkSessionPeriod(s.now())
		if s.settings.RefreshOnLogon {
			if err := s.store.Refresh(); err != nil {
				s.logger.Error("refresh on logon", zap.Error(err))
			}
		}
		if reset || s.settings.ResetOnLogon {
			if err := s.resetStore(); err != nil {
				s.logger.Error("reset on logon", zap.Error(err))
			}
		}
		s.st.heartBtInt = time.Duration(hb) * time.Second
	} else if reset && !s.st.resetSent {
		s.event("Counterparty reset sequence numbers")
		if err := s.resetStore(); err != nil {
			s.logger.Error("reset on logon response", zap.Error(err))
		}
	}

	seq, _ := m.SeqNum()
	expected := s.store.NextTargetMsgSeqNum()
	if seq < expected {
		s.logoutAndDisconnect(fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", expected, seq))
		return
	}

	if err := s.app.FromAdmin(m, s.id); err != nil {
		text := err.Error()
		var rl *RejectLogon
		if errors.As(err, &rl) {
			text = rl.Text
		}
		s.event("Logon refused: " + text)
		s.logoutAndDisconnect(text)
		return
	}

	s.st.logonReceived = true
	s.event("Received logon")
	if !initiator {
		s.transition(evReceiveLogon)
		if err := s.sendLogon(reset || s.settings.ResetOnLogon); err != nil {
			s.logger.Warn("logon response", zap.Error(err))
			s.disconnect("Couldn't send logon response")
			return
		}
	}

	s.st.established = true
	s.transition(evLoggedOn)
	s.app.OnLogon(s.id)
	s.listener.OnLogon(s.id)

	if seq > expected {
		s.targetTooHigh(m, seq, expected)
		return
	}
	s.incrTarget()
}

// handleLogonWhileLoggedOn honors an in-session sequence reset and
// otherwise just consumes the message.
func (s *Session) handleLogonWhileLoggedOn(m *message.Message) {
	reset, _ := m.Body.GetBool(tag.ResetSeqNumFlag)
	if !reset {
		if s.verify(m, true, true) {
			s.event("Received logon while logged on")
			s.incrTarget()
		}
		return
	}
	if !s.correctCompID(m) {
		s.logoutAndDisconnect("Invalid logon: CompID problem")
		return
	}
	s.event("Sequence reset requested by logon")
	if err := s.resetStore(); err != nil {
		s.logger.Error("in-session reset", zap.Error(err))
		return
	}
	if err := s.sendLogon(true); err != nil {
		s.logger.Warn("logon response", zap.Error(err))
	}
	s.incrTarget()
}

func (s *Session) handleLogout(m *message.Message) {
	if !s.verify(m, false, false) {
		return
	}
	s.st.logoutReceived = true
	s.fromAdmin(m)

	seq, _ := m.SeqNum()
	if seq == s.store.NextTargetMsgSeqNum() {
		s.incrTarget()
	}

	if s.st.logoutSent {
		s.event("Received logout response")
	} else {
		s.event("Received logout request")
		s.transition(evReceiveLogout)
		if err := s.sendLogout(""); err != nil {
			s.logger.Debug("logout response", zap.Error(err))
		}
	}

	s.disconnect("Received logout")

	if s.settings.ResetOnLogout {
		if err := s.resetStore(); err != nil {
			s.logger.Error("reset on logout", zap.Error(err))
		}
	}
}

func (s *Session) handleHeartbeat(m *message.Message) {
	if !s.verify(m, true, true) {
		return
	}
	s.fromAdmin(m)
	s.incrTarget()
}

func (s *Session) handleTestRequest(m *message.Message) {
	if !s.verify(m, true, true) {
		return
	}
	id, _ := m.Body.GetString(tag.TestReqID)
	if err := s.sendHeartbeat(id); err != nil {
		s.logger.Warn("heartbeat", zap.Error(err))
	}
	s.fromAdmin(m)
	s.incrTarget()
}

func (s *Session) handleReject(m *message.Message) {
	if !s.verify(m, true, true) {
		return
	}
	text, _ := m.Body.GetString(tag.Text)
	s.event("Received reject: " + text)
	s.fromAdmin(m)
	s.incrTarget()
}

func (s *Session) handleResendRequest(m *message.Message) {
	if !s.verify(m, false, false) {
		return
	}
	begin, err := m.Body.GetInt(tag.BeginSeqNo)
	if err != nil {
		s.rejectMessage(m, reject.MissingTag(tag.BeginSeqNo))
		return
	}
	end, err := m.Body.GetInt(tag.EndSeqNo)
	if err != nil {
		s.rejectMessage(m, reject.MissingTag(tag.EndSeqNo))
		return
	}

	s.event(fmt.Sprintf("Received ResendRequest FROM: %d TO: %d", begin, end))
	if err := s.resend(begin, end); err != nil {
		s.logger.Warn("resend", zap.Error(err))
	}
	s.fromAdmin(m)
	s.afterOutOfBand(m)
}

func (s *Session) handleSequenceReset(m *message.Message) {
	gapFill, _ := m.Body.GetBool(tag.GapFillFlag)
	if !s.verify(m, gapFill, gapFill) {
		return
	}
	newSeq, err := m.Body.GetInt(tag.NewSeqNo)
	if err != nil {
		s.rejectMessage(m, reject.MissingTag(tag.NewSeqNo))
		return
	}

	expected := s.store.NextTargetMsgSeqNum()
	s.event(fmt.Sprintf("Received SequenceReset FROM: %d TO: %d", expected, newSeq))
	switch {
	case newSeq > expected:
		if err := s.store.SetNextTargetMsgSeqNum(newSeq); err != nil {
			s.logger.Error("sequence reset", zap.Error(err))
		}
		if s.st.resendBegin != 0 && newSeq > s.st.resendEnd {
			s.st.resendBegin, s.st.resendEnd = 0, 0
		}
	case newSeq < expected:
		s.rejectMessage(m, reject.Newf(reject.ValueIsIncorrect, tag.NewSeqNo,
			"Attempt to lower sequence number, invalid value NewSeqNo=%d", newSeq))
		return
	}
	s.fromAdmin(m)
}

func (s *Session) handleApp(m *message.Message) {
	if !s.verify(m, true, true) {
		return
	}
	err := s.app.FromApp(m, s.id)
	s.incrTarget()
	s.applicationError(m, err)
}
