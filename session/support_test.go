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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/tag"
)

func TestSettingsValidate(t *testing.T) {
	for name, tc := range map[string]struct {
		modify func(*Settings)
		ok     bool
	}{
		"defaults":        {func(*Settings) {}, true},
		"no sender":       {func(s *Settings) { s.SenderCompID = "" }, false},
		"bad version":     {func(s *Settings) { s.BeginString = "FIX.9.9" }, false},
		"bad type":        {func(s *Settings) { s.ConnectionType = "both" }, false},
		"initiator no hb": {func(s *Settings) { s.ConnectionType = Initiator; s.HeartBtInt = 0 }, false},
		"acceptor no hb":  {func(s *Settings) { s.HeartBtInt = 0 }, true},
		"no schedule": {func(s *Settings) {
			s.NonStopSession = false
		}, false},
		"schedule": {func(s *Settings) {
			s.NonStopSession = false
			s.StartTime = "08:00:00"
			s.EndTime = "17:00:00"
		}, true},
		"bad time": {func(s *Settings) {
			s.NonStopSession = false
			s.StartTime = "8am"
			s.EndTime = "17:00:00"
		}, false},
		"one day": {func(s *Settings) {
			s.NonStopSession = false
			s.StartTime = "08:00:00"
			s.EndTime = "17:00:00"
			s.StartDay = "mon"
		}, false},
		"bad day": {func(s *Settings) {
			s.NonStopSession = false
			s.StartTime = "08:00:00"
			s.EndTime = "17:00:00"
			s.StartDay = "mon"
			s.EndDay = "funday"
		}, false},
		"bad zone":      {func(s *Settings) { s.TimeZone = "Mars/Olympus" }, false},
		"no dictionary": {func(s *Settings) { s.DataDictionary = "" }, false},
		"no dictionary ok": {func(s *Settings) {
			s.DataDictionary = ""
			s.UseDataDictionary = false
		}, true},
		"fixt no transport": {func(s *Settings) {
			s.BeginString = "FIXT.1.1"
			s.DefaultApplVerID = "9"
		}, false},
		"fixt": {func(s *Settings) {
			s.BeginString = "FIXT.1.1"
			s.TransportDataDictionary = "FIXT11.xml"
			s.DefaultApplVerID = "9"
		}, true},
		"bad precision":  {func(s *Settings) { s.TimestampPrecision = 2 }, false},
		"bad strictness": {func(s *Settings) { s.SeqNumStrictness = "sloppy" }, false},
		"bad numeric":    {func(s *Settings) { s.NumericRepresentation = "roman" }, false},
	} {
		t.Run(name, func(t *testing.T) {
			s := testSettings()
			tc.modify(&s)
			err := s.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSessionID(t *testing.T) {
	s := testSettings()
	s.SenderSubID = "DESK"
	s.TargetLocationID = "NY"
	s.SessionQualifier = "md"
	id := s.ID()

	assert.Equal(t, "FIX.4.4:ENGINE/DESK->PEER//NY:md", id.String())
	r := id.Reverse()
	assert.Equal(t, "PEER", r.SenderCompID)
	assert.Equal(t, "NY", r.SenderLocationID)
	assert.Equal(t, "DESK", r.TargetSubID)
	assert.Equal(t, id, r.Reverse())

	m := message.New("FIX.4.4", "0")
	m.Header.SetString(tag.SenderCompID, "PEER")
	m.Header.SetString(tag.TargetCompID, "ENGINE")
	assert.Equal(t, SessionID{BeginString: "FIX.4.4", SenderCompID: "PEER", TargetCompID: "ENGINE"}, IDFromHeader(m, false))
	assert.Equal(t, SessionID{BeginString: "FIX.4.4", SenderCompID: "ENGINE", TargetCompID: "PEER"}, IDFromHeader(m, true))
}

func TestRouter(t *testing.T) {
	r := NewRouter()
	var got []string
	r.AddRoute("FIX.4.4", "", "D", func(m *message.Message, _ SessionID) error {
		got = append(got, "4.4 D")
		return nil
	})
	r.AddRoute("FIXT.1.1", "FIX.5.0SP2", "D", func(m *message.Message, _ SessionID) error {
		got = append(got, "SP2 D")
		return nil
	})
	r.AddRoute("FIXT.1.1", "", "8", func(m *message.Message, _ SessionID) error {
		got = append(got, "T 8")
		return nil
	})

	id := SessionID{}
	require.NoError(t, r.Route(message.New("FIX.4.4", "D"), id))

	sp2 := message.New("FIXT.1.1", "D")
	sp2.Header.SetString(tag.ApplVerID, "9")
	require.NoError(t, r.Route(sp2, id))

	er := message.New("FIXT.1.1", "8")
	er.Header.SetString(tag.ApplVerID, "9")
	require.NoError(t, r.Route(er, id))

	err := r.Route(message.New("FIX.4.2", "D"), id)
	assert.True(t, errors.Is(err, ErrUnsupportedMessageType))

	assert.Equal(t, []string{"4.4 D", "SP2 D", "T 8"}, got)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, 1, s.NextSenderMsgSeqNum())
	assert.Equal(t, 1, s.NextTargetMsgSeqNum())
	created := s.CreationTime()

	require.NoError(t, s.SaveMessageAndIncrNextSenderMsgSeqNum(1, []byte("one")))
	require.NoError(t, s.SaveMessage(3, []byte("three")))
	require.NoError(t, s.SaveMessage(2, []byte("two")))
	require.NoError(t, s.IncrNextTargetMsgSeqNum())
	assert.Equal(t, 2, s.NextSenderMsgSeqNum())
	assert.Equal(t, 2, s.NextTargetMsgSeqNum())

	ms, err := s.GetMessages(2, 5)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("two"), []byte("three")}, ms)

	require.NoError(t, s.Reset())
	assert.Equal(t, 1, s.NextSenderMsgSeqNum())
	assert.False(t, s.CreationTime().Before(created))
	ms, err = s.GetMessages(1, 5)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestZapLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	st := testSettings()
	id := st.ID()
	l := MultiLog(NewZapLog(zap.New(core), id), NullLog{})

	l.OnIncoming([]byte("8=FIX.4.4\x0135=0\x01"))
	l.OnEvent("hello")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "incoming", entries[0].Message)
	assert.Equal(t, "8=FIX.4.4|35=0|", entries[0].ContextMap()["msg"])
	assert.Equal(t, id.String(), entries[1].ContextMap()["session"])
}
