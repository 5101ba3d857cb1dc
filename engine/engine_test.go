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

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/fixsession/dispatch"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/msgtype"
	"github.com/Comcast/fixsession/session"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/util/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type responder struct {
	sync.Mutex
	types        []string
	disconnected bool
}

func (r *responder) Send(raw []byte) error {
	_, msgType, err := HeaderID(raw)
	if err != nil {
		return err
	}
	r.Lock()
	r.types = append(r.types, msgType)
	r.Unlock()
	return nil
}

func (r *responder) Disconnect() {
	r.Lock()
	r.disconnected = true
	r.Unlock()
}

func (r *responder) sent(msgType string) bool {
	r.Lock()
	defer r.Unlock()
	for _, t := range r.types {
		if t == msgType {
			return true
		}
	}
	return false
}

func (r *responder) isDisconnected() bool {
	r.Lock()
	defer r.Unlock()
	return r.disconnected
}

type app struct {
	session.NopApplication
	sync.Mutex
	orders []string
}

func (a *app) FromApp(m *message.Message, _ session.SessionID) error {
	id, _ := m.Body.GetString(11)
	a.Lock()
	a.orders = append(a.orders, id)
	a.Unlock()
	return nil
}

func (a *app) count() int {
	a.Lock()
	defer a.Unlock()
	return len(a.orders)
}

func settings(target string) session.Settings {
	s := session.DefaultSettings()
	s.BeginString = "FIX.4.4"
	s.SenderCompID = "ENGINE"
	s.TargetCompID = target
	s.ConnectionType = session.Acceptor
	s.NonStopSession = true
	s.DataDictionary = "builtin:FIX.4.4"
	return s
}

func peer(from, msgType string, seq int, fill func(*message.Message)) []byte {
	m := message.New("FIX.4.4", msgType)
	m.Header.SetString(tag.SenderCompID, from)
	m.Header.SetString(tag.TargetCompID, "ENGINE")
	m.Header.SetInt(tag.MsgSeqNum, seq)
	m.Header.SetTime(tag.SendingTime, time.Now().UTC(), field.Millis)
	if fill != nil {
		fill(m)
	}
	return m.Bytes()
}

func logon(hb int) func(*message.Message) {
	return func(m *message.Message) {
		m.Body.SetInt(tag.EncryptMethod, 0)
		m.Body.SetInt(tag.HeartBtInt, hb)
	}
}

func order(id string) func(*message.Message) {
	return func(m *message.Message) {
		m.Body.SetString(11, id)
		m.Body.SetString(55, "IBM")
		m.Body.SetChar(54, '1')
		m.Body.SetTime(60, time.Now().UTC(), field.Millis)
		m.Body.SetInt(38, 100)
		m.Body.SetChar(40, '1')
	}
}

func eventually(t *testing.T, f func() bool, msg string) {
	t.Helper()
	require.Eventually(t, f, 3*time.Second, 10*time.Millisecond, msg)
}

func TestRegistry(t *testing.T) {
	e := New()
	a, err := e.Create(settings("A"))
	require.NoError(t, err)
	_, err = e.Create(settings("B"))
	require.NoError(t, err)

	_, err = e.Create(settings("A"))
	assert.ErrorIs(t, err, ErrSessionExists)

	got, have := e.Lookup(a.ID())
	require.True(t, have)
	assert.Same(t, a, got)

	ids := e.Sessions()
	require.Len(t, ids, 2)
	assert.Equal(t, "A", ids[0].TargetCompID)
	assert.Equal(t, "B", ids[1].TargetCompID)

	require.NoError(t, e.Unregister(a.ID()))
	_, have = e.Lookup(a.ID())
	assert.False(t, have)
	assert.ErrorIs(t, e.Unregister(a.ID()), ErrSessionNotFound)

	assert.ErrorIs(t, e.Deliver(context.Background(), a.ID(), nil), ErrSessionNotFound)
}

func TestSession(t *testing.T) {
	a := &app{}
	e := New(WithApplication(a), WithTickInterval(50*time.Millisecond))
	s, err := e.Create(settings("PEER"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(time.Second)

	r := &responder{}
	id, err := e.Accept(ctx, peer("PEER", msgtype.Logon, 1, logon(1)), r)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), id)
	eventually(t, s.IsLoggedOn, "logged on")
	assert.True(t, r.sent(msgtype.Logon))

	require.NoError(t, e.Deliver(ctx, id, peer("PEER", "D", 2, order("o1"))))
	eventually(t, func() bool { return a.count() == 1 }, "order delivered")

	out := message.New("FIX.4.4", "D")
	out.Header.SetString(tag.SenderCompID, "ENGINE")
	out.Header.SetString(tag.TargetCompID, "PEER")
	order("o2")(out)
	require.NoError(t, e.SendToTarget(out))
	assert.True(t, r.sent("D"))

	// Ticks keep the link alive.
	eventually(t, func() bool {
		return r.sent(msgtype.Heartbeat) || r.sent(msgtype.TestRequest)
	}, "heartbeat")

	require.NoError(t, e.Logout(ctx, id, "done"))
	eventually(t, func() bool { return r.sent(msgtype.Logout) }, "logout sent")

	require.NoError(t, e.Disconnect(ctx, id, "bye"))
	eventually(t, r.isDisconnected, "disconnected")
	assert.False(t, s.IsConnected())
}

func TestAcceptErrors(t *testing.T) {
	e := New(WithStrategy(dispatch.NewSingleThreaded(dispatch.Config{})))
	_, err := e.Create(settings("PEER"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(time.Second)

	_, err = e.Accept(ctx, peer("PEER", msgtype.Heartbeat, 1, nil), &responder{})
	assert.ErrorIs(t, err, ErrNotLogon)

	_, err = e.Accept(ctx, peer("STRANGER", msgtype.Logon, 1, logon(30)), &responder{})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = e.Accept(ctx, []byte("garbage"), &responder{})
	assert.Error(t, err)
}

func TestAcceptWhileConnected(t *testing.T) {
	a := &app{}
	e := New(WithApplication(a))
	s, err := e.Create(settings("PEER"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	defer e.Stop(time.Second)

	live := &responder{}
	id, err := e.Accept(ctx, peer("PEER", msgtype.Logon, 1, logon(30)), live)
	require.NoError(t, err)
	eventually(t, s.IsLoggedOn, "logged on")
	require.NoError(t, e.Deliver(ctx, id, peer("PEER", "D", 2, order("o1"))))

	dup := &responder{}
	_, err = e.Accept(ctx, peer("PEER", msgtype.Logon, 1, func(m *message.Message) {
		logon(30)(m)
		m.Body.SetBool(tag.ResetSeqNumFlag, true)
	}), dup)
	require.NoError(t, err)
	eventually(t, dup.isDisconnected, "duplicate closed")

	// The events are handled in order, so once o2 arrives the
	// duplicate Logon has been dealt with.
	require.NoError(t, e.Deliver(ctx, id, peer("PEER", "D", 3, order("o2"))))
	eventually(t, func() bool { return a.count() == 2 }, "orders delivered")

	assert.True(t, s.IsLoggedOn())
	assert.False(t, live.isDisconnected())
	assert.False(t, live.sent(msgtype.Logout))
	dup.Lock()
	assert.Empty(t, dup.types)
	dup.Unlock()
}

func TestNotStarted(t *testing.T) {
	e := New()
	s, err := e.Create(settings("PEER"))
	require.NoError(t, err)
	assert.ErrorIs(t, e.Connect(context.Background(), s.ID(), &responder{}), ErrNotStarted)
	assert.ErrorIs(t, e.Stop(time.Second), ErrNotStarted)
}

func TestHeaderID(t *testing.T) {
	raw := testutil.Msg("8=FIX.4.2|35=A|34=1|49=SELL|50=DESK|56=BUY|143=NY|52=20260105-12:00:00")
	id, msgType, err := HeaderID(raw)
	require.NoError(t, err)
	assert.Equal(t, msgtype.Logon, msgType)
	assert.Equal(t, session.SessionID{
		BeginString:      "FIX.4.2",
		SenderCompID:     "SELL",
		SenderSubID:      "DESK",
		TargetCompID:     "BUY",
		TargetLocationID: "NY",
	}, id)

	_, _, err = HeaderID(testutil.Msg("8=FIX.4.2|35=0|34=1|49=SELL"))
	assert.Error(t, err)
}
