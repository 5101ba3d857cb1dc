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

package mqttlog

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/fixsession/session"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type token struct {
	mqtt.Token
	err error
}

func (t *token) Wait() bool                     { return true }
func (t *token) WaitTimeout(time.Duration) bool { return true }
func (t *token) Error() error                   { return t.err }

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type publisher struct {
	sync.Mutex
	got []published
	err error
}

func (p *publisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.Lock()
	defer p.Unlock()
	p.got = append(p.got, published{topic, qos, payload.([]byte)})
	return &token{err: p.err}
}

var id = session.SessionID{BeginString: "FIX.4.4", SenderCompID: "ENGINE", TargetCompID: "PEER"}

func TestPublish(t *testing.T) {
	p := &publisher{}
	f := Factory(p, Options{Topic: "fix/log:1"}, nil)
	l, err := f(id)
	require.NoError(t, err)
	assert.Equal(t, "fix/log/FIX.4.4/ENGINE/PEER", l.(*Log).Topic())

	l.OnIncoming([]byte("8=FIX.4.4\x0135=0\x01"))
	l.OnOutgoing([]byte("8=FIX.4.4\x0135=1\x01"))
	l.OnEvent("Connected")

	require.Len(t, p.got, 3)
	assert.Equal(t, "fix/log/FIX.4.4/ENGINE/PEER/in", p.got[0].topic)
	assert.Equal(t, "fix/log/FIX.4.4/ENGINE/PEER/out", p.got[1].topic)
	assert.Equal(t, "fix/log/FIX.4.4/ENGINE/PEER/event", p.got[2].topic)
	assert.Equal(t, byte(1), p.got[0].qos)

	var e entry
	require.NoError(t, json.Unmarshal(p.got[0].payload, &e))
	assert.Equal(t, id.String(), e.Session)
	assert.Equal(t, "8=FIX.4.4|35=0|", e.Msg)

	require.NoError(t, json.Unmarshal(p.got[2].payload, &e))
	assert.Equal(t, "Connected", e.Text)
}

func TestPublishError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := &publisher{err: errors.New("broker gone")}
	l := New(p, Options{Topic: "fix"}, id, zap.New(core))

	l.OnEvent("Disconnecting")
	require.Eventually(t, func() bool {
		return logs.FilterMessage("publish failed").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestParseTopic(t *testing.T) {
	for _, tc := range []struct {
		in    string
		topic string
		qos   byte
	}{
		{"fix", "fix", 0},
		{"fix:2", "fix", 2},
		{"fix:x", "fix:x", 0},
	} {
		topic, qos := ParseTopic(tc.in)
		assert.Equal(t, tc.topic, topic, tc.in)
		assert.Equal(t, tc.qos, qos, tc.in)
	}
}
