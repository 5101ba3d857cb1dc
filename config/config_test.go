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

package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/fixsession/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sample = `
engine:
  Dispatch: single
  TickInterval: 500ms
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
  NonStopSession: true
  HeartBtInt: 20
sessions:
  - TargetCompID: PEER1
    ConnectionType: acceptor
  - TargetCompID: PEER2
    ConnectionType: initiator
    HeartBtInt: 30
    SeqNumStrictness: lenient
`

func TestRead(t *testing.T) {
	c, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "single", c.Engine.Dispatch)
	assert.Equal(t, 500*time.Millisecond, c.Engine.TickInterval)
	assert.Equal(t, "memory", c.Engine.Store)
	assert.Equal(t, 1024, c.Engine.QueueSize)

	require.Len(t, c.Sessions, 2)
	a, b := c.Sessions[0], c.Sessions[1]
	assert.Equal(t, "FIX.4.4:ENGINE->PEER1", a.ID().String())
	assert.Equal(t, session.Acceptor, a.ConnectionType)
	assert.Equal(t, 20, a.HeartBtInt)
	assert.Equal(t, session.Strict, a.SeqNumStrictness)

	assert.Equal(t, "PEER2", b.TargetCompID)
	assert.Equal(t, session.Initiator, b.ConnectionType)
	assert.Equal(t, 30, b.HeartBtInt)
	assert.Equal(t, session.Lenient, b.SeqNumStrictness)

	// Untouched defaults survive.
	assert.Equal(t, 10, b.LogonTimeout)
	assert.True(t, b.QueueOutOfOrder)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FIX_DEFAULT_HEARTBTINT", "45")
	c, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 45, c.Sessions[0].HeartBtInt)
	// The session's own key wins.
	assert.Equal(t, 30, c.Sessions[1].HeartBtInt)
}

func TestReadErrors(t *testing.T) {
	for name, yml := range map[string]string{
		"missing target": `
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
  NonStopSession: true
sessions:
  - ConnectionType: acceptor
`,
		"bad store": `
engine:
  Store: redis
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
  NonStopSession: true
sessions:
  - TargetCompID: PEER
    ConnectionType: acceptor
`,
		"bolt without path": `
engine:
  Store: bolt
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
  NonStopSession: true
sessions:
  - TargetCompID: PEER
    ConnectionType: acceptor
`,
		"duplicate": `
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
  NonStopSession: true
sessions:
  - TargetCompID: PEER
    ConnectionType: acceptor
  - TargetCompID: PEER
    ConnectionType: initiator
    HeartBtInt: 30
`,
		"no schedule": `
default:
  BeginString: FIX.4.4
  SenderCompID: ENGINE
  DataDictionary: builtin:FIX.4.4
sessions:
  - TargetCompID: PEER
    ConnectionType: acceptor
`,
		"no sessions": `
engine:
  Dispatch: session
`,
	} {
		_, err := Read(strings.NewReader(yml))
		assert.Error(t, err, name)
	}
}

func TestDictionariesShared(t *testing.T) {
	c, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	regs, err := Dictionaries(c)
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Same(t, regs[c.Sessions[0].ID().String()], regs[c.Sessions[1].ID().String()])
}

func TestBuild(t *testing.T) {
	c, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	c.Engine.Store = "bolt"
	c.Engine.StorePath = filepath.Join(t.TempDir(), "fix.db")

	e, closer, err := Build(c, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, closer())
	}()

	ids := e.Sessions()
	require.Len(t, ids, 2)
	s, have := e.Lookup(ids[0])
	require.True(t, have)
	assert.Equal(t, 1, s.Store().NextSenderMsgSeqNum())
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
