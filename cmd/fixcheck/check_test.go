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

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/util/testutil"
	"github.com/Comcast/fixsession/validate"
	"github.com/Comcast/fixsession/wire"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v2"
)

func checker(t *testing.T, format string) *Checker {
	d, err := dict.Resolve("builtin:FIX.4.4")
	require.NoError(t, err)
	reg, err := dict.NewRegistry(d)
	require.NoError(t, err)
	return &Checker{
		Registry:  reg,
		Validator: validate.New(validate.DefaultOptions()),
		Separator: wire.SOH,
		Format:    format,
		Logger:    zaptest.NewLogger(t),
	}
}

var (
	heartbeat = testutil.Msg("8=FIX.4.4|35=0|34=2|49=BUY|56=SELL|52=20260105-12:00:00")
	// No Side (54).
	badOrder = testutil.Msg("8=FIX.4.4|35=D|34=3|49=BUY|56=SELL|52=20260105-12:00:00|11=o1|55=IBM|60=20260105-12:00:00|38=100|40=1")
)

func TestRun(t *testing.T) {
	var in []byte
	in = append(in, "junk\n"...)
	in = append(in, heartbeat...)
	in = append(in, '\n')
	in = append(in, badOrder...)

	var out bytes.Buffer
	sum, err := checker(t, "json").Run(bytes.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Messages: 2, Valid: 1, Invalid: 1, Skipped: 6}, sum)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var r Report
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &r))
	assert.True(t, r.Valid)
	assert.Equal(t, "0", r.MsgType)
	assert.Equal(t, 2, r.SeqNum)
	assert.Equal(t, "BUY", r.Sender)

	r = Report{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &r))
	assert.False(t, r.Valid)
	assert.Equal(t, "D", r.MsgType)
	require.NotNil(t, r.Reason)
	assert.Equal(t, int(reject.RequiredTagMissing), *r.Reason)
	assert.Equal(t, 54, r.RefTagID)
}

func TestCheckGarbled(t *testing.T) {
	raw := append([]byte(nil), heartbeat...)
	// Break the checksum.
	raw[len(raw)-2]++
	r := checker(t, "json").Check(1, raw)
	assert.False(t, r.Valid)
	assert.NotEmpty(t, r.Error)
}

func TestYAML(t *testing.T) {
	var out bytes.Buffer
	sum, err := checker(t, "yaml").Run(bytes.NewReader(heartbeat), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Valid)

	docs := strings.Split(out.String(), "---\n")
	require.Len(t, docs, 3)
	var r Report
	require.NoError(t, yaml.Unmarshal([]byte(docs[1]), &r))
	assert.True(t, r.Valid)
	assert.Equal(t, 2, r.SeqNum)
}
