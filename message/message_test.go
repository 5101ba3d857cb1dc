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

package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/util/testutil"
	"github.com/Comcast/fixsession/wire"
)

func parser(t *testing.T) *Parser {
	reg, err := dict.NewRegistry(dict.FIX44())
	require.NoError(t, err)
	return &Parser{Registry: reg}
}

const hdr = "8=FIX.4.4|35=D|34=7|49=CLIENT|56=BROKER|52=20260301-12:00:00.000|"

func TestParseNestedGroups(t *testing.T) {
	raw := testutil.Msg(hdr +
		"11=ord1|453=2|448=P1|447=D|452=1|802=2|523=S1|803=1|523=S2|803=2|448=P2|447=D|452=3|" +
		"55=IBM|54=1|60=20260301-12:00:00|38=100|40=2|44=101.5")
	m, err := parser(t).Parse(raw)
	require.NoError(t, err)
	require.NoError(t, m.Err)

	assert.Equal(t, "D", m.MsgType)
	seq, err := m.SeqNum()
	require.NoError(t, err)
	assert.Equal(t, 7, seq)

	parties := m.Body.Groups(453)
	require.Len(t, parties, 2)
	assert.Equal(t, []int{448, 447, 452, 802}, parties[0].Tags())
	subs := parties[0].Groups(802)
	require.Len(t, subs, 2)
	s, err := subs[1].GetString(523)
	require.NoError(t, err)
	assert.Equal(t, "S2", s)

	p2, err := parties[1].GetString(448)
	require.NoError(t, err)
	assert.Equal(t, "P2", p2)
	assert.Nil(t, parties[1].Groups(802))

	// Body fields after the group land in the body.
	assert.Equal(t, []int{11, 453, 55, 54, 60, 38, 40, 44}, m.Body.Tags())
	px, _ := m.Body.Get(44)
	assert.Equal(t, 101.5, px.Value)

	// Reserializing reproduces the input.
	assert.Equal(t, testutil.Pipes(raw), testutil.Pipes(m.Clone().Bytes()))
	assert.Equal(t, testutil.Pipes(raw), m.String())
}

func TestParseUnknownTagsKept(t *testing.T) {
	raw := testutil.Msg(hdr + "11=x|5001=custom|55=IBM")
	m, err := parser(t).Parse(raw)
	require.NoError(t, err)
	f, ok := m.Body.Get(5001)
	require.True(t, ok)
	assert.Equal(t, "custom", f.String())
	assert.Nil(t, f.Value)
}

func TestParseRecordedProblems(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		reason reject.Reason
		tag    int
	}{
		{"duplicate", "11=a|11=b", reject.TagAppearsMoreThanOnce, 11},
		{"count too big", "11=a|453=3|448=P1|448=P2", reject.IncorrectNumInGroupCount, 453},
		{"count too small", "11=a|453=1|448=P1|448=P2", reject.IncorrectNumInGroupCount, 453},
		{"delimiter not first", "11=a|453=1|447=D|448=P1", reject.RepeatingGroupFieldsOutOfOrder, 447},
		{"member repeated", "11=a|453=1|448=P1|452=1|452=2", reject.RepeatingGroupFieldsOutOfOrder, 452},
		{"bad count", "11=a|453=x", reject.IncorrectDataFormat, 453},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := parser(t).Parse(testutil.Msg(hdr + tc.body))
			require.NoError(t, err)
			e, ok := reject.As(m.Err)
			require.True(t, ok, "%v", m.Err)
			assert.Equal(t, tc.reason, e.Reason)
			assert.Equal(t, tc.tag, e.Tag)
		})
	}
}

func TestParseHeaderInBody(t *testing.T) {
	m, err := parser(t).Parse(testutil.Msg(hdr + "11=a|43=Y|55=IBM"))
	require.NoError(t, err)
	assert.Equal(t, 43, m.OutOfOrderTag)
	assert.True(t, m.IsPossDup())
	assert.False(t, m.Body.Has(43))
}

func TestParseStructuralErrors(t *testing.T) {
	good := testutil.Msg(hdr + "11=a")

	badSum := append([]byte(nil), good...)
	badSum[len(badSum)-2]++
	_, err := parser(t).Parse(badSum)
	var pe *wire.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 10, pe.Tag)
	assert.Equal(t, reject.ValueIsIncorrect, pe.Reason)

	// The partial message is still there for its MsgSeqNum.
	m, err := parser(t).Parse(badSum)
	require.Error(t, err)
	require.NotNil(t, m)
	seq, _ := m.SeqNum()
	assert.Equal(t, 7, seq)

	badLen := testutil.Raw("8=FIX.4.4|9=5|35=0|34=2|49=A|56=B|10=000|")
	_, err = parser(t).Parse(badLen)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 9, pe.Tag)

	noType := testutil.Msg("8=FIX.4.4|34=2|35=0")
	_, err = parser(t).Parse(noType)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 35, pe.Tag)

	truncated := good[:len(good)-7]
	_, err = parser(t).Parse(truncated)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 10, pe.Tag)

	p := parser(t)
	p.SkipChecksum = true
	_, err = p.Parse(badSum)
	assert.NoError(t, err)
}

func TestParseWithoutDictionary(t *testing.T) {
	p := &Parser{}
	m, err := p.Parse(testutil.Msg(hdr + "11=a|453=1|448=P1"))
	require.NoError(t, err)
	assert.Nil(t, m.Body.Groups(453))
	assert.True(t, m.Body.Has(448))
	assert.True(t, m.Header.Has(49))
}

func TestParseSeparator(t *testing.T) {
	raw := []byte(testutil.Pipes(testutil.Msg(hdr + "11=a")))
	p := &Parser{Separator: '|', SkipChecksum: true}
	m, err := p.Parse(raw)
	require.NoError(t, err)
	s, _ := m.Body.GetString(11)
	assert.Equal(t, "a", s)
}

func TestBuild(t *testing.T) {
	m := New("FIX.4.4", "D")
	m.Header.SetInt(34, 7)
	m.Header.SetString(49, "CLIENT")
	m.Header.SetString(56, "BROKER")
	m.Header.SetTime(52, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), field.Millis)
	m.Body.SetString(11, "ord1")
	p := m.Body.AddGroup(453, 448)
	p.SetString(448, "P1")
	p.SetChar(447, 'D')
	p.SetInt(452, 1)
	sub := p.AddGroup(802, 523)
	sub.SetString(523, "S1")
	m.Body.SetString(55, "IBM")

	want := testutil.Msg(hdr + "11=ord1|453=1|448=P1|447=D|452=1|802=1|523=S1|55=IBM")
	assert.Equal(t, testutil.Pipes(want), testutil.Pipes(m.Bytes()))

	// The parser agrees.
	back, err := parser(t).Parse(m.Bytes())
	require.NoError(t, err)
	require.NoError(t, back.Err)
	assert.Len(t, back.Body.Groups(453), 1)
}

func TestClone(t *testing.T) {
	m := New("FIX.4.4", "0")
	m.Body.SetString(112, "a")
	g := m.Body.AddGroup(453, 448)
	g.SetString(448, "P1")

	c := m.Clone()
	c.Body.SetString(112, "b")
	c.Body.Groups(453)[0].SetString(448, "P2")

	s, _ := m.Body.GetString(112)
	assert.Equal(t, "a", s)
	s, _ = m.Body.Groups(453)[0].GetString(448)
	assert.Equal(t, "P1", s)
}

func TestFieldGraph(t *testing.T) {
	var g FieldGraph
	g.SetString(1, "a")
	g.SetInt(2, 5)
	g.SetBool(3, true)
	g.SetString(1, "z")
	assert.Equal(t, []int{1, 2, 3}, g.Tags())

	g.Remove(2)
	assert.Equal(t, []int{1, 3}, g.Tags())
	assert.Equal(t, 2, g.Len())
	g.Remove(99)

	_, err := g.GetInt(2)
	assert.True(t, reject.Is(err, reject.RequiredTagMissing))
	_, err = g.GetInt(1)
	assert.True(t, reject.Is(err, reject.IncorrectDataFormat))
	b, err := g.GetBool(3)
	require.NoError(t, err)
	assert.True(t, b)

	g.AddGroup(10, 11).SetString(11, "x")
	g.AddGroup(10, 11).SetString(11, "y")
	n, _ := g.GetInt(10)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{10}, g.GroupTags())
	g.SetGroups(10, nil)
	n, _ = g.GetInt(10)
	assert.Equal(t, 0, n)
}
