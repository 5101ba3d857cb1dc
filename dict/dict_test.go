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

package dict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Comcast/fixsession/field"
)

const fixtYAML = `
type: FIXT
major: 1
minor: 1
fields:
  - {number: 8, name: BeginString, type: STRING}
  - {number: 9, name: BodyLength, type: LENGTH}
  - {number: 35, name: MsgType, type: STRING}
  - {number: 34, name: MsgSeqNum, type: SEQNUM}
  - {number: 49, name: SenderCompID, type: STRING}
  - {number: 56, name: TargetCompID, type: STRING}
  - {number: 52, name: SendingTime, type: UTCTIMESTAMP}
  - {number: 1128, name: ApplVerID, type: STRING}
  - {number: 10, name: CheckSum, type: STRING}
  - {number: 108, name: HeartBtInt, type: INT}
  - {number: 98, name: EncryptMethod, type: INT}
  - {number: 1137, name: DefaultApplVerID, type: STRING}
header:
  - {field: BeginString, required: true}
  - {field: BodyLength, required: true}
  - {field: MsgType, required: true}
  - {field: SenderCompID, required: true}
  - {field: TargetCompID, required: true}
  - {field: MsgSeqNum, required: true}
  - {field: SendingTime, required: true}
  - {field: ApplVerID}
trailer:
  - {field: CheckSum, required: true}
messages:
  - name: Logon
    msgtype: A
    msgcat: admin
    members:
      - {field: EncryptMethod, required: true}
      - {field: HeartBtInt, required: true}
      - {field: DefaultApplVerID, required: true}
`

const fix50YAML = `
type: FIX
major: 5
minor: 0
servicepack: 2
fields:
  - {number: 11, name: ClOrdID, type: STRING}
  - {number: 54, name: Side, type: CHAR, values: {"1": BUY, "2": SELL}}
  - {number: 44, name: Price, type: PRICE}
  - {number: 453, name: NoPartyIDs, type: NUMINGROUP}
  - {number: 448, name: PartyID, type: STRING}
  - {number: 452, name: PartyRole, type: INT}
header: []
trailer: []
messages:
  - name: NewOrderSingle
    msgtype: D
    msgcat: app
    members:
      - {field: ClOrdID, required: true}
      - {component: Parties}
      - {field: Side, required: true}
      - {field: Price}
components:
  - name: Parties
    members:
      - group: NoPartyIDs
        members:
          - {field: PartyID, required: true}
          - {field: PartyRole}
`

func TestBuiltinFIX44(t *testing.T) {
	dd := FIX44()
	assert.Equal(t, "FIX.4.4", dd.BeginString)
	assert.Equal(t, "", dd.Application)

	assert.True(t, dd.IsHeaderField(49))
	assert.True(t, dd.IsTrailerField(10))
	assert.False(t, dd.IsHeaderField(11))

	logon, ok := dd.Message("A")
	require.True(t, ok)
	assert.True(t, logon.Admin)
	assert.Equal(t, []int{98, 108}, logon.Required())

	nos, ok := dd.Message("D")
	require.True(t, ok)
	assert.False(t, nos.Admin)
	assert.True(t, nos.IsRequired(11))
	// Instrument is required but none of its fields are.
	assert.True(t, nos.Has(55))
	assert.False(t, nos.IsRequired(55))
	// Parties is optional.
	assert.False(t, nos.IsRequired(453))

	parties, ok := nos.Group(453)
	require.True(t, ok)
	assert.Equal(t, 448, parties.Delimiter)
	sub, ok := parties.Group(802)
	require.True(t, ok)
	assert.Equal(t, 523, sub.Delimiter)

	md, ok := dd.Message("V")
	require.True(t, ok)
	syms, ok := md.Group(146)
	require.True(t, ok)
	assert.Equal(t, 55, syms.Delimiter)

	side, ok := dd.Fields.Lookup(54)
	require.True(t, ok)
	assert.Equal(t, field.Char, side.Type)
	assert.True(t, side.Allows("1"))
	assert.False(t, side.Allows("9"))

	assert.Equal(t, 96, dd.DataFields()[95])
	assert.Equal(t, 91, dd.DataFields()[90])
	assert.Equal(t, 355, dd.DataFields()[354])
}

func TestNumericMode(t *testing.T) {
	dd := FIX44(WithNumericMode(field.DecimalMode))
	f := dd.Fields.CreateField(44, []byte("101.250"))
	assert.Equal(t, "101.25", f.Value.(interface{ String() string }).String())

	f = FIX44().Fields.CreateField(44, []byte("101.250"))
	assert.Equal(t, 101.25, f.Value)

	// Bad values are kept raw.
	f = dd.Fields.CreateField(44, []byte("abc"))
	assert.Nil(t, f.Value)
	assert.Equal(t, "abc", f.String())

	// Unknown tags are strings.
	f = dd.Fields.CreateField(9999, []byte("x"))
	assert.Nil(t, f.Value)
	_, err := dd.Fields.Decode(9999, []byte("x"))
	assert.NoError(t, err)
}

func TestYAMLAndRegistry(t *testing.T) {
	fixt, err := Parse(strings.NewReader(fixtYAML))
	require.NoError(t, err)
	assert.Equal(t, "FIXT.1.1", fixt.BeginString)
	assert.Equal(t, "", fixt.Application)

	app, err := Parse(strings.NewReader(fix50YAML))
	require.NoError(t, err)
	assert.Equal(t, "FIXT.1.1", app.BeginString)
	assert.Equal(t, "FIX.5.0SP2", app.Application)

	nos, ok := app.Message("D")
	require.True(t, ok)
	g, ok := nos.Group(453)
	require.True(t, ok)
	assert.Equal(t, 448, g.Delimiter)
	assert.True(t, g.IsRequired(448))
	assert.Equal(t, []int{11, 453, 54, 44}, nos.Order())

	reg, err := NewRegistry(fixt, app, FIX44())
	require.NoError(t, err)

	m, d, ok := reg.MessageDictionary("FIXT.1.1", "FIX.5.0SP2", "D")
	require.True(t, ok)
	assert.Same(t, app, d)
	assert.Equal(t, "NewOrderSingle", m.Name)

	m, d, ok = reg.MessageDictionary("FIXT.1.1", "FIX.5.0SP2", "A")
	require.True(t, ok)
	assert.Same(t, fixt, d)
	assert.Equal(t, "Logon", m.Name)

	// FIX.4.4 application messages under FIXT.
	_, d, ok = reg.MessageDictionary("FIXT.1.1", "FIX.4.4", "8")
	require.True(t, ok)
	assert.Equal(t, "FIX.4.4", d.BeginString)

	_, _, ok = reg.MessageDictionary("FIX.4.2", "", "0")
	assert.False(t, ok)

	_, err = NewRegistry(FIX44(), FIX44())
	assert.Error(t, err)
}

func TestApplVerID(t *testing.T) {
	v, ok := ApplVerID("9")
	require.True(t, ok)
	assert.Equal(t, "FIX.5.0SP2", v)
	v, ok = ApplVerID("FIX.4.4")
	require.True(t, ok)
	assert.Equal(t, "FIX.4.4", v)
	_, ok = ApplVerID("Z")
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "undefined field",
			in:   `<fix major="4" minor="4"><header><field name="Nope" required="Y"/></header><fields/></fix>`,
			want: "undefined field",
		},
		{
			name: "undefined component",
			in: `<fix major="4" minor="4"><messages><message name="X" msgtype="X">` +
				`<component name="Missing"/></message></messages><fields/></fix>`,
			want: "undefined component",
		},
		{
			name: "duplicate field",
			in: `<fix major="4" minor="4"><fields><field number="1" name="A" type="STRING"/>` +
				`<field number="1" name="B" type="STRING"/></fields></fix>`,
			want: "defined twice",
		},
		{
			name: "wrong root",
			in:   `<dictionary/>`,
			want: "not <fix>",
		},
		{
			name: "bad yaml member",
			in:   "type: FIX\nmajor: 4\nminor: 4\nheader:\n  - {required: true}\n",
			want: "member needs",
		},
		{
			name: "recursive component",
			in: `<fix major="4" minor="4"><messages><message name="X" msgtype="X"><component name="C"/></message></messages>` +
				`<components><component name="C"><component name="C"/></component></components><fields/></fix>`,
			want: "too deep",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.in))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := Builtin("FIX.9.9")
	assert.Error(t, err)
}
