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
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/reject"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/validate"
	"github.com/Comcast/fixsession/wire"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// Report describes one framed message.
type Report struct {
	N        int    `json:"n" yaml:"n"`
	MsgType  string `json:"msgType,omitempty" yaml:"msgType,omitempty"`
	SeqNum   int    `json:"seqNum,omitempty" yaml:"seqNum,omitempty"`
	Sender   string `json:"sender,omitempty" yaml:"sender,omitempty"`
	Target   string `json:"target,omitempty" yaml:"target,omitempty"`
	Fields   int    `json:"fields" yaml:"fields"`
	Valid    bool   `json:"valid" yaml:"valid"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	Reason   *int   `json:"reason,omitempty" yaml:"reason,omitempty"`
	RefTagID int    `json:"refTagID,omitempty" yaml:"refTagID,omitempty"`
}

// Summary totals a run.
type Summary struct {
	Messages int `json:"messages" yaml:"messages"`
	Valid    int `json:"valid" yaml:"valid"`
	Invalid  int `json:"invalid" yaml:"invalid"`
	Skipped  int `json:"skippedBytes" yaml:"skippedBytes"`
}

// Checker parses and validates messages.
type Checker struct {
	Registry         *dict.Registry
	Validator        *validate.Validator
	DefaultApplVerID string
	Separator        byte
	SkipChecksum     bool
	Format           string
	Logger           *zap.Logger
}

func (c *Checker) parser() *message.Parser {
	return &message.Parser{
		Registry:         c.Registry,
		DefaultApplVerID: c.DefaultApplVerID,
		Separator:        c.Separator,
		SkipChecksum:     c.SkipChecksum,
	}
}

// Check reports on one message.
func (c *Checker) Check(n int, raw []byte) *Report {
	r := &Report{N: n}
	m, err := c.parser().Parse(raw)
	if m != nil {
		r.MsgType = m.MsgType
		r.SeqNum, _ = m.SeqNum()
		r.Sender, _ = m.Header.GetString(tag.SenderCompID)
		r.Target, _ = m.Header.GetString(tag.TargetCompID)
		r.Fields = m.Header.Len() + m.Body.Len() + m.Trailer.Len()
	}
	if err == nil {
		err = c.validate(m)
	}
	if err != nil {
		r.Error = err.Error()
		var re *reject.Error
		if errors.As(err, &re) {
			reason := int(re.Reason)
			r.Reason = &reason
			r.RefTagID = re.Tag
		}
		return r
	}
	r.Valid = true
	return r
}

func (c *Checker) validate(m *message.Message) error {
	transport, have := c.Registry.Transport(m.BeginString())
	if !have {
		return fmt.Errorf("no dictionary for %s", m.BeginString())
	}
	app := transport
	if !m.IsAdmin() && m.BeginString() == "FIXT.1.1" {
		v := c.DefaultApplVerID
		if f, have := m.Header.Get(tag.ApplVerID); have {
			v = f.String()
		}
		if appl, ok := dict.ApplVerID(v); ok {
			if d, have := c.Registry.Lookup(m.BeginString(), appl); have {
				app = d
			}
		}
	}
	return c.Validator.ValidateWith(transport, app, m, false)
}

// Run frames messages from in and writes a report for each, then a
// summary.
func (c *Checker) Run(in io.Reader, out io.Writer) (*Summary, error) {
	var (
		f   = wire.NewFramer(in, c.Separator)
		sum = &Summary{}
	)
	for {
		raw, err := f.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sum.Skipped = f.Skipped
			return sum, err
		}
		sum.Messages++
		r := c.Check(sum.Messages, raw)
		if r.Valid {
			sum.Valid++
		} else {
			sum.Invalid++
			c.Logger.Debug("invalid", zap.Int("n", r.N), zap.String("error", r.Error))
		}
		if err := c.write(out, r); err != nil {
			return sum, err
		}
	}
	sum.Skipped = f.Skipped
	return sum, c.write(out, sum)
}

func (c *Checker) write(out io.Writer, x interface{}) error {
	switch c.Format {
	case "yaml":
		bs, err := yaml.Marshal(x)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "---\n%s", bs)
		return err
	default:
		bs, err := json.Marshal(x)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s\n", bs)
		return err
	}
}
