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
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Comcast/fixsession/field"
)

const (
	Initiator = "initiator"
	Acceptor  = "acceptor"

	// Strict disconnects on a MsgSeqNum lower than expected without
	// PossDupFlag.  Lenient logs and ignores it.
	Strict  = "strict"
	Lenient = "lenient"
)

// Settings configures one session.  Keys follow the usual FIX engine
// configuration names.
type Settings struct {
	BeginString      string `mapstructure:"BeginString" json:"BeginString" validate:"required,oneof=FIX.4.0 FIX.4.1 FIX.4.2 FIX.4.3 FIX.4.4 FIXT.1.1"`
	SenderCompID     string `mapstructure:"SenderCompID" json:"SenderCompID" validate:"required"`
	SenderSubID      string `mapstructure:"SenderSubID" json:"SenderSubID,omitempty"`
	SenderLocationID string `mapstructure:"SenderLocationID" json:"SenderLocationID,omitempty"`
	TargetCompID     string `mapstructure:"TargetCompID" json:"TargetCompID" validate:"required"`
	TargetSubID      string `mapstructure:"TargetSubID" json:"TargetSubID,omitempty"`
	TargetLocationID string `mapstructure:"TargetLocationID" json:"TargetLocationID,omitempty"`
	SessionQualifier string `mapstructure:"SessionQualifier" json:"SessionQualifier,omitempty"`

	ConnectionType string `mapstructure:"ConnectionType" json:"ConnectionType" validate:"required,oneof=initiator acceptor"`

	// HeartBtInt is in seconds.  An acceptor uses the value from
	// the counterparty's Logon.
	HeartBtInt int `mapstructure:"HeartBtInt" json:"HeartBtInt" validate:"required_if=ConnectionType initiator,gte=0"`

	// StartTime and EndTime are "HH:MM:SS" in TimeZone.  With
	// StartDay and EndDay, the session is weekly.
	StartTime      string `mapstructure:"StartTime" json:"StartTime,omitempty" validate:"required_unless=NonStopSession true"`
	EndTime        string `mapstructure:"EndTime" json:"EndTime,omitempty" validate:"required_unless=NonStopSession true"`
	StartDay       string `mapstructure:"StartDay" json:"StartDay,omitempty"`
	EndDay         string `mapstructure:"EndDay" json:"EndDay,omitempty"`
	TimeZone       string `mapstructure:"TimeZone" json:"TimeZone,omitempty"`
	NonStopSession bool   `mapstructure:"NonStopSession" json:"NonStopSession"`

	// DataDictionary is "builtin:FIX.4.4" or a file name.  FIXT.1.1
	// sessions use TransportDataDictionary and AppDataDictionary
	// instead.
	DataDictionary          string   `mapstructure:"DataDictionary" json:"DataDictionary,omitempty"`
	TransportDataDictionary string   `mapstructure:"TransportDataDictionary" json:"TransportDataDictionary,omitempty"`
	AppDataDictionary       []string `mapstructure:"AppDataDictionary" json:"AppDataDictionary,omitempty"`
	DefaultApplVerID        string   `mapstructure:"DefaultApplVerID" json:"DefaultApplVerID,omitempty"`
	UseDataDictionary       bool     `mapstructure:"UseDataDictionary" json:"UseDataDictionary"`

	ResetOnLogon      bool `mapstructure:"ResetOnLogon" json:"ResetOnLogon"`
	ResetOnLogout     bool `mapstructure:"ResetOnLogout" json:"ResetOnLogout"`
	ResetOnDisconnect bool `mapstructure:"ResetOnDisconnect" json:"ResetOnDisconnect"`
	RefreshOnLogon    bool `mapstructure:"RefreshOnLogon" json:"RefreshOnLogon"`

	// Timeouts are in seconds.
	LogonTimeout  int `mapstructure:"LogonTimeout" json:"LogonTimeout" validate:"gt=0"`
	LogoutTimeout int `mapstructure:"LogoutTimeout" json:"LogoutTimeout" validate:"gt=0"`

	CheckLatency bool `mapstructure:"CheckLatency" json:"CheckLatency"`
	MaxLatency   int  `mapstructure:"MaxLatency" json:"MaxLatency" validate:"gt=0"`

	ValidateFieldsOutOfOrder  bool `mapstructure:"ValidateFieldsOutOfOrder" json:"ValidateFieldsOutOfOrder"`
	ValidateFieldsHaveValues  bool `mapstructure:"ValidateFieldsHaveValues" json:"ValidateFieldsHaveValues"`
	ValidateBodyOrder         bool `mapstructure:"ValidateBodyOrder" json:"ValidateBodyOrder"`
	ValidateUserDefinedFields bool `mapstructure:"ValidateUserDefinedFields" json:"ValidateUserDefinedFields"`
	AllowUnknownMessageFields bool `mapstructure:"AllowUnknownMessageFields" json:"AllowUnknownMessageFields"`

	// RejectInvalidMessage makes the session reject invalid
	// application messages itself instead of handing them to
	// FromApp with Message.Err set.
	RejectInvalidMessage bool `mapstructure:"RejectInvalidMessage" json:"RejectInvalidMessage"`

	SeqNumStrictness string `mapstructure:"SeqNumStrictness" json:"SeqNumStrictness" validate:"oneof=strict lenient"`

	// QueueOutOfOrder keeps messages that arrive ahead of a gap.
	// Without it they are dropped and the ResendRequest is
	// open-ended.
	QueueOutOfOrder bool `mapstructure:"QueueOutOfOrder" json:"QueueOutOfOrder"`

	// MaxConsecutiveErrors is how many garbled messages in a row
	// are tolerated.  Zero means any number.
	MaxConsecutiveErrors int `mapstructure:"MaxConsecutiveErrors" json:"MaxConsecutiveErrors" validate:"gte=0"`

	// TimestampPrecision is the number of fractional second digits
	// in outbound timestamps.
	TimestampPrecision int `mapstructure:"TimestampPrecision" json:"TimestampPrecision" validate:"oneof=0 3 6 9"`

	PersistMessages bool `mapstructure:"PersistMessages" json:"PersistMessages"`

	NumericRepresentation string `mapstructure:"NumericRepresentation" json:"NumericRepresentation" validate:"oneof=float decimal"`

	RequiresOrigSendingTime     bool `mapstructure:"RequiresOrigSendingTime" json:"RequiresOrigSendingTime"`
	SendRedundantResendRequests bool `mapstructure:"SendRedundantResendRequests" json:"SendRedundantResendRequests"`

	EnableLastMsgSeqNumProcessed bool `mapstructure:"EnableLastMsgSeqNumProcessed" json:"EnableLastMsgSeqNumProcessed"`
}

// DefaultSettings has everything but identity and schedule filled in.
func DefaultSettings() Settings {
	return Settings{
		HeartBtInt:                30,
		UseDataDictionary:         true,
		LogonTimeout:              10,
		LogoutTimeout:             2,
		CheckLatency:              true,
		MaxLatency:                120,
		ValidateFieldsOutOfOrder:  true,
		ValidateFieldsHaveValues:  true,
		ValidateUserDefinedFields: true,
		SeqNumStrictness:          Strict,
		QueueOutOfOrder:           true,
		MaxConsecutiveErrors:      3,
		TimestampPrecision:        3,
		PersistMessages:           true,
		NumericRepresentation:     "float",
		RequiresOrigSendingTime:   true,
	}
}

var settingsValidator = validator.New()

// Validate checks the settings.
func (s *Settings) Validate() error {
	if err := settingsValidator.Struct(s); err != nil {
		return fmt.Errorf("invalid session settings: %w", err)
	}

	if (s.StartDay == "") != (s.EndDay == "") {
		return fmt.Errorf("invalid session settings: StartDay and EndDay go together")
	}
	for _, d := range []string{s.StartDay, s.EndDay} {
		if d == "" {
			continue
		}
		if _, err := ParseWeekday(d); err != nil {
			return fmt.Errorf("invalid session settings: %w", err)
		}
	}
	if !s.NonStopSession {
		for _, t := range []string{s.StartTime, s.EndTime} {
			if _, _, _, err := parseClock(t); err != nil {
				return fmt.Errorf("invalid session settings: %w", err)
			}
		}
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return fmt.Errorf("invalid session settings: TimeZone: %w", err)
	}

	if s.UseDataDictionary {
		if s.BeginString == "FIXT.1.1" {
			if s.TransportDataDictionary == "" {
				return fmt.Errorf("invalid session settings: FIXT.1.1 needs TransportDataDictionary")
			}
		} else if s.DataDictionary == "" {
			return fmt.Errorf("invalid session settings: DataDictionary is required")
		}
	}
	if s.BeginString == "FIXT.1.1" && s.DefaultApplVerID == "" {
		return fmt.Errorf("invalid session settings: FIXT.1.1 needs DefaultApplVerID")
	}

	return nil
}

// ID is the SessionID these settings describe.
func (s *Settings) ID() SessionID {
	return SessionID{
		BeginString:      s.BeginString,
		SenderCompID:     s.SenderCompID,
		SenderSubID:      s.SenderSubID,
		SenderLocationID: s.SenderLocationID,
		TargetCompID:     s.TargetCompID,
		TargetSubID:      s.TargetSubID,
		TargetLocationID: s.TargetLocationID,
		Qualifier:        s.SessionQualifier,
	}
}

func (s *Settings) precision() field.Precision {
	p, err := field.ParsePrecision(s.TimestampPrecision)
	if err != nil {
		return field.Millis
	}
	return p
}

func (s *Settings) numericMode() field.NumericMode {
	m, _ := field.ParseNumericMode(s.NumericRepresentation)
	return m
}
