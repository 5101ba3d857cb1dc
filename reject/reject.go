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

// Package reject has the reasons a FIX message can be refused.
//
// Session-level reasons are the SessionRejectReason (373) values.
// Business-level reasons are the BusinessRejectReason (380) values.
package reject

import (
	"errors"
	"fmt"
	"strconv"
)

// Reason is a SessionRejectReason (373) value.
type Reason int

const (
	InvalidTagNumber                   Reason = 0
	RequiredTagMissing                 Reason = 1
	TagNotDefinedForMessageType        Reason = 2
	UndefinedTag                       Reason = 3
	TagSpecifiedWithoutValue           Reason = 4
	ValueIsIncorrect                   Reason = 5
	IncorrectDataFormat                Reason = 6
	DecryptionProblem                  Reason = 7
	SignatureProblem                   Reason = 8
	CompIDProblem                      Reason = 9
	SendingTimeAccuracyProblem         Reason = 10
	InvalidMsgType                     Reason = 11
	XMLValidationError                 Reason = 12
	TagAppearsMoreThanOnce             Reason = 13
	TagSpecifiedOutOfRequiredOrder     Reason = 14
	RepeatingGroupFieldsOutOfOrder     Reason = 15
	IncorrectNumInGroupCount           Reason = 16
	NonDataValueIncludesFieldDelimiter Reason = 17
	Other                              Reason = 99
)

var reasonText = map[Reason]string{
	InvalidTagNumber:                   "Invalid tag number",
	RequiredTagMissing:                 "Required tag missing",
	TagNotDefinedForMessageType:        "Tag not defined for this message type",
	UndefinedTag:                       "Undefined Tag",
	TagSpecifiedWithoutValue:           "Tag specified without a value",
	ValueIsIncorrect:                   "Value is incorrect (out of range) for this tag",
	IncorrectDataFormat:                "Incorrect data format for value",
	DecryptionProblem:                  "Decryption problem",
	SignatureProblem:                   "Signature problem",
	CompIDProblem:                      "CompID problem",
	SendingTimeAccuracyProblem:         "SendingTime accuracy problem",
	InvalidMsgType:                     "Invalid MsgType",
	XMLValidationError:                 "XML Validation error",
	TagAppearsMoreThanOnce:             "Tag appears more than once",
	TagSpecifiedOutOfRequiredOrder:     "Tag specified out of required order",
	RepeatingGroupFieldsOutOfOrder:     "Repeating group fields out of order",
	IncorrectNumInGroupCount:           "Incorrect NumInGroup count for repeating group",
	NonDataValueIncludesFieldDelimiter: "Non Data value includes field delimiter",
	Other:                              "Other",
}

func (r Reason) String() string {
	if s, have := reasonText[r]; have {
		return s
	}
	return "SessionRejectReason " + strconv.Itoa(int(r))
}

// BusinessReason is a BusinessRejectReason (380) value.
type BusinessReason int

const (
	BusinessOther                     BusinessReason = 0
	UnknownID                         BusinessReason = 1
	UnknownSecurity                   BusinessReason = 2
	UnsupportedMessageType            BusinessReason = 3
	ApplicationNotAvailable           BusinessReason = 4
	ConditionallyRequiredFieldMissing BusinessReason = 5
	NotAuthorized                     BusinessReason = 6
	DeliverToFirmNotAvailable         BusinessReason = 7
)

// Error is a rejection of a message.
//
// When Business is true, the rejection should be answered with a
// BusinessMessageReject (j) using BusinessReason.  Otherwise it's a
// session-level Reject (3) using Reason.
type Error struct {
	Reason         Reason
	Business       bool
	BusinessReason BusinessReason

	// Tag is the RefTagID.  Zero means no particular tag.
	Tag int

	// Text is an optional explanation.  When empty, Error() uses
	// the reason's standard text.
	Text string
}

func (e *Error) Error() string {
	text := e.Text
	if text == "" {
		if e.Business {
			text = "business reject " + strconv.Itoa(int(e.BusinessReason))
		} else {
			text = e.Reason.String()
		}
	}
	if e.Tag != 0 {
		return fmt.Sprintf("%s (tag %d)", text, e.Tag)
	}
	return text
}

// New makes a session-level rejection for the given tag.
func New(r Reason, tag int) *Error {
	return &Error{
		Reason: r,
		Tag:    tag,
	}
}

// Newf makes a session-level rejection with formatted text.
func Newf(r Reason, tag int, format string, args ...interface{}) *Error {
	return &Error{
		Reason: r,
		Tag:    tag,
		Text:   fmt.Sprintf(format, args...),
	}
}

// NewBusiness makes a business-level rejection.
func NewBusiness(r BusinessReason, tag int, text string) *Error {
	return &Error{
		Business:       true,
		BusinessReason: r,
		Tag:            tag,
		Text:           text,
	}
}

// MissingTag is shorthand for RequiredTagMissing.
func MissingTag(tag int) *Error {
	return New(RequiredTagMissing, tag)
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is a rejection with the given reason.
func Is(err error, r Reason) bool {
	e, ok := As(err)
	return ok && !e.Business && e.Reason == r
}
