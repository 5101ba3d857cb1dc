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

// Package tag names the FIX tag numbers the session layer uses.
package tag

// Standard header.
const (
	BeginString            = 8
	BodyLength             = 9
	MsgType                = 35
	SenderCompID           = 49
	TargetCompID           = 56
	OnBehalfOfCompID       = 115
	DeliverToCompID        = 128
	SecureDataLen          = 90
	SecureData             = 91
	MsgSeqNum              = 34
	SenderSubID            = 50
	SenderLocationID       = 142
	TargetSubID            = 57
	TargetLocationID       = 143
	PossDupFlag            = 43
	PossResend             = 97
	SendingTime            = 52
	OrigSendingTime        = 122
	LastMsgSeqNumProcessed = 369
	ApplVerID              = 1128
	CstmApplVerID          = 1129
)

// Standard trailer.
const (
	SignatureLength = 93
	Signature       = 89
	CheckSum        = 10
)

// Session-level body fields.
const (
	BeginSeqNo            = 7
	EndSeqNo              = 16
	NewSeqNo              = 36
	GapFillFlag           = 123
	TestReqID             = 112
	HeartBtInt            = 108
	EncryptMethod         = 98
	ResetSeqNumFlag       = 141
	NextExpectedMsgSeqNum = 789
	RawDataLength         = 95
	RawData               = 96
	Username              = 553
	Password              = 554
	DefaultApplVerID      = 1137
	RefSeqNum             = 45
	RefTagID              = 371
	RefMsgType            = 372
	SessionRejectReason   = 373
	BusinessRejectRefID   = 379
	BusinessRejectReason  = 380
	Text                  = 58
)

// IsHeader reports whether t is a standard header tag.  Dictionaries
// may declare more.
func IsHeader(t int) bool {
	switch t {
	case BeginString, BodyLength, MsgType, SenderCompID, TargetCompID,
		OnBehalfOfCompID, DeliverToCompID, SecureDataLen, SecureData,
		MsgSeqNum, SenderSubID, SenderLocationID, TargetSubID,
		TargetLocationID, PossDupFlag, PossResend, SendingTime,
		OrigSendingTime, LastMsgSeqNumProcessed, ApplVerID, CstmApplVerID:
		return true
	}
	return false
}

// IsTrailer reports whether t is a standard trailer tag.
func IsTrailer(t int) bool {
	switch t {
	case SignatureLength, Signature, CheckSum:
		return true
	}
	return false
}
