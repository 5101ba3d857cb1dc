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

// Package msgtype has the MsgType (35) values of the session layer
// and a few common application messages.
package msgtype

const (
	Heartbeat     = "0"
	TestRequest   = "1"
	ResendRequest = "2"
	Reject        = "3"
	SequenceReset = "4"
	Logout        = "5"
	Logon         = "A"

	BusinessMessageReject         = "j"
	NewOrderSingle                = "D"
	ExecutionReport               = "8"
	OrderCancelRequest            = "F"
	MarketDataRequest             = "V"
	MarketDataSnapshotFullRefresh = "W"
)

// IsAdmin reports whether the given MsgType is a session-level
// (administrative) message.
func IsAdmin(t string) bool {
	switch t {
	case Heartbeat, TestRequest, ResendRequest, Reject, SequenceReset, Logout, Logon:
		return true
	}
	return false
}
