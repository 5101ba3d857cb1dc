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
	"github.com/prometheus/client_golang/prometheus"
)

// Session counters, labeled by SessionID string.
var (
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_messages_received_total",
			Help: "Inbound messages by session and MsgType",
		},
		[]string{"session", "msg_type"},
	)

	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_messages_sent_total",
			Help: "Outbound messages by session and MsgType, resends included",
		},
		[]string{"session", "msg_type"},
	)

	SequenceGaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_sequence_gaps_total",
			Help: "Inbound messages with a MsgSeqNum higher than expected",
		},
		[]string{"session"},
	)

	ResendRequestsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_resend_requests_sent_total",
			Help: "ResendRequests sent",
		},
		[]string{"session"},
	)

	RejectsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_rejects_sent_total",
			Help: "Reject and BusinessMessageReject messages sent, by MsgType",
		},
		[]string{"session", "msg_type"},
	)

	Disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fix_session_disconnects_total",
			Help: "Connections dropped by the session",
		},
		[]string{"session"},
	)

	LoggedOn = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fix_session_logged_on",
			Help: "1 when the session is logged on",
		},
		[]string{"session"},
	)
)

func init() {
	prometheus.MustRegister(MessagesReceived, MessagesSent, SequenceGaps, ResendRequestsSent)
	prometheus.MustRegister(RejectsSent, Disconnects, LoggedOn)
}
