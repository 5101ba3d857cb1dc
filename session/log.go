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
	"bytes"

	"go.uber.org/zap"
)

// Log records a session's traffic and protocol events.
type Log interface {
	OnIncoming(raw []byte)
	OnOutgoing(raw []byte)
	OnEvent(text string)
}

// LogFactory makes a Log for a session.
type LogFactory func(id SessionID) (Log, error)

// ZapLog writes to a zap.Logger.  Messages go at Debug level and
// events at Info.
type ZapLog struct {
	logger *zap.Logger
}

// NewZapLog makes a Log that tags each entry with the session ID.
func NewZapLog(logger *zap.Logger, id SessionID) *ZapLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLog{
		logger: logger.With(zap.String("session", id.String())),
	}
}

// ZapLogFactory makes ZapLogs from one logger.
func ZapLogFactory(logger *zap.Logger) LogFactory {
	return func(id SessionID) (Log, error) {
		return NewZapLog(logger, id), nil
	}
}

// Printable replaces SOH with '|'.
func Printable(raw []byte) string {
	return string(bytes.ReplaceAll(raw, []byte{1}, []byte{'|'}))
}

func (l *ZapLog) OnIncoming(raw []byte) {
	if ce := l.logger.Check(zap.DebugLevel, "incoming"); ce != nil {
		ce.Write(zap.String("msg", Printable(raw)))
	}
}

func (l *ZapLog) OnOutgoing(raw []byte) {
	if ce := l.logger.Check(zap.DebugLevel, "outgoing"); ce != nil {
		ce.Write(zap.String("msg", Printable(raw)))
	}
}

func (l *ZapLog) OnEvent(text string) {
	l.logger.Info("event", zap.String("text", text))
}

// NullLog discards everything.
type NullLog struct{}

func (NullLog) OnIncoming([]byte) {}
func (NullLog) OnOutgoing([]byte) {}
func (NullLog) OnEvent(string)    {}

type multiLog []Log

// MultiLog writes to all of the given logs.
func MultiLog(logs ...Log) Log {
	return multiLog(logs)
}

func (ls multiLog) OnIncoming(raw []byte) {
	for _, l := range ls {
		l.OnIncoming(raw)
	}
}

func (ls multiLog) OnOutgoing(raw []byte) {
	for _, l := range ls {
		l.OnOutgoing(raw)
	}
}

func (ls multiLog) OnEvent(text string) {
	for _, l := range ls {
		l.OnEvent(text)
	}
}
