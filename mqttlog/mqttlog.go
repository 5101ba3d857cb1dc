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

// Package mqttlog publishes session traffic and events to an MQTT
// broker, for drop copies and audit.
//
// Each session publishes under TOPIC/BEGINSTRING/SENDER/TARGET with
// "in", "out" and "event" suffixes.  Payloads are JSON.
package mqttlog

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Comcast/fixsession/session"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher is the part of an mqtt.Client a Log needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Options configures a broker connection.
type Options struct {
	Broker    string        `mapstructure:"Broker" json:"Broker"`
	ClientID  string        `mapstructure:"ClientID" json:"ClientID,omitempty"`
	Username  string        `mapstructure:"Username" json:"Username,omitempty"`
	Password  string        `mapstructure:"Password" json:"-"`
	KeepAlive time.Duration `mapstructure:"KeepAlive" json:"KeepAlive,omitempty"`

	// Topic is the topic prefix, optionally with ":QOS".
	Topic string `mapstructure:"Topic" json:"Topic"`

	// Timeout bounds the wait for a publish to be acknowledged
	// before a warning is logged.
	Timeout time.Duration `mapstructure:"Timeout" json:"Timeout,omitempty"`
}

// Connect makes a client and connects it to the broker.
func Connect(o Options, logger *zap.Logger) (mqtt.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if 0 < o.KeepAlive {
		opts.SetKeepAlive(o.KeepAlive)
	}
	opts.Username = o.Username
	opts.Password = o.Password
	opts.AutoReconnect = true
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connecting to %s: %w", o.Broker, token.Error())
	}
	logger.Info("connected to broker", zap.String("broker", o.Broker))
	return client, nil
}

// ParseTopic extracts the QoS from a topic of the form TOPIC:QOS.
func ParseTopic(s string) (string, byte) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return s, 0
	}
	switch s[i+1:] {
	case "0":
		return s[:i], 0
	case "1":
		return s[:i], 1
	case "2":
		return s[:i], 2
	}
	return s, 0
}

type entry struct {
	Session string    `json:"session"`
	At      time.Time `json:"at"`
	Msg     string    `json:"msg,omitempty"`
	Text    string    `json:"text,omitempty"`
}

// Log is a session.Log that publishes to MQTT.  Publishing doesn't
// wait for the broker.
type Log struct {
	pub     Publisher
	topic   string
	qos     byte
	timeout time.Duration
	id      string
	logger  *zap.Logger
	now     func() time.Time
}

// New makes a Log for one session.
func New(pub Publisher, o Options, id session.SessionID, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix, qos := ParseTopic(o.Topic)
	parts := []string{prefix, id.BeginString, id.SenderCompID, id.TargetCompID}
	if id.Qualifier != "" {
		parts = append(parts, id.Qualifier)
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Log{
		pub:     pub,
		topic:   strings.Join(parts, "/"),
		qos:     qos,
		timeout: timeout,
		id:      id.String(),
		logger:  logger.With(zap.String("session", id.String())),
		now:     time.Now,
	}
}

// Factory makes Logs that share one Publisher.
func Factory(pub Publisher, o Options, logger *zap.Logger) session.LogFactory {
	return func(id session.SessionID) (session.Log, error) {
		return New(pub, o, id, logger), nil
	}
}

// Topic is the prefix this Log publishes under.
func (l *Log) Topic() string {
	return l.topic
}

func (l *Log) OnIncoming(raw []byte) {
	l.publish("in", entry{Msg: session.Printable(raw)})
}

func (l *Log) OnOutgoing(raw []byte) {
	l.publish("out", entry{Msg: session.Printable(raw)})
}

func (l *Log) OnEvent(text string) {
	l.publish("event", entry{Text: text})
}

func (l *Log) publish(suffix string, e entry) {
	e.Session = l.id
	e.At = l.now().UTC()
	js, err := json.Marshal(&e)
	if err != nil {
		l.logger.Error("marshaling log entry", zap.Error(err))
		return
	}
	topic := l.topic + "/" + suffix
	token := l.pub.Publish(topic, l.qos, false, js)
	go l.check(topic, token)
}

func (l *Log) check(topic string, token mqtt.Token) {
	if !token.WaitTimeout(l.timeout) {
		l.logger.Warn("publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		l.logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
