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
	"sync"
	"sync/atomic"
	"time"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/validate"
)

// Session runs the FIX session protocol for one SessionID.
//
// Inbound bytes arrive through Next and time passes through Tick.
// Both are meant to be called from one dispatch path, but every
// exported method takes the session lock, so admin actions can come
// from anywhere.
type Session struct {
	id       SessionID
	settings Settings
	label    string

	logger    *zap.Logger
	log       Log
	store     MessageStore
	app       Application
	listener  Listener
	registry  *dict.Registry
	parser    *message.Parser
	validator *validate.Validator
	schedule  *Schedule
	precision field.Precision
	now       func() time.Time

	// mu guards the state machine, st and queue.
	mu    sync.Mutex
	fsm   *fsm.FSM
	st    state
	queue map[int]*message.Message

	// sendMu guards the outbound sequence, the responder and
	// lastSent.  Take mu first when both are needed.
	sendMu    sync.Mutex
	responder Responder
	lastSent  time.Time

	loggedOn atomic.Bool
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets the zap logger for internal diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) error {
		s.logger = l
		return nil
	}
}

// WithLog sets the message and event log.  The default is a ZapLog on
// the session's logger.
func WithLog(l Log) Option {
	return func(s *Session) error {
		s.log = l
		return nil
	}
}

// WithStore sets the message store.  The default is a MemoryStore.
func WithStore(ms MessageStore) Option {
	return func(s *Session) error {
		s.store = ms
		return nil
	}
}

// WithApplication sets the application callbacks.
func WithApplication(app Application) Option {
	return func(s *Session) error {
		s.app = app
		return nil
	}
}

// WithListener sets the lifecycle listener.
func WithListener(l Listener) Option {
	return func(s *Session) error {
		s.listener = l
		return nil
	}
}

// WithRegistry sets the dictionaries.  Without one, the session loads
// the dictionaries its settings name.
func WithRegistry(r *dict.Registry) Option {
	return func(s *Session) error {
		s.registry = r
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) error {
		s.now = now
		return nil
	}
}

// New makes a session.  Invalid settings are an error.
func New(settings Settings, opts ...Option) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:       settings.ID(),
		settings: settings,
		queue:    make(map[int]*message.Message),
		now:      time.Now,
	}
	s.label = s.id.String()

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.log == nil {
		s.log = NewZapLog(s.logger, s.id)
	}
	s.logger = s.logger.With(zap.String("session", s.label))
	if s.store == nil {
		s.store = NewMemoryStore()
	}
	if s.app == nil {
		s.app = NopApplication{}
	}
	if s.listener == nil {
		s.listener = nopListener{}
	}
	if s.registry == nil && settings.UseDataDictionary {
		r, err := Dictionaries(&settings)
		if err != nil {
			return nil, err
		}
		s.registry = r
	}

	var err error
	if s.schedule, err = NewSchedule(&settings); err != nil {
		return nil, err
	}

	s.parser = &message.Parser{
		Registry:         s.registry,
		DefaultApplVerID: settings.DefaultApplVerID,
	}
	s.validator = validate.New(validate.Options{
		CheckFieldsOutOfOrder:     settings.ValidateFieldsOutOfOrder,
		CheckBodyOrder:            settings.ValidateFieldsOutOfOrder && settings.ValidateBodyOrder,
		CheckFieldsHaveValues:     settings.ValidateFieldsHaveValues,
		CheckUserDefinedFields:    settings.ValidateUserDefinedFields,
		AllowUnknownMessageFields: settings.AllowUnknownMessageFields,
		CheckGroups:               true,
	})
	s.precision = settings.precision()
	s.st.heartBtInt = time.Duration(settings.HeartBtInt) * time.Second
	s.fsm = s.newFSM()

	s.app.OnCreate(s.id)

	return s, nil
}

// Dictionaries loads the dictionaries named by the settings.
func Dictionaries(settings *Settings) (*dict.Registry, error) {
	opts := []dict.Option{dict.WithNumericMode(settings.numericMode())}
	var refs []string
	if settings.BeginString == "FIXT.1.1" {
		refs = append([]string{settings.TransportDataDictionary}, settings.AppDataDictionary...)
	} else {
		refs = []string{settings.DataDictionary}
	}

	ds := make([]*dict.DataDictionary, 0, len(refs))
	for _, ref := range refs {
		d, err := dict.Resolve(ref, opts...)
		if err != nil {
			return nil, fmt.Errorf("dictionary %q: %w", ref, err)
		}
		ds = append(ds, d)
	}
	return dict.NewRegistry(ds...)
}

func (s *Session) ID() SessionID {
	return s.id
}

func (s *Session) Settings() Settings {
	return s.settings
}

func (s *Session) Store() MessageStore {
	return s.store
}

// Registry returns the session's dictionaries, which might be nil.
func (s *Session) Registry() *dict.Registry {
	return s.registry
}

// IsLoggedOn doesn't take the session lock.
func (s *Session) IsLoggedOn() bool {
	return s.loggedOn.Load()
}

// IsConnected reports whether the session has a Responder.
func (s *Session) IsConnected() bool {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.responder != nil
}

// State returns a snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendMu.Lock()
	lastSent := s.lastSent
	s.sendMu.Unlock()

	return State{
		Connection:          s.fsm.Current(),
		NextSenderMsgSeqNum: s.store.NextSenderMsgSeqNum(),
		NextTargetMsgSeqNum: s.store.NextTargetMsgSeqNum(),
		HeartBtInt:          s.st.heartBtInt,
		LastSentTime:        lastSent,
		LastReceivedTime:    s.st.lastReceived,
		LogonSent:           s.st.logonSent,
		LogonReceived:       s.st.logonReceived,
		LogoutSent:          s.st.logoutSent,
		LogoutReceived:      s.st.logoutReceived,
		TestRequestCounter:  s.st.testRequests,
		ResendBegin:         s.st.resendBegin,
		ResendEnd:           s.st.resendEnd,
		Queued:              len(s.queue),
	}
}

// Connect attaches a connection.  An initiator sends its Logon right
// away.  An acceptor waits LogonTimeout for the counterparty's.
func (s *Session) Connect(r Responder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.schedule.IsSessionTime(now) {
		return ErrNotSessionTime
	}

	s.sendMu.Lock()
	if s.responder != nil {
		s.sendMu.Unlock()
		return ErrAlreadyConnected
	}
	s.responder = r
	s.lastSent = now
	s.sendMu.Unlock()

	s.st.connectedAt = now
	s.st.lastReceived = now
	s.checkSessionPeriod(now)
	s.event("Connected")

	if s.settings.ConnectionType == Initiator {
		if s.settings.RefreshOnLogon {
			if err := s.store.Refresh(); err != nil {
				return fmt.Errorf("refreshing store: %w", err)
			}
		}
		if s.settings.ResetOnLogon {
			if err := s.resetStore(); err != nil {
				return err
			}
		}
		return s.sendLogon(s.settings.ResetOnLogon)
	}
	return nil
}

// Logout starts a graceful logout.  The session waits LogoutTimeout
// for the counterparty's Logout before disconnecting.  A session
// that isn't logged on just disconnects.
func (s *Session) Logout(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fsm.Current() != StateLoggedOn {
		s.disconnect(reason)
		return nil
	}
	return s.sendLogout(reason)
}

// Disconnect drops the connection without a Logout.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnect(reason)
}

// Reset logs out if needed and resets the store's sequence numbers
// and messages.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loggedOn.Load() {
		if err := s.sendLogout("Session reset"); err != nil {
			s.logger.Warn("logout before reset", zap.Error(err))
		}
		s.disconnect("Session reset")
	}
	return s.resetStore()
}

func (s *Session) resetStore() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.store.Reset(); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	s.queue = make(map[int]*message.Message)
	s.st.resendBegin, s.st.resendEnd = 0, 0
	s.event("Session reset")
	return nil
}

func (s *Session) SetNextSenderMsgSeqNum(next int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.store.SetNextSenderMsgSeqNum(next)
}

func (s *Session) SetNextTargetMsgSeqNum(next int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.SetNextTargetMsgSeqNum(next)
}

// Refresh reloads the store.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.store.Refresh()
}

// Close disconnects and closes the store.
func (s *Session) Close() error {
	s.Disconnect("Session closed")
	return s.store.Close()
}

// checkSessionPeriod resets the store when it was made in an earlier
// period of the schedule.
func (s *Session) checkSessionPeriod(now time.Time) {
	if s.schedule.IsSameSession(s.store.CreationTime(), now) {
		return
	}
	s.event("New session period")
	if err := s.resetStore(); err != nil {
		s.logger.Error("new session period", zap.Error(err))
	}
}

func (s *Session) event(text string) {
	s.log.OnEvent(text)
}

// disconnect drops the connection and clears the per-connection
// state.  Holds mu.
func (s *Session) disconnect(reason string) {
	s.sendMu.Lock()
	r := s.responder
	s.responder = nil
	s.sendMu.Unlock()

	if r == nil {
		return
	}

	s.event("Disconnecting: " + reason)
	Disconnects.WithLabelValues(s.label).Inc()
	r.Disconnect()

	s.transition(evDisconnect)
	if s.st.established {
		s.app.OnLogout(s.id)
		s.listener.OnLogout(s.id)
	}

	s.st = state{
		heartBtInt: time.Duration(s.settings.HeartBtInt) * time.Second,
	}
	s.queue = make(map[int]*message.Message)

	if s.settings.ResetOnDisconnect {
		if err := s.resetStore(); err != nil {
			s.logger.Error("reset on disconnect", zap.Error(err))
		}
	}

	s.listener.OnDisconnect(s.id)
}
