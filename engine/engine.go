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

// Package engine keeps a registry of sessions and drives them.
//
// Inbound bytes, connections and administrative requests become
// dispatch events, so a session is only ever worked on by its
// dispatcher's worker.  A recurring timer puts a Tick event for every
// session so heartbeats, timeouts and schedules are checked.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/fixsession/dispatch"
	"github.com/Comcast/fixsession/message"
	"github.com/Comcast/fixsession/msgtype"
	"github.com/Comcast/fixsession/session"
	"github.com/Comcast/fixsession/tag"
	"github.com/Comcast/fixsession/timers"
	"github.com/Comcast/fixsession/wire"

	"go.uber.org/zap"
)

var (
	ErrSessionExists   = errors.New("session exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotLogon        = errors.New("first message is not a Logon")
	ErrNotStarted      = errors.New("engine not started")
	ErrStarted         = errors.New("engine already started")
)

// DefaultTickInterval is how often sessions are ticked.
var DefaultTickInterval = time.Second

const tickTimer = "tick"

// Engine is an explicit registry of sessions plus the machinery that
// feeds them.
type Engine struct {
	sync.RWMutex

	sessions map[string]*session.Session

	logger   *zap.Logger
	strategy dispatch.Strategy
	timers   *timers.Timers
	tick     time.Duration
	now      func() time.Time

	stores   session.StoreFactory
	logs     session.LogFactory
	app      session.Application
	listener session.Listener

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithStrategy sets the dispatch strategy.  The default is
// dispatch.PerSession.
func WithStrategy(s dispatch.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

func WithStoreFactory(f session.StoreFactory) Option {
	return func(e *Engine) { e.stores = f }
}

func WithLogFactory(f session.LogFactory) Option {
	return func(e *Engine) { e.logs = f }
}

func WithApplication(app session.Application) Option {
	return func(e *Engine) { e.app = app }
}

// WithListener adds a listener that hears about every session's
// lifecycle after the engine does.
func WithListener(l session.Listener) Option {
	return func(e *Engine) { e.listener = l }
}

func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithClock sets the time source for ticks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		sessions: make(map[string]*session.Session, 8),
		tick:     DefaultTickInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.strategy == nil {
		e.strategy = dispatch.NewPerSession(dispatch.Config{Logger: e.logger})
	}
	if e.stores == nil {
		e.stores = session.MemoryStoreFactory
	}
	if e.app == nil {
		e.app = session.NopApplication{}
	}
	e.timers = timers.NewTimers(16, e.logger)
	return e
}

// Create makes a session from settings and registers it.
func (e *Engine) Create(settings session.Settings, opts ...session.Option) (*session.Session, error) {
	id := settings.ID()
	store, err := e.stores.Create(id)
	if err != nil {
		return nil, fmt.Errorf("store for %s: %w", id, err)
	}

	base := []session.Option{
		session.WithLogger(e.logger),
		session.WithStore(store),
		session.WithApplication(e.app),
		session.WithListener(e),
	}
	if e.logs != nil {
		l, err := e.logs(id)
		if err != nil {
			return nil, fmt.Errorf("log for %s: %w", id, err)
		}
		base = append(base, session.WithLog(l))
	}

	s, err := session.New(settings, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := e.Register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Register adds a session made elsewhere.  Such a session should
// have the Engine as its Listener.
func (e *Engine) Register(s *session.Session) error {
	e.Lock()
	defer e.Unlock()
	k := s.ID().String()
	if _, have := e.sessions[k]; have {
		return fmt.Errorf("%w: %s", ErrSessionExists, k)
	}
	e.sessions[k] = s
	e.logger.Info("session registered", zap.String("session", k))
	return nil
}

// Unregister disconnects and closes the session and forgets it.
func (e *Engine) Unregister(id session.SessionID) error {
	k := id.String()
	e.Lock()
	s, have := e.sessions[k]
	delete(e.sessions, k)
	e.Unlock()
	if !have {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, k)
	}
	err := s.Close()
	e.strategy.Release(id)
	e.logger.Info("session unregistered", zap.String("session", k))
	return err
}

func (e *Engine) Lookup(id session.SessionID) (*session.Session, bool) {
	e.RLock()
	defer e.RUnlock()
	s, have := e.sessions[id.String()]
	return s, have
}

// Sessions returns the registered session IDs in string order.
func (e *Engine) Sessions() []session.SessionID {
	e.RLock()
	ids := make([]session.SessionID, 0, len(e.sessions))
	for _, s := range e.sessions {
		ids = append(ids, s.ID())
	}
	e.RUnlock()
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// Start starts the dispatcher and the ticker.  The engine runs until
// ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.Lock()
	if e.ctx != nil {
		e.Unlock()
		return ErrStarted
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	ctx = e.ctx
	e.Unlock()

	if err := e.strategy.Start(ctx, e.handle); err != nil {
		return err
	}

	go func() {
		if err := e.timers.Run(ctx); err != nil {
			e.logger.Error("timers", zap.Error(err))
		}
	}()
	if !e.timers.Wait(time.Second) {
		return errors.New("timers didn't start")
	}
	return e.timers.Every(tickTimer, e.tick, func(ctx context.Context, _ *timers.Timer) {
		e.Tick(ctx)
	})
}

// Tick puts a Tick event for every session.
func (e *Engine) Tick(ctx context.Context) {
	now := e.now()
	for _, id := range e.Sessions() {
		if err := e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Tick, At: now}); err != nil {
			e.logger.Debug("tick", zap.Stringer("session", id), zap.Error(err))
		}
	}
}

func (e *Engine) put(ctx context.Context, ev *dispatch.Event) error {
	e.RLock()
	started := e.ctx != nil
	e.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return e.strategy.Put(ctx, ev)
}

// Deliver queues inbound bytes for a session.
func (e *Engine) Deliver(ctx context.Context, id session.SessionID, raw []byte) error {
	if _, have := e.Lookup(id); !have {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Message, Raw: raw})
}

// Connect queues the attachment of a connection to a session.
func (e *Engine) Connect(ctx context.Context, id session.SessionID, r session.Responder) error {
	if _, have := e.Lookup(id); !have {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Connect, Responder: r})
}

// Accept handles the first message on a new inbound connection.  The
// session is found from the message's header with the roles
// reversed.  The connection is attached and the message delivered.
// If the session already has a connection, the new one is closed and
// the message dropped.
func (e *Engine) Accept(ctx context.Context, raw []byte, r session.Responder) (session.SessionID, error) {
	id, msgType, err := HeaderID(raw)
	if err != nil {
		return id, err
	}
	if msgType != msgtype.Logon {
		return id, ErrNotLogon
	}
	id = id.Reverse()
	if _, have := e.Lookup(id); !have {
		return id, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	// One event, so the Logon is only processed on the connection
	// that carried it.
	return id, e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Connect, Responder: r, Raw: raw})
}

// Logout queues a graceful logout.
func (e *Engine) Logout(ctx context.Context, id session.SessionID, reason string) error {
	if _, have := e.Lookup(id); !have {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Logout, Reason: reason})
}

// Disconnect queues a disconnect.
func (e *Engine) Disconnect(ctx context.Context, id session.SessionID, reason string) error {
	if _, have := e.Lookup(id); !have {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e.put(ctx, &dispatch.Event{ID: id, Kind: dispatch.Disconnect, Reason: reason})
}

// SendToTarget sends an application message on the session named by
// its BeginString, SenderCompID and TargetCompID.
func (e *Engine) SendToTarget(m *message.Message) error {
	id := session.IDFromHeader(m, false)
	s, have := e.Lookup(id)
	if !have {
		// Qualified sessions can't be found from a header.
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Send(m)
}

// Stop stops ticking and stops the dispatcher, waiting up to timeout
// for queued events.  Sessions stay registered.
func (e *Engine) Stop(timeout time.Duration) error {
	e.Lock()
	cancel := e.cancel
	e.Unlock()
	if cancel == nil {
		return ErrNotStarted
	}
	if err := e.timers.Rem(tickTimer); err != nil && err != timers.ErrNotFound {
		e.logger.Debug("removing tick", zap.Error(err))
	}
	err := e.strategy.Stop(timeout)
	cancel()
	return err
}

func (e *Engine) handle(ctx context.Context, ev *dispatch.Event) {
	s, have := e.Lookup(ev.ID)
	if !have {
		e.logger.Debug("event for unknown session", zap.Stringer("session", ev.ID), zap.Stringer("kind", ev.Kind))
		return
	}

	var err error
	switch ev.Kind {
	case dispatch.Message:
		err = s.Next(ctx, ev.Raw)
	case dispatch.Tick:
		s.Tick(ev.At)
	case dispatch.Connect:
		err = s.Connect(ev.Responder)
		if err != nil {
			if ev.Responder != nil {
				// Nobody else owns the connection now.
				ev.Responder.Disconnect()
			}
			break
		}
		if ev.Raw != nil {
			err = s.Next(ctx, ev.Raw)
		}
	case dispatch.Disconnect:
		s.Disconnect(ev.Reason)
	case dispatch.Logout:
		err = s.Logout(ev.Reason)
	}
	if err != nil {
		e.logger.Debug("event", zap.Stringer("session", ev.ID), zap.Stringer("kind", ev.Kind), zap.Error(err))
	}
}

func (e *Engine) OnLogon(id session.SessionID) {
	e.logger.Info("logged on", zap.Stringer("session", id))
	if e.listener != nil {
		e.listener.OnLogon(id)
	}
}

func (e *Engine) OnLogout(id session.SessionID) {
	e.logger.Info("logged out", zap.Stringer("session", id))
	if e.listener != nil {
		e.listener.OnLogout(id)
	}
}

// OnDisconnect releases the session's dispatch worker.
func (e *Engine) OnDisconnect(id session.SessionID) {
	e.strategy.Release(id)
	if e.listener != nil {
		e.listener.OnDisconnect(id)
	}
}

// HeaderID reads the sender's SessionID and the MsgType from raw
// without a dictionary.
func HeaderID(raw []byte) (session.SessionID, string, error) {
	var (
		id      session.SessionID
		msgType string
		t       = wire.NewTokenizer(raw, wire.SOH)
	)
	for t.Next() {
		tok := t.Token()
		v := string(tok.Value)
		switch tok.Tag {
		case tag.BeginString:
			id.BeginString = v
		case tag.MsgType:
			msgType = v
		case tag.SenderCompID:
			id.SenderCompID = v
		case tag.SenderSubID:
			id.SenderSubID = v
		case tag.SenderLocationID:
			id.SenderLocationID = v
		case tag.TargetCompID:
			id.TargetCompID = v
		case tag.TargetSubID:
			id.TargetSubID = v
		case tag.TargetLocationID:
			id.TargetLocationID = v
		}
	}
	if err := t.Err(); err != nil {
		return id, msgType, err
	}
	if id.BeginString == "" || id.SenderCompID == "" || id.TargetCompID == "" {
		return id, msgType, fmt.Errorf("incomplete header: %s", id)
	}
	return id, msgType, nil
}
