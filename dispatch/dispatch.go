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

// Package dispatch delivers session events to a handler from worker
// goroutines.
//
// Two strategies are provided.  SingleThreaded runs one worker for
// every session, so events are handled in the order they were put,
// across all sessions.  PerSession runs a worker per SessionID, so
// events for one session are handled in order while different
// sessions proceed in parallel.
//
// A worker waits on its queue with a bounded poll interval so it
// notices Release and Stop promptly.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Comcast/fixsession/session"

	"go.uber.org/zap"
)

// Kind says what an Event asks the session to do.
type Kind int

const (
	Message Kind = iota
	Tick
	Connect
	Disconnect
	Logout
)

func (k Kind) String() string {
	switch k {
	case Message:
		return "message"
	case Tick:
		return "tick"
	case Connect:
		return "connect"
	case Disconnect:
		return "disconnect"
	case Logout:
		return "logout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one unit of work for a session.
type Event struct {
	ID   session.SessionID
	Kind Kind

	// Raw is the inbound message for a Message event, or the first
	// message on the connection for a Connect event.
	Raw []byte

	// At is the time for a Tick event.
	At time.Time

	// Responder is the connection for a Connect event.
	Responder session.Responder

	// Reason is the text for Disconnect and Logout events.
	Reason string
}

// Handler processes an event.  A Handler must not call Put for its
// own session with a full queue.
type Handler func(ctx context.Context, e *Event)

// Strategy is an event dispatch policy.
type Strategy interface {
	// Start starts dispatching to h.
	Start(ctx context.Context, h Handler) error

	// Put queues an event.  Put blocks while the target queue is
	// full until ctx is done.
	Put(ctx context.Context, e *Event) error

	// Release says the session is finished for now.  Its worker, if
	// it has one of its own, exits once its queue is empty.  Release
	// does not block.
	Release(id session.SessionID)

	// Stop waits up to timeout for workers to drain their queues and
	// then abandons the rest.
	Stop(timeout time.Duration) error
}

var (
	ErrNotStarted  = errors.New("dispatcher not started")
	ErrStarted     = errors.New("dispatcher already started")
	ErrStopped     = errors.New("dispatcher stopped")
	ErrStopTimeout = errors.New("dispatcher workers did not stop in time")
)

var (
	DefaultQueueSize  = 1024
	DefaultPollPeriod = 100 * time.Millisecond
)

// Config controls queue sizes and the poll interval.
type Config struct {
	QueueSize  int
	PollPeriod time.Duration
	Logger     *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.PollPeriod <= 0 {
		c.PollPeriod = DefaultPollPeriod
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

type worker struct {
	key  string
	q    chan *Event
	done chan struct{}

	// pending counts events accepted by Put and not yet handled.
	// Protected by the pool's mutex except for the worker's
	// decrement, which is atomic.
	pending  int64
	released bool
}

// pool is the machinery shared by both strategies.  Workers are keyed
// by key(id).
type pool struct {
	sync.Mutex

	cfg  Config
	name string
	key  func(session.SessionID) string
	// keep means workers never exit on Release.
	keep bool

	h       Handler
	ctx     context.Context
	cancel  context.CancelFunc
	workers map[string]*worker
	started bool
	stopped int32
}

func newPool(name string, cfg Config, key func(session.SessionID) string, keep bool) *pool {
	return &pool{
		cfg:     cfg.withDefaults(),
		name:    name,
		key:     key,
		keep:    keep,
		workers: make(map[string]*worker, 32),
	}
}

func (p *pool) Start(ctx context.Context, h Handler) error {
	p.Lock()
	defer p.Unlock()
	if p.started {
		return ErrStarted
	}
	p.h = h
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	p.cfg.Logger.Debug("dispatcher started", zap.String("strategy", p.name))
	return nil
}

// workerFor returns the worker for key, making one if needed.  Call with
// the lock held.
func (p *pool) workerFor(key string) *worker {
	if w, have := p.workers[key]; have {
		return w
	}
	w := &worker{
		key:  key,
		q:    make(chan *Event, p.cfg.QueueSize),
		done: make(chan struct{}),
	}
	p.workers[key] = w
	go p.run(w)
	p.cfg.Logger.Debug("worker started", zap.String("strategy", p.name), zap.String("key", key))
	return w
}

func (p *pool) Put(ctx context.Context, e *Event) error {
	if atomic.LoadInt32(&p.stopped) == 1 {
		return ErrStopped
	}

	p.Lock()
	if !p.started {
		p.Unlock()
		return ErrNotStarted
	}
	w := p.workerFor(p.key(e.ID))
	if e.Kind == Connect {
		w.released = false
	}
	atomic.AddInt64(&w.pending, 1)
	quit := p.ctx.Done()
	p.Unlock()

	select {
	case w.q <- e:
		return nil
	case <-ctx.Done():
		atomic.AddInt64(&w.pending, -1)
		return ctx.Err()
	case <-quit:
		atomic.AddInt64(&w.pending, -1)
		return ErrStopped
	}
}

func (p *pool) Release(id session.SessionID) {
	if p.keep {
		return
	}
	p.Lock()
	if w, have := p.workers[p.key(id)]; have {
		w.released = true
	}
	p.Unlock()
}

// finished reports whether w should exit, and if so unregisters it.
func (p *pool) finished(w *worker) bool {
	p.Lock()
	defer p.Unlock()
	stopping := atomic.LoadInt32(&p.stopped) == 1
	if !stopping && (p.keep || !w.released) {
		return false
	}
	if 0 < atomic.LoadInt64(&w.pending) {
		return false
	}
	p.cfg.Logger.Debug("worker done", zap.String("strategy", p.name), zap.String("key", w.key))
	if p.workers[w.key] == w {
		delete(p.workers, w.key)
	}
	return true
}

func (p *pool) run(w *worker) {
	defer close(w.done)

	ticker := time.NewTicker(p.cfg.PollPeriod)
	defer ticker.Stop()

	for {
		select {
		case e := <-w.q:
			p.h(p.ctx, e)
			atomic.AddInt64(&w.pending, -1)
		case <-ticker.C:
			if p.finished(w) {
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *pool) Stop(timeout time.Duration) error {
	if !atomic.CompareAndSwapInt32(&p.stopped, 0, 1) {
		return ErrStopped
	}

	p.Lock()
	if !p.started {
		p.Unlock()
		return nil
	}
	ws := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		ws = append(ws, w)
	}
	p.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var err error
	for _, w := range ws {
		select {
		case <-w.done:
		case <-deadline.C:
			err = ErrStopTimeout
		}
		if err != nil {
			break
		}
	}

	p.cancel()

	if err != nil {
		p.Lock()
		n := len(p.workers)
		p.workers = make(map[string]*worker)
		p.Unlock()
		p.cfg.Logger.Warn("dispatcher forced stop", zap.String("strategy", p.name), zap.Int("workers", n))
	}
	return err
}

// Workers reports the number of live workers.
func (p *pool) Workers() int {
	p.Lock()
	defer p.Unlock()
	return len(p.workers)
}

// SingleThreaded handles every event on one worker.
type SingleThreaded struct {
	*pool
}

func NewSingleThreaded(cfg Config) *SingleThreaded {
	return &SingleThreaded{
		pool: newPool("single", cfg, func(session.SessionID) string { return "" }, true),
	}
}

// PerSession handles each session's events on a worker of its own.
// Workers are made on the first event for a session.
type PerSession struct {
	*pool
}

func NewPerSession(cfg Config) *PerSession {
	return &PerSession{
		pool: newPool("session", cfg, session.SessionID.String, false),
	}
}
