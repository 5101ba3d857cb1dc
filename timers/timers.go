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

// Package timers provides a facility to manage a set of timers with
// one time.Timer.  A Timers instance is meant for a few hundred
// timers, not many thousands.
//
// Pending timers are kept in a list ordered by trigger time.  When
// the head of that list changes, the internal timer is replaced with
// one that waits for the new head.  Timers with a positive Every are
// put back on the list each time they fire.
//
// A timer's work runs in its own goroutine, so it's okay for that
// work to block.
package timers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound       = errors.New("timer not found")
	ErrTooMany        = errors.New("too many timers")
	ErrIDExists       = errors.New("timer id exists")
	ErrNotRunning     = errors.New("timers not running")
	ErrAlreadyRunning = errors.New("timers already running")
)

// Timer represents some work to be done in the future.
type Timer struct {
	// ID is unique across all timers managed by a Timers.
	ID string `json:"id"`

	// F is the work.  The timer is passed along to make it easier
	// to write general-purpose work functions.
	F func(context.Context, *Timer) `json:"-"`

	// At is when F should run.
	At time.Time `json:"at"`

	// Every, when positive, makes the timer recur.
	Every time.Duration `json:"every,omitempty"`

	// Executed is when F actually ran.
	Executed time.Time `json:"executed"`
}

// Timers is a managed set of Timer instances.
//
// Run the Timers before calling Add.
type Timers struct {
	Max    int `json:"max"`
	Logger *zap.Logger

	sync.Mutex
	up      chan *Timer
	backlog []*Timer
	running int32
	ready   chan struct{}
	once    sync.Once
}

// NewTimers makes an instance that allows max pending timers.
func NewTimers(max int, logger *zap.Logger) *Timers {
	if logger == nil {
		logger = zap.NewNop()
	}
	initial := max / 4
	if initial < 8 {
		initial = 8
	}
	return &Timers{
		Max:     max,
		Logger:  logger,
		up:      make(chan *Timer, 32),
		backlog: make([]*Timer, 0, initial),
		ready:   make(chan struct{}),
	}
}

// Run processes timers in the current goroutine until ctx is done.
func (ts *Timers) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&ts.running, 0, 1) {
		return ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&ts.running, 0)

	// timer is replaced when a new timer becomes next in line.
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	ts.once.Do(func() { close(ts.ready) })

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ts.up:
			if timer != nil {
				timer.Stop()
			}
			d := time.Until(t.At)
			if ce := ts.Logger.Check(zap.DebugLevel, "timer up"); ce != nil {
				ce.Write(zap.String("id", t.ID), zap.Duration("in", d))
			}
			timer = time.AfterFunc(d, func() {
				ts.fire(ctx, t)
			})
		}
	}
}

func (ts *Timers) fire(ctx context.Context, t *Timer) {
	if err := ts.Rem(t.ID); err != nil {
		// Removed or replaced after we were scheduled.
		return
	}
	if 0 < t.Every {
		next := *t
		next.At = t.At.Add(t.Every)
		if now := time.Now(); next.At.Before(now) {
			next.At = now.Add(t.Every)
		}
		if err := ts.Add(&next); err != nil {
			ts.Logger.Warn("rescheduling timer", zap.String("id", t.ID), zap.Error(err))
		}
	}
	t.Executed = time.Now()
	go t.F(ctx, t)
}

// IsRunning reports whether Run is executing.
func (ts *Timers) IsRunning() bool {
	return atomic.LoadInt32(&ts.running) == 1
}

// Wait waits for Run to start.
func (ts *Timers) Wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-ts.ready:
		return true
	}
}

// Add adds a timer.
func (ts *Timers) Add(t *Timer) error {
	if !ts.IsRunning() {
		return ErrNotRunning
	}

	ts.Lock()
	defer ts.Unlock()

	if len(ts.backlog) == ts.Max {
		return ErrTooMany
	}
	for _, x := range ts.backlog {
		if x.ID == t.ID {
			return ErrIDExists
		}
	}

	n := len(ts.backlog)
	i := sort.Search(n, func(i int) bool {
		return ts.backlog[i].At.After(t.At)
	})
	switch i {
	case 0:
		ts.backlog = append(ts.backlog, nil)
		copy(ts.backlog[1:], ts.backlog)
		ts.backlog[0] = t
		ts.reset()
	case n:
		ts.backlog = append(ts.backlog, t)
	default:
		ts.backlog = append(ts.backlog, nil)
		copy(ts.backlog[i+1:], ts.backlog[i:])
		ts.backlog[i] = t
	}
	return nil
}

// Every adds a timer that first fires after d and then every d.
func (ts *Timers) Every(id string, d time.Duration, f func(context.Context, *Timer)) error {
	return ts.Add(&Timer{
		ID:    id,
		At:    time.Now().Add(d),
		Every: d,
		F:     f,
	})
}

// Rem removes a timer.
func (ts *Timers) Rem(id string) error {
	if !ts.IsRunning() {
		return ErrNotRunning
	}

	ts.Lock()
	defer ts.Unlock()

	for i, t := range ts.backlog {
		if t.ID != id {
			continue
		}
		copy(ts.backlog[i:], ts.backlog[i+1:])
		ts.backlog[len(ts.backlog)-1] = nil
		ts.backlog = ts.backlog[:len(ts.backlog)-1]
		if i == 0 {
			ts.reset()
		}
		return nil
	}
	return ErrNotFound
}

// Len is the number of pending timers.
func (ts *Timers) Len() int {
	ts.Lock()
	defer ts.Unlock()
	return len(ts.backlog)
}

// reset indirectly replaces the internal timer with one for the new
// head of the backlog.
func (ts *Timers) reset() {
	if 0 < len(ts.backlog) {
		ts.up <- ts.backlog[0]
	}
}
