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

package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Comcast/fixsession/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func sid(target string) session.SessionID {
	return session.SessionID{BeginString: "FIX.4.4", SenderCompID: "ENGINE", TargetCompID: target}
}

// collector records the Raw of every event per session.
type collector struct {
	sync.Mutex
	seen  map[string][]string
	order []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string][]string)}
}

func (c *collector) handle(ctx context.Context, e *Event) {
	c.Lock()
	defer c.Unlock()
	k := e.ID.String()
	c.seen[k] = append(c.seen[k], string(e.Raw))
	c.order = append(c.order, string(e.Raw))
}

func (c *collector) count() int {
	c.Lock()
	defer c.Unlock()
	return len(c.order)
}

func cfg(t *testing.T) Config {
	return Config{
		QueueSize:  4,
		PollPeriod: 5 * time.Millisecond,
		Logger:     zaptest.NewLogger(t),
	}
}

func eventually(t *testing.T, f func() bool) {
	t.Helper()
	require.Eventually(t, f, 2*time.Second, 5*time.Millisecond)
}

func TestPerSessionOrder(t *testing.T) {
	d := NewPerSession(cfg(t))
	c := newCollector()
	ctx := context.Background()
	require.NoError(t, d.Start(ctx, c.handle))

	const n = 50
	targets := []string{"A", "B", "C"}
	var wg sync.WaitGroup
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				e := &Event{ID: sid(target), Raw: []byte(fmt.Sprintf("%s%d", target, i))}
				if err := d.Put(ctx, e); err != nil {
					t.Error(err)
				}
			}
		}(target)
	}
	wg.Wait()
	eventually(t, func() bool { return c.count() == n*len(targets) })

	for _, target := range targets {
		want := make([]string, n)
		for i := range want {
			want[i] = fmt.Sprintf("%s%d", target, i)
		}
		assert.Equal(t, want, c.seen[sid(target).String()], target)
	}
	assert.Equal(t, len(targets), d.Workers())
	require.NoError(t, d.Stop(time.Second))
}

func TestSingleThreadedOrder(t *testing.T) {
	d := NewSingleThreaded(cfg(t))
	c := newCollector()
	ctx := context.Background()
	require.NoError(t, d.Start(ctx, c.handle))

	var want []string
	for i := 0; i < 20; i++ {
		target := []string{"A", "B"}[i%2]
		raw := fmt.Sprintf("%s%d", target, i)
		want = append(want, raw)
		require.NoError(t, d.Put(ctx, &Event{ID: sid(target), Raw: []byte(raw)}))
	}
	eventually(t, func() bool { return c.count() == len(want) })
	c.Lock()
	assert.Equal(t, want, c.order)
	c.Unlock()
	assert.Equal(t, 1, d.Workers())

	// Release doesn't stop the shared worker.
	d.Release(sid("A"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.Workers())

	require.NoError(t, d.Stop(time.Second))
	assert.Equal(t, 0, d.Workers())
}

func TestRelease(t *testing.T) {
	d := NewPerSession(cfg(t))
	c := newCollector()
	ctx := context.Background()
	require.NoError(t, d.Start(ctx, c.handle))
	defer d.Stop(time.Second)

	require.NoError(t, d.Put(ctx, &Event{ID: sid("A"), Raw: []byte("a")}))
	require.NoError(t, d.Put(ctx, &Event{ID: sid("B"), Raw: []byte("b")}))
	eventually(t, func() bool { return c.count() == 2 })
	assert.Equal(t, 2, d.Workers())

	d.Release(sid("A"))
	eventually(t, func() bool { return d.Workers() == 1 })

	// A new event makes a new worker.
	require.NoError(t, d.Put(ctx, &Event{ID: sid("A"), Kind: Connect}))
	eventually(t, func() bool { return d.Workers() == 2 })
}

func TestReleaseDrains(t *testing.T) {
	d := NewPerSession(cfg(t))
	ctx := context.Background()

	gate := make(chan struct{})
	c := newCollector()
	h := func(ctx context.Context, e *Event) {
		<-gate
		c.handle(ctx, e)
	}
	require.NoError(t, d.Start(ctx, h))
	defer d.Stop(time.Second)

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Put(ctx, &Event{ID: sid("A"), Raw: []byte{byte('0' + i)}}))
	}
	d.Release(sid("A"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, d.Workers())

	close(gate)
	eventually(t, func() bool { return d.Workers() == 0 })
	assert.Equal(t, 3, c.count())
}

func TestPutBlocks(t *testing.T) {
	d := NewPerSession(Config{QueueSize: 1, PollPeriod: 5 * time.Millisecond})
	gate := make(chan struct{})
	require.NoError(t, d.Start(context.Background(), func(ctx context.Context, e *Event) {
		<-gate
	}))
	defer func() {
		close(gate)
		d.Stop(time.Second)
	}()

	ctx := context.Background()
	// One in the handler, one in the queue.
	require.NoError(t, d.Put(ctx, &Event{ID: sid("A")}))
	require.NoError(t, d.Put(ctx, &Event{ID: sid("A")}))
	eventually(t, func() bool {
		tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		return d.Put(tctx, &Event{ID: sid("A")}) == context.DeadlineExceeded
	})
}

func TestStopTimeout(t *testing.T) {
	d := NewPerSession(Config{PollPeriod: 5 * time.Millisecond})
	gate := make(chan struct{})
	defer close(gate)
	require.NoError(t, d.Start(context.Background(), func(ctx context.Context, e *Event) {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}))

	require.NoError(t, d.Put(context.Background(), &Event{ID: sid("A")}))
	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, d.Stop(20*time.Millisecond), ErrStopTimeout)
	assert.Equal(t, 0, d.Workers())
	assert.ErrorIs(t, d.Put(context.Background(), &Event{ID: sid("A")}), ErrStopped)
}

func TestNotStarted(t *testing.T) {
	d := NewSingleThreaded(Config{})
	assert.ErrorIs(t, d.Put(context.Background(), &Event{}), ErrNotStarted)
	assert.Equal(t, "tick", Tick.String())
}
