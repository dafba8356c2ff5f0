package client

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Icerzack/codecollab/internal/models"
	"github.com/Icerzack/codecollab/internal/protocol"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward, running due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

type fakeTransport struct {
	mu     sync.Mutex
	sent   []protocol.Envelope
	in     chan protocol.Envelope
	closed bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{in: make(chan protocol.Envelope, 64)}
}

func (t *fakeTransport) Send(env protocol.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *fakeTransport) Receive() <-chan protocol.Envelope {
	return t.in
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.in)
	}
	return nil
}

func (t *fakeTransport) deliver(tb testing.TB, event string, payload interface{}) {
	tb.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(tb, err)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.in <- env
}

func (t *fakeTransport) events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.sent))
	for _, env := range t.sent {
		out = append(out, env.Event)
	}
	return out
}

func (t *fakeTransport) sentOf(event string) []protocol.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []protocol.Envelope
	for _, env := range t.sent {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (t *fakeTransport) dialer() Dialer {
	return func(context.Context) (Transport, error) {
		return t, nil
	}
}

type recordingListener struct {
	NopListener
	mu     sync.Mutex
	states []State
	ended  bool
	output string
}

func (l *recordingListener) OnStateChange(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *recordingListener) OnSessionEnded() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ended = true
}

func (l *recordingListener) OnOutput(out string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = out
}

func (l *recordingListener) Ended() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ended
}

// leavingListener leaves and closes its session when the room ends.
type leavingListener struct {
	NopListener
	session atomic.Pointer[Session]
	result  chan error
}

func (l *leavingListener) OnSessionEnded() {
	s := l.session.Load()
	s.Close()
	l.result <- s.Leave()
}

// slowStore answers GetRoom once release is closed.
type slowStore struct {
	fakeStore
	release chan struct{}
}

func (s *slowStore) GetRoom(ctx context.Context, _ string) (models.RoomView, error) {
	select {
	case <-s.release:
		return s.view, nil
	case <-ctx.Done():
		return models.RoomView{}, ctx.Err()
	}
}

type fakeStore struct {
	view models.RoomView
	err  error
}

func (s fakeStore) GetRoom(context.Context, string) (models.RoomView, error) {
	return s.view, s.err
}

func (s fakeStore) CreateRoom(context.Context) (string, error) {
	return "room1", nil
}

func (s fakeStore) ListProblems(context.Context) ([]models.ProblemSummary, error) {
	return nil, nil
}

type recordingRenderer struct {
	rendered []models.Presence
	cleared  []string
}

func (r *recordingRenderer) Render(p models.Presence) {
	r.rendered = append(r.rendered, p)
}

func (r *recordingRenderer) Clear(username string) {
	r.cleared = append(r.cleared, username)
}
