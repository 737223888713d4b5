package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	kind          protocol.Kind
	actor, target uint
}

// fakeMutator records calls and answers with respond, which defaults to success.
type fakeMutator struct {
	mu      sync.Mutex
	calls   []call
	active  map[uint]int
	maxPer  int
	respond func(ctx context.Context, c call) error
}

func newFakeMutator(respond func(ctx context.Context, c call) error) *fakeMutator {
	return &fakeMutator{active: map[uint]int{}, respond: respond}
}

func (f *fakeMutator) do(ctx context.Context, c call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.active[c.target]++
	if f.active[c.target] > f.maxPer {
		f.maxPer = f.active[c.target]
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active[c.target]--
		f.mu.Unlock()
	}()
	if f.respond == nil {
		return nil
	}
	return f.respond(ctx, c)
}

func (f *fakeMutator) Follow(ctx context.Context, actorID, targetID uint) error {
	return f.do(ctx, call{protocol.KindFollow, actorID, targetID})
}

func (f *fakeMutator) Unfollow(ctx context.Context, actorID, targetID uint) error {
	return f.do(ctx, call{protocol.KindUnfollow, actorID, targetID})
}

func (f *fakeMutator) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// recorder collects listener events.
type recorder struct {
	mu     sync.Mutex
	events []Action
}

func (r *recorder) listen(a Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, a)
}

func (r *recorder) terminal() []Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Action
	for _, a := range r.events {
		if a.Terminal() {
			out = append(out, a)
		}
	}
	return out
}

func fastOptions(rec *recorder) Options {
	opts := Options{
		Debounce:      30 * time.Millisecond,
		DrainInterval: 5 * time.Millisecond,
		RetryDelay:    20 * time.Millisecond,
		Retention:     40 * time.Millisecond,
	}
	if rec != nil {
		opts.Listener = rec.listen
	}
	return opts
}

func TestEnqueue_DeduplicatesOutstandingPair(t *testing.T) {
	opts := fastOptions(nil)
	opts.DrainInterval = time.Hour
	q := New(newFakeMutator(nil), opts)
	defer q.Close()

	id, dup, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)
	assert.False(t, dup)

	again, dup, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, id, again)

	toggled, dup, err := q.Enqueue(protocol.KindUnfollow, 1, 2)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, id, toggled)

	other, dup, err := q.Enqueue(protocol.KindFollow, 1, 3)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEqual(t, id, other)

	assert.Len(t, q.Snapshot(), 2)
}

func TestRequest_DebounceKeepsLatestIntent(t *testing.T) {
	m := newFakeMutator(nil)
	q := New(m, fastOptions(nil))
	defer q.Close()

	q.Request(protocol.KindFollow, 1, 2)
	q.Request(protocol.KindUnfollow, 1, 2)
	q.Request(protocol.KindFollow, 1, 2)
	q.Request(protocol.KindUnfollow, 1, 2)

	require.Eventually(t, func() bool { return len(m.recorded()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := m.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, call{protocol.KindUnfollow, 1, 2}, calls[0])
}

func TestRequest_SeparatePairsDebounceIndependently(t *testing.T) {
	m := newFakeMutator(nil)
	q := New(m, fastOptions(nil))
	defer q.Close()

	q.Request(protocol.KindFollow, 1, 2)
	q.Request(protocol.KindFollow, 1, 3)

	require.Eventually(t, func() bool { return len(m.recorded()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestFailedActionStopsAfterMaxRetries(t *testing.T) {
	m := newFakeMutator(func(context.Context, call) error { return errors.New("HTTP 503: unavailable") })
	rec := &recorder{}
	q := New(m, fastOptions(rec))
	defer q.Close()

	id, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.terminal()) == 1 }, 2*time.Second, 5*time.Millisecond)
	terminal := rec.terminal()[0]
	assert.Equal(t, id, terminal.ID)
	assert.Equal(t, StatusFailed, terminal.Status)
	assert.Equal(t, DefaultMaxRetries, terminal.RetryCount)
	assert.Contains(t, terminal.LastError, "503")

	// several more retry windows pass without a fourth attempt
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, m.recorded(), DefaultMaxRetries)
	assert.False(t, q.Pending())
}

func TestFailedActionRecovers(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	m := newFakeMutator(func(context.Context, call) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("connection refused")
		}
		return nil
	})
	rec := &recorder{}
	opts := fastOptions(rec)
	opts.Retention = time.Second
	q := New(m, opts)
	defer q.Close()

	id, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, ok := q.Get(id)
		return ok && a.Status == StatusSuccess
	}, time.Second, 2*time.Millisecond)
	a, _ := q.Get(id)
	assert.Equal(t, 1, a.RetryCount)
	assert.Empty(t, rec.terminal())
}

func TestAlreadySettledCountsAsSuccess(t *testing.T) {
	m := newFakeMutator(func(context.Context, call) error {
		return fmt.Errorf("client.Follow: %w", protocol.ErrAlreadySettled)
	})
	opts := fastOptions(nil)
	opts.Retention = time.Second
	q := New(m, opts)
	defer q.Close()

	id, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, ok := q.Get(id)
		return ok && a.Status == StatusSuccess
	}, time.Second, 2*time.Millisecond)
	a, _ := q.Get(id)
	assert.Zero(t, a.RetryCount)
	assert.Len(t, m.recorded(), 1)
}

func TestSuccessfulActionsArePurged(t *testing.T) {
	m := newFakeMutator(nil)
	q := New(m, fastOptions(nil))
	defer q.Close()

	id, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := q.Get(id)
		return !ok && len(m.recorded()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, q.Snapshot())

	// the pair is free again once the action has completed
	next, dup, err := q.Enqueue(protocol.KindUnfollow, 1, 2)
	require.NoError(t, err)
	assert.False(t, dup)
	assert.NotEqual(t, id, next)
}

func TestDrainRunsOneActionPerTarget(t *testing.T) {
	release := make(chan struct{})
	m := newFakeMutator(func(ctx context.Context, _ call) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	q := New(m, fastOptions(nil))
	defer q.Close()

	for actor := uint(1); actor <= 3; actor++ {
		_, _, err := q.Enqueue(protocol.KindFollow, actor, 9)
		require.NoError(t, err)
	}
	_, _, err := q.Enqueue(protocol.KindFollow, 1, 10)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(m.recorded()) == 2 }, time.Second, 2*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.recorded(), 2)

	close(release)
	require.Eventually(t, func() bool { return len(m.recorded()) == 4 }, time.Second, 2*time.Millisecond)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.maxPer)
	assert.Equal(t, uint(1), m.calls[0].actor)
	assert.Equal(t, uint(9), m.calls[0].target)
}

func TestClose_CancelsTimersAndInFlightCalls(t *testing.T) {
	started := make(chan struct{})
	var once sync.Once
	m := newFakeMutator(func(ctx context.Context, _ call) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})
	q := New(m, fastOptions(nil))

	_, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)
	<-started
	q.Request(protocol.KindFollow, 1, 3)

	done := make(chan struct{})
	go func() {
		q.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	time.Sleep(80 * time.Millisecond)
	assert.Len(t, m.recorded(), 1)

	_, _, err = q.Enqueue(protocol.KindFollow, 1, 4)
	assert.ErrorIs(t, err, ErrClosed)
	q.Close()
}

func TestListenerSeesChangesInOrder(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	m := newFakeMutator(func(context.Context, call) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	rec := &recorder{}
	opts := fastOptions(rec)
	opts.RetryDelay = 5 * time.Millisecond
	opts.Retention = time.Second
	q := New(m, opts)

	id, _, err := q.Enqueue(protocol.KindFollow, 1, 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		a, ok := q.Get(id)
		return ok && a.Status == StatusSuccess
	}, 2*time.Second, 2*time.Millisecond)

	// Close returns only after the listener has seen every change.
	q.Close()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var seen []Status
	for _, a := range rec.events {
		require.Equal(t, id, a.ID)
		seen = append(seen, a.Status)
	}
	assert.Equal(t, []Status{
		StatusPending, StatusProcessing, StatusFailed,
		StatusPending, StatusProcessing, StatusFailed,
		StatusPending, StatusProcessing, StatusSuccess,
	}, seen)
}
