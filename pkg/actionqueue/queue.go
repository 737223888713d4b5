package actionqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("action queue closed")

const (
	DefaultDebounce      = 500 * time.Millisecond
	DefaultDrainInterval = time.Second
	DefaultRetryDelay    = 5 * time.Second
	DefaultRetention     = 3 * time.Second
	DefaultMaxRetries    = 3
	DefaultCallTimeout   = 10 * time.Second
)

// Mutator performs the relationship calls. Errors matching
// protocol.ErrAlreadySettled count as success.
type Mutator interface {
	Follow(ctx context.Context, actorID, targetID uint) error
	Unfollow(ctx context.Context, actorID, targetID uint) error
}

// Listener observes every state change. Calls come from a single goroutine,
// in the order the changes were made, and never under the queue's lock. A
// listener must not call Close.
type Listener func(Action)

// Options tunes the queue. Zero values take the defaults above.
type Options struct {
	Debounce      time.Duration
	DrainInterval time.Duration
	RetryDelay    time.Duration
	Retention     time.Duration
	MaxRetries    int
	CallTimeout   time.Duration
	Listener      Listener
	Logger        *zap.Logger
}

func (o *Options) setDefaults() {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.DrainInterval <= 0 {
		o.DrainInterval = DefaultDrainInterval
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

type intent struct {
	kind  protocol.Kind
	gen   uint64
	timer *time.Timer
}

// Queue is the client dispatch queue. All state changes go through methods
// holding mu and are queued for the listener under the same lock.
type Queue struct {
	mutator Mutator
	opts    Options
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	actions    []*Action
	intents    map[pair]*intent
	gen        uint64
	retryTimer *time.Timer
	gcTimers   map[string]*time.Timer
	closed     bool

	events       []Action
	wake         chan struct{}
	stopDispatch chan struct{}
	dispatchDone chan struct{}

	calls     sync.WaitGroup
	drainDone chan struct{}
}

// New starts a queue issuing calls through m.
func New(m Mutator, opts Options) *Queue {
	opts.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		mutator:   m,
		opts:      opts,
		logger:    opts.Logger.Named("action_queue"),
		ctx:       ctx,
		cancel:    cancel,
		intents:   make(map[pair]*intent),
		gcTimers:  make(map[string]*time.Timer),
		drainDone: make(chan struct{}),

		wake:         make(chan struct{}, 1),
		stopDispatch: make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
	go q.drainLoop()
	go q.dispatch()
	return q
}

// Request records a user intent. The action is only enqueued once no newer
// intent for the same pair arrives within the debounce window; the latest kind wins.
func (q *Queue) Request(kind protocol.Kind, actorID, targetID uint) {
	key := pair{actor: actorID, target: targetID}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if prev, ok := q.intents[key]; ok {
		prev.timer.Stop()
	}
	q.gen++
	gen := q.gen
	q.intents[key] = &intent{
		kind:  kind,
		gen:   gen,
		timer: time.AfterFunc(q.opts.Debounce, func() { q.materialize(key, gen) }),
	}
}

func (q *Queue) materialize(key pair, gen uint64) {
	q.mu.Lock()
	in, ok := q.intents[key]
	if !ok || in.gen != gen || q.closed {
		q.mu.Unlock()
		return
	}
	delete(q.intents, key)
	a, dup := q.enqueueLocked(in.kind, key)
	q.mu.Unlock()

	if dup {
		q.logger.Debug("intent collapsed into outstanding action",
			zap.Uint("actor_id", key.actor), zap.Uint("target_id", key.target), zap.String("id", a.ID))
	}
}

// Enqueue adds an action directly, skipping the debounce. If an action for
// the same pair is PENDING or PROCESSING its ID is returned with duplicate set.
func (q *Queue) Enqueue(kind protocol.Kind, actorID, targetID uint) (id string, duplicate bool, err error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", false, ErrClosed
	}
	a, dup := q.enqueueLocked(kind, pair{actor: actorID, target: targetID})
	q.mu.Unlock()
	return a.ID, dup, nil
}

// enqueueLocked returns the outstanding action for key, or appends a new one. Caller holds mu.
func (q *Queue) enqueueLocked(kind protocol.Kind, key pair) (Action, bool) {
	for _, a := range q.actions {
		if a.pair() == key && a.Status.Outstanding() {
			return *a, true
		}
	}
	a := &Action{
		ID:         uuid.NewString(),
		Kind:       kind,
		ActorID:    key.actor,
		TargetID:   key.target,
		Status:     StatusPending,
		EnqueuedAt: time.Now(),
	}
	q.actions = append(q.actions, a)
	q.emitLocked(*a)
	return *a, false
}

func (q *Queue) drainLoop() {
	defer close(q.drainDone)
	ticker := time.NewTicker(q.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.drainOne()
		}
	}
}

// drainOne starts the oldest PENDING action whose target has nothing in flight.
func (q *Queue) drainOne() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	busy := make(map[uint]bool)
	for _, a := range q.actions {
		if a.Status == StatusProcessing {
			busy[a.TargetID] = true
		}
	}
	var next *Action
	for _, a := range q.actions {
		if a.Status == StatusPending && !busy[a.TargetID] {
			next = a
			break
		}
	}
	if next == nil {
		q.mu.Unlock()
		return
	}
	next.Status = StatusProcessing
	snapshot := *next
	q.emitLocked(snapshot)
	q.calls.Add(1)
	q.mu.Unlock()

	go q.execute(snapshot)
}

func (q *Queue) execute(a Action) {
	defer q.calls.Done()

	ctx, cancel := context.WithTimeout(q.ctx, q.opts.CallTimeout)
	defer cancel()

	var err error
	switch a.Kind {
	case protocol.KindFollow:
		err = q.mutator.Follow(ctx, a.ActorID, a.TargetID)
	case protocol.KindUnfollow:
		err = q.mutator.Unfollow(ctx, a.ActorID, a.TargetID)
	default:
		err = errors.New("unknown action kind " + string(a.Kind))
	}
	q.finish(a.ID, err)
}

func (q *Queue) finish(id string, callErr error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	a := q.find(id)
	if a == nil {
		q.mu.Unlock()
		return
	}

	if callErr == nil || errors.Is(callErr, protocol.ErrAlreadySettled) {
		a.Status = StatusSuccess
		a.LastError = ""
		q.scheduleRemoval(a.ID)
	} else {
		a.Status = StatusFailed
		a.RetryCount++
		a.LastError = callErr.Error()
		if a.RetryCount >= q.opts.MaxRetries {
			a.terminal = true
			q.scheduleRemoval(a.ID)
		} else if q.retryTimer == nil {
			q.retryTimer = time.AfterFunc(q.opts.RetryDelay, q.retrySweep)
		}
	}
	snapshot := *a
	q.emitLocked(snapshot)
	q.mu.Unlock()

	switch {
	case snapshot.Status == StatusSuccess:
		q.logger.Debug("action succeeded", zap.String("id", snapshot.ID), zap.String("kind", string(snapshot.Kind)))
	case snapshot.terminal:
		q.logger.Warn("action failed permanently", zap.String("id", snapshot.ID),
			zap.String("kind", string(snapshot.Kind)), zap.Int("attempts", snapshot.RetryCount), zap.Error(callErr))
	default:
		q.logger.Info("action failed, will retry", zap.String("id", snapshot.ID),
			zap.Int("retry_count", snapshot.RetryCount), zap.Error(callErr))
	}
}

// retrySweep moves every retryable FAILED action back to PENDING.
func (q *Queue) retrySweep() {
	q.mu.Lock()
	q.retryTimer = nil
	if q.closed {
		q.mu.Unlock()
		return
	}
	for _, a := range q.actions {
		if a.Status == StatusFailed && !a.terminal && a.RetryCount < q.opts.MaxRetries {
			a.Status = StatusPending
			q.emitLocked(*a)
		}
	}
	q.mu.Unlock()
}

// scheduleRemoval drops a finished action after the retention window. Caller holds mu.
func (q *Queue) scheduleRemoval(id string) {
	q.gcTimers[id] = time.AfterFunc(q.opts.Retention, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.gcTimers, id)
		for i, a := range q.actions {
			if a.ID == id {
				q.actions = append(q.actions[:i], q.actions[i+1:]...)
				return
			}
		}
	})
}

func (q *Queue) find(id string) *Action {
	for _, a := range q.actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// emitLocked queues a state change for the listener. Caller holds mu.
func (q *Queue) emitLocked(a Action) {
	if q.opts.Listener == nil {
		return
	}
	q.events = append(q.events, a)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatch delivers queued state changes one at a time until Close.
func (q *Queue) dispatch() {
	defer close(q.dispatchDone)
	for {
		select {
		case <-q.wake:
			q.deliver()
		case <-q.stopDispatch:
			q.deliver()
			return
		}
	}
}

func (q *Queue) deliver() {
	for {
		q.mu.Lock()
		batch := q.events
		q.events = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, a := range batch {
			q.opts.Listener(a)
		}
	}
}

// Get returns the action with the given ID, if it is still held.
func (q *Queue) Get(id string) (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if a := q.find(id); a != nil {
		return *a, true
	}
	return Action{}, false
}

// Snapshot returns a copy of every held action, oldest first.
func (q *Queue) Snapshot() []Action {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Action, len(q.actions))
	for i, a := range q.actions {
		out[i] = *a
	}
	return out
}

// Pending reports whether any action is still PENDING or PROCESSING, or any
// intent is waiting out its debounce window.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.intents) > 0 || q.retryTimer != nil {
		return true
	}
	for _, a := range q.actions {
		if a.Status.Outstanding() {
			return true
		}
	}
	return false
}

// Close stops every timer, cancels in-flight calls and waits for them to
// return. Every state change made before Close has reached the listener
// when it returns.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for key, in := range q.intents {
		in.timer.Stop()
		delete(q.intents, key)
	}
	if q.retryTimer != nil {
		q.retryTimer.Stop()
		q.retryTimer = nil
	}
	for id, t := range q.gcTimers {
		t.Stop()
		delete(q.gcTimers, id)
	}
	q.mu.Unlock()

	q.cancel()
	<-q.drainDone
	q.calls.Wait()
	close(q.stopDispatch)
	<-q.dispatchDone
}
