// Package queue implements the notification Dispatch Queue: an in-process FIFO
// drained by a single worker that persists each request exactly once, in
// order, and hands the stored notification to its observers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"go.uber.org/zap"
)

// ErrClosed is returned by Enqueue after Shutdown has been called.
var ErrClosed = errors.New("dispatch queue closed")

// Store is the slice of the Event Store the queue writes through.
type Store interface {
	Create(ctx context.Context, req models.NotificationRequest) (*models.Notification, error)
}

// Observer receives every notification the queue has persisted.
// Calls come from the drain goroutine, one at a time, in persistence order.
type Observer interface {
	NotificationPersisted(n models.Notification)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(n models.Notification)

func (f ObserverFunc) NotificationPersisted(n models.Notification) { f(n) }

// Status is the observable state of the queue.
type Status struct {
	QueueLength int  `json:"queueLength"`
	Processing  bool `json:"processing"`
}

// Options tunes persistence. The zero value persists each item once with no
// timeout and drops it on failure.
type Options struct {
	PersistTimeout time.Duration
	// Retries is the number of extra attempts after a failed persist. A
	// write that hit PersistTimeout is never retried since it may have
	// committed.
	Retries      int
	RetryBackoff time.Duration
}

// DispatchQueue serializes notification persistence.
type DispatchQueue struct {
	store  Store
	logger *zap.Logger
	opts   Options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	items     []models.NotificationRequest
	draining  bool
	closed    bool
	done      chan struct{}
	observers []Observer
}

// New creates a DispatchQueue writing to store.
func New(store Store, logger *zap.Logger, opts Options) *DispatchQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DispatchQueue{
		store:  store,
		logger: logger.Named("dispatch_queue"),
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddObserver registers o for persisted events.
func (q *DispatchQueue) AddObserver(o Observer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.observers = append(q.observers, o)
}

// Enqueue appends req and starts the drain if it is not already running.
// It never waits on persistence.
func (q *DispatchQueue) Enqueue(req models.NotificationRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, req)
	q.logger.Debug("notification queued",
		zap.Uint("recipient_id", req.RecipientID),
		zap.String("kind", string(req.Kind)),
		zap.Int("queue_length", len(q.items)),
	)

	if !q.draining {
		q.draining = true
		q.done = make(chan struct{})
		go q.drain(q.done)
	}
	return nil
}

// Status reports the queue length and whether a drain is active.
func (q *DispatchQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{QueueLength: len(q.items), Processing: q.draining}
}

// Shutdown stops accepting new requests and waits for the active drain to
// empty the queue. When ctx expires first, in-flight persistence is cancelled
// and the remaining items are discarded.
func (q *DispatchQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	done := q.done
	draining := q.draining
	q.mu.Unlock()

	if !draining {
		q.cancel()
		return nil
	}

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		q.mu.Lock()
		lost := len(q.items)
		q.items = nil
		q.mu.Unlock()
		if lost > 0 {
			q.logger.Warn("dispatch queue shut down with pending notifications", zap.Int("discarded", lost))
		}
		return ctx.Err()
	}
}

func (q *DispatchQueue) drain(done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.ctx.Err() != nil {
			q.draining = false
			q.mu.Unlock()
			return
		}
		req := q.items[0]
		q.items[0] = models.NotificationRequest{}
		q.items = q.items[1:]
		observers := make([]Observer, len(q.observers))
		copy(observers, q.observers)
		q.mu.Unlock()

		n, err := q.persist(req)
		if err != nil {
			q.logger.Error("failed to persist notification, dropping it",
				zap.Uint("recipient_id", req.RecipientID),
				zap.String("kind", string(req.Kind)),
				zap.Error(err),
			)
			continue
		}

		q.logger.Debug("notification persisted",
			zap.Uint("id", n.ID),
			zap.Uint("recipient_id", n.RecipientID),
		)
		for _, o := range observers {
			q.emit(o, *n)
		}
	}
}

func (q *DispatchQueue) persist(req models.NotificationRequest) (*models.Notification, error) {
	var lastErr error
	for attempt := 0; attempt <= q.opts.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(q.opts.RetryBackoff):
			case <-q.ctx.Done():
				return nil, fmt.Errorf("queue shutting down: %w", lastErr)
			}
		}

		n, err := q.create(req)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			q.logger.Warn("persist timed out with unknown outcome, not retrying",
				zap.Uint("recipient_id", req.RecipientID), zap.Error(err))
			return nil, err
		}
		if attempt < q.opts.Retries {
			q.logger.Warn("persist attempt failed",
				zap.Int("attempt", attempt+1),
				zap.Uint("recipient_id", req.RecipientID),
				zap.Error(err),
			)
		}
	}
	return nil, lastErr
}

func (q *DispatchQueue) create(req models.NotificationRequest) (*models.Notification, error) {
	ctx := q.ctx
	if q.opts.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.PersistTimeout)
		defer cancel()
	}
	return q.store.Create(ctx, req)
}

// emit isolates observer panics so one bad observer cannot stop the drain.
func (q *DispatchQueue) emit(o Observer, n models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("observer panicked", zap.Uint("id", n.ID), zap.Any("panic", r))
		}
	}()
	o.NotificationPersisted(n)
}
