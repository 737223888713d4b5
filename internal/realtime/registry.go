// Package realtime delivers persisted notifications to connected clients.
package realtime

import (
	"errors"
	"net/http"
	"sync"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"go.uber.org/zap"
)

// Channel is one live push connection.
type Channel interface {
	// Send writes a single message. Implementations serialize their own writes.
	Send(msg protocol.ServerMessage) error
	// Open reports whether the underlying connection can still accept writes.
	Open() bool
	Close() error
}

// Registry maps each recipient to at most one live channel.
type Registry struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[uint]Channel

	closeOnce sync.Once
	done      chan struct{}
}

// NewRegistry creates an empty Registry. Tear it down with Close at shutdown.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger: logger.Named("registry"),
		conns:  make(map[uint]Channel),
		done:   make(chan struct{}),
	}
}

// Subscribe binds ch to recipientID, replacing any previous channel, and
// acknowledges on ch.
func (r *Registry) Subscribe(recipientID uint, ch Channel) error {
	r.mu.Lock()
	prev, replaced := r.conns[recipientID]
	r.conns[recipientID] = ch
	r.mu.Unlock()

	if replaced && prev != ch {
		r.logger.Debug("subscription replaced", zap.Uint("recipient_id", recipientID))
	}
	r.logger.Info("user subscribed to notifications", zap.Uint("recipient_id", recipientID))
	return ch.Send(protocol.Subscribed())
}

// Unsubscribe removes ch wherever it is registered. The lookup scans by value
// because a closing connection only knows itself; this is O(n) in the number
// of subscriptions.
func (r *Registry) Unsubscribe(ch Channel) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for recipientID, c := range r.conns {
		if c == ch {
			delete(r.conns, recipientID)
			r.logger.Info("user disconnected", zap.Uint("recipient_id", recipientID))
			return recipientID, true
		}
	}
	return 0, false
}

// Notify pushes n to its recipient's channel if one is open. It reports
// whether a push was written; absence of a channel is not an error since the
// notification is already durable.
func (r *Registry) Notify(n models.Notification) bool {
	r.mu.RLock()
	ch, ok := r.conns[n.RecipientID]
	r.mu.RUnlock()

	if !ok || !ch.Open() {
		r.logger.Debug("recipient not connected, skipping live delivery",
			zap.Uint("recipient_id", n.RecipientID), zap.Uint("id", n.ID))
		return false
	}
	if err := ch.Send(protocol.Push(n.ToPayload())); err != nil {
		r.logger.Warn("live delivery failed",
			zap.Uint("recipient_id", n.RecipientID), zap.Uint("id", n.ID), zap.Error(err))
		return false
	}
	return true
}

// NotificationPersisted lets the Registry observe the Dispatch Queue.
func (r *Registry) NotificationPersisted(n models.Notification) {
	r.Notify(n)
}

// Len returns the number of registered recipients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Done is closed once Close has been called. Stream handlers that hold a
// request open select on it so they end even when their channel was replaced.
func (r *Registry) Done() <-chan struct{} {
	return r.done
}

// CloseOnShutdown closes the Registry as soon as srv starts shutting down,
// so open streams do not hold up srv.Shutdown.
func (r *Registry) CloseOnShutdown(srv *http.Server) {
	srv.RegisterOnShutdown(func() {
		if err := r.Close(); err != nil {
			r.logger.Warn("closing push channels", zap.Error(err))
		}
	})
}

// Close closes and forgets every registered channel.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() { close(r.done) })

	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uint]Channel)
	r.mu.Unlock()

	var errs []error
	for _, ch := range conns {
		if err := ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
