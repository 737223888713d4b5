package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// SubscriberOptions configures a Subscriber.
type SubscriberOptions struct {
	// OnNotification is called for every pushed notification, in arrival order.
	OnNotification func(protocol.Notification)
	// OnSubscribed is called each time the server acknowledges a subscription.
	OnSubscribed func()
	// OnRejected is called when the server refuses the subscription.
	OnRejected func(reason string)
	// Token is sent as a bearer token on the handshake when set.
	Token string
	// ReconnectStep grows the wait between reconnect attempts linearly up to MaxReconnectWait.
	ReconnectStep    time.Duration
	MaxReconnectWait time.Duration
	Logger           *zap.Logger
}

// Subscriber keeps one push channel open for a recipient, reconnecting when it drops.
type Subscriber struct {
	url    string
	origin string
	userID uint
	opts   SubscriberOptions
	logger *zap.Logger
}

// WebSocketURL turns an http(s) API base URL into the push endpoint URL.
func WebSocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// NewSubscriber creates a Subscriber for userID against the server at baseURL.
func NewSubscriber(baseURL string, userID uint, opts SubscriberOptions) (*Subscriber, error) {
	wsURL, err := WebSocketURL(baseURL)
	if err != nil {
		return nil, err
	}
	if opts.ReconnectStep <= 0 {
		opts.ReconnectStep = time.Second
	}
	if opts.MaxReconnectWait <= 0 {
		opts.MaxReconnectWait = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		url:    wsURL,
		origin: strings.TrimRight(baseURL, "/"),
		userID: userID,
		opts:   opts,
		logger: logger.Named("subscriber"),
	}, nil
}

// Run connects, subscribes and dispatches pushes until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			attempt = 0
		}
		attempt++

		wait := time.Duration(attempt) * s.opts.ReconnectStep
		if wait > s.opts.MaxReconnectWait {
			wait = s.opts.MaxReconnectWait
		}
		s.logger.Warn("push channel lost, reconnecting", zap.Error(err), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// listen runs a single connection. It returns nil when a subscribed
// connection closed, and an error when it never got that far.
func (s *Subscriber) listen(ctx context.Context) error {
	cfg, err := websocket.NewConfig(s.url, s.origin)
	if err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}
	if s.opts.Token != "" {
		cfg.Header.Set("Authorization", "Bearer "+s.opts.Token)
	}
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	if err := websocket.JSON.Send(conn, protocol.ClientMessage{Type: protocol.TypeSubscribe, UserID: s.userID}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	subscribed := false
	for {
		var msg protocol.ServerMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if subscribed {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		switch msg.Type {
		case protocol.TypeSubscribed:
			subscribed = true
			if s.opts.OnSubscribed != nil {
				s.opts.OnSubscribed()
			}
		case protocol.TypeNotification:
			if msg.Data == nil {
				continue
			}
			if s.opts.OnNotification != nil {
				s.opts.OnNotification(*msg.Data)
			}
		case protocol.TypeError:
			s.logger.Warn("server rejected request", zap.String("reason", msg.Message))
			if s.opts.OnRejected != nil {
				s.opts.OnRejected(msg.Message)
			}
		case protocol.TypePing:
			if err := websocket.JSON.Send(conn, protocol.ClientMessage{Type: protocol.TypePong}); err != nil {
				return fmt.Errorf("send pong: %w", err)
			}
		}
	}
}
