package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

var errChannelClosed = errors.New("channel closed")

const defaultWriteTimeout = 10 * time.Second

// wsChannel is a Channel backed by a WebSocket connection.
type wsChannel struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed atomic.Bool
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Send(msg protocol.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return errChannelClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
		return err
	}
	return websocket.JSON.Send(c.conn, msg)
}

func (c *wsChannel) Open() bool {
	return !c.closed.Load()
}

func (c *wsChannel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// WebSocketConfig sets the liveness cadence of push connections.
type WebSocketConfig struct {
	// PingInterval is how often the server sends a ping frame.
	PingInterval time.Duration
	// PongTimeout is how long a connection may stay silent before it is dropped.
	PongTimeout time.Duration
}

// WebSocketHandler upgrades requests to push connections bound to a Registry.
type WebSocketHandler struct {
	registry *Registry
	logger   *zap.Logger
	cfg      WebSocketConfig
	caller   CallerFunc
}

// NewWebSocketHandler creates a handler. Zero config values fall back to 25s/60s.
func NewWebSocketHandler(registry *Registry, logger *zap.Logger, cfg WebSocketConfig) *WebSocketHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{registry: registry, logger: logger.Named("websocket"), cfg: cfg}
}

// WithCaller restricts subscriptions to the caller fn resolves.
func (h *WebSocketHandler) WithCaller(fn CallerFunc) *WebSocketHandler {
	h.caller = fn
	return h
}

// Handle serves GET /ws.
func (h *WebSocketHandler) Handle(c echo.Context) error {
	callerID, authenticated, err := resolveCaller(h.caller, c)
	if err != nil {
		return err
	}
	server := websocket.Server{
		// Browsers and CLI clients connect from arbitrary origins.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			h.serve(conn, callerID, authenticated)
		},
	}
	server.ServeHTTP(c.Response(), c.Request())
	return nil
}

func (h *WebSocketHandler) serve(conn *websocket.Conn, callerID uint, authenticated bool) {
	ch := newWSChannel(conn)
	stop := make(chan struct{})
	h.logger.Debug("new websocket connection", zap.String("remote", conn.Request().RemoteAddr))

	defer func() {
		close(stop)
		ch.Close()
		h.registry.Unsubscribe(ch)
	}()

	go h.heartbeat(ch, stop)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout)); err != nil {
			return
		}
		var msg protocol.ClientMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				h.logger.Warn("error parsing websocket message", zap.Error(err))
				continue
			}
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case protocol.TypeSubscribe:
			if msg.UserID == 0 {
				continue
			}
			if authenticated && msg.UserID != callerID {
				h.logger.Warn("refused subscription for another user",
					zap.Uint("caller_id", callerID), zap.Uint("recipient_id", msg.UserID))
				if err := ch.Send(protocol.Rejected(msgForeignRecipient)); err != nil {
					return
				}
				continue
			}
			if err := h.registry.Subscribe(msg.UserID, ch); err != nil {
				h.logger.Warn("failed to acknowledge subscription", zap.Uint("recipient_id", msg.UserID), zap.Error(err))
				return
			}
		case protocol.TypePing:
			if err := ch.Send(protocol.ServerMessage{Type: protocol.TypePong}); err != nil {
				return
			}
		case protocol.TypePong:
			// read deadline already extended
		}
	}
}

func (h *WebSocketHandler) heartbeat(ch *wsChannel, stop <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := ch.Send(protocol.ServerMessage{Type: protocol.TypePing}); err != nil {
				ch.Close()
				return
			}
		}
	}
}
