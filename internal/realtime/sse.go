package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// sseChannel is a Channel backed by a server-sent events response.
type sseChannel struct {
	res    *echo.Response
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newSSEChannel(res *echo.Response) *sseChannel {
	return &sseChannel{res: res, done: make(chan struct{})}
}

func (c *sseChannel) Send(msg protocol.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(fmt.Sprintf("data: %s\n\n", payload))
}

func (c *sseChannel) write(frame string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	if _, err := c.res.Write([]byte(frame)); err != nil {
		return err
	}
	c.res.Flush()
	return nil
}

func (c *sseChannel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *sseChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

// StreamHandler serves notifications as a server-sent event stream.
type StreamHandler struct {
	registry  *Registry
	logger    *zap.Logger
	keepAlive time.Duration
	caller    CallerFunc
}

// NewStreamHandler creates a StreamHandler. keepAlive defaults to 30s.
func NewStreamHandler(registry *Registry, logger *zap.Logger, keepAlive time.Duration) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{registry: registry, logger: logger.Named("sse"), keepAlive: keepAlive}
}

// WithCaller restricts streams to the caller fn resolves.
func (h *StreamHandler) WithCaller(fn CallerFunc) *StreamHandler {
	h.caller = fn
	return h
}

// Handle serves GET /api/notifications/events?userId=.
func (h *StreamHandler) Handle(c echo.Context) error {
	userID, err := strconv.ParseUint(c.QueryParam("userId"), 10, 32)
	if err != nil || userID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	callerID, authenticated, err := resolveCaller(h.caller, c)
	if err != nil {
		return err
	}
	if authenticated && callerID != uint(userID) {
		return echo.NewHTTPError(http.StatusForbidden, msgForeignRecipient)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ch := newSSEChannel(res)
	defer func() {
		ch.Close()
		h.registry.Unsubscribe(ch)
	}()

	if err := h.registry.Subscribe(uint(userID), ch); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch.done:
			return nil
		case <-h.registry.Done():
			return nil
		case <-ticker.C:
			if err := ch.write(": keepalive\n\n"); err != nil {
				return nil
			}
		}
	}
}
