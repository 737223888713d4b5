package client

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/internal/realtime"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWebSocketURL(t *testing.T) {
	tests := map[string]string{
		"http://localhost:8080":   "ws://localhost:8080/ws",
		"https://example.com/":    "wss://example.com/ws",
		"http://example.com/base": "ws://example.com/base/ws",
	}
	for in, want := range tests {
		got, err := WebSocketURL(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := WebSocketURL("ftp://example.com")
	assert.Error(t, err)
}

func TestSubscriber_ReceivesPushesAndAnswersPings(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	ws := realtime.NewWebSocketHandler(reg, zap.NewNop(), realtime.WebSocketConfig{
		PingInterval: 20 * time.Millisecond,
		PongTimeout:  150 * time.Millisecond,
	})
	e := echo.New()
	e.GET("/ws", ws.Handle)
	srv := httptest.NewServer(e)
	defer srv.Close()

	subscribed := make(chan struct{}, 4)
	received := make(chan protocol.Notification, 4)
	sub, err := NewSubscriber(srv.URL, 5, SubscriberOptions{
		OnSubscribed:   func() { subscribed <- struct{}{} },
		OnNotification: func(n protocol.Notification) { received <- n },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sub.Run(ctx) }()

	select {
	case <-subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription was not acknowledged")
	}

	// outlive the silence timeout; pongs keep the connection registered
	time.Sleep(400 * time.Millisecond)

	require.True(t, reg.Notify(models.Notification{ID: 8, RecipientID: 5, Kind: protocol.KindFollow}))
	select {
	case n := <-received:
		assert.Equal(t, uint(8), n.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not delivered")
	}

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
