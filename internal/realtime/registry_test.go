package realtime

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    []protocol.ServerMessage
	closed  bool
	sendErr error
}

func (c *fakeChannel) Send(msg protocol.ServerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeChannel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) messages(kind string) []protocol.ServerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.ServerMessage
	for _, m := range c.sent {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}

func notification(id, recipient uint) models.Notification {
	return models.Notification{
		ID:          id,
		RecipientID: recipient,
		Kind:        protocol.KindFollow,
		Title:       "New Follower",
		Message:     "Ada started following you",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestRegistry_SubscribeAcknowledges(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}

	require.NoError(t, reg.Subscribe(1, ch))

	acks := ch.messages(protocol.TypeSubscribed)
	require.Len(t, acks, 1)
	assert.Equal(t, "Successfully subscribed to notifications", acks[0].Message)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_NotifyDeliversToRecipientOnly(t *testing.T) {
	reg := NewRegistry(nil)
	alice, bob := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, alice))
	require.NoError(t, reg.Subscribe(2, bob))

	assert.True(t, reg.Notify(notification(10, 1)))

	pushes := alice.messages(protocol.TypeNotification)
	require.Len(t, pushes, 1)
	require.NotNil(t, pushes[0].Data)
	assert.Equal(t, uint(10), pushes[0].Data.ID)
	assert.Equal(t, protocol.KindFollow, pushes[0].Data.Kind)
	assert.Empty(t, bob.messages(protocol.TypeNotification))
}

func TestRegistry_NotifyWithoutChannelIsSilent(t *testing.T) {
	reg := NewRegistry(nil)
	other := &fakeChannel{}
	require.NoError(t, reg.Subscribe(2, other))

	assert.False(t, reg.Notify(notification(11, 1)))
	assert.Empty(t, other.messages(protocol.TypeNotification))
}

func TestRegistry_NotifyChecksOpenAtDeliveryTime(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, ch))
	ch.Close()

	assert.False(t, reg.Notify(notification(12, 1)))
	assert.Empty(t, ch.messages(protocol.TypeNotification))
}

func TestRegistry_NotifySendFailureIsNotFatal(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, ch))
	ch.sendErr = errors.New("broken pipe")

	assert.False(t, reg.Notify(notification(13, 1)))
}

func TestRegistry_SubscribeReplacesPreviousChannel(t *testing.T) {
	reg := NewRegistry(nil)
	first, second := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, first))
	require.NoError(t, reg.Subscribe(1, second))

	reg.Notify(notification(14, 1))

	assert.Empty(t, first.messages(protocol.TypeNotification))
	assert.Len(t, second.messages(protocol.TypeNotification), 1)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_UnsubscribeByChannel(t *testing.T) {
	reg := NewRegistry(nil)
	first, second := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, first))
	require.NoError(t, reg.Subscribe(1, second))

	// the replaced channel closing must not evict its successor
	_, removed := reg.Unsubscribe(first)
	assert.False(t, removed)
	assert.Equal(t, 1, reg.Len())

	id, removed := reg.Unsubscribe(second)
	assert.True(t, removed)
	assert.Equal(t, uint(1), id)
	assert.Zero(t, reg.Len())
}

func TestRegistry_ObservesDispatchQueue(t *testing.T) {
	reg := NewRegistry(nil)
	ch := &fakeChannel{}
	require.NoError(t, reg.Subscribe(3, ch))

	reg.NotificationPersisted(notification(15, 3))
	assert.Len(t, ch.messages(protocol.TypeNotification), 1)
}

func TestRegistry_CloseClosesChannels(t *testing.T) {
	reg := NewRegistry(nil)
	a, b := &fakeChannel{}, &fakeChannel{}
	require.NoError(t, reg.Subscribe(1, a))
	require.NoError(t, reg.Subscribe(2, b))

	require.NoError(t, reg.Close())
	assert.False(t, a.Open())
	assert.False(t, b.Open())
	assert.Zero(t, reg.Len())
}
