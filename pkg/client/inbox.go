package client

import (
	"context"
	"sort"
	"sync"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
)

// Inbox is the client-side view of a recipient's notifications and unread
// badge. Delivery is at least once, so notifications are applied by ID.
type Inbox struct {
	mu     sync.Mutex
	byID   map[uint]protocol.Notification
	unread int
}

// NewInbox creates an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{byID: make(map[uint]protocol.Notification)}
}

// Apply records a pushed notification. It reports false for an ID already seen.
func (b *Inbox) Apply(n protocol.Notification) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, seen := b.byID[n.ID]; seen {
		return false
	}
	b.byID[n.ID] = n
	if !n.Read {
		b.unread++
	}
	return true
}

// Sync replaces the local state with a page fetched from the server.
func (b *Inbox) Sync(page NotificationPage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.byID = make(map[uint]protocol.Notification, len(page.Notifications))
	for _, n := range page.Notifications {
		b.byID[n.ID] = n
	}
	b.unread = int(page.UnreadCount)
}

// Refresh fetches the newest notifications for userID and syncs to them.
func (b *Inbox) Refresh(ctx context.Context, c *Client, userID uint) error {
	page, err := c.ListNotifications(ctx, userID, 0)
	if err != nil {
		return err
	}
	b.Sync(*page)
	return nil
}

// MarkRead flags one notification as read locally.
func (b *Inbox) MarkRead(id uint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.byID[id]
	if !ok || n.Read {
		return
	}
	n.Read = true
	b.byID[id] = n
	if b.unread > 0 {
		b.unread--
	}
}

// MarkAllRead clears the badge.
func (b *Inbox) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, n := range b.byID {
		n.Read = true
		b.byID[id] = n
	}
	b.unread = 0
}

// Unread returns the badge count.
func (b *Inbox) Unread() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread
}

// Items returns the notifications newest first.
func (b *Inbox) Items() []protocol.Notification {
	b.mu.Lock()
	items := make([]protocol.Notification, 0, len(b.byID))
	for _, n := range b.byID {
		items = append(items, n)
	}
	b.mu.Unlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items
}
