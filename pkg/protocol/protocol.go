// Package protocol holds the wire types shared by the server and its clients:
// notification kinds, the push channel messages and the relationship API's
// idempotent conflict semantics.
package protocol

import (
	"errors"
	"strings"
	"time"
)

// Kind is the type of relationship change a notification reports.
type Kind string

const (
	KindFollow   Kind = "FOLLOW"
	KindUnfollow Kind = "UNFOLLOW"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindFollow || k == KindUnfollow
}

// Push channel message types.
const (
	TypeSubscribe    = "subscribe"
	TypeSubscribed   = "subscribed"
	TypeNotification = "notification"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeError        = "error"
)

// Messages returned by the relationship API when the requested state already holds.
const (
	MsgAlreadyFollowing = "Already following this user"
	MsgNotFollowing     = "Not following this user"
)

// ErrAlreadySettled marks a mutation whose target state was already in place
// on the server. Callers treat it as success.
var ErrAlreadySettled = errors.New("relationship already in requested state")

// IsSettledMessage reports whether an API error message is one of the
// idempotent conflict messages.
func IsSettledMessage(msg string) bool {
	return strings.Contains(msg, MsgAlreadyFollowing) || strings.Contains(msg, MsgNotFollowing)
}

// Notification is a persisted notification as it travels over the wire.
type Notification struct {
	ID          uint      `json:"id"`
	RecipientID uint      `json:"recipientId"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ClientMessage is a frame sent by a client on the push channel.
type ClientMessage struct {
	Type   string `json:"type"`
	UserID uint   `json:"userId,omitempty"`
}

// ServerMessage is a frame sent by the server on the push channel.
type ServerMessage struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Data    *Notification `json:"data,omitempty"`
}

// Subscribed builds the acknowledgement sent after a subscribe.
func Subscribed() ServerMessage {
	return ServerMessage{Type: TypeSubscribed, Message: "Successfully subscribed to notifications"}
}

// Rejected builds the frame sent when a client request is refused.
func Rejected(reason string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: reason}
}

// Push wraps a notification for delivery.
func Push(n Notification) ServerMessage {
	return ServerMessage{Type: TypeNotification, Data: &n}
}
