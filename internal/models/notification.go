package models

import (
	"time"

	"github.com/anonto42/followpulse/backend/pkg/protocol"
)

// NotificationRequest is a notification waiting to be persisted. It has no
// identity until the Event Store assigns one.
type NotificationRequest struct {
	RecipientID uint          `json:"recipientId"`
	Kind        protocol.Kind `json:"kind"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
}

// Notification represents a persisted notification (PostgreSQL, MongoDB or SQLite)
type Notification struct {
	ID          uint          `json:"id" bson:"_id" gorm:"primaryKey"`
	RecipientID uint          `json:"recipientId" bson:"recipient_id" gorm:"index:idx_notifications_recipient_created,priority:1"`
	Kind        protocol.Kind `json:"kind" bson:"kind" gorm:"size:16"`
	Title       string        `json:"title" bson:"title" gorm:"size:120"`
	Message     string        `json:"message" bson:"message"`
	Read        bool          `json:"read" bson:"is_read" gorm:"column:is_read;default:false;index"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at" gorm:"index:idx_notifications_recipient_created,priority:2"`
}

// ToPayload converts the row into its wire form.
func (n Notification) ToPayload() protocol.Notification {
	return protocol.Notification{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Kind:        n.Kind,
		Title:       n.Title,
		Message:     n.Message,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
}

// FollowNotification builds the request emitted when actorName follows recipientID.
func FollowNotification(recipientID uint, actorName string) NotificationRequest {
	return NotificationRequest{
		RecipientID: recipientID,
		Kind:        protocol.KindFollow,
		Title:       "New Follower",
		Message:     actorName + " started following you",
	}
}

// UnfollowNotification builds the request emitted when actorName unfollows recipientID.
func UnfollowNotification(recipientID uint, actorName string) NotificationRequest {
	return NotificationRequest{
		RecipientID: recipientID,
		Kind:        protocol.KindUnfollow,
		Title:       "User Unfollowed",
		Message:     actorName + " unfollowed you",
	}
}
