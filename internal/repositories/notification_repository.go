package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/followpulse/backend/internal/models"
	"gorm.io/gorm"
)

// DefaultListLimit caps how many notifications a recipient listing returns.
const DefaultListLimit = 50

// NotificationRepository is the Event Store: the durable table of notifications.
type NotificationRepository interface {
	// Create persists a request and returns the stored row with its assigned ID.
	Create(ctx context.Context, req models.NotificationRequest) (*models.Notification, error)
	// ListByRecipient returns the newest notifications first.
	ListByRecipient(ctx context.Context, recipientID uint, limit int) ([]models.Notification, error)
	// GetByID returns ErrNotFound if the id is absent.
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	// MarkRead flags one notification as read. Returns ErrNotFound if the id is absent.
	MarkRead(ctx context.Context, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
}

func normalizeLimit(limit int) int {
	if limit < 1 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, req models.NotificationRequest) (*models.Notification, error) {
	n := &models.Notification{
		RecipientID: req.RecipientID,
		Kind:        req.Kind,
		Title:       req.Title,
		Message:     req.Message,
	}
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").Order("id DESC").
		Limit(normalizeLimit(limit)).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading notification %d: %w", id, err)
	}
	return &n, nil
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading notification %d: %w", id, err)
	}
	if err := r.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return nil, fmt.Errorf("marking notification %d read: %w", id, err)
	}
	n.Read = true
	return &n, nil
}

func (r *postgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("marking notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *postgresNotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
