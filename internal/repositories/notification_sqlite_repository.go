package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/followpulse/backend/internal/models"
	"github.com/anonto42/followpulse/backend/pkg/protocol"
	_ "modernc.org/sqlite"
)

// sqliteSchema is the embedded Event Store layout. created_at holds unix nanoseconds.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recipient_id INTEGER NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient_created
    ON notifications(recipient_id, created_at DESC, id DESC);

CREATE INDEX IF NOT EXISTS idx_notifications_unread
    ON notifications(recipient_id, is_read) WHERE is_read = 0;
`

// SQLiteNotificationRepository implements NotificationRepository on an embedded SQLite file.
type SQLiteNotificationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:" is per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying sqlite schema: %w", err)
	}
	return db, nil
}

// NewSQLiteNotificationRepository wraps a database prepared by OpenSQLite.
func NewSQLiteNotificationRepository(db *sql.DB) *SQLiteNotificationRepository {
	return &SQLiteNotificationRepository{db: db, now: time.Now}
}

func (r *SQLiteNotificationRepository) Create(ctx context.Context, req models.NotificationRequest) (*models.Notification, error) {
	createdAt := r.now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (recipient_id, kind, title, message, is_read, created_at) VALUES (?, ?, ?, ?, 0, ?)`,
		req.RecipientID, string(req.Kind), req.Title, req.Message, createdAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading notification id: %w", err)
	}
	return &models.Notification{
		ID:          uint(id),
		RecipientID: req.RecipientID,
		Kind:        req.Kind,
		Title:       req.Title,
		Message:     req.Message,
		CreatedAt:   time.Unix(0, createdAt.UnixNano()).UTC(),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (models.Notification, error) {
	var (
		n         models.Notification
		kind      string
		isRead    int
		createdAt int64
	)
	if err := row.Scan(&n.ID, &n.RecipientID, &kind, &n.Title, &n.Message, &isRead, &createdAt); err != nil {
		return models.Notification{}, err
	}
	n.Kind = protocol.Kind(kind)
	n.Read = isRead != 0
	n.CreatedAt = time.Unix(0, createdAt).UTC()
	return n, nil
}

const selectNotification = `SELECT id, recipient_id, kind, title, message, is_read, created_at FROM notifications`

func (r *SQLiteNotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		selectNotification+` WHERE recipient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		recipientID, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

func (r *SQLiteNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx, selectNotification+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading notification %d: %w", id, err)
	}
	return &n, nil
}

func (r *SQLiteNotificationRepository) MarkRead(ctx context.Context, id uint) (*models.Notification, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("marking notification %d read: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *SQLiteNotificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0`, recipientID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteNotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0`, recipientID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}
