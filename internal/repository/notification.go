package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (int64, error) {
	payload := n.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (recipient_type, recipient_id, type, resource_type, resource_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.RecipientType, n.RecipientID, n.Type, n.ResourceType, n.ResourceID, string(payload), stamp(n.CreatedAt))
	if err != nil {
		return 0, errors.Wrap(err, "insert notification")
	}
	id, err := result.LastInsertId()
	return id, errors.Wrap(err, "insert notification")
}

// GetByRecipient lists a recipient's notifications newest first.
func (r *NotificationRepo) GetByRecipient(ctx context.Context, recipientType, recipientID string, limit int) ([]models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recipient_type, recipient_id, type, resource_type, resource_id, payload, read_at, created_at
		FROM notifications
		WHERE recipient_type = ? AND recipient_id = ?
		ORDER BY created_at DESC, id DESC`+limitClause(limit),
		recipientType, recipientID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var payload string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.RecipientType, &n.RecipientID, &n.Type, &n.ResourceType,
			&n.ResourceID, &payload, &readAt, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		n.Payload = []byte(payload)
		if readAt.Valid {
			t := readAt.Time
			n.ReadAt = &t
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepo) CountUnread(ctx context.Context, recipientType, recipientID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_type = ? AND recipient_id = ? AND read_at IS NULL
	`, recipientType, recipientID).Scan(&n)
	return n, errors.Wrap(err, "count unread notifications")
}

// MarkRead marks one of the recipient's notifications read, keeping the
// first read time. It reports false when the recipient has no such row.
func (r *NotificationRepo) MarkRead(ctx context.Context, recipientType, recipientID string, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, ?)
		WHERE id = ? AND recipient_type = ? AND recipient_id = ?
	`, nowUTC(), id, recipientType, recipientID)
	if err != nil {
		return false, errors.Wrap(err, "mark notification read")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark notification read")
	}
	return n == 1, nil
}

// MarkAllRead marks every unread notification of the recipient and returns
// how many changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, recipientType, recipientID string) (int, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = ?
		WHERE recipient_type = ? AND recipient_id = ? AND read_at IS NULL
	`, nowUTC(), recipientType, recipientID)
	if err != nil {
		return 0, errors.Wrap(err, "mark notifications read")
	}
	n, err := result.RowsAffected()
	return int(n), errors.Wrap(err, "mark notifications read")
}
