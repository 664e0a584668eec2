package repository

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/emilianohg/internhub/internal/models"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

func (r *MessageRepo) Create(ctx context.Context, m models.Message) (*models.Message, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (chat_room_id, application_id, sender_type, sender_id, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ChatRoomID, m.ApplicationID, m.SenderType, m.SenderID, m.Content, stamp(m.CreatedAt))
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "insert message")
	}

	var out models.Message
	err = r.db.QueryRowContext(ctx, `
		SELECT id, chat_room_id, application_id, sender_type, sender_id, content, created_at
		FROM messages WHERE id = ?
	`, id).Scan(&out.ID, &out.ChatRoomID, &out.ApplicationID, &out.SenderType, &out.SenderID, &out.Content, &out.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "select message")
	}
	return &out, nil
}

// GetByApplicationID returns the thread oldest first, the order a chat reads in.
func (r *MessageRepo) GetByApplicationID(ctx context.Context, applicationID int64) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_room_id, application_id, sender_type, sender_id, content, created_at
		FROM messages
		WHERE application_id = ?
		ORDER BY created_at ASC, id ASC
	`, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "select messages")
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatRoomID, &m.ApplicationID, &m.SenderType, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
