package repository

import (
	"context"
	"time"

	"github.com/yuchen-w/CampusMarketBack/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	body string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, conversation_id, sender_id, body, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, conversationID, senderID, body).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Body,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListBefore returns messages strictly older than before, newest first.
// A zero before means no upper bound.
func (r *MessageRepository) ListBefore(
	ctx context.Context,
	conversationID int64,
	before time.Time,
	limit int,
) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, body, created_at
		FROM messages
		WHERE conversation_id = $1
		  AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	var beforeArg any
	if !before.IsZero() {
		beforeArg = before
	}

	rows, err := r.db.Query(ctx, query, conversationID, beforeArg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Body,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

func (r *MessageRepository) ExistsInConversation(
	ctx context.Context,
	messageID int64,
	conversationID int64,
) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE id = $1 AND conversation_id = $2
		)
	`, messageID, conversationID).Scan(&exists)
	return exists, err
}
