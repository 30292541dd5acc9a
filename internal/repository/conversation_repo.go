package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yuchen-w/CampusMarketBack/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// DirectKey derives the canonical key for a 1:1 conversation from the two
// participant ids. Order-independent, so both peers compute the same key.
func DirectKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// CreateOrGetDirect inserts a direct conversation or returns the existing
// one. The unique index on direct_key is the race arbiter: two concurrent
// calls both land on the same row, never a duplicate.
func (r *ConversationRepository) CreateOrGetDirect(
	ctx context.Context,
	createdBy int64,
	directKey string,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (created_by, direct_key)
		VALUES ($1, $2)
		ON CONFLICT (direct_key)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING id, created_by, direct_key, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, createdBy, directKey).Scan(
		&conversation.ID,
		&conversation.CreatedBy,
		&conversation.DirectKey,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) AddParticipant(
	ctx context.Context,
	conversationID int64,
	userID int64,
) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID)
	return err
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	query := `
		SELECT c.id, c.created_by, c.direct_key, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants p
		  ON p.conversation_id = c.id AND p.user_id = $2
		WHERE c.id = $1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, participantID).Scan(
		&conversation.ID,
		&conversation.CreatedBy,
		&conversation.DirectKey,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) IsMember(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (bool, error) {
	var member bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		)
	`, conversationID, userID).Scan(&member)
	return member, err
}

func (r *ConversationRepository) GetParticipants(
	ctx context.Context,
	conversationID int64,
) ([]models.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, user_id, last_read_message_id, last_read_at, created_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY user_id
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var participant models.Participant
		if err := rows.Scan(
			&participant.ConversationID,
			&participant.UserID,
			&participant.LastReadMessageID,
			&participant.LastReadAt,
			&participant.CreatedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return participants, nil
}

// ListForParticipant returns the conversations the user belongs to, ordered
// by most recent activity, each with a last-message preview and the unread
// count derived from the user's read watermark.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.created_by,
			c.direct_key,
			c.created_at,
			c.updated_at,
			lm.id,
			lm.conversation_id,
			lm.sender_id,
			lm.body,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		JOIN conversation_participants p
		  ON p.conversation_id = c.id AND p.user_id = $1
		LEFT JOIN LATERAL (
			SELECT id, conversation_id, sender_id, body, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages m
			WHERE m.conversation_id = c.id
			  AND m.sender_id <> $1
			  AND m.id > COALESCE(p.last_read_message_id, 0)
		) uc ON TRUE
		ORDER BY COALESCE(lm.created_at, c.updated_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageConversationID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageBody sql.NullString
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.CreatedBy,
			&summary.DirectKey,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&messageID,
			&messageConversationID,
			&messageSenderID,
			&messageBody,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID.Valid {
			summary.LastMessage = &models.Message{
				ID:             messageID.Int64,
				ConversationID: messageConversationID.Int64,
				SenderID:       messageSenderID.Int64,
				Body:           messageBody.String,
				CreatedAt:      messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// AdvanceReadWatermark moves the participant's watermark to messageID.
// The guard in the WHERE clause makes stale ids a no-op: the watermark
// never regresses. Returns whether a row actually advanced.
func (r *ConversationRepository) AdvanceReadWatermark(
	ctx context.Context,
	conversationID int64,
	userID int64,
	messageID int64,
) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE conversation_participants
		SET last_read_message_id = $3, last_read_at = NOW()
		WHERE conversation_id = $1
		  AND user_id = $2
		  AND COALESCE(last_read_message_id, 0) < $3
	`, conversationID, userID, messageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ConversationRepository) Touch(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET updated_at = NOW()
		WHERE id = $1
	`, conversationID)
	return err
}
