package models

import "time"

type Conversation struct {
	ID        int64     `json:"id"`
	CreatedBy int64     `json:"created_by"`
	DirectKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant is one member of a conversation together with their read
// watermark. The watermark only moves forward.
type Participant struct {
	ConversationID    int64      `json:"conversation_id"`
	UserID            int64      `json:"user_id"`
	LastReadMessageID *int64     `json:"last_read_message_id,omitempty"`
	LastReadAt        *time.Time `json:"last_read_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Body           string    `json:"text"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
}

type ConversationDetail struct {
	Conversation
	Participants []Participant `json:"participants"`
}
