package model

import "time"

const (
	EventChatCreated     = "chat_created"
	EventMessageAppended = "message_appended"
	EventChatDeleted     = "chat_deleted"
)

// ChatEvent is an audit record of chat lifecycle activity. Events are
// published to the queue on the request path and persisted by the worker.
type ChatEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Kind      string    `gorm:"size:32;not null;index" json:"kind"`
	ChatID    string    `gorm:"type:char(36);not null;index" json:"chat_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Detail    string    `gorm:"size:255" json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
