package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a chat. The auto-increment primary key gives a
// strict append order within a chat even when timestamps collide.
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChatID    string    `gorm:"type:char(36);not null;index" json:"chat_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
