package app

import (
	"context"
	"time"

	"promptchat/internal/ai"
	"promptchat/internal/model"
)

// Storage and collaborator contracts the services depend on. The gorm
// repositories, the redis session store, the rabbitmq publisher and the
// answer client satisfy these in production.

type UserStore interface {
	Create(user *model.User) error
	GetByUsername(username string) (*model.User, error)
	GetByID(id uint) (*model.User, error)
}

type ChatStore interface {
	Create(chat *model.Chat) error
	GetByIDAndUserID(chatID string, userID uint) (*model.Chat, error)
	ListByUserID(userID uint) ([]model.Chat, error)
	DeleteWithMessages(chatID string, userID uint) error
}

type MessageStore interface {
	Append(message *model.Message) error
	ListByChatID(chatID string, limit int) ([]model.Message, error)
	ListRecentByChatID(chatID string, limit int) ([]model.Message, error)
}

type SessionTokenStore interface {
	Put(ctx context.Context, tokenID string, userID uint, ttl time.Duration) error
	Exists(ctx context.Context, tokenID string) (bool, error)
	Delete(ctx context.Context, tokenID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event model.ChatEvent) error
}

type Answerer interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}
