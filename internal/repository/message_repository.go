package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptchat/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a message while holding a row lock on the owning chat, so
// concurrent appends to the same chat serialize at the storage layer. The
// chat's updated_at is touched to keep activity ordering current.
func (r *MessageRepository) Append(message *model.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", message.ChatID).
			First(&chat).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock chat failed: %w", err)
		}
		if err := tx.Create(message).Error; err != nil {
			return fmt.Errorf("create message failed: %w", err)
		}
		if err := tx.Model(&model.Chat{}).
			Where("id = ?", message.ChatID).
			Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("touch chat failed: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("append message transaction failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListByChatID(chatID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []model.Message
	if err := r.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentByChatID returns the newest limit messages in chronological order.
func (r *MessageRepository) ListRecentByChatID(chatID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	var messages []model.Message
	if err := r.db.Where("chat_id = ?", chatID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
