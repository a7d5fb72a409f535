package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"promptchat/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(chat *model.Chat) error {
	if err := r.db.Create(chat).Error; err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByIDAndUserID(chatID string, userID uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.Where("id = ? AND user_id = ?", chatID, userID).First(&chat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) ListByUserID(userID uint) ([]model.Chat, error) {
	var chats []model.Chat
	if err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	return chats, nil
}

// DeleteWithMessages removes a chat and all of its messages in a single
// transaction. A chat that does not exist or belongs to another user yields
// ErrNotFound and nothing is deleted.
func (r *ChatRepository) DeleteWithMessages(chatID string, userID uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var chat model.Chat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", chatID, userID).
			First(&chat).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("lock chat failed: %w", err)
		}
		if err := tx.Where("chat_id = ?", chatID).Delete(&model.Message{}).Error; err != nil {
			return fmt.Errorf("delete chat messages failed: %w", err)
		}
		if err := tx.Delete(&model.Chat{}, "id = ?", chatID).Error; err != nil {
			return fmt.Errorf("delete chat failed: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete chat transaction failed: %w", err)
	}
	return nil
}
