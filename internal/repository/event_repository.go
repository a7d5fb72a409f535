package repository

import (
	"fmt"

	"gorm.io/gorm"

	"promptchat/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(event *model.ChatEvent) error {
	if err := r.db.Create(event).Error; err != nil {
		return fmt.Errorf("create chat event failed: %w", err)
	}
	return nil
}

func (r *EventRepository) ListByChatID(chatID string, limit int) ([]model.ChatEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []model.ChatEvent
	if err := r.db.Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list chat events failed: %w", err)
	}
	return events, nil
}
