package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptchat/internal/ai"
	"promptchat/internal/model"
	"promptchat/internal/repository"
)

const (
	defaultChatTitle = "New Chat"
	maxTitleRunes    = 32
)

type ChatService struct {
	chatStore    ChatStore
	messageStore MessageStore
	events       EventPublisher
	answerer     Answerer
	maxContext   int
}

type CreateChatInput struct {
	UserID uint
	Title  string
}

type SubmitPromptInput struct {
	UserID uint
	ChatID string
	Prompt string
}

type PromptResult struct {
	ChatID     string          `json:"chat_id"`
	Reply      string          `json:"reply"`
	CreatedNew bool            `json:"created_new"`
	Messages   []model.Message `json:"messages"`
}

func NewChatService(chatStore ChatStore, messageStore MessageStore, events EventPublisher, answerer Answerer, maxContext int) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		chatStore:    chatStore,
		messageStore: messageStore,
		events:       events,
		answerer:     answerer,
		maxContext:   maxContext,
	}
}

func (s *ChatService) CreateChat(input CreateChatInput) (*model.Chat, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultChatTitle
	}

	chat := &model.Chat{
		ID:     uuid.NewString(),
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.chatStore.Create(chat); err != nil {
		return nil, err
	}
	s.publish(model.EventChatCreated, chat.ID, chat.UserID, chat.Title)
	return chat, nil
}

func (s *ChatService) ListChats(userID uint) ([]model.Chat, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.chatStore.ListByUserID(userID)
}

// DeleteChat removes an owned chat and everything in it. The cascade runs in
// one storage transaction, so a failed delete leaves the chat and its
// messages intact.
func (s *ChatService) DeleteChat(userID uint, chatID string) error {
	if userID == 0 || chatID == "" {
		return ErrInvalidInput
	}
	if err := s.chatStore.DeleteWithMessages(chatID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	s.publish(model.EventChatDeleted, chatID, userID, "")
	return nil
}

// SubmitPrompt appends the user's turn, asks the answer service, and appends
// the reply. With no chat ID a fresh chat owned by the caller is created and
// titled from the prompt. The user turn is persisted before the external
// call, so an answer failure never loses what the user typed.
func (s *ChatService) SubmitPrompt(ctx context.Context, input SubmitPromptInput) (*PromptResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, ErrInvalidInput
	}

	var (
		chat       *model.Chat
		createdNew bool
		err        error
	)
	if input.ChatID == "" {
		chat, err = s.CreateChat(CreateChatInput{
			UserID: input.UserID,
			Title:  deriveTitle(prompt),
		})
		if err != nil {
			return nil, err
		}
		createdNew = true
	} else {
		chat, err = s.chatStore.GetByIDAndUserID(input.ChatID, input.UserID)
		if err != nil {
			return nil, err
		}
		if chat == nil {
			return nil, ErrChatNotFound
		}
	}

	promptMessages, err := s.buildPromptMessages(chat.ID, prompt)
	if err != nil {
		return nil, err
	}

	userMessage := &model.Message{
		ChatID:    chat.ID,
		Role:      model.RoleUser,
		Content:   prompt,
		CreatedAt: time.Now(),
	}
	if err := s.messageStore.Append(userMessage); err != nil {
		return nil, err
	}
	s.publish(model.EventMessageAppended, chat.ID, input.UserID, model.RoleUser)

	reply, err := s.answerer.Complete(ctx, promptMessages)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerService, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = "The model returned an empty response."
	}

	assistantMessage := &model.Message{
		ChatID:    chat.ID,
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now(),
	}
	if err := s.messageStore.Append(assistantMessage); err != nil {
		return nil, err
	}
	s.publish(model.EventMessageAppended, chat.ID, input.UserID, model.RoleAssistant)

	return &PromptResult{
		ChatID:     chat.ID,
		Reply:      reply,
		CreatedNew: createdNew,
		Messages:   []model.Message{*userMessage, *assistantMessage},
	}, nil
}

func (s *ChatService) GetMessages(userID uint, chatID string, limit int) ([]model.Message, error) {
	if userID == 0 || chatID == "" {
		return nil, ErrInvalidInput
	}

	chat, err := s.chatStore.GetByIDAndUserID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}
	return s.messageStore.ListByChatID(chatID, limit)
}

func (s *ChatService) buildPromptMessages(chatID, currentPrompt string) ([]ai.ChatMessage, error) {
	recent, err := s.messageStore.ListRecentByChatID(chatID, s.maxContext)
	if err != nil {
		return nil, err
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{
		Role:    "system",
		Content: "You are a concise and helpful AI assistant.",
	})
	for _, item := range recent {
		role := item.Role
		if role == "" {
			role = model.RoleUser
		}
		messages = append(messages, ai.ChatMessage{
			Role:    role,
			Content: item.Content,
		})
	}
	messages = append(messages, ai.ChatMessage{
		Role:    model.RoleUser,
		Content: currentPrompt,
	})
	return messages, nil
}

func (s *ChatService) publish(kind, chatID string, userID uint, detail string) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(context.Background(), model.ChatEvent{
		Kind:      kind,
		ChatID:    chatID,
		UserID:    userID,
		Detail:    detail,
		CreatedAt: time.Now(),
	})
}

// deriveTitle names an implicitly created chat after its first prompt.
func deriveTitle(prompt string) string {
	title := strings.Join(strings.Fields(prompt), " ")
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	if title == "" {
		title = defaultChatTitle
	}
	return title
}
