package app_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptchat/internal/ai"
	"promptchat/internal/app"
	"promptchat/internal/model"
	"promptchat/internal/repository"
)

// memStore backs both the chat and message store contracts so the cascade
// delete can be exercised against shared state.
type memStore struct {
	mu        sync.Mutex
	chats     map[string]model.Chat
	messages  map[string][]model.Message
	nextMsgID uint
}

func newMemStore() *memStore {
	return &memStore{
		chats:    make(map[string]model.Chat),
		messages: make(map[string][]model.Message),
	}
}

func (s *memStore) Create(chat *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	s.chats[chat.ID] = *chat
	return nil
}

func (s *memStore) GetByIDAndUserID(chatID string, userID uint) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok || chat.UserID != userID {
		return nil, nil
	}
	copied := chat
	return &copied, nil
}

func (s *memStore) ListByUserID(userID uint) ([]model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var chats []model.Chat
	for _, chat := range s.chats {
		if chat.UserID == userID {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

func (s *memStore) DeleteWithMessages(chatID string, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok || chat.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.chats, chatID)
	delete(s.messages, chatID)
	return nil
}

func (s *memStore) Append(message *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[message.ChatID]
	if !ok {
		return repository.ErrNotFound
	}
	s.nextMsgID++
	message.ID = s.nextMsgID
	s.messages[message.ChatID] = append(s.messages[message.ChatID], *message)
	chat.UpdatedAt = time.Now()
	s.chats[message.ChatID] = chat
	return nil
}

func (s *memStore) ListByChatID(chatID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := append([]model.Message(nil), s.messages[chatID]...)
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *memStore) ListRecentByChatID(chatID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := append([]model.Message(nil), s.messages[chatID]...)
	if limit > 0 && limit < len(messages) {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

func (s *memStore) chatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

func (s *memStore) messageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[chatID])
}

type fakeAnswerer struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts [][]ai.ChatMessage
}

func (f *fakeAnswerer) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChatEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.ChatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var kinds []string
	for _, event := range p.events {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func TestChatService_SubmitPrompt_NewChat(t *testing.T) {
	store := newMemStore()
	answerer := &fakeAnswerer{reply: "你好！有什么可以帮助你的？"}
	events := &recordingPublisher{}
	chatService := app.NewChatService(store, store, events, answerer, 20)
	ctx := context.Background()

	result, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{
		UserID: 1,
		Prompt: "测试聊天",
	})
	require.NoError(t, err)
	assert.True(t, result.CreatedNew)
	assert.NotEmpty(t, result.ChatID)
	assert.Equal(t, "你好！有什么可以帮助你的？", result.Reply)
	assert.Equal(t, 1, store.chatCount())

	chat, err := store.GetByIDAndUserID(result.ChatID, 1)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.Equal(t, uint(1), chat.UserID)
	assert.Equal(t, "测试聊天", chat.Title)

	messages, err := chatService.GetMessages(1, result.ChatID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "测试聊天", messages[0].Content)
	assert.Equal(t, model.RoleAssistant, messages[1].Role)

	assert.Equal(t, []string{
		model.EventChatCreated,
		model.EventMessageAppended,
		model.EventMessageAppended,
	}, events.kinds())
}

func TestChatService_SubmitPrompt_ExistingChat(t *testing.T) {
	store := newMemStore()
	answerer := &fakeAnswerer{reply: "second answer"}
	chatService := app.NewChatService(store, store, nil, answerer, 20)
	ctx := context.Background()

	first, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 1, Prompt: "first question"})
	require.NoError(t, err)

	second, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{
		UserID: 1,
		ChatID: first.ChatID,
		Prompt: "second question",
	})
	require.NoError(t, err)
	assert.False(t, second.CreatedNew)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Equal(t, 1, store.chatCount())
	assert.Equal(t, 4, store.messageCount(first.ChatID))

	// Prior turns ride along as context for the answer service.
	lastPrompt := answerer.prompts[len(answerer.prompts)-1]
	assert.Equal(t, "system", lastPrompt[0].Role)
	assert.Equal(t, "second question", lastPrompt[len(lastPrompt)-1].Content)
	assert.Greater(t, len(lastPrompt), 2)
}

func TestChatService_SubmitPrompt_ForeignChat(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)
	ctx := context.Background()

	owned, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 1, Prompt: "mine"})
	require.NoError(t, err)

	_, err = chatService.SubmitPrompt(ctx, app.SubmitPromptInput{
		UserID: 2,
		ChatID: owned.ChatID,
		Prompt: "theirs",
	})
	assert.ErrorIs(t, err, app.ErrChatNotFound)
	assert.Equal(t, 2, store.messageCount(owned.ChatID))
}

func TestChatService_SubmitPrompt_AnswerFailureKeepsUserMessage(t *testing.T) {
	store := newMemStore()
	answerer := &fakeAnswerer{err: errors.New("upstream 503")}
	chatService := app.NewChatService(store, store, nil, answerer, 20)

	result, err := chatService.SubmitPrompt(context.Background(), app.SubmitPromptInput{
		UserID: 1,
		Prompt: "will the model answer?",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, app.ErrAnswerService)
	assert.Nil(t, result)

	// The user's turn is durable before the external call, so it survives
	// the failure; no assistant turn was written.
	chats, listErr := chatService.ListChats(1)
	require.NoError(t, listErr)
	require.Len(t, chats, 1)
	messages, msgErr := chatService.GetMessages(1, chats[0].ID, 0)
	require.NoError(t, msgErr)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "will the model answer?", messages[0].Content)
}

func TestChatService_SubmitPrompt_EmptyPrompt(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)

	_, err := chatService.SubmitPrompt(context.Background(), app.SubmitPromptInput{UserID: 1, Prompt: "   "})
	assert.ErrorIs(t, err, app.ErrInvalidInput)
	assert.Equal(t, 0, store.chatCount())
}

func TestChatService_CreateChat_TitleDefaults(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)

	chat, err := chatService.CreateChat(app.CreateChatInput{UserID: 1, Title: "   "})
	require.NoError(t, err)
	assert.Equal(t, "New Chat", chat.Title)
}

func TestChatService_SubmitPrompt_TitleDerivedAndBounded(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)

	longPrompt := strings.Repeat("long prompt ", 20)
	result, err := chatService.SubmitPrompt(context.Background(), app.SubmitPromptInput{
		UserID: 1,
		Prompt: longPrompt,
	})
	require.NoError(t, err)

	chat, err := store.GetByIDAndUserID(result.ChatID, 1)
	require.NoError(t, err)
	require.NotNil(t, chat)
	assert.LessOrEqual(t, len([]rune(chat.Title)), 32)
	assert.True(t, strings.HasPrefix(chat.Title, "long prompt"))
}

func TestChatService_DeleteChat_Cascades(t *testing.T) {
	store := newMemStore()
	events := &recordingPublisher{}
	chatService := app.NewChatService(store, store, events, &fakeAnswerer{reply: "x"}, 20)
	ctx := context.Background()

	result, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 1, Prompt: "to be deleted"})
	require.NoError(t, err)
	require.Equal(t, 2, store.messageCount(result.ChatID))

	require.NoError(t, chatService.DeleteChat(1, result.ChatID))

	assert.Equal(t, 0, store.chatCount())
	assert.Equal(t, 0, store.messageCount(result.ChatID))

	_, err = chatService.GetMessages(1, result.ChatID, 0)
	assert.ErrorIs(t, err, app.ErrChatNotFound)

	kinds := events.kinds()
	assert.Equal(t, model.EventChatDeleted, kinds[len(kinds)-1])
}

func TestChatService_DeleteChat_ForeignLeavesDataIntact(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)
	ctx := context.Background()

	result, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 1, Prompt: "keep me"})
	require.NoError(t, err)

	err = chatService.DeleteChat(2, result.ChatID)
	assert.ErrorIs(t, err, app.ErrChatNotFound)

	assert.Equal(t, 1, store.chatCount())
	assert.Equal(t, 2, store.messageCount(result.ChatID))

	messages, err := chatService.GetMessages(1, result.ChatID, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestChatService_DeleteChat_Missing(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)

	err := chatService.DeleteChat(1, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, app.ErrChatNotFound)
}

func TestChatService_ListChats_OwnerScoped(t *testing.T) {
	store := newMemStore()
	chatService := app.NewChatService(store, store, nil, &fakeAnswerer{reply: "x"}, 20)
	ctx := context.Background()

	_, err := chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 1, Prompt: "mine"})
	require.NoError(t, err)
	_, err = chatService.SubmitPrompt(ctx, app.SubmitPromptInput{UserID: 2, Prompt: "theirs"})
	require.NoError(t, err)

	mine, err := chatService.ListChats(1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, uint(1), mine[0].UserID)
}
