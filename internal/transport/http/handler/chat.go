package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"promptchat/internal/app"
	"promptchat/internal/transport/http/middleware"
	"promptchat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// SubmitPrompt handles POST /chat. With no chat_id a new chat is created for
// the caller and titled from the prompt.
func (h *ChatHandler) SubmitPrompt(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session payload")
		return
	}

	prompt := c.PostForm("prompt")
	chatID := c.PostForm("chat_id")

	result, err := h.chatService.SubmitPrompt(c.Request.Context(), app.SubmitPromptInput{
		UserID: userID,
		ChatID: chatID,
		Prompt: prompt,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		case errors.Is(err, app.ErrAnswerService):
			response.Error(c, http.StatusBadGateway, response.CodeAnswerFailed, "answer service failed")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "submit prompt failed")
		}
		return
	}

	response.OK(c, "ok", result)
}

func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session payload")
		return
	}

	chat, err := h.chatService.CreateChat(app.CreateChatInput{
		UserID: userID,
		Title:  c.PostForm("title"),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create chat failed")
		}
		return
	}

	response.OK(c, "ok", chat)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session payload")
		return
	}

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chats failed")
		return
	}

	response.OK(c, "ok", chats)
}

func (h *ChatHandler) DeleteChat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session payload")
		return
	}

	chatID := c.Param("id")
	if err := h.chatService.DeleteChat(userID, chatID); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chat failed")
		}
		return
	}

	response.OK(c, "ok", gin.H{"deleted_chat_id": chatID})
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid session payload")
		return
	}

	chatID := c.Param("id")

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.GetMessages(userID, chatID, limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrChatNotFound):
			response.Error(c, http.StatusNotFound, response.CodeChatNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get messages failed")
		}
		return
	}

	response.OK(c, "ok", messages)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}
