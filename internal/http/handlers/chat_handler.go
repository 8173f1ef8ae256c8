package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/umeyka/umeyka-backend/internal/http/handlers/common"
	"github.com/umeyka/umeyka-backend/internal/http/response"
	"github.com/umeyka/umeyka-backend/internal/service"
)

// ChatHandler обслуживает чаты и сообщения.
type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Open обрабатывает POST /api/chats. Текущий пользователь - клиент, user_id - мастер.
func (h *ChatHandler) Open(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req struct {
		UserID  uuid.UUID  `json:"user_id" binding:"required"`
		SkillID *uuid.UUID `json:"skill_id"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.chats.Open(c.Request.Context(), userID, req.UserID, req.SkillID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Created {
		response.Created(c, result)
		return
	}
	response.Success(c, result)
}

// List обрабатывает GET /api/chats.
func (h *ChatHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, offset := common.GetPagination(c)

	chats, total, err := h.chats.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, chats, total, limit, offset)
}

// Get обрабатывает GET /api/chats/:chatId.
func (h *ChatHandler) Get(c *gin.Context) {
	userID, chatID, ok := chatParams(c)
	if !ok {
		return
	}

	chat, err := h.chats.Get(c.Request.Context(), chatID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, chat)
}

// Messages обрабатывает GET /api/chats/:chatId/messages.
func (h *ChatHandler) Messages(c *gin.Context) {
	userID, chatID, ok := chatParams(c)
	if !ok {
		return
	}
	limit, offset := common.GetPagination(c)

	messages, total, err := h.chats.Messages(c.Request.Context(), chatID, userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, messages, total, limit, offset)
}

// Send обрабатывает POST /api/chats/:chatId/messages.
func (h *ChatHandler) Send(c *gin.Context) {
	userID, chatID, ok := chatParams(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	msg, err := h.chats.Send(c.Request.Context(), chatID, userID, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// Read обрабатывает POST /api/chats/:chatId/read.
func (h *ChatHandler) Read(c *gin.Context) {
	userID, chatID, ok := chatParams(c)
	if !ok {
		return
	}

	n, err := h.chats.Read(c.Request.Context(), chatID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"marked": n})
}

// Complete обрабатывает POST /api/chats/:chatId/complete.
func (h *ChatHandler) Complete(c *gin.Context) {
	userID, chatID, ok := chatParams(c)
	if !ok {
		return
	}

	chat, err := h.chats.Complete(c.Request.Context(), chatID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, chat)
}

// chatParams пишет ошибку сам и возвращает ok=false.
func chatParams(c *gin.Context) (userID, chatID uuid.UUID, ok bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	chatID, err = common.ParseUUIDParam(c, "chatId")
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, chatID, true
}
