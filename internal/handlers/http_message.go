package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 100
)

type HTTPMessageHandler struct {
	sessions *services.Sessions
	log      *zap.Logger
}

func NewHTTPMessageHandler(sessions *services.Sessions, log *zap.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{sessions: sessions, log: log}
}

// GetRoomMessages получает последние сообщения комнаты, новые первыми
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	room, ok := memberRoom(c, engine, h.log)
	if !ok {
		return
	}

	// Параметры пагинации
	limit := defaultMessagesLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxMessagesLimit {
			limit = parsed
		}
	}

	messages, err := engine.ListMessages(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error("messages_list_failed", zap.String("room_id", room.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	c.JSON(http.StatusOK, dto.MessagesResponse{
		Messages: messages,
		HasMore:  len(messages) == limit,
	})
}

// SendMessage отправляет сообщение через HTTP (альтернатива WebSocket).
// Сообщение появляется у подписчиков после подтверждения хранилищем.
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	room, ok := memberRoom(c, engine, h.log)
	if !ok {
		return
	}

	if err := engine.SendMessage(c.Request.Context(), room.ID, req.Partial()); err != nil {
		h.log.Error("message_send_failed", zap.String("room_id", room.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
		return
	}

	c.Status(http.StatusAccepted)
}

// UpdateMessage обновляет сообщение; только автор может редактировать
func (h *HTTPMessageHandler) UpdateMessage(c *gin.Context) {
	var req dto.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown message type"})
		return
	}

	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	room, ok := memberRoom(c, engine, h.log)
	if !ok {
		return
	}

	messageID := c.Param("messageId")
	msg, err := engine.FetchMessage(c.Request.Context(), room, messageID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	case err != nil:
		h.log.Error("message_fetch_failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get message"})
		return
	}

	if msg.Author.ID != middleware.CurrentIdentity(c).ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "you can only edit your own messages"})
		return
	}

	msg.Payload = req.Payload
	if req.Type != "" {
		msg.Type = req.Type
	}
	if err := engine.UpdateMessage(c.Request.Context(), room.ID, msg); err != nil {
		h.log.Error("message_update_failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update message"})
		return
	}

	// Возвращаем сохраненную версию с новым updatedAt
	updated, err := engine.FetchMessage(c.Request.Context(), room, messageID)
	if err != nil {
		h.log.Error("message_fetch_failed", zap.String("message_id", messageID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get message"})
		return
	}

	c.JSON(http.StatusOK, updated)
}
