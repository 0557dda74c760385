package dto

import "github.com/thereayou/chatsync/internal/models"

// SendMessageRequest структура для входящих сообщений (HTTP и WebSocket)
type SendMessageRequest struct {
	Type    models.MessageType `json:"type,omitempty"`
	Payload map[string]any     `json:"payload" binding:"required"`
}

func (r SendMessageRequest) Partial() models.PartialMessage {
	return models.PartialMessage{Type: r.Type, Payload: r.Payload}
}

// EditMessageRequest заменяет полезную нагрузку сообщения
type EditMessageRequest struct {
	MessageID string             `json:"messageId"`
	Type      models.MessageType `json:"type,omitempty"`
	Payload   map[string]any     `json:"payload" binding:"required"`
}

type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}
