package handlers

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/websocket"
)

// MessageHandler исполняет команды сообщений, пришедшие по WebSocket.
// Ответом служит следующий снимок потока сообщений комнаты.
type MessageHandler struct {
	log *zap.Logger
}

func NewMessageHandler(log *zap.Logger) *MessageHandler {
	return &MessageHandler{log: log}
}

func (h *MessageHandler) HandleMessage(client *websocket.Client, frame *websocket.Frame) error {
	switch frame.Type {
	case websocket.TypeMessage:
		return h.handleSend(client, frame)

	case websocket.TypeMessageEdit:
		return h.handleEdit(client, frame)

	default:
		h.log.Debug("unknown_frame_type", zap.String("type", string(frame.Type)))
		return nil
	}
}

func (h *MessageHandler) handleSend(client *websocket.Client, frame *websocket.Frame) error {
	if frame.RoomID == "" {
		return websocket.ErrInvalidMessage
	}
	stream, err := client.Stream(frame.RoomID)
	if err != nil {
		return err
	}

	var req dto.SendMessageRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return websocket.ErrInvalidMessage
	}
	if req.Payload == nil || (req.Type != "" && !req.Type.Valid()) {
		return websocket.ErrInvalidMessage
	}

	return stream.Send(client.Context(), req.Partial())
}

func (h *MessageHandler) handleEdit(client *websocket.Client, frame *websocket.Frame) error {
	if frame.RoomID == "" {
		return websocket.ErrInvalidMessage
	}
	stream, err := client.Stream(frame.RoomID)
	if err != nil {
		return err
	}

	var req dto.EditMessageRequest
	if err := json.Unmarshal(frame.Data, &req); err != nil {
		return websocket.ErrInvalidMessage
	}
	if req.MessageID == "" || req.Payload == nil || (req.Type != "" && !req.Type.Valid()) {
		return websocket.ErrInvalidMessage
	}

	// Автор и неизменяемые поля берутся из последнего снимка, а не от клиента
	messages, _ := stream.Value()
	for _, msg := range messages {
		if msg.ID != req.MessageID {
			continue
		}
		if msg.Author.ID != client.Identity.ID {
			return websocket.ErrUnauthorized
		}
		msg.Payload = req.Payload
		if req.Type != "" {
			msg.Type = req.Type
		}
		return stream.Update(client.Context(), msg)
	}
	return websocket.ErrMessageNotFound
}
