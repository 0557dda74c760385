package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
	ws "github.com/thereayou/chatsync/internal/websocket"
	"github.com/thereayou/chatsync/pkg/auth"
)

// WebSocketHandler управляет WebSocket соединениями
type WebSocketHandler struct {
	hub            *ws.Hub
	sessions       *services.Sessions
	jwt            *auth.JWTManager
	messageHandler *MessageHandler
	upgrader       websocket.Upgrader
	log            *zap.Logger
}

// NewWebSocketHandler создает новый WebSocket handler
func NewWebSocketHandler(hub *ws.Hub, sessions *services.Sessions, jwt *auth.JWTManager, messageHandler *MessageHandler, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		sessions:       sessions,
		jwt:            jwt,
		messageHandler: messageHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log,
	}
}

// HandleWebSocket открывает сессию синхронизации для авторизованного соединения
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := middleware.CurrentIdentity(c)
	token := c.MustGet(middleware.TokenKey).(string)

	expiresAt, err := h.jwt.Expiry(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	engine, gate, err := h.sessions.Open(id)
	if err != nil {
		h.log.Error("session_open_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket_upgrade_failed", zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, engine, gate, id)
	h.hub.Register(client)
	client.ExpireAt(expiresAt)
	client.Sync(h.sessions.RoomsOptions())

	go client.WritePump()
	go client.ReadPump(h.messageHandler)
}
