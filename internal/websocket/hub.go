package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/metrics"
)

// FrameType определяет типы сообщений
type FrameType string

const (
	// Системные типы
	TypePing      FrameType = "ping"
	TypePong      FrameType = "pong"
	TypeError     FrameType = "error"
	TypeSignedOut FrameType = "signed_out"

	// Снимки живых коллекций
	TypeUsers    FrameType = "users"
	TypeRooms    FrameType = "rooms"
	TypeMessages FrameType = "messages"

	// Команды клиента
	TypeRoomJoin    FrameType = "room_join"
	TypeRoomLeave   FrameType = "room_leave"
	TypeMessage     FrameType = "message"
	TypeMessageEdit FrameType = "message_edit"
)

type Frame struct {
	Type      FrameType       `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SnapshotData: полезная нагрузка кадров users, rooms и messages.
// Каждый кадр несет коллекцию целиком.
type SnapshotData struct {
	Items any    `json:"items"`
	Error string `json:"error,omitempty"`
}

type Hub struct {
	clients map[string]*Client

	// Клиенты по идентичности (один пользователь может иметь несколько соединений)
	userClients map[string]map[string]*Client

	// Каналы для регистрации/отмены регистрации
	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *zap.Logger

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]*Client),
		userClients: make(map[string]map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		client.close()
		delete(h.clients, id)
	}
	h.userClients = make(map[string]map[string]*Client)
	metrics.ConnectedClients.Set(0)
}

// Register регистрирует нового клиента
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Unregister отменяет регистрацию клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// SignOut снимает идентичность со всех соединений пользователя
func (h *Hub) SignOut(identityID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[identityID]))
	for _, client := range h.userClients[identityID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.SignOut()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	userID := client.Identity.ID
	if _, ok := h.userClients[userID]; !ok {
		h.userClients[userID] = make(map[string]*Client)
	}
	h.userClients[userID][client.ID] = client
	metrics.ConnectedClients.Inc()

	h.log.Info("client_registered", zap.String("client_id", client.ID), zap.String("identity", userID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}

	userID := client.Identity.ID
	if userClients, ok := h.userClients[userID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.userClients, userID)
		}
	}
	delete(h.clients, client.ID)
	client.close()
	metrics.ConnectedClients.Dec()

	h.log.Info("client_unregistered", zap.String("client_id", client.ID), zap.String("identity", userID))
}

// ClientCount возвращает число соединений пользователя
func (h *Hub) ClientCount(identityID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[identityID])
}
