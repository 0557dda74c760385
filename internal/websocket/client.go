package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 512 * 1024 // 512KB

	// Лимит команд записи на соединение
	commandRate  = 10
	commandBurst = 20
)

type ClientMessageHandler interface {
	HandleMessage(client *Client, frame *Frame) error
}

// Client это одно WebSocket соединение со своим движком синхронизации.
// Gate движка авторизован идентичностью токена до выхода или истечения токена.
type Client struct {
	ID       string
	Identity identity.Identity
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub
	Engine   *chat.Engine

	gate    *identity.Gate
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
	log     *zap.Logger

	mu      sync.RWMutex
	closed  bool
	rooms   *chat.Live[[]models.Room]
	streams map[string]*roomStream
	expiry  *time.Timer
}

type roomStream struct {
	messages *chat.MessageStream
	cancel   context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, engine *chat.Engine, gate *identity.Gate, id identity.Identity) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)
	clientID := uuid.NewString()
	return &Client{
		ID:       clientID,
		Identity: id,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Hub:      hub,
		Engine:   engine,
		gate:     gate,
		ctx:      ctx,
		cancel:   cancel,
		log:      hub.log.With(zap.String("client_id", clientID), zap.String("identity", id.ID)),
		limiter:  rate.NewLimiter(rate.Limit(commandRate), commandBurst),
		streams:  make(map[string]*roomStream),
	}
}

// Context отменяется при закрытии соединения
func (c *Client) Context() context.Context {
	return c.ctx
}

// Sync запускает потоки справочника и списка комнат
func (c *Client) Sync(opts chat.RoomsOptions) {
	users := c.Engine.Directory(c.ctx)
	rooms := c.Engine.Rooms(c.ctx, opts)

	c.mu.Lock()
	c.rooms = rooms
	c.mu.Unlock()

	users.Subscribe(func(v []models.User, err error) {
		c.sendSnapshot(TypeUsers, "", v, err)
	})
	rooms.Subscribe(func(v []models.Room, err error) {
		c.sendSnapshot(TypeRooms, "", v, err)
	})
}

// ExpireAt снимает идентичность с соединения по истечении токена
func (c *Client) ExpireAt(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expiry != nil {
		c.expiry.Stop()
	}
	c.expiry = time.AfterFunc(time.Until(t), c.SignOut)
}

// SignOut снимает идентичность: все потоки публикуют пустой снимок,
// а дальнейшие команды движок игнорирует.
func (c *Client) SignOut() {
	c.gate.SignOut()
	if err := c.SendFrame(TypeSignedOut, "", nil); err != nil {
		c.log.Debug("signed_out_frame_dropped", zap.Error(err))
	}
}

// JoinRoom запускает поток сообщений комнаты из списка комнат клиента
func (c *Client) JoinRoom(roomID string) error {
	c.mu.Lock()
	if _, ok := c.streams[roomID]; ok {
		c.mu.Unlock()
		return nil
	}
	room, ok := c.roomLocked(roomID)
	if !ok {
		c.mu.Unlock()
		return ErrRoomNotFound
	}
	ctx, cancel := context.WithCancel(c.ctx)
	stream := c.Engine.Messages(ctx, room)
	c.streams[roomID] = &roomStream{messages: stream, cancel: cancel}
	c.mu.Unlock()

	stream.Subscribe(func(v []models.Message, err error) {
		c.sendSnapshot(TypeMessages, roomID, v, err)
	})
	return nil
}

// LeaveRoom останавливает поток сообщений комнаты
func (c *Client) LeaveRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.streams[roomID]; ok {
		s.cancel()
		delete(c.streams, roomID)
	}
}

// Stream возвращает поток сообщений подключенной комнаты
func (c *Client) Stream(roomID string) (*chat.MessageStream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.streams[roomID]
	if !ok {
		return nil, ErrUserNotInRoom
	}
	return s.messages, nil
}

func (c *Client) roomLocked(roomID string) (models.Room, bool) {
	if c.rooms == nil {
		return models.Room{}, false
	}
	rooms, _ := c.rooms.Value()
	for _, r := range rooms {
		if r.ID == roomID {
			return r, true
		}
	}
	return models.Room{}, false
}

// ReadPump читает сообщения от клиента
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		err := c.Conn.ReadJSON(&frame)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket_read_failed", zap.Error(err))
			}
			break
		}

		switch frame.Type {
		case TypePong:
			continue

		case TypeRoomJoin:
			if frame.RoomID == "" {
				c.SendError(ErrInvalidMessage.Error())
			} else if err := c.JoinRoom(frame.RoomID); err != nil {
				c.SendError(err.Error())
			}
			continue

		case TypeRoomLeave:
			if frame.RoomID != "" {
				c.LeaveRoom(frame.RoomID)
			}
			continue
		}

		if !c.limiter.Allow() {
			c.SendError(ErrRateLimited.Error())
			continue
		}

		if handler != nil {
			if err := handler.HandleMessage(c, &frame); err != nil {
				c.log.Debug("frame_rejected", zap.String("type", string(frame.Type)), zap.Error(err))
				c.SendError(err.Error())
			}
		}
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) SendFrame(frameType FrameType, roomID string, data any) error {
	frame := Frame{
		Type:      frameType,
		RoomID:    roomID,
		Timestamp: time.Now(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		frame.Data = jsonData
	}

	msgData, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.Send <- msgData:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(errorMsg string) {
	c.SendFrame(TypeError, "", map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) sendSnapshot(frameType FrameType, roomID string, items any, err error) {
	data := SnapshotData{Items: items}
	if err != nil {
		data.Error = err.Error()
	}
	err = c.SendFrame(frameType, roomID, data)
	switch {
	case errors.Is(err, ErrClientQueueFull):
		// Снимки не пропускаются: медленное соединение закрывается
		c.log.Warn("slow_client_disconnected", zap.String("type", string(frameType)))
		go c.Hub.Unregister(c)
	case err != nil:
		c.log.Warn("snapshot_encode_failed", zap.String("type", string(frameType)), zap.Error(err))
	}
}

// close останавливает все потоки клиента и закрывает очередь отправки
func (c *Client) close() {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.expiry != nil {
		c.expiry.Stop()
	}
	close(c.Send)
}
