package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/internal/services"
)

type RoomHandler struct {
	sessions *services.Sessions
	auth     services.AuthService
	log      *zap.Logger
}

func NewRoomHandler(sessions *services.Sessions, authService services.AuthService, log *zap.Logger) *RoomHandler {
	return &RoomHandler{sessions: sessions, auth: authService, log: log}
}

// GetMyRooms получает список комнат пользователя
func (h *RoomHandler) GetMyRooms(c *gin.Context) {
	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}

	rooms, err := engine.ListRooms(c.Request.Context(), h.sessions.RoomsOptions())
	if err != nil {
		h.log.Error("rooms_list_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get rooms"})
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}

	c.JSON(http.StatusOK, dto.RoomsResponse{Rooms: rooms})
}

// GetRoom получает информацию о конкретной комнате
func (h *RoomHandler) GetRoom(c *gin.Context) {
	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	room, ok := memberRoom(c, engine, h.log)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room)
}

// CreateDirectRoom создает или получает direct комнату между двумя пользователями
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	var req dto.CreateDirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	other, ok := h.lookupUser(c, engine, req.UserID)
	if !ok {
		return
	}

	room, err := engine.CreateRoom(c.Request.Context(), other, req.Metadata)
	h.writeRoom(c, room, err)
}

// CreateBroadcastRoom создает broadcast комнату от имени двух идентичностей
func (h *RoomHandler) CreateBroadcastRoom(c *gin.Context) {
	var req dto.CreateBroadcastRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	secondary, err := h.auth.ValidateToken(c.Request.Context(), req.SecondaryToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secondary token"})
		return
	}

	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}
	other, ok := h.lookupUser(c, engine, req.UserID)
	if !ok {
		return
	}

	room, err := engine.CreateBroadcastRoom(c.Request.Context(), other, req.Metadata, secondary)
	h.writeRoom(c, room, err)
}

// CreateGroupRoom создает новую группу; создатель становится админом
func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	var req dto.CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}

	selfID := middleware.CurrentIdentity(c).ID
	seen := map[string]struct{}{selfID: {}}
	users := make([]models.User, 0, len(req.UserIDs))
	for _, id := range req.UserIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		u, ok := h.lookupUser(c, engine, id)
		if !ok {
			return
		}
		users = append(users, u)
	}

	room, err := engine.CreateGroupRoom(c.Request.Context(), chat.GroupRoomRequest{
		Name:     req.Name,
		Users:    users,
		ImageURL: req.ImageURL,
		Metadata: req.Metadata,
	})
	h.writeRoom(c, room, err)
}

func (h *RoomHandler) lookupUser(c *gin.Context, engine *chat.Engine, id string) (models.User, bool) {
	u, err := engine.FetchUser(c.Request.Context(), id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found", "userId": id})
		return models.User{}, false
	case err != nil:
		h.log.Error("user_fetch_failed", zap.String("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return models.User{}, false
	}
	return u, true
}

func (h *RoomHandler) writeRoom(c *gin.Context, room *models.Room, err error) {
	switch {
	case errors.Is(err, chat.ErrGroupNameRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.log.Error("room_create_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create room"})
	case room == nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot create a room with yourself"})
	default:
		c.JSON(http.StatusOK, room)
	}
}
