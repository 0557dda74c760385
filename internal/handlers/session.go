package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/internal/services"
)

// engineFor возвращает движок, привязанный к идентичности запроса
func engineFor(c *gin.Context, sessions *services.Sessions, log *zap.Logger) (*chat.Engine, bool) {
	engine, err := sessions.ForIdentity(middleware.CurrentIdentity(c))
	if err != nil {
		log.Error("engine_init_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return nil, false
	}
	return engine, true
}

// memberRoom загружает комнату и проверяет членство текущего пользователя
func memberRoom(c *gin.Context, engine *chat.Engine, log *zap.Logger) (models.Room, bool) {
	room, err := engine.FetchRoom(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return models.Room{}, false
	case err != nil:
		log.Error("room_fetch_failed", zap.String("room_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get room"})
		return models.Room{}, false
	}

	if !room.HasMember(middleware.CurrentIdentity(c).ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this room"})
		return models.Room{}, false
	}
	return room, true
}
