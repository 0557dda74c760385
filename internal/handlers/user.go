package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/handlers/dto"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/internal/services"
)

type UserHandler struct {
	sessions *services.Sessions
	log      *zap.Logger
}

func NewUserHandler(sessions *services.Sessions, log *zap.Logger) *UserHandler {
	return &UserHandler{sessions: sessions, log: log}
}

// GetMe возвращает информацию о текущем пользователе
func (h *UserHandler) GetMe(c *gin.Context) {
	h.writeUser(c, middleware.CurrentIdentity(c).ID)
}

// GetUser возвращает информацию о пользователе по ID
func (h *UserHandler) GetUser(c *gin.Context) {
	h.writeUser(c, c.Param("id"))
}

func (h *UserHandler) writeUser(c *gin.Context, id string) {
	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}

	user, err := engine.FetchUser(c.Request.Context(), id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	case err != nil:
		h.log.Error("user_fetch_failed", zap.String("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers возвращает справочник без текущего пользователя; q фильтрует по имени
func (h *UserHandler) ListUsers(c *gin.Context) {
	engine, ok := engineFor(c, h.sessions, h.log)
	if !ok {
		return
	}

	users, err := engine.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("users_list_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	if q := strings.ToLower(strings.TrimSpace(c.Query("q"))); q != "" {
		filtered := make([]models.User, 0, len(users))
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.DisplayName()), q) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, dto.UsersResponse{Users: users})
}
