package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
	ws "github.com/thereayou/chatsync/internal/websocket"
)

type AuthHandler struct {
	auth services.AuthService
	hub  *ws.Hub
	log  *zap.Logger
}

func NewAuthHandler(authService services.AuthService, hub *ws.Hub, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, hub: hub, log: log}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req)
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("register_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login выдаёт JWT
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req)
	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		h.log.Error("login_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout ставит токен в черный список и снимает идентичность с открытых соединений
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.MustGet(middleware.TokenKey).(string)

	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		h.log.Error("logout_failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	if h.hub != nil {
		h.hub.SignOut(middleware.CurrentIdentity(c).ID)
	}
	c.Status(http.StatusOK)
}
