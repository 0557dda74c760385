package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/services"
	"github.com/thereayou/chatsync/pkg/auth"
)

const (
	IdentityKey = "identity"
	TokenKey    = "token"
)

// AuthMiddleware проверяет JWT токен из заголовка Authorization
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		authenticate(c, authService, token)
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: токен можно передать в query
func WSAuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractToken(c.Request)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		authenticate(c, authService, token)
	}
}

func authenticate(c *gin.Context, authService services.AuthService, token string) {
	id, err := authService.ValidateToken(c.Request.Context(), token)
	switch {
	case errors.Is(err, services.ErrTokenRevoked):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is blacklisted"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Set(IdentityKey, *id)
	c.Set(TokenKey, token)
	c.Next()
}

// CurrentIdentity возвращает идентичность, установленную middleware
func CurrentIdentity(c *gin.Context) identity.Identity {
	return c.MustGet(IdentityKey).(identity.Identity)
}
