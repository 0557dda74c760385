package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thereayou/chatsync/internal/handlers"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/services"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Room      *handlers.RoomHandler
	Message   *handlers.HTTPMessageHandler
	WebSocket *handlers.WebSocketHandler
}

func APIEndpoints(r *gin.Engine, h Handlers, authService services.AuthService, registry *prometheus.Registry) {
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Auth endpoints
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/logout", middleware.AuthMiddleware(authService), h.Auth.Logout)
	}

	// WebSocket: токен можно передать в query
	r.GET("/ws", middleware.WSAuthMiddleware(authService), h.WebSocket.HandleWebSocket)

	// API endpoints
	api := r.Group("/api/v1", middleware.AuthMiddleware(authService))
	{
		api.GET("/users", h.User.ListUsers)
		api.GET("/users/me", h.User.GetMe)
		api.GET("/users/:id", h.User.GetUser)

		api.GET("/rooms", h.Room.GetMyRooms)
		api.POST("/rooms/direct", h.Room.CreateDirectRoom)
		api.POST("/rooms/group", h.Room.CreateGroupRoom)
		api.POST("/rooms/broadcast", h.Room.CreateBroadcastRoom)
		api.GET("/rooms/:id", h.Room.GetRoom)

		api.GET("/rooms/:id/messages", h.Message.GetRoomMessages)
		api.POST("/rooms/:id/messages", h.Message.SendMessage)
		api.PATCH("/rooms/:id/messages/:messageId", h.Message.UpdateMessage)
	}
}
