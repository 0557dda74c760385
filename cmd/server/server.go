package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/config"
	"github.com/thereayou/chatsync/internal/database"
	"github.com/thereayou/chatsync/internal/handlers"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/services"
	ws "github.com/thereayou/chatsync/internal/websocket"
	"github.com/thereayou/chatsync/pkg/auth"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Router   *gin.Engine
	Config   config.Config
	Log      *zap.Logger
	Redis    *redis.Client
	Hub      *ws.Hub
	Registry *prometheus.Registry
}

func NewServer() (*Server, error) {
	config.LoadDotenv()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	store := database.NewDatabase(db, database.NewChangeFeed(rdb, logger), database.WithLogger(logger))

	sessions, err := services.NewSessions(store, cfg.Chat(), cfg.RoomsOptions(), logger)
	if err != nil {
		return nil, err
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := services.NewAuthService(store, sessions, jwtMgr, services.NewRedisBlacklist(rdb), logger)

	hub := ws.NewHub(logger)

	registry := prometheus.NewRegistry()
	metrics.MustRegister(registry)

	h := Handlers{
		Auth:      handlers.NewAuthHandler(authSvc, hub, logger),
		User:      handlers.NewUserHandler(sessions, logger),
		Room:      handlers.NewRoomHandler(sessions, authSvc, logger),
		Message:   handlers.NewHTTPMessageHandler(sessions, logger),
		WebSocket: handlers.NewWebSocketHandler(hub, sessions, jwtMgr, handlers.NewMessageHandler(logger), logger),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	APIEndpoints(router, h, authSvc, registry)

	return &Server{
		Router:   router,
		Config:   cfg,
		Log:      logger,
		Redis:    rdb,
		Hub:      hub,
		Registry: registry,
	}, nil
}

// Run обслуживает HTTP до SIGINT/SIGTERM и затем корректно завершает работу
func (s *Server) Run() {
	defer s.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go s.Hub.Run()

	httpSrv := &http.Server{
		Addr:    ":" + s.Config.Port,
		Handler: s.Router,
	}

	go func() {
		s.Log.Info("server_starting", zap.String("port", s.Config.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Fatal("server_run_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	s.Log.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Hub.Stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.Log.Error("server_shutdown_failed", zap.Error(err))
	}
	if err := s.Redis.Close(); err != nil {
		s.Log.Warn("redis_close_failed", zap.Error(err))
	}
}
