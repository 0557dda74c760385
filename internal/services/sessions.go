package services

import (
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
)

// Sessions создает движки синхронизации, привязанные к одной идентичности.
// Все движки делят хранилище и конфигурацию коллекций.
type Sessions struct {
	store docstore.Store
	cfg   chat.Config
	rooms chat.RoomsOptions
	log   *zap.Logger

	provisioning singleflight.Group
}

func NewSessions(store docstore.Store, cfg chat.Config, rooms chat.RoomsOptions, log *zap.Logger) (*Sessions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sessions{store: store, cfg: cfg, rooms: rooms, log: log}, nil
}

// RoomsOptions возвращает порядок списка комнат для всех сессий
func (s *Sessions) RoomsOptions() chat.RoomsOptions {
	return s.rooms
}

// ForIdentity возвращает движок, постоянно авторизованный как id (для отдельных запросов)
func (s *Sessions) ForIdentity(id identity.Identity) (*chat.Engine, error) {
	return chat.NewEngine(s.store, identity.Static(id), s.cfg, s.options(id)...)
}

// Open возвращает движок с gate, авторизованным как id. Выход через gate
// очищает все живые коллекции движка.
func (s *Sessions) Open(id identity.Identity) (*chat.Engine, *identity.Gate, error) {
	gate := identity.NewGate()
	gate.SignIn(id)
	engine, err := chat.NewEngine(s.store, gate, s.cfg, s.options(id)...)
	if err != nil {
		return nil, nil, err
	}
	return engine, gate, nil
}

func (s *Sessions) options(id identity.Identity) []chat.Option {
	return []chat.Option{
		chat.WithLogger(s.log.With(zap.String("identity", id.ID))),
		chat.WithProvisioning(&s.provisioning),
	}
}
