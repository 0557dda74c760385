// Package chat synchronizes users, rooms and messages between a document
// store and its callers. Every live collection is gated by the signed-in
// identity and publishes complete snapshots.
package chat

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
)

const (
	streamUsers    = "users"
	streamRooms    = "rooms"
	streamRoom     = "room"
	streamMessages = "messages"
)

// Engine is the sync engine for one identity provider. Its configuration is
// fixed at construction.
type Engine struct {
	store docstore.Store
	gate  identity.Provider
	cfg   Config
	log   *zap.Logger
	now   func() time.Time

	provisioning *singleflight.Group
}

type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock sets the clock used for client side timestamps on created rooms.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithProvisioning shares room creation deduplication between engines, so
// concurrent requests for the same pair made through different engines
// still create one room.
func WithProvisioning(g *singleflight.Group) Option {
	return func(e *Engine) {
		if g != nil {
			e.provisioning = g
		}
	}
}

func NewEngine(store docstore.Store, gate identity.Provider, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if gate == nil {
		return nil, errors.New("identity provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chat config: %w", err)
	}

	e := &Engine{
		store: store,
		gate:  gate,
		cfg:   cfg,
		log:   zap.NewNop(),
		now:   time.Now,

		provisioning: &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// Identity returns the signed-in identity or nil.
func (e *Engine) Identity() *identity.Identity {
	return e.gate.Current()
}

func (e *Engine) currentID() (string, bool) {
	cur := e.gate.Current()
	if cur == nil {
		return "", false
	}
	return cur.ID, true
}

func (e *Engine) streamFailed(stream string, err error) {
	e.log.Warn("stream_failed", zap.String("stream", stream), zap.Error(err))
}
