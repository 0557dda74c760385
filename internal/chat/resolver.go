package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

// Upper bound on concurrent store calls issued for one room or one batch.
const resolveConcurrency = 16

// Resolve projects a room document for the signed-in identity, joining its
// members and embedded last messages. Projection errors are returned.
func (e *Engine) Resolve(ctx context.Context, doc docstore.Document) (models.Room, error) {
	currentID, _ := e.currentID()
	return e.resolve(ctx, doc, currentID)
}

// FetchRoom loads and resolves one room document.
func (e *Engine) FetchRoom(ctx context.Context, id string) (models.Room, error) {
	doc, err := e.store.Get(ctx, e.cfg.RoomsCollection, id)
	if err != nil {
		return models.Room{}, fmt.Errorf("fetch room %q: %w", id, err)
	}
	return e.Resolve(ctx, doc)
}

func (e *Engine) resolve(ctx context.Context, doc docstore.Document, currentID string) (models.Room, error) {
	room, err := projectRoomBase(doc)
	if err != nil {
		return models.Room{}, err
	}

	users, err := e.fetchMembers(ctx, room.UserIDs)
	if err != nil {
		return models.Room{}, err
	}
	room.Users = users

	if room.Type == models.RoomTypeDirect {
		for _, u := range users {
			if u.ID != currentID {
				room.Name = u.DisplayName()
				room.ImageURL = u.ImageURL
				break
			}
		}
	}

	if raw, ok := doc.Fields["lastMessages"].([]any); ok {
		room.LastMessages = make([]models.Message, 0, len(raw))
		for _, entry := range raw {
			msg, err := projectEmbeddedMessage(entry, room.ID, users)
			if err != nil {
				e.projectionFailed(kindMessage, err)
				continue
			}
			room.LastMessages = append(room.LastMessages, msg)
		}
	}
	return room, nil
}

// fetchMembers looks every member up concurrently. Members whose document is
// missing or fails to load are left out; only cancellation aborts.
func (e *Engine) fetchMembers(ctx context.Context, ids []string) ([]models.User, error) {
	found := make([]*models.User, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			u, err := e.FetchUser(gctx, id)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if !errors.Is(err, docstore.ErrNotFound) {
					e.log.Debug("room_member_lookup_failed", zap.String("user_id", id), zap.Error(err))
				}
				return nil
			}
			found[i] = &u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	users := make([]models.User, 0, len(ids))
	for _, u := range found {
		if u != nil {
			users = append(users, *u)
		}
	}
	return users, nil
}

// resolveAll resolves a whole change batch concurrently and keeps the store
// order. Rooms that fail to project are skipped.
func (e *Engine) resolveAll(ctx context.Context, docs []docstore.Document, currentID string) ([]models.Room, error) {
	started := time.Now()
	defer func() {
		metrics.ResolveDuration.Observe(time.Since(started).Seconds())
	}()

	resolved := make([]*models.Room, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			room, err := e.resolve(gctx, doc, currentID)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				e.projectionFailed(kindRoom, err)
				return nil
			}
			resolved[i] = &room
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rooms := make([]models.Room, 0, len(docs))
	for _, r := range resolved {
		if r != nil {
			rooms = append(rooms, *r)
		}
	}
	return rooms, nil
}

func (e *Engine) projectionFailed(kind string, err error) {
	metrics.ProjectionErrors.WithLabelValues(kind).Inc()
	e.log.Warn(kind+"_projection_failed", zap.Error(err))
}
