package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

type provisionOptions struct {
	as *identity.Identity
}

type ProvisionOption func(*provisionOptions)

// AsIdentity creates the room on behalf of id when the engine's provider is
// signed out. A signed-in provider always takes precedence.
func AsIdentity(id identity.Identity) ProvisionOption {
	return func(o *provisionOptions) {
		o.as = &id
	}
}

// CreateRoom returns the direct room between the acting identity and other,
// creating it only if no such room exists yet. It returns nil when there is
// no acting identity.
func (e *Engine) CreateRoom(ctx context.Context, other models.User, metadata map[string]any, opts ...ProvisionOption) (*models.Room, error) {
	var o provisionOptions
	for _, opt := range opts {
		opt(&o)
	}

	actor := e.gate.Current()
	if actor == nil {
		actor = o.as
	}
	if actor == nil {
		return nil, nil
	}
	return e.provisionPair(ctx, models.RoomTypeDirect, actor.ID, other, metadata)
}

// CreateBroadcastRoom is CreateRoom for broadcast rooms. Both the signed-in
// identity and secondary must be present.
func (e *Engine) CreateBroadcastRoom(ctx context.Context, other models.User, metadata map[string]any, secondary *identity.Identity) (*models.Room, error) {
	actor := e.gate.Current()
	if actor == nil || secondary == nil {
		return nil, nil
	}
	return e.provisionPair(ctx, models.RoomTypeBroadcast, actor.ID, other, metadata)
}

// provisionPair finds or creates the two member room of kind between actorID
// and other. Concurrent callers for the same pair share one lookup and write.
func (e *Engine) provisionPair(ctx context.Context, kind models.RoomType, actorID string, other models.User, metadata map[string]any) (*models.Room, error) {
	if other.ID == "" || other.ID == actorID {
		return nil, nil
	}

	a, b := actorID, other.ID
	if b < a {
		a, b = b, a
	}
	key := string(kind) + "/" + a + "/" + b

	// The shared work outlives any single caller; each caller only stops
	// waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	results := e.provisioning.DoChan(key, func() (any, error) {
		rooms, err := e.listRoomsFor(shared, actorID, RoomsOptions{})
		if err != nil {
			return nil, err
		}
		for _, room := range rooms {
			if room.Type == kind && room.IsPair(actorID, other.ID) {
				return &room, nil
			}
		}

		actor, err := e.memberOrStub(shared, actorID)
		if err != nil {
			return nil, err
		}
		users := []models.User{actor, other}
		room := models.Room{
			Type:           kind,
			Users:          users,
			UserIDs:        []string{actorID, other.ID},
			Metadata:       metadata,
			UnseenMessages: map[string]int{actorID: 0, other.ID: 0},
		}
		if kind == models.RoomTypeDirect {
			room.Name = other.DisplayName()
			room.ImageURL = other.ImageURL
		}
		if err := e.writeRoom(shared, &room); err != nil {
			return nil, err
		}
		return &room, nil
	})

	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	room := *res.Val.(*models.Room)
	if room.Type == models.RoomTypeDirect {
		// the shared call may have run for the other member
		if u, ok := room.Member(other.ID); ok {
			room.Name = u.DisplayName()
			room.ImageURL = u.ImageURL
		}
	}
	return &room, nil
}

type GroupRoomRequest struct {
	Name     string
	Users    []models.User
	ImageURL string
	Metadata map[string]any
}

// CreateGroupRoom always creates a new group whose members are the signed-in
// identity followed by req.Users. The creator becomes admin; everyone else
// keeps their directory role or gets RoleUser.
func (e *Engine) CreateGroupRoom(ctx context.Context, req GroupRoomRequest) (*models.Room, error) {
	creatorID, ok := e.currentID()
	if !ok {
		return nil, nil
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrGroupNameRequired
	}

	creator, err := e.memberOrStub(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	creator.Role = models.RoleAdmin

	users := append([]models.User{creator}, req.Users...)
	ids := make([]string, len(users))
	roles := make(map[string]models.Role, len(users))
	unseen := make(map[string]int, len(users))
	for i, u := range users {
		ids[i] = u.ID
		unseen[u.ID] = 0
		switch {
		case u.ID == creatorID:
			roles[u.ID] = models.RoleAdmin
		case u.Role.Valid():
			roles[u.ID] = u.Role
		default:
			roles[u.ID] = models.RoleUser
		}
	}

	room := models.Room{
		Type:           models.RoomTypeGroup,
		Name:           req.Name,
		ImageURL:       req.ImageURL,
		Users:          users,
		UserIDs:        ids,
		UserRoles:      roles,
		Metadata:       req.Metadata,
		UnseenMessages: unseen,
	}
	if err := e.writeRoom(ctx, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// writeRoom adds the room document and fills in the generated id and the
// creation timestamps.
func (e *Engine) writeRoom(ctx context.Context, room *models.Room) error {
	now := e.now()
	ms := now.UnixMilli()

	unseen := make(map[string]any, len(room.UnseenMessages))
	for id, n := range room.UnseenMessages {
		unseen[id] = n
	}
	ids := make([]any, len(room.UserIDs))
	for i, id := range room.UserIDs {
		ids[i] = id
	}

	fields := docstore.Fields{
		"type":      string(room.Type),
		"userIds":   ids,
		"unseen":    unseen,
		"createdAt": now,
		"updatedAt": now,
	}
	if room.Type == models.RoomTypeGroup {
		fields["name"] = room.Name
		roles := make(map[string]any, len(room.UserRoles))
		for id, role := range room.UserRoles {
			roles[id] = string(role)
		}
		fields["userRoles"] = roles
		if room.ImageURL != "" {
			fields["imageUrl"] = room.ImageURL
		}
	}
	if room.Metadata != nil {
		fields["metadata"] = map[string]any(docstore.Fields(room.Metadata).Clone())
	}

	id, err := e.store.Add(ctx, e.cfg.RoomsCollection, fields)
	if err != nil {
		return fmt.Errorf("create %s room: %w", room.Type, err)
	}
	room.ID = id
	room.CreatedAt = &ms
	room.UpdatedAt = &ms

	metrics.RoomsCreated.WithLabelValues(string(room.Type)).Inc()
	e.log.Info("room_created",
		zap.String("room_id", id),
		zap.String("type", string(room.Type)),
		zap.Int("members", len(room.UserIDs)),
	)
	return nil
}

// memberOrStub fetches a member for a room being created. A member without a
// user document is represented by an id-only stub.
func (e *Engine) memberOrStub(ctx context.Context, id string) (models.User, error) {
	u, err := e.FetchUser(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return models.UserStub(id), nil
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}
