package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/models"
)

var ErrUserIDRequired = errors.New("user id is required")

// FetchUser is a point-in-time lookup of one user document.
func (e *Engine) FetchUser(ctx context.Context, id string) (models.User, error) {
	doc, err := e.store.Get(ctx, e.cfg.UsersCollection, id)
	if err != nil {
		return models.User{}, fmt.Errorf("fetch user %q: %w", id, err)
	}
	return ProjectUser(doc)
}

// CreateUser writes the user document for u.ID, overwriting any existing one.
func (e *Engine) CreateUser(ctx context.Context, u models.User) error {
	if u.ID == "" {
		return ErrUserIDRequired
	}
	fields := docstore.Fields{
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"imageUrl":  u.ImageURL,
		"createdAt": docstore.ServerTimestamp(),
		"updatedAt": docstore.ServerTimestamp(),
		"lastSeen":  docstore.ServerTimestamp(),
	}
	if u.Role.Valid() {
		fields["role"] = string(u.Role)
	}
	if u.Metadata != nil {
		fields["metadata"] = map[string]any(docstore.Fields(u.Metadata).Clone())
	}
	if err := e.store.Set(ctx, e.cfg.UsersCollection, u.ID, fields); err != nil {
		return fmt.Errorf("create user %q: %w", u.ID, err)
	}
	return nil
}
