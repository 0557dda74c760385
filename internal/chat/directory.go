package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

// Directory keeps the live set of known users, excluding the signed-in
// identity. It is empty while nobody is signed in and stops when ctx is done.
func (e *Engine) Directory(ctx context.Context) *Live[[]models.User] {
	live := newLive[[]models.User](streamUsers, []models.User{})
	go func() {
		defer live.close()
		watchIdentity(ctx, e.gate,
			func(runCtx context.Context, id identity.Identity) {
				e.syncDirectory(runCtx, id, live)
			},
			func() { live.publish([]models.User{}, nil) },
		)
	}()
	return live
}

// ListUsers is a one-shot read of the directory with the same rules as
// Directory. It returns nil when nobody is signed in.
func (e *Engine) ListUsers(ctx context.Context) ([]models.User, error) {
	id, ok := e.currentID()
	if !ok {
		return nil, nil
	}
	docs, err := e.store.Query(ctx, docstore.Query{Collection: e.cfg.UsersCollection})
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return directorySnapshot(docs, id, e.projectionFailed), nil
}

func (e *Engine) syncDirectory(ctx context.Context, id identity.Identity, live *Live[[]models.User]) {
	snaps, err := e.store.Subscribe(ctx, docstore.Query{Collection: e.cfg.UsersCollection})
	if err != nil {
		metrics.StreamErrors.WithLabelValues(streamUsers).Inc()
		e.streamFailed(streamUsers, err)
		live.publish([]models.User{}, err)
		return
	}
	for snap := range snaps {
		if snap.Err != nil {
			metrics.StreamErrors.WithLabelValues(streamUsers).Inc()
			e.streamFailed(streamUsers, snap.Err)
			live.publish([]models.User{}, snap.Err)
			continue
		}
		users := directorySnapshot(snap.Docs, id.ID, e.projectionFailed)
		e.log.Debug("users_snapshot_emitted", zap.String("identity", id.ID), zap.Int("count", len(users)))
		live.publish(users, nil)
	}
}

// directorySnapshot rebuilds the full user set from one change batch.
func directorySnapshot(docs []docstore.Document, selfID string, failed func(string, error)) []models.User {
	users := make([]models.User, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		if doc.ID == selfID {
			continue
		}
		if _, dup := seen[doc.ID]; dup {
			continue
		}
		u, err := ProjectUser(doc)
		if err != nil {
			failed(kindUser, err)
			continue
		}
		seen[u.ID] = struct{}{}
		users = append(users, u)
	}
	return users
}
