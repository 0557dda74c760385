package chat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/metrics"
	"github.com/thereayou/chatsync/internal/models"
)

type RoomsOptions struct {
	// OrderByUpdatedAt asks the store for the most recently updated rooms
	// first. Rooms without updatedAt are then not returned at all, and the
	// field has to be maintained outside this engine.
	OrderByUpdatedAt bool
}

func (e *Engine) roomsQuery(userID string, opts RoomsOptions) docstore.Query {
	q := docstore.Where(e.cfg.RoomsCollection, "userIds", docstore.OpArrayContains, userID)
	if opts.OrderByUpdatedAt {
		q = q.OrderedBy("updatedAt", true)
	}
	return q
}

// ListRooms is a one-shot query of the rooms the signed-in identity belongs
// to. It returns nil when nobody is signed in.
func (e *Engine) ListRooms(ctx context.Context, opts RoomsOptions) ([]models.Room, error) {
	id, ok := e.currentID()
	if !ok {
		return nil, nil
	}
	return e.listRoomsFor(ctx, id, opts)
}

func (e *Engine) listRoomsFor(ctx context.Context, userID string, opts RoomsOptions) ([]models.Room, error) {
	docs, err := e.store.Query(ctx, e.roomsQuery(userID, opts))
	if err != nil {
		return nil, fmt.Errorf("query rooms of %q: %w", userID, err)
	}
	return e.resolveAll(ctx, docs, userID)
}

// Rooms keeps the live list of rooms the signed-in identity belongs to. Every
// change batch is resolved as a whole before it is published; a batch that
// finishes after a newer one has arrived is dropped.
func (e *Engine) Rooms(ctx context.Context, opts RoomsOptions) *Live[[]models.Room] {
	live := newLive[[]models.Room](streamRooms, []models.Room{})
	seq := &batchSequencer{}
	go func() {
		defer live.close()
		watchIdentity(ctx, e.gate,
			func(runCtx context.Context, id identity.Identity) {
				e.syncRooms(runCtx, id, e.roomsQuery(id.ID, opts), live, seq)
			},
			func() {
				seq.commit(seq.next(), func() { live.publish([]models.Room{}, nil) })
			},
		)
	}()
	return live
}

func (e *Engine) syncRooms(ctx context.Context, id identity.Identity, q docstore.Query, live *Live[[]models.Room], seq *batchSequencer) {
	e.syncResolved(ctx, streamRooms, q, seq,
		func(err error) { live.publish([]models.Room{}, err) },
		func(docs []docstore.Document) (func(), error) {
			rooms, err := e.resolveAll(ctx, docs, id.ID)
			if err != nil {
				return nil, err
			}
			return func() {
				e.log.Debug("rooms_snapshot_emitted", zap.String("identity", id.ID), zap.Int("count", len(rooms)))
				live.publish(rooms, nil)
			}, nil
		},
	)
}

// Room keeps a single room in sync, starting from initial. Its value is reset
// to an empty room while nobody is signed in, and carries ErrNotFound once the
// room document disappears.
func (e *Engine) Room(ctx context.Context, initial models.Room) *Live[models.Room] {
	live := newLive[models.Room](streamRoom, initial)
	seq := &batchSequencer{}
	q := docstore.Where(e.cfg.RoomsCollection, docstore.DocumentID, docstore.OpEqual, initial.ID)
	go func() {
		defer live.close()
		watchIdentity(ctx, e.gate,
			func(runCtx context.Context, id identity.Identity) {
				e.syncResolved(runCtx, streamRoom, q, seq,
					func(err error) { live.publish(models.Room{}, err) },
					func(docs []docstore.Document) (func(), error) {
						if len(docs) == 0 {
							err := fmt.Errorf("room %q: %w", initial.ID, docstore.ErrNotFound)
							return func() { live.publish(models.Room{}, err) }, nil
						}
						room, err := e.resolve(runCtx, docs[0], id.ID)
						if err != nil {
							if ctxErr := runCtx.Err(); ctxErr != nil {
								return nil, ctxErr
							}
							e.projectionFailed(kindRoom, err)
							return func() { live.publish(models.Room{}, err) }, nil
						}
						return func() { live.publish(room, nil) }, nil
					},
				)
			},
			func() {
				seq.commit(seq.next(), func() { live.publish(models.Room{}, nil) })
			},
		)
	}()
	return live
}

// syncResolved consumes one store subscription whose batches need store
// lookups before they can be published. Each batch resolves in its own
// goroutine; only the newest batch publishes. It returns once the
// subscription ends and every in-flight resolution has finished.
func (e *Engine) syncResolved(
	ctx context.Context,
	stream string,
	q docstore.Query,
	seq *batchSequencer,
	fail func(error),
	resolve func([]docstore.Document) (publish func(), err error),
) {
	snaps, err := e.store.Subscribe(ctx, q)
	if err != nil {
		metrics.StreamErrors.WithLabelValues(stream).Inc()
		e.streamFailed(stream, err)
		seq.commit(seq.next(), func() { fail(err) })
		return
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	for snap := range snaps {
		n := seq.next()
		if snap.Err != nil {
			metrics.StreamErrors.WithLabelValues(stream).Inc()
			e.streamFailed(stream, snap.Err)
			seq.commit(n, func() { fail(snap.Err) })
			continue
		}

		wg.Add(1)
		go func(docs []docstore.Document) {
			defer wg.Done()
			publish, err := resolve(docs)
			if err != nil {
				return
			}
			seq.supersede(stream, n, publish)
		}(snap.Docs)
	}
}
