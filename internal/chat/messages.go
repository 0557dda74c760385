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

// MessageStream is the live, newest first message list of one room.
type MessageStream struct {
	*Live[[]models.Message]

	engine *Engine
	roomID string
}

// Messages keeps the messages of room in sync. Authors are joined against
// room.Users as given, not against the live directory.
func (e *Engine) Messages(ctx context.Context, room models.Room) *MessageStream {
	live := newLive[[]models.Message](streamMessages, []models.Message{})
	members := append([]models.User(nil), room.Users...)
	q := docstore.Query{Collection: e.cfg.messagesCollection(room.ID)}.OrderedBy("createdAt", true)

	go func() {
		defer live.close()
		watchIdentity(ctx, e.gate,
			func(runCtx context.Context, _ identity.Identity) {
				e.syncMessages(runCtx, q, members, live)
			},
			func() { live.publish([]models.Message{}, nil) },
		)
	}()

	return &MessageStream{Live: live, engine: e, roomID: room.ID}
}

func (e *Engine) syncMessages(ctx context.Context, q docstore.Query, members []models.User, live *Live[[]models.Message]) {
	snaps, err := e.store.Subscribe(ctx, q)
	if err != nil {
		metrics.StreamErrors.WithLabelValues(streamMessages).Inc()
		e.streamFailed(streamMessages, err)
		live.publish([]models.Message{}, err)
		return
	}
	for snap := range snaps {
		if snap.Err != nil {
			metrics.StreamErrors.WithLabelValues(streamMessages).Inc()
			e.streamFailed(streamMessages, snap.Err)
			live.publish([]models.Message{}, snap.Err)
			continue
		}
		messages := make([]models.Message, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			msg, err := ProjectMessage(doc, members)
			if err != nil {
				e.projectionFailed(kindMessage, err)
				continue
			}
			messages = append(messages, msg)
		}
		e.log.Debug("messages_snapshot_emitted", zap.String("collection", q.Collection), zap.Int("count", len(messages)))
		live.publish(messages, nil)
	}
}

// ListMessages is a one-shot read of the newest messages of room. A limit of
// zero or less returns all of them.
func (e *Engine) ListMessages(ctx context.Context, room models.Room, limit int) ([]models.Message, error) {
	q := docstore.Query{Collection: e.cfg.messagesCollection(room.ID), Limit: limit}.OrderedBy("createdAt", true)
	docs, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query messages of room %q: %w", room.ID, err)
	}
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		msg, err := ProjectMessage(doc, room.Users)
		if err != nil {
			e.projectionFailed(kindMessage, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// FetchMessage loads one stored message of room.
func (e *Engine) FetchMessage(ctx context.Context, room models.Room, id string) (models.Message, error) {
	doc, err := e.store.Get(ctx, e.cfg.messagesCollection(room.ID), id)
	if err != nil {
		return models.Message{}, fmt.Errorf("fetch message %q: %w", id, err)
	}
	return ProjectMessage(doc, room.Users)
}

func (s *MessageStream) Send(ctx context.Context, partial models.PartialMessage) error {
	return s.engine.SendMessage(ctx, s.roomID, partial)
}

func (s *MessageStream) Update(ctx context.Context, msg models.Message) error {
	return s.engine.UpdateMessage(ctx, s.roomID, msg)
}

// SendMessage appends a message authored by the signed-in identity. The
// visible list only changes once the store reports the write. Without an
// identity it does nothing.
func (e *Engine) SendMessage(ctx context.Context, roomID string, partial models.PartialMessage) error {
	authorID, ok := e.currentID()
	if !ok {
		return nil
	}

	fields := messagePatch(partial.Payload)
	msgType := partial.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	fields["type"] = string(msgType)
	fields["authorId"] = authorID
	fields["createdAt"] = docstore.ServerTimestamp()
	fields["updatedAt"] = docstore.ServerTimestamp()

	id, err := e.store.Add(ctx, e.cfg.messagesCollection(roomID), fields)
	if err != nil {
		return fmt.Errorf("send message to room %q: %w", roomID, err)
	}
	e.log.Debug("message_sent", zap.String("room_id", roomID), zap.String("message_id", id))
	return nil
}

// UpdateMessage writes msg back to the store. It is ignored unless the
// signed-in identity authored msg. id, author and createdAt are never
// written.
func (e *Engine) UpdateMessage(ctx context.Context, roomID string, msg models.Message) error {
	authorID, ok := e.currentID()
	if !ok || msg.ID == "" || msg.Author.ID != authorID {
		return nil
	}

	fields := messagePatch(msg.Payload)
	if msg.Type.Valid() {
		fields["type"] = string(msg.Type)
	}
	fields["authorId"] = authorID
	fields["updatedAt"] = docstore.ServerTimestamp()

	if err := e.store.Update(ctx, e.cfg.messagesCollection(roomID), msg.ID, fields); err != nil {
		return fmt.Errorf("update message %q in room %q: %w", msg.ID, roomID, err)
	}
	return nil
}

func messagePatch(payload map[string]any) docstore.Fields {
	fields := make(docstore.Fields, len(payload)+4)
	for k, v := range docstore.Fields(payload).Clone() {
		if _, reserved := reservedMessageFields[k]; reserved {
			continue
		}
		fields[k] = v
	}
	return fields
}
