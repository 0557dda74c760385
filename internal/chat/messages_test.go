package chat

import (
	"context"
	"testing"
	"time"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

func TestSendMessageAppearsThroughSubscription(t *testing.T) {
	f := newFixture(t)
	f.gate.SignIn(identity.Identity{ID: "1"})
	room := models.Room{ID: "r1", Users: []models.User{{ID: "1", FirstName: "Ann"}, {ID: "2"}}}

	stream := f.engine.Messages(f.ctx, room)
	waitFor(t, stream.Live, hasLen[models.Message](0))

	before := time.Now().UnixMilli()
	if err := stream.Send(context.Background(), models.PartialText("hi")); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := waitFor(t, stream.Live, hasLen[models.Message](1))
	msg := msgs[0]
	if msg.Author.ID != "1" || msg.Author.FirstName != "Ann" {
		t.Fatalf("author = %+v, want sender joined from room users", msg.Author)
	}
	if msg.ID == "" {
		t.Fatalf("message id was not assigned")
	}
	if msg.CreatedAt == nil || *msg.CreatedAt < before {
		t.Fatalf("createdAt = %v, want >= %d", msg.CreatedAt, before)
	}
	if msg.Type != models.MessageTypeText || msg.Text() != "hi" {
		t.Fatalf("message = %+v, want text hi", msg)
	}
}

func TestMessagesNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.gate.SignIn(identity.Identity{ID: "1"})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		_, err := f.store.Add(context.Background(), "rooms/r1/messages", docstore.Fields{
			"type":      "text",
			"text":      text,
			"authorId":  "2",
			"createdAt": base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	msgs := waitFor(t, f.engine.Messages(f.ctx, models.Room{ID: "r1"}).Live, hasLen[models.Message](3))
	if msgs[0].Text() != "third" || msgs[2].Text() != "first" {
		t.Fatalf("order = %s, %s, %s; want newest first", msgs[0].Text(), msgs[1].Text(), msgs[2].Text())
	}
	if msgs[0].Author.ID != "2" {
		t.Fatalf("author = %+v, want stub for 2", msgs[0].Author)
	}
}

func TestUpdateMessageByNonAuthorDoesNotWrite(t *testing.T) {
	mem := docstore.NewMemoryStore()
	store := &countingStore{Store: mem}
	f := newFixtureWithStore(t, mem, store)
	f.gate.SignIn(identity.Identity{ID: "1"})

	msg := models.Message{ID: "m1", Type: models.MessageTypeText, Author: models.UserStub("2"), Payload: map[string]any{"text": "edited"}}
	if err := f.engine.UpdateMessage(context.Background(), "r1", msg); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, updates := store.counts(); updates != 0 {
		t.Fatalf("updates = %d, want 0", updates)
	}

	f.gate.SignOut()
	if err := f.engine.SendMessage(context.Background(), "r1", models.PartialText("hi")); err != nil {
		t.Fatalf("send without identity: %v", err)
	}
	if adds, _ := store.counts(); adds != 0 {
		t.Fatalf("adds = %d, want 0", adds)
	}
}

func TestUpdateMessageKeepsImmutableFields(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t)
	f.gate.SignIn(identity.Identity{ID: "1"})
	id, err := f.store.Add(context.Background(), "rooms/r1/messages", docstore.Fields{
		"type":      "text",
		"text":      "draft",
		"authorId":  "1",
		"createdAt": created,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	createdMs := int64(0)
	msg := models.Message{
		ID:        id,
		Type:      models.MessageTypeText,
		Author:    models.User{ID: "1", FirstName: "Ann"},
		CreatedAt: &createdMs,
		Payload:   map[string]any{"text": "final", "createdAt": "bogus", "id": "other"},
	}
	if err := f.engine.UpdateMessage(context.Background(), "r1", msg); err != nil {
		t.Fatalf("update: %v", err)
	}

	doc, err := f.store.Get(context.Background(), "rooms/r1/messages", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Fields["text"] != "final" {
		t.Fatalf("text = %v, want final", doc.Fields["text"])
	}
	if got, _ := doc.Fields["createdAt"].(time.Time); !got.Equal(created) {
		t.Fatalf("createdAt = %v, want unchanged %v", doc.Fields["createdAt"], created)
	}
	if _, ok := doc.Fields["author"]; ok {
		t.Fatalf("author was written")
	}
	if _, ok := doc.Fields["updatedAt"].(time.Time); !ok {
		t.Fatalf("updatedAt = %v, want a timestamp", doc.Fields["updatedAt"])
	}
}
