package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
)

func TestListUsersFollowsDirectoryRules(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "1", "Ann", "Archer", "")
	f.addUser(t, "2", "Bob", "Baker", "")

	users, err := f.engine.ListUsers(context.Background())
	if err != nil || users != nil {
		t.Fatalf("signed out: users = %v, err = %v, want nil", users, err)
	}

	f.gate.SignIn(identity.Identity{ID: "1"})
	users, err = f.engine.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].ID != "2" {
		t.Fatalf("users = %+v, want only Bob", users)
	}
}

func TestFetchRoomMissing(t *testing.T) {
	f := newFixture(t)
	f.gate.SignIn(identity.Identity{ID: "1"})

	_, err := f.engine.FetchRoom(context.Background(), "nope")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListMessagesNewestFirstWithLimit(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := docstore.NewMemoryStore(docstore.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	f := newFixtureWithStore(t, mem, mem)
	f.addUser(t, "1", "Ann", "Archer", "")
	f.gate.SignIn(identity.Identity{ID: "1"})
	room := models.Room{ID: "r1", Users: []models.User{{ID: "1", FirstName: "Ann"}}}

	for _, text := range []string{"one", "two", "three"} {
		if err := f.engine.SendMessage(context.Background(), room.ID, models.PartialText(text)); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}

	messages, err := f.engine.ListMessages(context.Background(), room, 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 2 || messages[0].Text() != "three" || messages[1].Text() != "two" {
		t.Fatalf("messages = %+v, want three, two", messages)
	}
	if messages[0].Author.FirstName != "Ann" {
		t.Fatalf("author = %+v, want joined member", messages[0].Author)
	}

	got, err := f.engine.FetchMessage(context.Background(), room, messages[1].ID)
	if err != nil {
		t.Fatalf("fetch message: %v", err)
	}
	if got.Text() != "two" || got.Author.ID != "1" {
		t.Fatalf("fetched = %+v", got)
	}
}

func TestSharedProvisioningNamesRoomForEachCaller(t *testing.T) {
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	for id, name := range map[string]string{"1": "Ann", "2": "Bob"} {
		if err := store.Set(ctx, "users", id, docstore.Fields{"firstName": name}); err != nil {
			t.Fatalf("add user: %v", err)
		}
	}

	ann, err := NewEngine(store, identity.Static(identity.Identity{ID: "1"}), DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	bob, err := NewEngine(store, identity.Static(identity.Identity{ID: "2"}), DefaultConfig(), WithProvisioning(ann.provisioning))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	fromAnn, err := ann.CreateRoom(ctx, models.User{ID: "2", FirstName: "Bob"}, nil)
	if err != nil {
		t.Fatalf("ann create: %v", err)
	}
	fromBob, err := bob.CreateRoom(ctx, models.User{ID: "1", FirstName: "Ann"}, nil)
	if err != nil {
		t.Fatalf("bob create: %v", err)
	}
	if fromAnn.ID != fromBob.ID {
		t.Fatalf("ids = %q, %q, want one room", fromAnn.ID, fromBob.ID)
	}
	if fromAnn.Name != "Bob" || fromBob.Name != "Ann" {
		t.Fatalf("names = %q, %q, want the other member", fromAnn.Name, fromBob.Name)
	}
}
