package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/identity"
)

func TestSlowClientIsDisconnectedInsteadOfMissingSnapshot(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	t.Cleanup(hub.Stop)

	client := NewClient(hub, nil, nil, nil, identity.Identity{ID: "u1"})
	hub.Register(client)
	waitClients(t, hub, "u1", 1)

	for i := 0; i < cap(client.Send); i++ {
		if err := client.SendFrame(TypePing, "", nil); err != nil {
			t.Fatalf("fill queue at %d: %v", i, err)
		}
	}

	client.sendSnapshot(TypeRooms, "", []string{}, nil)

	waitClients(t, hub, "u1", 0)
	drained := 0
	for range client.Send {
		drained++
	}
	if drained != cap(client.Send) {
		t.Fatalf("drained %d frames, want %d queued before the overflow", drained, cap(client.Send))
	}
}

func waitClients(t *testing.T, hub *Hub, identityID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(identityID) != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients of %s = %d, want %d", identityID, hub.ClientCount(identityID), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
