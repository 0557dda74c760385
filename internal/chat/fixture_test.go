package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
)

const waitTimeout = 2 * time.Second

type fixture struct {
	ctx    context.Context
	store  *docstore.MemoryStore
	gate   *identity.Gate
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemoryStore()
	return newFixtureWithStore(t, store, store)
}

func newFixtureWithStore(t *testing.T, mem *docstore.MemoryStore, store docstore.Store) *fixture {
	t.Helper()
	gate := identity.NewGate()
	engine, err := NewEngine(store, gate, DefaultConfig())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return &fixture{ctx: ctx, store: mem, gate: gate, engine: engine}
}

func (f *fixture) addUser(t *testing.T, id, first, last, image string) {
	t.Helper()
	err := f.store.Set(context.Background(), "users", id, docstore.Fields{
		"firstName": first,
		"lastName":  last,
		"imageUrl":  image,
	})
	if err != nil {
		t.Fatalf("add user %s: %v", id, err)
	}
}

func (f *fixture) addRoom(t *testing.T, fields docstore.Fields) string {
	t.Helper()
	id, err := f.store.Add(context.Background(), "rooms", fields)
	if err != nil {
		t.Fatalf("add room: %v", err)
	}
	return id
}

// waitFor blocks until live publishes a value accepted by cond.
func waitFor[T any](t *testing.T, live *Live[T], cond func(T, error) bool) T {
	t.Helper()
	matched := make(chan T, 1)
	unsubscribe := live.Subscribe(func(v T, err error) {
		if cond(v, err) {
			select {
			case matched <- v:
			default:
			}
		}
	})
	defer unsubscribe()

	select {
	case v := <-matched:
		return v
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for %s snapshot", live.stream)
	}
	var zero T
	return zero
}

func hasLen[T any](n int) func([]T, error) bool {
	return func(v []T, err error) bool {
		return err == nil && len(v) == n
	}
}

// countingStore records writes that reach the wrapped store.
type countingStore struct {
	docstore.Store

	mu      sync.Mutex
	updates int
	adds    int
}

func (s *countingStore) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	s.mu.Lock()
	s.adds++
	s.mu.Unlock()
	return s.Store.Add(ctx, collection, fields)
}

func (s *countingStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return s.Store.Update(ctx, collection, id, fields)
}

func (s *countingStore) counts() (adds, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds, s.updates
}
