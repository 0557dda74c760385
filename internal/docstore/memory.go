package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and
// notifies subscribers synchronously with every write.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	subs        map[uint64]*memorySubscription
	nextSub     uint64
	now         func() time.Time
	newID       func() string
}

type memoryCollection struct {
	docs  map[string]Fields
	order []string
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithIDGenerator overrides generated document ids.
func WithIDGenerator(newID func() string) MemoryOption {
	return func(s *MemoryStore) { s.newID = newID }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		collections: make(map[string]*memoryCollection),
		subs:        make(map[uint64]*memorySubscription),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[collection]
	if !ok {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	fields, ok := c.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	return Document{ID: id, Fields: fields.Clone()}, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(collection, id, ResolveServerTimestamps(fields, s.now()))
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.put(collection, id, ResolveServerTimestamps(fields, s.now()))
	s.notifyLocked(collection)
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	current, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range ResolveServerTimestamps(fields, s.now()) {
		current[k] = v
	}
	s.notifyLocked(collection)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evaluateLocked(q), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, q Query) (<-chan Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{
		query:  q,
		signal: make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = sub
	sub.put(Snapshot{Docs: s.evaluateLocked(q)})
	s.mu.Unlock()

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.signal:
			}
			snap, ok := sub.take()
			if !ok {
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Len returns the number of documents in a collection.
func (s *MemoryStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.collections[collection]; ok {
		return len(c.docs)
	}
	return 0
}

func (s *MemoryStore) put(collection, id string, fields Fields) {
	c, ok := s.collections[collection]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Fields)}
		s.collections[collection] = c
	}
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = fields
}

func (s *MemoryStore) evaluateLocked(q Query) []Document {
	c, ok := s.collections[q.Collection]
	if !ok {
		return []Document{}
	}
	docs := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, Document{ID: id, Fields: c.docs[id].Clone()})
	}
	return q.Apply(docs)
}

func (s *MemoryStore) notifyLocked(collection string) {
	for _, sub := range s.subs {
		if sub.query.Collection != collection {
			continue
		}
		sub.put(Snapshot{Docs: s.evaluateLocked(sub.query)})
	}
}

// memorySubscription keeps only the newest undelivered snapshot; every
// snapshot is complete so a slow reader loses nothing but intermediate states.
type memorySubscription struct {
	query   Query
	mu      sync.Mutex
	pending *Snapshot
	signal  chan struct{}
}

func (m *memorySubscription) put(snap Snapshot) {
	m.mu.Lock()
	m.pending = &snap
	m.mu.Unlock()
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *memorySubscription) take() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Snapshot{}, false
	}
	snap := *m.pending
	m.pending = nil
	return snap, true
}
