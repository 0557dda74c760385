package chat

import (
	"context"
	"sync"

	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/metrics"
)

// Live is a continuously updated value. Every published value is a complete
// snapshot; subscribers never observe a partially built one.
type Live[T any] struct {
	stream string

	mu     sync.Mutex
	value  T
	err    error
	subs   map[uint64]func(T, error)
	nextID uint64
	closed bool

	// notify serializes callbacks so subscribers see values in publish order.
	notify sync.Mutex
	done   chan struct{}
}

func newLive[T any](stream string, initial T) *Live[T] {
	return &Live[T]{
		stream: stream,
		value:  initial,
		subs:   make(map[uint64]func(T, error)),
		done:   make(chan struct{}),
	}
}

// Value returns the latest snapshot and the stream error that came with it.
func (l *Live[T]) Value() (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.err
}

// Subscribe calls fn with the current snapshot and then with every new one
// until the returned function is called or the collection is torn down.
func (l *Live[T]) Subscribe(fn func(T, error)) (unsubscribe func()) {
	l.notify.Lock()
	defer l.notify.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return func() {}
	}
	l.nextID++
	key := l.nextID
	l.subs[key] = fn
	value, err := l.value, l.err
	l.mu.Unlock()

	fn(value, err)

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, key)
			l.mu.Unlock()
		})
	}
}

// Done is closed once the collection stops syncing.
func (l *Live[T]) Done() <-chan struct{} {
	return l.done
}

func (l *Live[T]) publish(value T, err error) {
	l.notify.Lock()
	defer l.notify.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.value, l.err = value, err
	subs := make([]func(T, error), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	metrics.SnapshotsEmitted.WithLabelValues(l.stream).Inc()
	for _, fn := range subs {
		fn(value, err)
	}
}

func (l *Live[T]) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	l.subs = nil
	close(l.done)
}

// batchSequencer numbers change batches in arrival order. Only the most
// recently issued batch may publish, so a slow resolution of an older batch
// can never overwrite a newer one.
type batchSequencer struct {
	mu     sync.Mutex
	issued uint64
}

func (s *batchSequencer) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// commit runs publish if seq is still the newest batch and reports whether it
// did.
func (s *batchSequencer) commit(seq uint64, publish func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		return false
	}
	publish()
	return true
}

func (s *batchSequencer) supersede(stream string, seq uint64, publish func()) {
	if !s.commit(seq, publish) {
		metrics.BatchesSuperseded.WithLabelValues(stream).Inc()
	}
}

// watchIdentity runs start for the signed-in identity and restarts it when
// the identity changes. The previous run is cancelled and awaited before the
// next one begins; clear is called whenever nobody is signed in. It returns
// when ctx is done.
func watchIdentity(ctx context.Context, gate identity.Provider, start func(context.Context, identity.Identity), clear func()) {
	changed := make(chan struct{}, 1)
	unsubscribe := gate.OnChange(func(*identity.Identity) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var (
		cancel    context.CancelFunc
		finished  chan struct{}
		currentID string
	)
	stop := func() {
		if cancel == nil {
			return
		}
		cancel()
		<-finished
		cancel, finished, currentID = nil, nil, ""
	}
	defer stop()

	apply := func() {
		id := gate.Current()
		if id == nil {
			stop()
			clear()
			return
		}
		if cancel != nil && id.ID == currentID {
			return
		}
		stop()

		runCtx, runCancel := context.WithCancel(ctx)
		done := make(chan struct{})
		cancel, finished, currentID = runCancel, done, id.ID
		go func(id identity.Identity) {
			defer close(done)
			start(runCtx, id)
		}(*id)
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			apply()
		}
	}
}
