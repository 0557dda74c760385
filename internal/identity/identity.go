// Package identity tracks the single signed-in identity that gates every
// chat stream.
package identity

import "sync"

// Identity is the authenticated actor.
type Identity struct {
	ID    string
	Email string
}

// Provider exposes the current identity and its changes. OnChange callbacks
// receive nil on sign-out and are invoked in order, one at a time.
type Provider interface {
	Current() *Identity
	OnChange(fn func(*Identity)) (unsubscribe func())
}

// Gate is a Provider driven by explicit sign-in and sign-out calls.
type Gate struct {
	mu        sync.Mutex
	notify    sync.Mutex
	current   *Identity
	listeners map[uint64]func(*Identity)
	next      uint64
}

func NewGate() *Gate {
	return &Gate{listeners: make(map[uint64]func(*Identity))}
}

func (g *Gate) Current() *Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil {
		return nil
	}
	id := *g.current
	return &id
}

func (g *Gate) OnChange(fn func(*Identity)) func() {
	g.mu.Lock()
	g.next++
	key := g.next
	g.listeners[key] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners, key)
			g.mu.Unlock()
		})
	}
}

// SignIn replaces the current identity. Signing in again as the same id is
// not a change.
func (g *Gate) SignIn(id Identity) {
	g.set(&id)
}

func (g *Gate) SignOut() {
	g.set(nil)
}

func (g *Gate) set(next *Identity) {
	g.notify.Lock()
	defer g.notify.Unlock()

	g.mu.Lock()
	changed := !sameID(g.current, next)
	g.current = next
	listeners := make([]func(*Identity), 0, len(g.listeners))
	for _, fn := range g.listeners {
		listeners = append(listeners, fn)
	}
	g.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		if next == nil {
			fn(nil)
			continue
		}
		id := *next
		fn(&id)
	}
}

func sameID(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

type static struct {
	id Identity
}

// Static returns a Provider that is always signed in as id.
func Static(id Identity) Provider {
	return static{id: id}
}

func (s static) Current() *Identity {
	id := s.id
	return &id
}

func (static) OnChange(func(*Identity)) func() {
	return func() {}
}
