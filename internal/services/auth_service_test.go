package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/pkg/auth"
)

type fakeBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newFakeBlacklist() *fakeBlacklist {
	return &fakeBlacklist{revoked: make(map[string]time.Duration)}
}

func (b *fakeBlacklist) Revoke(_ context.Context, token string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = ttl
	return nil
}

func (b *fakeBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[token]
	return ok, nil
}

func newTestAuthService(t *testing.T) (AuthService, *docstore.MemoryStore, *fakeBlacklist) {
	t.Helper()
	store := docstore.NewMemoryStore()
	sessions, err := NewSessions(store, chat.DefaultConfig(), chat.RoomsOptions{}, nil)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	blacklist := newFakeBlacklist()
	svc := NewAuthService(store, sessions, auth.NewJWTManager("secret", time.Hour), blacklist, nil)
	return svc, store, blacklist
}

func TestRegisterCreatesUserDocument(t *testing.T) {
	svc, store, _ := newTestAuthService(t)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterRequest{FirstName: "Ann", LastName: "Archer", Email: " Ann@Example.com ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.User.ID == "" || resp.User.DisplayName() != "Ann Archer" {
		t.Fatalf("user = %+v, want Ann Archer", resp.User)
	}
	if resp.User.CreatedAt == nil || resp.User.LastSeen == nil {
		t.Fatalf("user timestamps were not stamped: %+v", resp.User)
	}
	if _, err := store.Get(ctx, "users", resp.User.ID); err != nil {
		t.Fatalf("user document: %v", err)
	}

	_, err = svc.Register(ctx, RegisterRequest{FirstName: "Ann", Email: "ann@example.com", Password: "another one"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("second register err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginAndLogout(t *testing.T) {
	svc, _, blacklist := newTestAuthService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterRequest{FirstName: "Ann", Email: "ann@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Email: "ann@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "x"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}

	login, err := svc.Login(ctx, LoginRequest{Email: "ANN@example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatalf("login user = %q, want %q", login.User.ID, reg.User.ID)
	}

	id, err := svc.ValidateToken(ctx, login.Token)
	if err != nil || id.ID != reg.User.ID || id.Email != "ann@example.com" {
		t.Fatalf("validate = %+v, %v", id, err)
	}

	if err := svc.Logout(ctx, login.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if ttl := blacklist.revoked[login.Token]; ttl <= 0 {
		t.Fatalf("revocation ttl = %v, want until expiry", ttl)
	}
	if _, err := svc.ValidateToken(ctx, login.Token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("validate after logout err = %v, want ErrTokenRevoked", err)
	}
}
