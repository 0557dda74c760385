package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/thereayou/chatsync/internal/chat"
	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/middleware"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/internal/services"
	"github.com/thereayou/chatsync/pkg/auth"
)

type memoryBlacklist struct {
	mu      sync.Mutex
	revoked map[string]struct{}
}

func (b *memoryBlacklist) Revoke(_ context.Context, token string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[token] = struct{}{}
	return nil
}

func (b *memoryBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.revoked[token]
	return ok, nil
}

type testServer struct {
	router *gin.Engine
	store  *docstore.MemoryStore
	auth   services.AuthService
}

func newTestServer(t *testing.T, opts ...docstore.MemoryOption) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := docstore.NewMemoryStore(opts...)
	log := zap.NewNop()
	sessions, err := services.NewSessions(store, chat.DefaultConfig(), chat.RoomsOptions{}, log)
	if err != nil {
		t.Fatalf("new sessions: %v", err)
	}
	authSvc := services.NewAuthService(store, sessions, auth.NewJWTManager("secret", time.Hour),
		&memoryBlacklist{revoked: make(map[string]struct{})}, log)

	authH := NewAuthHandler(authSvc, nil, log)
	userH := NewUserHandler(sessions, log)
	roomH := NewRoomHandler(sessions, authSvc, log)
	msgH := NewHTTPMessageHandler(sessions, log)

	r := gin.New()
	r.POST("/auth/register", authH.Register)
	r.POST("/auth/login", authH.Login)
	api := r.Group("/api/v1", middleware.AuthMiddleware(authSvc))
	api.POST("/auth/logout", authH.Logout)
	api.GET("/users/me", userH.GetMe)
	api.GET("/users", userH.ListUsers)
	api.GET("/rooms", roomH.GetMyRooms)
	api.GET("/rooms/:id", roomH.GetRoom)
	api.POST("/rooms/direct", roomH.CreateDirectRoom)
	api.POST("/rooms/group", roomH.CreateGroupRoom)
	api.POST("/rooms/broadcast", roomH.CreateBroadcastRoom)
	api.GET("/rooms/:id/messages", msgH.GetRoomMessages)
	api.POST("/rooms/:id/messages", msgH.SendMessage)
	api.PATCH("/rooms/:id/messages/:messageId", msgH.UpdateMessage)

	return &testServer{router: r, store: store, auth: authSvc}
}

func (s *testServer) register(t *testing.T, first, last, email string) *services.AuthResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", "", gin.H{
		"firstName": first,
		"lastName":  last,
		"email":     email,
		"password":  "long enough password",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d, body %s", email, rec.Code, rec.Body)
	}
	var resp services.AuthResponse
	decode(t, rec, &resp)
	return &resp
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
}

func TestDirectRoomIsReused(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")
	bob := s.register(t, "Bob", "Baker", "bob@example.com")

	first := s.do(t, http.MethodPost, "/api/v1/rooms/direct", ann.Token, gin.H{"userId": bob.User.ID})
	if first.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", first.Code, first.Body)
	}
	var created models.Room
	decode(t, first, &created)
	if created.ID == "" || created.Type != models.RoomTypeDirect || created.Name != "Bob Baker" {
		t.Fatalf("room = %+v", created)
	}

	again := s.do(t, http.MethodPost, "/api/v1/rooms/direct", bob.Token, gin.H{"userId": ann.User.ID})
	var reused models.Room
	decode(t, again, &reused)
	if reused.ID != created.ID {
		t.Fatalf("second call created %q, want reuse of %q", reused.ID, created.ID)
	}
	if n := s.store.Len("rooms"); n != 1 {
		t.Fatalf("rooms stored = %d, want 1", n)
	}

	list := s.do(t, http.MethodGet, "/api/v1/rooms", bob.Token, nil)
	var rooms struct {
		Rooms []models.Room `json:"rooms"`
	}
	decode(t, list, &rooms)
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].Name != "Ann Archer" {
		t.Fatalf("bob's rooms = %+v", rooms.Rooms)
	}
}

func TestDirectRoomWithSelfIsRejected(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/rooms/direct", ann.Token, gin.H{"userId": ann.User.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if n := s.store.Len("rooms"); n != 0 {
		t.Fatalf("rooms stored = %d, want 0", n)
	}
}

func TestGroupRoomNeedsName(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")
	bob := s.register(t, "Bob", "Baker", "bob@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/rooms/group", ann.Token, gin.H{"name": "", "userIds": []string{bob.User.ID}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/rooms/group", ann.Token, gin.H{"name": "Team", "userIds": []string{bob.User.ID, ann.User.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body)
	}
	var room models.Room
	decode(t, rec, &room)
	if len(room.UserIDs) != 2 || room.UserIDs[0] != ann.User.ID {
		t.Fatalf("userIds = %v, want creator first and no duplicates", room.UserIDs)
	}
	if room.RoleOf(ann.User.ID) != models.RoleAdmin || room.RoleOf(bob.User.ID) != models.RoleUser {
		t.Fatalf("roles = %v", room.UserRoles)
	}
}

func TestBroadcastNeedsValidSecondaryToken(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")
	bob := s.register(t, "Bob", "Baker", "bob@example.com")
	agent := s.register(t, "Agent", "Smith", "agent@example.com")

	rec := s.do(t, http.MethodPost, "/api/v1/rooms/broadcast", ann.Token, gin.H{"userId": bob.User.ID, "secondaryToken": "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/api/v1/rooms/broadcast", ann.Token, gin.H{"userId": bob.User.ID, "secondaryToken": agent.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body)
	}
	var room models.Room
	decode(t, rec, &room)
	if room.Type != models.RoomTypeBroadcast || !room.IsPair(ann.User.ID, bob.User.ID) {
		t.Fatalf("room = %+v", room)
	}
}

// tickingClock advances one second on every read.
func tickingClock() docstore.MemoryOption {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return docstore.WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	})
}

func TestMessagesOverHTTP(t *testing.T) {
	s := newTestServer(t, tickingClock())
	ann := s.register(t, "Ann", "Archer", "ann@example.com")
	bob := s.register(t, "Bob", "Baker", "bob@example.com")
	eve := s.register(t, "Eve", "Evans", "eve@example.com")

	var room models.Room
	decode(t, s.do(t, http.MethodPost, "/api/v1/rooms/direct", ann.Token, gin.H{"userId": bob.User.ID}), &room)
	path := "/api/v1/rooms/" + room.ID + "/messages"

	rec := s.do(t, http.MethodPost, path, ann.Token, gin.H{"payload": gin.H{"text": "hello"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("send: status %d, body %s", rec.Code, rec.Body)
	}
	if rec := s.do(t, http.MethodPost, path, eve.Token, gin.H{"payload": gin.H{"text": "intruder"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("non-member send: status %d, want 403", rec.Code)
	}

	var page struct {
		Messages []map[string]any `json:"messages"`
	}
	decode(t, s.do(t, http.MethodGet, path, bob.Token, nil), &page)
	if len(page.Messages) != 1 {
		t.Fatalf("messages = %v", page.Messages)
	}
	msg := page.Messages[0]
	author, _ := msg["author"].(map[string]any)
	if msg["text"] != "hello" || msg["type"] != "text" || author["id"] != ann.User.ID || author["firstName"] != "Ann" {
		t.Fatalf("message = %v", msg)
	}

	id, _ := msg["id"].(string)
	if rec := s.do(t, http.MethodPatch, path+"/"+id, bob.Token, gin.H{"payload": gin.H{"text": "edited"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("non-author edit: status %d, want 403", rec.Code)
	}
	rec = s.do(t, http.MethodPatch, path+"/"+id, ann.Token, gin.H{"payload": gin.H{"text": "edited"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: status %d, body %s", rec.Code, rec.Body)
	}
	var edited map[string]any
	decode(t, rec, &edited)
	before, _ := msg["updatedAt"].(float64)
	after, _ := edited["updatedAt"].(float64)
	if edited["text"] != "edited" || after <= before {
		t.Fatalf("edit response = %v, want stored text and updatedAt after %v", edited, before)
	}

	decode(t, s.do(t, http.MethodGet, path, bob.Token, nil), &page)
	if page.Messages[0]["text"] != "edited" {
		t.Fatalf("after edit = %v", page.Messages[0])
	}
}

func TestUsersExcludeSelf(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")
	s.register(t, "Bob", "Baker", "bob@example.com")
	s.register(t, "Carl", "Cooper", "carl@example.com")

	var resp struct {
		Users []models.User `json:"users"`
	}
	decode(t, s.do(t, http.MethodGet, "/api/v1/users?q=bak", ann.Token, nil), &resp)
	if len(resp.Users) != 1 || resp.Users[0].FirstName != "Bob" {
		t.Fatalf("users = %+v", resp.Users)
	}

	decode(t, s.do(t, http.MethodGet, "/api/v1/users", ann.Token, nil), &resp)
	for _, u := range resp.Users {
		if u.ID == ann.User.ID {
			t.Fatalf("directory contains the caller")
		}
	}
	if len(resp.Users) != 2 {
		t.Fatalf("users = %d, want 2", len(resp.Users))
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	ann := s.register(t, "Ann", "Archer", "ann@example.com")

	if rec := s.do(t, http.MethodGet, "/api/v1/users/me", ann.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", ann.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d, body %s", rec.Code, rec.Body)
	}
	if rec := s.do(t, http.MethodGet, "/api/v1/users/me", ann.Token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d, want 401", rec.Code)
	}
}
