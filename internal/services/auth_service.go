package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/chatsync/internal/docstore"
	"github.com/thereayou/chatsync/internal/identity"
	"github.com/thereayou/chatsync/internal/models"
	"github.com/thereayou/chatsync/pkg/auth"
)

const credentialsCollection = "credentials"

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token is revoked")
)

type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Logout(ctx context.Context, token string) error
	ValidateToken(ctx context.Context, token string) (*identity.Identity, error)
}

type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	ImageURL  string `json:"imageUrl" binding:"omitempty,url"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User           models.User `json:"user"`
	Token          string      `json:"token"`
	TokenExpiresAt time.Time   `json:"tokenExpiresAt"`
}

type authService struct {
	store     docstore.Store
	sessions  *Sessions
	jwt       *auth.JWTManager
	blacklist TokenBlacklist
	log       *zap.Logger
}

// NewAuthService хранит учетные данные в хранилище документов по email,
// рядом с документами пользователей, которые читает движок.
func NewAuthService(store docstore.Store, sessions *Sessions, jwt *auth.JWTManager, blacklist TokenBlacklist, log *zap.Logger) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{store: store, sessions: sessions, jwt: jwt, blacklist: blacklist, log: log}
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	_, err := s.store.Get(ctx, credentialsCollection, email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, docstore.ErrNotFound):
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id := identity.Identity{ID: uuid.NewString(), Email: email}
	err = s.store.Set(ctx, credentialsCollection, email, docstore.Fields{
		"userId":       id.ID,
		"passwordHash": string(hash),
		"createdAt":    docstore.ServerTimestamp(),
	})
	if err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}

	engine, err := s.sessions.ForIdentity(id)
	if err != nil {
		return nil, err
	}
	user := models.User{
		ID:        id.ID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		ImageURL:  req.ImageURL,
		Role:      models.RoleUser,
	}
	if err := engine.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info("user_registered", zap.String("user_id", id.ID))
	return s.issue(ctx, id)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	doc, err := s.store.Get(ctx, credentialsCollection, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	hash, _ := doc.Fields["passwordHash"].(string)
	userID, _ := doc.Fields["userId"].(string)
	if userID == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, identity.Identity{ID: userID, Email: email})
}

// Logout ставит токен в черный список до истечения
func (s *authService) Logout(ctx context.Context, token string) error {
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return ErrInvalidCredentials
	}
	return s.blacklist.Revoke(ctx, token, time.Until(exp))
}

func (s *authService) ValidateToken(ctx context.Context, token string) (*identity.Identity, error) {
	revoked, err := s.blacklist.IsRevoked(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	return &identity.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

func (s *authService) issue(ctx context.Context, id identity.Identity) (*AuthResponse, error) {
	token, err := s.jwt.Generate(id.ID, id.Email)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	exp, err := s.jwt.Expiry(token)
	if err != nil {
		return nil, err
	}

	engine, err := s.sessions.ForIdentity(id)
	if err != nil {
		return nil, err
	}
	user, err := engine.FetchUser(ctx, id.ID)
	if errors.Is(err, docstore.ErrNotFound) {
		user = models.UserStub(id.ID)
	} else if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Token: token, TokenExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
