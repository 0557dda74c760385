package auth

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.Generate("user-1", "ann@example.com")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "ann@example.com" {
		t.Fatalf("claims = %+v, want user-1 ann@example.com", claims)
	}

	exp, err := m.Expiry(token)
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	if d := time.Until(exp); d <= 0 || d > time.Hour {
		t.Fatalf("expiry in %v, want within an hour", d)
	}
}

func TestVerifyRejectsForeignAndExpiredTokens(t *testing.T) {
	token, _ := NewJWTManager("other", time.Hour).Generate("user-1", "")
	if _, err := NewJWTManager("secret", time.Hour).Verify(token); err == nil {
		t.Fatalf("token signed with another key was accepted")
	}

	expired, _ := NewJWTManager("secret", -time.Minute).Generate("user-1", "")
	if _, err := NewJWTManager("secret", time.Hour).Verify(expired); err == nil {
		t.Fatalf("expired token was accepted")
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	if got, err := ExtractToken(r); err != nil || got != "abc" {
		t.Fatalf("query token = %q, %v", got, err)
	}

	r = httptest.NewRequest("GET", "/api/v1/rooms", nil)
	r.Header.Set("Authorization", "bearer xyz")
	if got, err := ExtractToken(r); err != nil || got != "xyz" {
		t.Fatalf("header token = %q, %v", got, err)
	}

	r = httptest.NewRequest("GET", "/api/v1/rooms", nil)
	r.Header.Set("Authorization", "Basic xyz")
	if _, err := ExtractTokenFromHeader(r); err == nil {
		t.Fatalf("basic auth accepted as bearer token")
	}
}
