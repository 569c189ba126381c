package auth

import (
	"errors"
	"testing"
	"time"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig("test-secret"))

	token, err := manager.GenerateToken("myproject")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Project != "myproject" {
		t.Errorf("expected project %q, got %q", "myproject", claims.Project)
	}
	if claims.Issuer != "memoryd" {
		t.Errorf("expected issuer memoryd, got %q", claims.Issuer)
	}
}

func TestJWTManager_EmptyProject(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig("test-secret"))

	token, err := manager.GenerateToken("")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Project != "" {
		t.Errorf("expected unscoped token, got project %q", claims.Project)
	}
}

func TestJWTManager_ExpiredToken(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig("test-secret"))
	// NewJWTManager normalizes non-positive expiry, so back-date after
	// construction to mint an already-expired token.
	manager.config.Expiry = -time.Hour

	token, err := manager.GenerateToken("myproject")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = manager.ValidateToken(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTManager_WrongSecret(t *testing.T) {
	issuer := NewJWTManager(DefaultJWTConfig("secret-a"))
	validator := NewJWTManager(DefaultJWTConfig("secret-b"))

	token, err := issuer.GenerateToken("myproject")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := validator.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestJWTManager_GarbageToken(t *testing.T) {
	manager := NewJWTManager(DefaultJWTConfig("test-secret"))

	if _, err := manager.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}
