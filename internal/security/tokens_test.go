package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestProvider(accessTTL, refreshTTL time.Duration) *TokenProvider {
	return NewTokenProvider([]byte("test-secret"), "nexus-pm-test", accessTTL, refreshTTL)
}

func TestIssueAccess_ValidatesImmediately(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)

	token, expiresAt, err := p.IssueAccess("alice@example.com", "MEMBER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" {
		t.Fatal("IssueAccess returned empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expiresAt should be in the future")
	}

	claims, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "alice@example.com" {
		t.Errorf("Subject = %q, want alice@example.com", claims.Subject)
	}
	if claims.Role != "MEMBER" {
		t.Errorf("Role = %q, want MEMBER", claims.Role)
	}
	if claims.Kind != KindAccess {
		t.Errorf("Kind = %q, want access", claims.Kind)
	}
}

func TestIssueRefresh_Kind(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)

	token, _, err := p.IssueRefresh("alice@example.com", "MANAGER")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	claims, err := p.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Kind != KindRefresh {
		t.Errorf("Kind = %q, want refresh", claims.Kind)
	}
}

func TestValidate_Expired(t *testing.T) {
	p := newTestProvider(-time.Minute, 24*time.Hour)

	token, _, err := p.IssueAccess("alice@example.com", "MEMBER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.Validate(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Validate expired token: got %v, want ErrTokenExpired", err)
	}
}

func TestValidate_Tampered(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)

	token, _, err := p.IssueAccess("alice@example.com", "MEMBER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("token parts = %d, want 3", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := p.Validate(tampered); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Validate tampered token: got %v, want ErrTokenMalformed", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)
	other := NewTokenProvider([]byte("other-secret"), "nexus-pm-test", time.Hour, 24*time.Hour)

	token, _, err := p.IssueAccess("alice@example.com", "MEMBER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := other.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Validate with wrong secret: got %v, want ErrTokenMalformed", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)
	if _, err := p.Validate("not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Validate garbage: got %v, want ErrTokenMalformed", err)
	}
}

func TestValidate_WrongIssuer(t *testing.T) {
	p := newTestProvider(time.Hour, 24*time.Hour)
	other := NewTokenProvider([]byte("test-secret"), "someone-else", time.Hour, 24*time.Hour)

	token, _, err := other.IssueAccess("alice@example.com", "MEMBER")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.Validate(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Validate wrong issuer: got %v, want ErrTokenMalformed", err)
	}
}
