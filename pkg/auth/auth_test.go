package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	userID, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected subject user-123, got %q", userID)
	}
}

func TestTokenExpired(t *testing.T) {
	issuer, err := NewTokenIssuer("test-signing-secret", -time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	// ttl <= 0 falls back to the default, so force expiry via a short window.
	issuer.ttl = time.Millisecond
	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenGarbageRejected(t *testing.T) {
	issuer, err := NewTokenIssuer("test-signing-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := issuer.Verify(token); err != ErrInvalidToken {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestTokenWrongSecret(t *testing.T) {
	issuer, err := NewTokenIssuer("secret-one-for-signing", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	other, err := NewTokenIssuer("secret-two-for-signing", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, err := issuer.Issue("user-123")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken across secrets, got %v", err)
	}
}

func TestTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("   ", time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPassword("correct horse", hash) {
		t.Fatal("expected password to match its hash")
	}
	if CheckPassword("wrong horse", hash) {
		t.Fatal("expected mismatch for wrong password")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := ValidatePassword("long enough"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
}

func TestNewResetKey(t *testing.T) {
	key, err := NewResetKey()
	if err != nil {
		t.Fatalf("NewResetKey: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(key))
	}
	other, err := NewResetKey()
	if err != nil {
		t.Fatalf("NewResetKey: %v", err)
	}
	if key == other {
		t.Fatal("expected distinct keys")
	}
}
