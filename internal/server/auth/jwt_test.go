package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/pulseops/pulseguardian/internal/common"
)

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	email := "alice@example.com"

	tok, err := GenerateSessionToken(email, secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionToken error: %v", err)
	}

	got, err := EmailFromSessionToken(tok, secret)
	if err != nil {
		t.Fatalf("EmailFromSessionToken error: %v", err)
	}
	if got != email {
		t.Fatalf("email mismatch: got %q want %q", got, email)
	}
}

func TestEmailFromSessionToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := GenerateSessionToken("alice@example.com", []byte("secret"), -1*time.Second)
	if err != nil {
		t.Fatalf("GenerateSessionToken error: %v", err)
	}

	_, err = EmailFromSessionToken(tok, []byte("secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for expired token, got %v", err)
	}
}

func TestEmailFromSessionToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := GenerateSessionToken("alice@example.com", []byte("right-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateSessionToken error: %v", err)
	}

	_, err = EmailFromSessionToken(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for forged token, got %v", err)
	}
}

func TestEmailFromSessionToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := EmailFromSessionToken("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken for malformed token, got %v", err)
	}
}
