package security

import (
	"errors"
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	codec, err := NewSessionTokenCodec("test-signing-secret", "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenCodec returned error: %v", err)
	}

	token, err := codec.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	userID, err := codec.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("unexpected user id: %q", userID)
	}
}

func TestSessionTokenCodecRequiresSecret(t *testing.T) {
	if _, err := NewSessionTokenCodec("", "portal-iam", time.Hour); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
	if _, err := NewSessionTokenCodec("   ", "portal-iam", time.Hour); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing for blank secret, got %v", err)
	}
}

func TestSessionTokenExpires(t *testing.T) {
	issued := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	current := issued

	codec, err := NewSessionTokenCodec("test-signing-secret", "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenCodec returned error: %v", err)
	}
	codec.WithClock(func() time.Time { return current })

	token, err := codec.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if _, err := codec.Validate(token); err != nil {
		t.Fatalf("token should be valid before expiry: %v", err)
	}

	current = issued.Add(2 * time.Hour)
	if _, err := codec.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid after expiry, got %v", err)
	}
}

func TestSessionTokenRejectsForeignSignature(t *testing.T) {
	minting, err := NewSessionTokenCodec("secret-a", "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenCodec returned error: %v", err)
	}
	verifying, err := NewSessionTokenCodec("secret-b", "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenCodec returned error: %v", err)
	}

	token, err := minting.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if _, err := verifying.Validate(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestSessionTokenRejectsGarbage(t *testing.T) {
	codec, err := NewSessionTokenCodec("test-signing-secret", "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenCodec returned error: %v", err)
	}

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Validate(token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("expected ErrTokenInvalid for %q, got %v", token, err)
		}
	}
}
