package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndParse(t *testing.T) {
	id := uuid.New()
	tok, err := IssueToken(id, "secret", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := ParseToken(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

func TestParseRejects(t *testing.T) {
	id := uuid.New()
	expired, _ := IssueToken(id, "secret", -time.Minute)
	wrongKey, _ := IssueToken(id, "other", time.Minute)

	for name, tok := range map[string]string{
		"expired":   expired,
		"wrong key": wrongKey,
		"garbage":   "not-a-token",
	} {
		if _, err := ParseToken(tok, "secret"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}
