package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestTokens_IssueAndParse(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	tokens := NewTokens("test-secret", time.Hour, clock.Now)
	userID := uuid.New()

	raw, issued, err := tokens.Issue(userID, RolePractitioner)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	parsed, err := tokens.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.UserID != userID || parsed.Role != RolePractitioner {
		t.Fatalf("unexpected session %+v", parsed)
	}
	if parsed.ID != issued.ID {
		t.Fatalf("expected session id %s, got %s", issued.ID, parsed.ID)
	}
	if !parsed.ExpiresAt.Equal(clock.t.Add(time.Hour)) {
		t.Fatalf("expected expiry %s, got %s", clock.t.Add(time.Hour), parsed.ExpiresAt)
	}
}

func TestTokens_ParseExpired(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	tokens := NewTokens("test-secret", time.Minute, clock.Now)

	raw, _, err := tokens.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = tokens.Parse(raw)
	if !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestTokens_ParseRejectsForeignSignature(t *testing.T) {
	issuer := NewTokens("secret-a", time.Hour, nil)
	verifier := NewTokens("secret-b", time.Hour, nil)

	raw, _, err := issuer.Issue(uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(raw); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := verifier.Parse("not-a-token"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for garbage, got %v", err)
	}
}

func TestTokens_IssueRejectsUnknownRole(t *testing.T) {
	tokens := NewTokens("s", time.Hour, nil)
	if _, _, err := tokens.Issue(uuid.New(), Role("superuser")); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheck(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: now}
	revocations := NewMemoryRevocations(clock.Now)
	ctx := context.Background()

	live := Session{ID: "s-1", UserID: uuid.New(), Role: RolePatient, ExpiresAt: now.Add(time.Hour)}
	if err := Check(ctx, live, revocations, now); err != nil {
		t.Fatalf("expected live session to pass, got %v", err)
	}

	atExpiry := live
	atExpiry.ExpiresAt = now
	if err := Check(ctx, atExpiry, revocations, now); !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("expected expired at the boundary, got %v", err)
	}

	if err := revocations.Revoke(ctx, live.ID, live.ExpiresAt); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := Check(ctx, live, revocations, now); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("expected revoked session to be unauthorized, got %v", err)
	}
}

func TestMemoryRevocations_ForgetsAfterExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	revocations := NewMemoryRevocations(clock.Now)
	ctx := context.Background()

	_ = revocations.Revoke(ctx, "s-1", clock.t.Add(time.Minute))
	clock.t = clock.t.Add(time.Minute)

	revoked, err := revocations.IsRevoked(ctx, "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked {
		t.Fatal("expected revocation to lapse with the session expiry")
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Fatalf("expected admin, got %q %v", r, err)
	}
	if _, err := ParseRole("root"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
