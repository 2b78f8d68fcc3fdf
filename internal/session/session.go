// Package session models authenticated callers. A Session is the verified
// claim the transport layer hands to the booking engine; it is usable only
// while unexpired and not revoked, and its role never changes.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RolePractitioner, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", apperr.Validation("unknown role %q", s)
	}
	return r, nil
}

// Actor is the identity a guarded operation is performed on behalf of.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Role      Role      `json:"role"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s Session) Actor() Actor {
	return Actor{ID: s.UserID, Role: s.Role}
}

// Expired reports whether now is at or past ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RevocationStore records logged-out sessions until they would have expired.
type RevocationStore interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Check enforces expiry and revocation.
func Check(ctx context.Context, s Session, revoked RevocationStore, now time.Time) error {
	if s.Expired(now) {
		return apperr.Expired("session expired at %s", s.ExpiresAt.Format(time.RFC3339))
	}
	if revoked == nil || s.ID == "" {
		return nil
	}
	isRevoked, err := revoked.IsRevoked(ctx, s.ID)
	if err != nil {
		return err
	}
	if isRevoked {
		return apperr.Unauthorized("session has been revoked")
	}
	return nil
}

type contextKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}
