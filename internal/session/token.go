package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

type Claims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration, now func() time.Time) *Tokens {
	if now == nil {
		now = time.Now
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: now}
}

func (t *Tokens) Issue(userID uuid.UUID, role Role) (string, Session, error) {
	if !role.Valid() {
		return "", Session{}, apperr.Validation("unknown role %q", role)
	}

	now := t.now().UTC().Truncate(time.Second)
	s := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(t.ttl),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

// Parse verifies the signature and claims. An expired token yields an
// Expired error, everything else that fails verification is Unauthorized.
func (t *Tokens) Parse(raw string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, apperr.Expired("token expired")
		}
		return Session{}, apperr.Unauthorized("invalid token")
	}
	if !token.Valid {
		return Session{}, apperr.Unauthorized("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, apperr.Unauthorized("token subject is not a valid id")
	}
	if !claims.Role.Valid() {
		return Session{}, apperr.Unauthorized("token carries unknown role %q", claims.Role)
	}

	s := Session{
		ID:        claims.ID,
		UserID:    userID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}
