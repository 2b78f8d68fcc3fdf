package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations shares logged-out session ids between instances. Keys expire
// when the session would have, so the set never outgrows live sessions.
type Revocations struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocations(client *redis.Client, now func() time.Time) *Revocations {
	if now == nil {
		now = time.Now
	}
	return &Revocations{client: client, now: now}
}

func revocationKey(sessionID string) string {
	return "session:revoked:" + sessionID
}

func (r *Revocations) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revocationKey(sessionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return n > 0, nil
}
