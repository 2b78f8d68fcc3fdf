package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocations keeps revoked session ids in process until their
// original expiry, after which they are dropped lazily.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocations(now func() time.Time) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{revoked: make(map[string]time.Time), now: now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[sessionID] = until
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.revoked[sessionID]
	if !ok {
		return false, nil
	}
	if !m.now().Before(until) {
		delete(m.revoked, sessionID)
		return false, nil
	}
	return true, nil
}
