package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker serialises the check-and-write path per practitioner. fn runs with
// the section held; attempts for different practitioners do not contend.
type Locker interface {
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker is an in-process Locker. Each practitioner owns a one-slot
// token channel; holding the token is holding the section.
type LocalLocker struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{tokens: make(map[uuid.UUID]chan struct{})}
}

func (l *LocalLocker) token(practitionerID uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	tok, ok := l.tokens[practitionerID]
	if !ok {
		tok = make(chan struct{}, 1)
		tok <- struct{}{}
		l.tokens[practitionerID] = tok
	}
	return tok
}

// WithPractitionerLock waits for the section or for ctx to end. A caller that
// gives up while waiting never runs fn.
func (l *LocalLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	tok := l.token(practitionerID)

	select {
	case <-tok:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { tok <- struct{}{} }()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
