// Package notify delivers appointment lifecycle events to the sessions of
// the users involved. Delivery is best effort: a subscriber whose buffer is
// full misses the event rather than slowing the publisher down.
package notify

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/appointment"
)

const DefaultBuffer = 16

// Event is what subscribers receive.
type Event struct {
	Type        string                  `json:"eventType"`
	Appointment appointment.Appointment `json:"appointment"`
	Timestamp   time.Time               `json:"timestamp"`
	// Recipients are the users the event is addressed to.
	Recipients []uuid.UUID `json:"-"`
}

// NewEvent addresses ev to the patient and practitioner of a.
func NewEvent(eventType string, a appointment.Appointment, at time.Time) Event {
	return Event{
		Type:        eventType,
		Appointment: a,
		Timestamp:   at,
		Recipients:  a.Recipients(),
	}
}

// Bus is the publish side used by the scheduler and the subscribe side used
// by the websocket handler.
type Bus interface {
	Subscribe(userID uuid.UUID) *Subscription
	Unsubscribe(sub *Subscription)
	Publish(ev Event) int
}

type Subscription struct {
	ID     uuid.UUID
	UserID uuid.UUID
	// C is closed once the subscription is removed.
	C <-chan Event

	ch     chan Event
	closed bool
}

// Hub is an in-process Bus keyed by user id. Safe for concurrent use.
type Hub struct {
	mu     sync.RWMutex
	users  map[uuid.UUID]map[*Subscription]struct{}
	buffer int
	log    zerolog.Logger

	dropped atomic.Int64
}

func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		users:  make(map[uuid.UUID]map[*Subscription]struct{}),
		buffer: buffer,
		log:    log.With().Str("component", "notify").Logger(),
	}
}

func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{ID: uuid.New(), UserID: userID, C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[userID] == nil {
		h.users[userID] = make(map[*Subscription]struct{})
	}
	h.users[userID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it again is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	if subs, ok := h.users[sub.UserID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.users, sub.UserID)
		}
	}
	sub.closed = true
	close(sub.ch)
}

// Publish hands ev to every live subscription of each recipient without
// blocking. It returns how many subscriptions accepted the event.
func (h *Hub) Publish(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	seen := make(map[uuid.UUID]struct{}, len(ev.Recipients))
	for _, userID := range ev.Recipients {
		if _, dup := seen[userID]; dup {
			continue
		}
		seen[userID] = struct{}{}

		for sub := range h.users[userID] {
			select {
			case sub.ch <- ev:
				delivered++
			default:
				h.dropped.Add(1)
				h.log.Warn().
					Str("user_id", userID.String()).
					Str("subscription_id", sub.ID.String()).
					Str("event_type", ev.Type).
					Msg("subscriber buffer full, event dropped")
			}
		}
	}
	return delivered
}

// Count returns the number of live subscriptions for userID.
func (h *Hub) Count(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.users {
		n += len(subs)
	}
	return n
}

func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
