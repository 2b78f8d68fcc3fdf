package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/notify"
)

const (
	DefaultEventChannel = "booking:events"

	relayBuffer = 256
)

type envelope struct {
	Origin     string       `json:"origin"`
	Recipients []uuid.UUID  `json:"recipients"`
	Event      notify.Event `json:"event"`
}

func encodeEnvelope(origin string, ev notify.Event) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Recipients: ev.Recipients, Event: ev})
}

func decodeEnvelope(data []byte) (string, notify.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", notify.Event{}, err
	}
	ev := env.Event
	ev.Recipients = env.Recipients
	return env.Origin, ev, nil
}

// EventRelay fans events out to every instance. Publish delivers to the
// local bus right away and queues the event for Redis; Run forwards the
// queue and replays events published by other instances locally.
type EventRelay struct {
	local   notify.Bus
	client  *redis.Client
	channel string
	origin  string
	out     chan []byte
	log     zerolog.Logger
}

func NewEventRelay(client *redis.Client, local notify.Bus, channel string, log zerolog.Logger) *EventRelay {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventRelay{
		local:   local,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		out:     make(chan []byte, relayBuffer),
		log:     log.With().Str("component", "event_relay").Logger(),
	}
}

func (r *EventRelay) Subscribe(userID uuid.UUID) *notify.Subscription {
	return r.local.Subscribe(userID)
}

func (r *EventRelay) Unsubscribe(sub *notify.Subscription) {
	r.local.Unsubscribe(sub)
}

// Publish never waits on Redis. If the outbound queue is full the event
// reaches local subscribers only.
func (r *EventRelay) Publish(ev notify.Event) int {
	delivered := r.local.Publish(ev)

	data, err := encodeEnvelope(r.origin, ev)
	if err != nil {
		r.log.Error().Err(err).Str("event_type", ev.Type).Msg("encode event")
		return delivered
	}

	select {
	case r.out <- data:
	default:
		r.log.Warn().Str("event_type", ev.Type).Msg("relay queue full, event not forwarded")
	}
	return delivered
}

// Run blocks until ctx is cancelled.
func (r *EventRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	go r.forward(ctx)

	r.log.Info().Str("channel", r.channel).Str("origin", r.origin).Msg("event relay started")

	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(msg.Payload)
		}
	}
}

func (r *EventRelay) deliver(payload string) {
	origin, ev, err := decodeEnvelope([]byte(payload))
	if err != nil {
		r.log.Warn().Err(err).Msg("malformed relayed event")
		return
	}
	if origin == r.origin {
		return
	}
	r.local.Publish(ev)
}

func (r *EventRelay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-r.out:
			if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
				r.log.Error().Err(err).Msg("forward event to redis")
			}
		}
	}
}
