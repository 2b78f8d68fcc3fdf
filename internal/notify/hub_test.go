package notify

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/appointment"
)

var (
	patientID      = uuid.New()
	practitionerID = uuid.New()
	now            = time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
)

func newAppointment() appointment.Appointment {
	start := now.Add(2 * time.Hour)
	return appointment.New(uuid.New(), patientID, practitionerID, "abhyanga", start, start.Add(time.Hour), now)
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.C:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	return Event{}
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.C:
		t.Fatalf("expected no event, got %s", ev.Type)
	default:
	}
}

func TestHub_DeliversToEverySessionOfEachRecipient(t *testing.T) {
	for _, sessions := range []int{0, 1, 3} {
		hub := NewHub(4, zerolog.Nop())

		subs := make([]*Subscription, 0, sessions)
		for i := 0; i < sessions; i++ {
			subs = append(subs, hub.Subscribe(patientID))
		}
		doctor := hub.Subscribe(practitionerID)
		bystander := hub.Subscribe(uuid.New())

		ev := NewEvent(appointment.EventAppointmentCreated, newAppointment(), now)
		if got := hub.Publish(ev); got != sessions+1 {
			t.Fatalf("%d sessions: expected %d deliveries, got %d", sessions, sessions+1, got)
		}

		for _, sub := range subs {
			if got := receive(t, sub); got.Type != appointment.EventAppointmentCreated {
				t.Fatalf("unexpected event type %s", got.Type)
			}
			assertEmpty(t, sub)
		}
		receive(t, doctor)
		assertEmpty(t, bystander)
	}
}

func TestHub_DuplicateRecipientsDeliverOnce(t *testing.T) {
	hub := NewHub(4, zerolog.Nop())
	sub := hub.Subscribe(patientID)

	ev := NewEvent(appointment.EventAppointmentCancelled, newAppointment(), now)
	ev.Recipients = []uuid.UUID{patientID, patientID}
	hub.Publish(ev)

	receive(t, sub)
	assertEmpty(t, sub)
}

func TestHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub(4, zerolog.Nop())
	sub := hub.Subscribe(patientID)
	other := hub.Subscribe(patientID)

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	hub.Unsubscribe(nil)

	if _, ok := <-sub.C; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	if hub.Count(patientID) != 1 {
		t.Fatalf("expected 1 remaining session, got %d", hub.Count(patientID))
	}

	hub.Publish(NewEvent(appointment.EventAppointmentConfirmed, newAppointment(), now))
	receive(t, other)

	hub.Unsubscribe(other)
	if hub.Total() != 0 {
		t.Fatalf("expected no subscriptions, got %d", hub.Total())
	}
}

func TestHub_FullBufferDropsWithoutBlocking(t *testing.T) {
	hub := NewHub(1, zerolog.Nop())
	slow := hub.Subscribe(patientID)
	fast := hub.Subscribe(practitionerID)

	a := newAppointment()
	hub.Publish(NewEvent(appointment.EventAppointmentCreated, a, now))
	<-fast.C

	done := make(chan struct{})
	go func() {
		hub.Publish(NewEvent(appointment.EventAppointmentConfirmed, a, now))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	if hub.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", hub.Dropped())
	}
	if got := receive(t, fast); got.Type != appointment.EventAppointmentConfirmed {
		t.Fatalf("fast subscriber expected confirmation, got %s", got.Type)
	}
	if got := receive(t, slow); got.Type != appointment.EventAppointmentCreated {
		t.Fatalf("slow subscriber should keep the first event, got %s", got.Type)
	}
}

func TestHub_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub(2, zerolog.Nop())
	a := newAppointment()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		sub := hub.Subscribe(patientID)
		go func() {
			defer wg.Done()
			hub.Publish(NewEvent(appointment.EventAppointmentCreated, a, now))
		}()
		go func() {
			defer wg.Done()
			hub.Unsubscribe(sub)
		}()
	}
	wg.Wait()

	if hub.Count(patientID) != 0 {
		t.Fatalf("expected all sessions gone, got %d", hub.Count(patientID))
	}
}

func TestEvent_WireShape(t *testing.T) {
	ev := NewEvent(appointment.EventAppointmentCreated, newAppointment(), now)

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"eventType", "appointment", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing %q in %s", key, raw)
		}
	}
	if _, ok := fields["Recipients"]; ok {
		t.Error("recipients must not be sent to clients")
	}
}
