package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/apperr"
)

func collect(t *testing.T, f *fixture, date time.Time, minutes int) []Window {
	t.Helper()
	seq, err := f.coord.ListAvailableSlots(context.Background(), f.practitioner.ID, date, minutes)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	var out []Window
	for w := range seq {
		out = append(out, w)
	}
	return out
}

func TestListAvailableSlots(t *testing.T) {
	f := newFixture(t)

	a, err := f.book(at(10, 0))
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := f.coord.Transition(context.Background(), a.ID, appointment.EventConfirm, f.practitioner); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	slots := collect(t, f, monday, 60)

	// 09:00 fits before the booking, then every quarter hour from 11:00 to 16:00.
	if len(slots) != 22 {
		t.Fatalf("expected 22 windows, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(9, 0)) || !slots[1].Start.Equal(at(11, 0)) {
		t.Fatalf("unexpected first windows %v, %v", slots[0].Start, slots[1].Start)
	}
	if last := slots[len(slots)-1]; !last.End.Equal(at(17, 0)) {
		t.Fatalf("last window should end at closing, got %v", last.End)
	}
	for _, w := range slots {
		if w.End.Sub(w.Start) != time.Hour {
			t.Fatalf("window %v has wrong length", w)
		}
		if a.Overlaps(w.Start, w.End) {
			t.Fatalf("window %v overlaps the booking", w)
		}
	}
}

func TestListAvailableSlots_Restartable(t *testing.T) {
	f := newFixture(t)

	seq, err := f.coord.ListAvailableSlots(context.Background(), f.practitioner.ID, monday, 45)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	first, second := count(), count()
	if first == 0 || first != second {
		t.Fatalf("expected the same non-empty sequence twice, got %d and %d", first, second)
	}

	taken := 0
	for range seq {
		taken++
		if taken == 3 {
			break
		}
	}
	if taken != 3 {
		t.Fatalf("early stop failed, took %d", taken)
	}
}

func TestListAvailableSlots_ClosedDay(t *testing.T) {
	f := newFixture(t)

	if slots := collect(t, f, monday.Add(-24*time.Hour), 60); len(slots) != 0 {
		t.Fatalf("sunday is closed, got %d windows", len(slots))
	}
}

func TestListAvailableSlots_IsSnapshot(t *testing.T) {
	f := newFixture(t)

	seq, err := f.coord.ListAvailableSlots(context.Background(), f.practitioner.ID, monday, 60)
	if err != nil {
		t.Fatalf("list slots: %v", err)
	}
	before := 0
	for range seq {
		before++
	}

	if _, err := f.book(at(9, 0)); err != nil {
		t.Fatalf("book: %v", err)
	}

	after := 0
	for range seq {
		after++
	}
	if before != after {
		t.Fatalf("sequence should not observe later bookings: %d then %d", before, after)
	}
}

func TestListAvailableSlots_BadDuration(t *testing.T) {
	f := newFixture(t)

	for _, minutes := range []int{0, -15, 24*60 + 1, 200_000_000} {
		if _, err := f.coord.ListAvailableSlots(context.Background(), f.practitioner.ID, monday, minutes); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("%d minutes: expected validation error, got %v", minutes, err)
		}
	}
}

func TestListAvailableSlots_WholeDayDuration(t *testing.T) {
	f := newFixture(t)

	if got := collect(t, f, monday, 24*60); len(got) != 0 {
		t.Fatalf("a 24h window cannot fit 09:00-17:00, got %d windows", len(got))
	}
}
