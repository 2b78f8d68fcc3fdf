package scheduler

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/conflict"
)

// No window can outlast one local day.
const maxSlotMinutes = 24 * 60

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ListAvailableSlots returns the bookable windows of durationMinutes on the
// practitioner's local calendar day matching date's year, month and day.
// The schedule and bookings are read once without the lock, so the result
// is advisory; AttemptBooking re-checks. The sequence can be ranged over
// any number of times.
func (c *Coordinator) ListAvailableSlots(ctx context.Context, practitionerID uuid.UUID, date time.Time, durationMinutes int) (iter.Seq[Window], error) {
	if durationMinutes <= 0 || durationMinutes > maxSlotMinutes {
		return nil, apperr.Validation("durationMinutes must be between 1 and %d", maxSlotMinutes)
	}
	length := time.Duration(durationMinutes) * time.Minute

	sched, err := c.schedules.GetRules(ctx, practitionerID)
	if err != nil {
		return nil, err
	}

	y, m, d := date.Date()
	day := time.Date(y, m, d, 12, 0, 0, 0, sched.Location())

	from, to, open := sched.OpenWindow(day)
	if !open {
		return func(func(Window) bool) {}, nil
	}

	existing, err := c.repo.ListBlocking(ctx, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load blocking appointments: %w", err)
	}
	step := c.granularity

	return func(yield func(Window) bool) {
		for start := from; !start.Add(length).After(to); start = start.Add(step) {
			end := start.Add(length)
			if !conflict.Check(sched, start, end, existing).Admissible() {
				continue
			}
			if !yield(Window{Start: start, End: end}) {
				return
			}
		}
	}, nil
}
