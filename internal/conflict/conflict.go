// Package conflict decides whether a proposed booking window is admissible
// for a practitioner. Check is a pure function of its inputs, so it can be
// called speculatively (slot listing) and again inside the practitioner's
// critical section before a commit.
package conflict

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/availability"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDegenerateWindow Reason = "degenerate_window"
	ReasonOutsideOpenHours Reason = "outside_open_hours"
	ReasonOverlap          Reason = "overlaps_booking"
)

// Verdict is either Admissible or a rejection carrying its Reason.
type Verdict struct {
	Reason Reason
	// ConflictingID is set for ReasonOverlap.
	ConflictingID uuid.UUID
}

func (v Verdict) Admissible() bool {
	return v.Reason == ReasonNone
}

// Err maps a rejection onto the error taxonomy; nil when admissible.
func (v Verdict) Err() error {
	switch v.Reason {
	case ReasonNone:
		return nil
	case ReasonDegenerateWindow:
		return apperr.Validation("degenerate window: end must be after start")
	case ReasonOutsideOpenHours:
		return apperr.Conflict("window is outside the practitioner's open hours")
	case ReasonOverlap:
		return apperr.Conflict("window overlaps appointment %s", v.ConflictingID)
	}
	return apperr.Conflict("window rejected: %s", v.Reason)
}

// Check runs the admissibility rules in order: degenerate window, open
// hours containment, overlap with requested/confirmed bookings. existing
// may contain appointments of any status; non-blocking ones are ignored.
func Check(sched availability.Schedule, start, end time.Time, existing []appointment.Appointment) Verdict {
	if !end.After(start) {
		return Verdict{Reason: ReasonDegenerateWindow}
	}
	if !sched.Contains(start, end) {
		return Verdict{Reason: ReasonOutsideOpenHours}
	}
	for _, a := range existing {
		if a.PractitionerID != sched.PractitionerID || !a.Status.Blocking() {
			continue
		}
		if a.Overlaps(start, end) {
			return Verdict{Reason: ReasonOverlap, ConflictingID: a.ID}
		}
	}
	return Verdict{}
}
