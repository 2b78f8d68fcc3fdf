package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/session"
)

type Event string

const (
	EventConfirm  Event = "confirm"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
	EventNoShow   Event = "no_show"
)

var eventAliases = map[string]Event{
	"confirm":             EventConfirm,
	"practitionerconfirm": EventConfirm,
	"cancel":              EventCancel,
	"complete":            EventComplete,
	"no_show":             EventNoShow,
	"noshow":              EventNoShow,
	"marknoshow":          EventNoShow,
}

func ParseEvent(s string) (Event, error) {
	ev, ok := eventAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", apperr.Validation("unknown event %q", s)
	}
	return ev, nil
}

type guard func(a Appointment, actor session.Actor, now time.Time) error

type transition struct {
	from   Status
	event  Event
	to     Status
	notify string
	actor  guard
	timing guard
}

var transitions = []transition{
	{StatusRequested, EventConfirm, StatusConfirmed, EventAppointmentConfirmed, owningPractitioner, nil},
	{StatusRequested, EventCancel, StatusCancelled, EventAppointmentCancelled, participant, nil},
	{StatusConfirmed, EventCancel, StatusCancelled, EventAppointmentCancelled, participant, nil},
	{StatusConfirmed, EventComplete, StatusCompleted, EventAppointmentCompleted, owningPractitioner, afterEnd},
	{StatusConfirmed, EventNoShow, StatusNoShow, EventAppointmentNoShow, owningPractitioner, afterStart},
}

func owningPractitioner(a Appointment, actor session.Actor, _ time.Time) error {
	if actor.Role != session.RolePractitioner || actor.ID != a.PractitionerID {
		return apperr.Unauthorized("only the appointment's practitioner may do this")
	}
	return nil
}

func participant(a Appointment, actor session.Actor, _ time.Time) error {
	switch {
	case actor.Role == session.RolePatient && actor.ID == a.PatientID:
		return nil
	case actor.Role == session.RolePractitioner && actor.ID == a.PractitionerID:
		return nil
	}
	return apperr.Unauthorized("only the appointment's patient or practitioner may do this")
}

func afterEnd(a Appointment, _ session.Actor, now time.Time) error {
	if now.Before(a.End) {
		return apperr.InvalidTransition("appointment cannot be completed before it ends at %s", a.End.Format(time.RFC3339))
	}
	return nil
}

func afterStart(a Appointment, _ session.Actor, now time.Time) error {
	if now.Before(a.Start) {
		return apperr.InvalidTransition("no-show cannot be recorded before the start at %s", a.Start.Format(time.RFC3339))
	}
	return nil
}

// New builds a freshly requested appointment. Admissibility is the
// caller's responsibility.
func New(id, patientID, practitionerID uuid.UUID, treatmentID string, start, end, now time.Time) Appointment {
	return Appointment{
		ID:               id,
		PatientID:        patientID,
		PractitionerID:   practitionerID,
		TreatmentID:      treatmentID,
		Start:            start,
		End:              end,
		Status:           StatusRequested,
		CreatedAt:        now,
		LastTransitionAt: now,
	}
}

// Apply runs ev against a and returns the updated appointment together
// with the notification type to emit. a itself is not modified.
func Apply(a Appointment, ev Event, actor session.Actor, now time.Time) (Appointment, string, error) {
	var tr *transition
	for i := range transitions {
		if transitions[i].from == a.Status && transitions[i].event == ev {
			tr = &transitions[i]
			break
		}
	}
	if tr == nil {
		return a, "", apperr.InvalidTransition("cannot %s an appointment that is %s", ev, a.Status)
	}

	if err := tr.actor(a, actor, now); err != nil {
		return a, "", err
	}
	if tr.timing != nil {
		if err := tr.timing(a, actor, now); err != nil {
			return a, "", err
		}
	}

	next := a
	next.Status = tr.to
	next.LastTransitionAt = now
	return next, tr.notify, nil
}
