package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// Blocking statuses hold their interval against other bookings.
func (s Status) Blocking() bool {
	return s == StatusRequested || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

// Notification event types, one per lifecycle step.
const (
	EventAppointmentCreated   = "AppointmentCreated"
	EventAppointmentConfirmed = "AppointmentConfirmed"
	EventAppointmentCancelled = "AppointmentCancelled"
	EventAppointmentCompleted = "AppointmentCompleted"
	EventAppointmentNoShow    = "AppointmentNoShow"
)

type Appointment struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patientId"`
	PractitionerID   uuid.UUID `json:"practitionerId"`
	TreatmentID      string    `json:"treatmentId"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	LastTransitionAt time.Time `json:"lastTransitionAt"`
}

// Overlaps uses half-open intervals: touching windows do not overlap.
func (a Appointment) Overlaps(start, end time.Time) bool {
	return a.Start.Before(end) && start.Before(a.End)
}

func (a Appointment) Involves(userID uuid.UUID) bool {
	return a.PatientID == userID || a.PractitionerID == userID
}

// Recipients are the users told about changes to a.
func (a Appointment) Recipients() []uuid.UUID {
	if a.PatientID == a.PractitionerID {
		return []uuid.UUID{a.PatientID}
	}
	return []uuid.UUID{a.PatientID, a.PractitionerID}
}
