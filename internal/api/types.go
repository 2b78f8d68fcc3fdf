package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/scheduler"
)

type BookingRequestBody struct {
	PatientID      string    `json:"patientId,omitempty"`
	PractitionerID string    `json:"practitionerId"`
	TreatmentID    string    `json:"treatmentId"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

type TransitionRequest struct {
	Event string `json:"event"`
}

type RegisterPractitionerRequest struct {
	Timezone string `json:"timezone"`
}

type UpdateAvailabilityRequest struct {
	Timezone string              `json:"timezone"`
	Rules    []availability.Rule `json:"rules"`
}

type SlotsResponse struct {
	PractitionerID  uuid.UUID          `json:"practitionerId"`
	Date            string             `json:"date"`
	DurationMinutes int                `json:"durationMinutes"`
	Slots           []scheduler.Window `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
