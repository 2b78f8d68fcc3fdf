package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStatusChanged is returned by UpdateStatus when the stored status no
// longer matches the expected one.
var ErrStatusChanged = errors.New("appointment status changed concurrently")

// Repository contains all storage interactions needed by the coordinator.
type Repository interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks: requested/confirmed appointments of one
	// practitioner overlapping [from, to).
	ListBlocking(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error)

	ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]Appointment, error)

	// CreateAppointment refuses (apperr.Conflict) a blocking appointment
	// overlapping another blocking one of the same practitioner, even when
	// the caller's lock was lost before the write.
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error)
}
