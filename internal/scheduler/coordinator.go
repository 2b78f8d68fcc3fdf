// Package scheduler books and transitions appointments. Every write for a
// practitioner happens inside that practitioner's critical section: state is
// re-read, checked, written and announced before the section is released.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/appointment"
	"github.com/hackgods/practitioner-booking/internal/apperr"
	"github.com/hackgods/practitioner-booking/internal/availability"
	"github.com/hackgods/practitioner-booking/internal/conflict"
	"github.com/hackgods/practitioner-booking/internal/notify"
	"github.com/hackgods/practitioner-booking/internal/session"
	"github.com/hackgods/practitioner-booking/internal/treatment"
)

const (
	DefaultGranularity = 15 * time.Minute
	DefaultTimezone    = "Asia/Kolkata"

	defaultListLimit = 20
	maxListLimit     = 100
)

type BookingRequest struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	TreatmentID    string
	Start          time.Time
	End            time.Time
}

type Options struct {
	Now             func() time.Time
	Granularity     time.Duration
	DefaultTimezone string
	Logger          zerolog.Logger
}

type Coordinator struct {
	schedules  *availability.Store
	repo       appointment.Repository
	treatments *treatment.Catalog
	locker     Locker
	bus        notify.Bus

	now         func() time.Time
	granularity time.Duration
	defaultTZ   string
	log         zerolog.Logger
}

func NewCoordinator(
	schedules *availability.Store,
	repo appointment.Repository,
	treatments *treatment.Catalog,
	locker Locker,
	bus notify.Bus,
	opts Options,
) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Granularity <= 0 {
		opts.Granularity = DefaultGranularity
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = DefaultTimezone
	}
	return &Coordinator{
		schedules:   schedules,
		repo:        repo,
		treatments:  treatments,
		locker:      locker,
		bus:         bus,
		now:         opts.Now,
		granularity: opts.Granularity,
		defaultTZ:   opts.DefaultTimezone,
		log:         opts.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// AttemptBooking creates a Requested appointment if the window is admissible
// at the moment the practitioner's section is held. Concurrent attempts on
// overlapping windows of one practitioner succeed at most once.
func (c *Coordinator) AttemptBooking(ctx context.Context, req BookingRequest) (appointment.Appointment, error) {
	if req.PatientID == uuid.Nil || req.PractitionerID == uuid.Nil {
		return appointment.Appointment{}, apperr.Validation("patient and practitioner are required")
	}
	if !req.End.After(req.Start) {
		return appointment.Appointment{}, apperr.Validation("degenerate window: end must be after start")
	}
	if _, err := c.treatments.CheckWindow(req.TreatmentID, req.Start, req.End); err != nil {
		return appointment.Appointment{}, err
	}

	var created appointment.Appointment

	err := c.locker.WithPractitionerLock(ctx, req.PractitionerID, func(lockCtx context.Context) error {
		sched, err := c.schedules.GetRules(lockCtx, req.PractitionerID)
		if err != nil {
			return err
		}
		existing, err := c.repo.ListBlocking(lockCtx, req.PractitionerID, req.Start, req.End)
		if err != nil {
			return fmt.Errorf("load blocking appointments: %w", err)
		}

		verdict := conflict.Check(sched, req.Start, req.End, existing)
		if !verdict.Admissible() {
			c.log.Debug().
				Str("practitioner_id", req.PractitionerID.String()).
				Str("reason", string(verdict.Reason)).
				Msg("booking rejected")
			return verdict.Err()
		}

		now := c.now().UTC()
		appt := appointment.New(uuid.New(), req.PatientID, req.PractitionerID, req.TreatmentID, req.Start.UTC(), req.End.UTC(), now)
		stored, err := c.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = *stored

		c.bus.Publish(notify.NewEvent(appointment.EventAppointmentCreated, created, now))
		return nil
	})
	if err != nil {
		return appointment.Appointment{}, err
	}

	c.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("practitioner_id", created.PractitionerID.String()).
		Time("start", created.Start).
		Msg("appointment requested")

	return created, nil
}

// Transition applies ev on behalf of actor. A repeated terminal event fails
// with InvalidTransition and leaves the appointment untouched.
func (c *Coordinator) Transition(ctx context.Context, appointmentID uuid.UUID, ev appointment.Event, actor session.Actor) (appointment.Appointment, error) {
	current, err := c.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return appointment.Appointment{}, err
	}

	var updated appointment.Appointment

	err = c.locker.WithPractitionerLock(ctx, current.PractitionerID, func(lockCtx context.Context) error {
		fresh, err := c.repo.GetAppointment(lockCtx, appointmentID)
		if err != nil {
			return err
		}

		next, eventType, err := appointment.Apply(*fresh, ev, actor, c.now().UTC())
		if err != nil {
			return err
		}

		stored, err := c.repo.UpdateStatus(lockCtx, fresh.ID, fresh.Status, next.Status, next.LastTransitionAt)
		if err != nil {
			if errors.Is(err, appointment.ErrStatusChanged) {
				return apperr.Conflict("appointment %s changed concurrently", fresh.ID)
			}
			return fmt.Errorf("update appointment status: %w", err)
		}
		updated = *stored

		c.bus.Publish(notify.NewEvent(eventType, updated, next.LastTransitionAt))
		return nil
	})
	if err != nil {
		return appointment.Appointment{}, err
	}

	c.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("event", string(ev)).
		Str("status", string(updated.Status)).
		Str("actor_id", actor.ID.String()).
		Msg("appointment transitioned")

	return updated, nil
}

// RegisterPractitioner stores the default weekly schedule unless one exists.
func (c *Coordinator) RegisterPractitioner(ctx context.Context, practitionerID uuid.UUID, timezone string) (availability.Schedule, error) {
	if timezone == "" {
		timezone = c.defaultTZ
	}
	return c.schedules.Register(ctx, practitionerID, timezone)
}

// UpdateAvailability replaces a practitioner's rules. Only that practitioner
// may do this. An empty timezone keeps the stored one.
func (c *Coordinator) UpdateAvailability(ctx context.Context, actor session.Actor, practitionerID uuid.UUID, timezone string, rules []availability.Rule) (availability.Schedule, error) {
	if actor.Role != session.RolePractitioner || actor.ID != practitionerID {
		return availability.Schedule{}, apperr.Unauthorized("only the practitioner may change their availability")
	}

	var sched availability.Schedule

	err := c.locker.WithPractitionerLock(ctx, practitionerID, func(lockCtx context.Context) error {
		tz := timezone
		if tz == "" {
			existing, err := c.schedules.GetRules(lockCtx, practitionerID)
			switch {
			case err == nil:
				tz = existing.Timezone
			case errors.Is(err, apperr.ErrNotFound):
				tz = c.defaultTZ
			default:
				return err
			}
		}

		var err error
		sched, err = c.schedules.SetRules(lockCtx, practitionerID, tz, rules)
		return err
	})
	if err != nil {
		return availability.Schedule{}, err
	}
	return sched, nil
}

func (c *Coordinator) GetSchedule(ctx context.Context, practitionerID uuid.UUID) (availability.Schedule, error) {
	return c.schedules.GetRules(ctx, practitionerID)
}

func (c *Coordinator) GetAppointment(ctx context.Context, actor session.Actor, id uuid.UUID) (appointment.Appointment, error) {
	a, err := c.repo.GetAppointment(ctx, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if actor.Role != session.RoleAdmin && !a.Involves(actor.ID) {
		return appointment.Appointment{}, apperr.Unauthorized("appointment %s is not visible to this user", id)
	}
	return *a, nil
}

// ListAppointments lists appointments where userID is patient or practitioner.
// uuid.Nil means the actor; only admins may list someone else's.
func (c *Coordinator) ListAppointments(ctx context.Context, actor session.Actor, userID uuid.UUID, limit int) ([]appointment.Appointment, error) {
	if userID == uuid.Nil {
		userID = actor.ID
	}
	if userID != actor.ID && actor.Role != session.RoleAdmin {
		return nil, apperr.Unauthorized("cannot list appointments of another user")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	list, err := c.repo.ListByParticipant(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}
