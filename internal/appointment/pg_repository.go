package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const (
	sqlStateUniqueViolation    = "23505"
	sqlStateExclusionViolation = "23P01"
)

const appointmentColumns = `id, patient_id, practitioner_id, treatment_id, start_time, end_time, status, created_at, last_transition_at`

var errNoRows = errors.New("no rows")

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.TreatmentID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.CreatedAt,
		&a.LastTransitionAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNoRows
		}
		return nil, err
	}

	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)

	a, err := scanAppointment(row)
	if errors.Is(err, errNoRows) {
		return nil, errAppointmentNotFound(id)
	}
	return a, err
}

func (r *PgRepository) ListBlocking(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND status IN ('requested', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list blocking appointments: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) ListByParticipant(ctx context.Context, userID uuid.UUID, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 OR practitioner_id = $1
		ORDER BY start_time
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list appointments by participant: %w", err)
	}
	return scanAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.PractitionerID, a.TreatmentID, a.Start, a.End, a.Status, a.CreatedAt, a.LastTransitionAt)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, insertError(a, err)
	}
	return created, nil
}

// insertError maps constraint violations of the appointments table onto
// the error taxonomy. 23P01 comes from appointments_no_overlap.
func insertError(a Appointment, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateExclusionViolation:
			return apperr.Conflict("window overlaps another booking of practitioner %s", a.PractitionerID)
		case sqlStateUniqueViolation:
			return apperr.Conflict("appointment %s already exists", a.ID)
		}
	}
	return fmt.Errorf("insert appointment: %w", err)
}

// UpdateStatus only applies when the stored status still equals from.
func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    last_transition_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from, at)

	a, err := scanAppointment(row)
	if errors.Is(err, errNoRows) {
		if _, getErr := r.GetAppointment(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStatusChanged
	}
	return a, err
}
