package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanSchedule(row pgx.Row) (Schedule, error) {
	var s Schedule
	var raw []byte

	err := row.Scan(
		&s.PractitionerID,
		&s.Timezone,
		&raw,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Schedule{}, errNoRows
		}
		return Schedule{}, err
	}

	if err := json.Unmarshal(raw, &s.Rules); err != nil {
		return Schedule{}, fmt.Errorf("decode rules for %s: %w", s.PractitionerID, err)
	}
	return s, nil
}

var errNoRows = errors.New("no rows")

func (r *PgRepository) GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT practitioner_id, timezone, rules, updated_at
		FROM practitioner_schedules
		WHERE practitioner_id = $1
	`, practitionerID)

	s, err := scanSchedule(row)
	if errors.Is(err, errNoRows) {
		return Schedule{}, errScheduleNotFound(practitionerID)
	}
	return s, err
}

// PutSchedule overwrites the whole weekly schedule in a single statement.
func (r *PgRepository) PutSchedule(ctx context.Context, s Schedule) error {
	raw, err := json.Marshal(s.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO practitioner_schedules (practitioner_id, timezone, rules, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (practitioner_id) DO UPDATE
		SET timezone = EXCLUDED.timezone,
		    rules = EXCLUDED.rules,
		    updated_at = EXCLUDED.updated_at
	`, s.PractitionerID, s.Timezone, raw, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}
	return nil
}

// ListPractitionerIDs is used by the seed and simulate tools.
func (r *PgRepository) ListPractitionerIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT practitioner_id FROM practitioner_schedules
		ORDER BY practitioner_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
