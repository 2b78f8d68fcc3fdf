package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

// Store validates and serves practitioner schedules on top of a Repository.
type Store struct {
	repo Repository
	now  func() time.Time
}

func NewStore(repo Repository, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{repo: repo, now: now}
}

// GetRules fails with NotFound when the practitioner has no stored schedule.
func (s *Store) GetRules(ctx context.Context, practitionerID uuid.UUID) (Schedule, error) {
	return s.repo.GetSchedule(ctx, practitionerID)
}

// SetRules replaces the full weekly schedule.
func (s *Store) SetRules(ctx context.Context, practitionerID uuid.UUID, timezone string, rules []Rule) (Schedule, error) {
	if practitionerID == uuid.Nil {
		return Schedule{}, apperr.Validation("practitioner id is required")
	}
	if _, err := LoadLocation(timezone); err != nil {
		return Schedule{}, err
	}
	ordered, err := ValidateRules(rules)
	if err != nil {
		return Schedule{}, err
	}

	sched := Schedule{
		PractitionerID: practitionerID,
		Timezone:       timezone,
		Rules:          ordered,
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.repo.PutSchedule(ctx, sched); err != nil {
		return Schedule{}, fmt.Errorf("store schedule: %w", err)
	}
	return sched, nil
}

// IsOpenAt is false when no rule exists for the weekday or it is closed.
func (s *Store) IsOpenAt(ctx context.Context, practitionerID uuid.UUID, t time.Time) (bool, error) {
	sched, err := s.repo.GetSchedule(ctx, practitionerID)
	if err != nil {
		return false, err
	}
	return sched.IsOpenAt(t), nil
}

// Register stores the default schedule for a new practitioner. An existing
// schedule is left untouched and returned.
func (s *Store) Register(ctx context.Context, practitionerID uuid.UUID, timezone string) (Schedule, error) {
	existing, err := s.repo.GetSchedule(ctx, practitionerID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return Schedule{}, fmt.Errorf("load schedule: %w", err)
	}
	return s.SetRules(ctx, practitionerID, timezone, DefaultRules())
}
