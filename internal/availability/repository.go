package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

// Repository is the persistence contract for weekly schedules.
type Repository interface {
	GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error)
	PutSchedule(ctx context.Context, s Schedule) error
}

func errScheduleNotFound(id uuid.UUID) error {
	return apperr.NotFound("no schedule for practitioner %s", id)
}

// MemoryRepository keeps schedules in process. Values are copied on the
// way in and out so callers never share rule slices with the map.
type MemoryRepository struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]Schedule
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{schedules: make(map[uuid.UUID]Schedule)}
}

func (r *MemoryRepository) GetSchedule(_ context.Context, practitionerID uuid.UUID) (Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.schedules[practitionerID]
	if !ok {
		return Schedule{}, errScheduleNotFound(practitionerID)
	}
	return s.Clone(), nil
}

func (r *MemoryRepository) PutSchedule(_ context.Context, s Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.PractitionerID] = s.Clone()
	return nil
}

// PractitionerIDs lists every practitioner with a stored schedule.
func (r *MemoryRepository) PractitionerIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.schedules))
	for id := range r.schedules {
		ids = append(ids, id)
	}
	return ids
}
