package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

func errAppointmentNotFound(id uuid.UUID) error {
	return apperr.NotFound("appointment %s not found", id)
}

// MemoryRepository is an in-process Repository. Appointments are indexed by
// practitioner so conflict lookups do not scan every booking.
type MemoryRepository struct {
	mu             sync.RWMutex
	appointments   map[uuid.UUID]*Appointment
	byPractitioner map[uuid.UUID][]uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments:   make(map[uuid.UUID]*Appointment),
		byPractitioner: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, errAppointmentNotFound(id)
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListBlocking(_ context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, id := range r.byPractitioner[practitionerID] {
		a := r.appointments[id]
		if a.Status.Blocking() && a.Overlaps(from, to) {
			result = append(result, *a)
		}
	}
	sortByStart(result)
	return result, nil
}

func (r *MemoryRepository) ListByParticipant(_ context.Context, userID uuid.UUID, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.Involves(userID) {
			result = append(result, *a)
		}
	}
	sortByStart(result)

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appointments[a.ID]; exists {
		return nil, apperr.Conflict("appointment %s already exists", a.ID)
	}
	if a.Status.Blocking() {
		for _, id := range r.byPractitioner[a.PractitionerID] {
			if b := r.appointments[id]; b.Status.Blocking() && b.Overlaps(a.Start, a.End) {
				return nil, apperr.Conflict("window overlaps appointment %s", b.ID)
			}
		}
	}
	stored := a
	r.appointments[a.ID] = &stored
	r.byPractitioner[a.PractitionerID] = append(r.byPractitioner[a.PractitionerID], a.ID)

	cp := stored
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status, at time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, errAppointmentNotFound(id)
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}
	a.Status = to
	a.LastTransitionAt = at

	cp := *a
	return &cp, nil
}

func sortByStart(list []Appointment) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Start.Before(list[j].Start)
	})
}
