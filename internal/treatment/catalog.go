// Package treatment knows how long each bookable treatment takes. Booking
// windows must match the treatment's duration exactly.
package treatment

import (
	"sort"
	"sync"
	"time"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

type Treatment struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Category string        `json:"category"`
}

func (t Treatment) DurationMinutes() int {
	return int(t.Duration / time.Minute)
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu         sync.RWMutex
	treatments map[string]Treatment
}

func NewCatalog(items ...Treatment) *Catalog {
	c := &Catalog{treatments: make(map[string]Treatment, len(items))}
	for _, t := range items {
		c.treatments[t.ID] = t
	}
	return c
}

// DefaultCatalog carries the treatments offered at launch.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Treatment{ID: "abhyanga", Name: "Abhyanga", Duration: 60 * time.Minute, Category: "massage"},
		Treatment{ID: "shirodhara", Name: "Shirodhara", Duration: 90 * time.Minute, Category: "therapy"},
		Treatment{ID: "panchakarma-consultation", Name: "Panchakarma Consultation", Duration: 45 * time.Minute, Category: "consultation"},
	)
}

func (c *Catalog) Get(id string) (Treatment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.treatments[id]
	if !ok {
		return Treatment{}, apperr.NotFound("treatment %q not found", id)
	}
	return t, nil
}

func (c *Catalog) Put(t Treatment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.treatments[t.ID] = t
}

func (c *Catalog) All() []Treatment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Treatment, 0, len(c.treatments))
	for _, t := range c.treatments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckWindow requires end = start + treatment duration.
func (c *Catalog) CheckWindow(id string, start, end time.Time) (Treatment, error) {
	t, err := c.Get(id)
	if err != nil {
		return Treatment{}, err
	}
	if !end.After(start) {
		return t, apperr.Validation("degenerate window: end must be after start")
	}
	if got := end.Sub(start); got != t.Duration {
		return t, apperr.Validation("%s takes %d minutes, window is %s", t.Name, t.DurationMinutes(), got)
	}
	return t, nil
}
