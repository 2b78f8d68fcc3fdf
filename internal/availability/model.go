package availability

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

// Weekday numbers days Monday=1 through Sunday=7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, apperr.Validation("unknown weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseWeekday accepts full or three-letter english names, any case.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i := Monday; i <= Sunday; i++ {
		name := weekdayNames[i]
		if s == name || s == name[:3] {
			return i, nil
		}
	}
	return 0, apperr.Validation("unknown weekday %q", s)
}

// WeekdayOf reports the weekday of t in t's own location.
func WeekdayOf(t time.Time) Weekday {
	wd := t.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// TimeOfDay is a wall-clock offset in minutes from local midnight.
// EndOfDay (24:00) is allowed as a rule end.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, apperr.Validation("invalid time of day %q, want HH:MM", s)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, apperr.Validation("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= EndOfDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) seconds() int {
	return int(t) * 60
}

type Rule struct {
	Weekday Weekday   `json:"weekday"`
	Start   TimeOfDay `json:"start"`
	End     TimeOfDay `json:"end"`
	Open    bool      `json:"open"`
}

type Schedule struct {
	PractitionerID uuid.UUID `json:"practitionerId"`
	Timezone       string    `json:"timezone"`
	Rules          []Rule    `json:"rules"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DefaultRules is the schedule a practitioner gets at registration:
// Monday to Saturday 09:00-17:00, Sunday closed.
func DefaultRules() []Rule {
	rules := make([]Rule, 0, 7)
	for d := Monday; d <= Saturday; d++ {
		rules = append(rules, Rule{Weekday: d, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(17, 0), Open: true})
	}
	return append(rules, Rule{Weekday: Sunday, Open: false})
}

// ValidateRules checks the per-weekday invariants and returns a copy
// ordered Monday..Sunday.
func ValidateRules(rules []Rule) ([]Rule, error) {
	seen := make(map[Weekday]struct{}, len(rules))
	out := make([]Rule, 0, len(rules))

	for _, r := range rules {
		if !r.Weekday.Valid() {
			return nil, apperr.Validation("unknown weekday %d", int(r.Weekday))
		}
		if _, dup := seen[r.Weekday]; dup {
			return nil, apperr.Validation("duplicate rule for %s", r.Weekday)
		}
		seen[r.Weekday] = struct{}{}

		if !r.Start.Valid() || !r.End.Valid() {
			return nil, apperr.Validation("%s: time of day out of range", r.Weekday)
		}
		if r.Open && r.Start >= r.End {
			return nil, apperr.Validation("%s: start %s must be before end %s", r.Weekday, r.Start, r.End)
		}
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Weekday < out[j].Weekday })
	return out, nil
}

func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, apperr.Validation("timezone is required")
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperr.Validation("unknown timezone %q", tz)
	}
	return loc, nil
}

// Location falls back to UTC; stored schedules always carry a zone that
// passed LoadLocation.
func (s Schedule) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (s Schedule) Rule(d Weekday) (Rule, bool) {
	for _, r := range s.Rules {
		if r.Weekday == d {
			return r, true
		}
	}
	return Rule{}, false
}

func (s Schedule) Clone() Schedule {
	c := s
	c.Rules = append([]Rule(nil), s.Rules...)
	return c
}

// IsOpenAt resolves t in the schedule's timezone and checks it falls in
// [Start, End) of an open rule for that weekday.
func (s Schedule) IsOpenAt(t time.Time) bool {
	local := t.In(s.Location())
	rule, ok := s.Rule(WeekdayOf(local))
	if !ok || !rule.Open {
		return false
	}
	sec := secondsOfDay(local)
	return sec >= rule.Start.seconds() && sec < rule.End.seconds()
}

// Contains reports whether [start, end) lies entirely inside one open rule
// of the start's local weekday. Windows crossing local midnight are never
// contained, except an end of exactly the next midnight against a rule
// ending at 24:00.
func (s Schedule) Contains(start, end time.Time) bool {
	loc := s.Location()
	ls, le := start.In(loc), end.In(loc)
	if !le.After(ls) {
		return false
	}

	rule, ok := s.Rule(WeekdayOf(ls))
	if !ok || !rule.Open {
		return false
	}

	y, m, d := ls.Date()
	ey, em, ed := le.Date()

	var endSec int
	switch {
	case ey == y && em == m && ed == d:
		endSec = secondsOfDay(le)
		if le.Nanosecond() > 0 {
			endSec++
		}
	case le.Equal(time.Date(y, m, d+1, 0, 0, 0, 0, loc)):
		endSec = EndOfDay.seconds()
	default:
		return false
	}

	return secondsOfDay(ls) >= rule.Start.seconds() && endSec <= rule.End.seconds()
}

// OpenWindow returns the absolute bounds of the open rule for the local
// calendar day containing day, or ok=false if that day is closed.
func (s Schedule) OpenWindow(day time.Time) (from, to time.Time, ok bool) {
	loc := s.Location()
	local := day.In(loc)
	rule, found := s.Rule(WeekdayOf(local))
	if !found || !rule.Open {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := local.Date()
	from = time.Date(y, m, d, int(rule.Start)/60, int(rule.Start)%60, 0, 0, loc)
	to = time.Date(y, m, d, int(rule.End)/60, int(rule.End)%60, 0, 0, loc)
	return from, to, true
}

func secondsOfDay(t time.Time) int {
	h, m, sec := t.Clock()
	return h*3600 + m*60 + sec
}
