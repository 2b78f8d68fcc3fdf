package availability

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

// 2024-01-15 is a Monday.
var monday = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func newTestStore() *Store {
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return NewStore(NewMemoryRepository(), func() time.Time { return fixed })
}

func TestStore_GetRulesNotFound(t *testing.T) {
	s := newTestStore()
	_, err := s.GetRules(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStore_SetRulesRoundTrip(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id := uuid.New()

	in := []Rule{
		{Weekday: Friday, Start: NewTimeOfDay(13, 30), End: NewTimeOfDay(18, 0), Open: true},
		{Weekday: Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(17, 0), Open: true},
		{Weekday: Sunday, Open: false},
		{Weekday: Wednesday, Start: NewTimeOfDay(0, 0), End: EndOfDay, Open: true},
	}

	if _, err := s.SetRules(ctx, id, "Asia/Kolkata", in); err != nil {
		t.Fatalf("set rules: %v", err)
	}

	got, err := s.GetRules(ctx, id)
	if err != nil {
		t.Fatalf("get rules: %v", err)
	}
	if got.Timezone != "Asia/Kolkata" {
		t.Fatalf("expected timezone Asia/Kolkata, got %s", got.Timezone)
	}
	if len(got.Rules) != len(in) {
		t.Fatalf("expected %d rules, got %d", len(in), len(got.Rules))
	}
	for _, want := range in {
		r, ok := got.Rule(want.Weekday)
		if !ok {
			t.Fatalf("rule for %s missing", want.Weekday)
		}
		if r != want {
			t.Fatalf("rule for %s: expected %+v, got %+v", want.Weekday, want, r)
		}
	}
	for i := 1; i < len(got.Rules); i++ {
		if got.Rules[i-1].Weekday >= got.Rules[i].Weekday {
			t.Fatalf("rules are not ordered by weekday: %+v", got.Rules)
		}
	}
}

func TestStore_SetRulesValidation(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id := uuid.New()

	tests := []struct {
		name  string
		tz    string
		rules []Rule
	}{
		{
			name:  "start after end",
			tz:    "UTC",
			rules: []Rule{{Weekday: Monday, Start: NewTimeOfDay(17, 0), End: NewTimeOfDay(9, 0), Open: true}},
		},
		{
			name:  "start equals end",
			tz:    "UTC",
			rules: []Rule{{Weekday: Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(9, 0), Open: true}},
		},
		{
			name: "duplicate weekday",
			tz:   "UTC",
			rules: []Rule{
				{Weekday: Tuesday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(12, 0), Open: true},
				{Weekday: Tuesday, Start: NewTimeOfDay(13, 0), End: NewTimeOfDay(17, 0), Open: true},
			},
		},
		{
			name:  "unknown weekday",
			tz:    "UTC",
			rules: []Rule{{Weekday: 9, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(10, 0), Open: true}},
		},
		{
			name:  "unknown timezone",
			tz:    "Mars/Olympus",
			rules: DefaultRules(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SetRules(ctx, id, tt.tz, tt.rules)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := s.GetRules(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("rejected writes must not store anything, got %v", err)
	}
}

func TestStore_ClosedRuleMayHaveAnyBounds(t *testing.T) {
	s := newTestStore()
	rules := []Rule{{Weekday: Sunday, Start: NewTimeOfDay(17, 0), End: NewTimeOfDay(9, 0), Open: false}}
	if _, err := s.SetRules(context.Background(), uuid.New(), "UTC", rules); err != nil {
		t.Fatalf("closed rules are not bound by start<end: %v", err)
	}
}

func TestStore_IsOpenAt(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id := uuid.New()

	if _, err := s.Register(ctx, id, "UTC"); err != nil {
		t.Fatalf("register: %v", err)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday opening minute", at(monday, 9, 0), true},
		{"monday before opening", at(monday, 8, 59), false},
		{"monday closing minute is exclusive", at(monday, 17, 0), false},
		{"saturday midday", at(monday.AddDate(0, 0, 5), 12, 0), true},
		{"sunday closed", at(monday.AddDate(0, 0, 6), 12, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.IsOpenAt(ctx, id, tt.at)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("IsOpenAt(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestStore_IsOpenAtUsesPractitionerTimezone(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id := uuid.New()

	if _, err := s.Register(ctx, id, "Asia/Kolkata"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// 04:00 UTC is 09:30 in Kolkata.
	open, err := s.IsOpenAt(ctx, id, at(monday, 4, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open {
		t.Fatal("expected 09:30 IST on a Monday to be open")
	}

	// 12:00 UTC is 17:30 in Kolkata.
	open, _ = s.IsOpenAt(ctx, id, at(monday, 12, 0))
	if open {
		t.Fatal("expected 17:30 IST to be closed")
	}
}

func TestStore_RegisterKeepsExistingSchedule(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	id := uuid.New()

	custom := []Rule{{Weekday: Monday, Start: NewTimeOfDay(6, 0), End: NewTimeOfDay(8, 0), Open: true}}
	if _, err := s.SetRules(ctx, id, "UTC", custom); err != nil {
		t.Fatalf("set rules: %v", err)
	}

	got, err := s.Register(ctx, id, "Asia/Kolkata")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(got.Rules) != 1 || got.Timezone != "UTC" {
		t.Fatalf("register overwrote the existing schedule: %+v", got)
	}
}

func TestSchedule_Contains(t *testing.T) {
	sched := Schedule{
		Timezone: "UTC",
		Rules: []Rule{
			{Weekday: Monday, Start: NewTimeOfDay(9, 0), End: NewTimeOfDay(17, 0), Open: true},
			{Weekday: Tuesday, Start: NewTimeOfDay(20, 0), End: EndOfDay, Open: true},
			{Weekday: Wednesday, Start: NewTimeOfDay(0, 0), End: NewTimeOfDay(4, 0), Open: true},
			{Weekday: Sunday, Open: false},
		},
	}
	tuesday := monday.AddDate(0, 0, 1)
	sunday := monday.AddDate(0, 0, -1)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"inside", at(monday, 10, 0), at(monday, 11, 0), true},
		{"exactly the rule", at(monday, 9, 0), at(monday, 17, 0), true},
		{"starts before opening", at(monday, 8, 30), at(monday, 9, 30), false},
		{"ends after closing", at(monday, 16, 30), at(monday, 17, 30), false},
		{"degenerate", at(monday, 10, 0), at(monday, 10, 0), false},
		{"ends at midnight against 24:00", at(tuesday, 23, 0), at(tuesday.AddDate(0, 0, 1), 0, 0), true},
		{"crosses midnight into open wednesday", at(tuesday, 23, 30), at(tuesday.AddDate(0, 0, 1), 0, 30), false},
		{"straddles closed sunday into monday", at(sunday, 23, 0), at(monday, 9, 30), false},
		{"closed day", at(sunday, 10, 0), at(sunday, 11, 0), false},
		{"day without rule", at(monday.AddDate(0, 0, 3), 10, 0), at(monday.AddDate(0, 0, 3), 11, 0), false},
		{"sub-second overrun", at(monday, 16, 0), at(monday, 17, 0).Add(time.Millisecond), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sched.Contains(tt.start, tt.end); got != tt.want {
				t.Fatalf("Contains(%s, %s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestSchedule_OpenWindow(t *testing.T) {
	sched := Schedule{Timezone: "Asia/Kolkata", Rules: DefaultRules()}

	from, to, ok := sched.OpenWindow(at(monday, 6, 0))
	if !ok {
		t.Fatal("expected monday to be open")
	}
	if !from.Equal(at(monday, 3, 30)) || !to.Equal(at(monday, 11, 30)) {
		t.Fatalf("unexpected window %s - %s", from.UTC(), to.UTC())
	}

	if _, _, ok := sched.OpenWindow(at(monday.AddDate(0, 0, 6), 6, 0)); ok {
		t.Fatal("expected sunday to be closed")
	}
}

func TestRule_JSON(t *testing.T) {
	raw := []byte(`{"weekday":"Mon","start":"09:15","end":"24:00","open":true}`)

	var r Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Rule{Weekday: Monday, Start: NewTimeOfDay(9, 15), End: EndOfDay, Open: true}
	if r != want {
		t.Fatalf("expected %+v, got %+v", want, r)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"weekday":"monday","start":"09:15","end":"24:00","open":true}` {
		t.Fatalf("unexpected encoding %s", out)
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, s := range []string{"25:00", "24:30", "9", "ab:cd", "12:60"} {
		if _, err := ParseTimeOfDay(s); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("ParseTimeOfDay(%q): expected validation error, got %v", s, err)
		}
	}
	if _, err := ParseWeekday("funday"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("ParseWeekday: expected validation error, got %v", err)
	}
}
