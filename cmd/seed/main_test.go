package main

import (
	"testing"

	"github.com/hackgods/practitioner-booking/internal/availability"
)

func TestRandomRulesAreValid(t *testing.T) {
	for i := 0; i < 50; i++ {
		rules, err := availability.ValidateRules(randomRules())
		if err != nil {
			t.Fatalf("generated rules rejected: %v", err)
		}
		if len(rules) != 7 {
			t.Fatalf("expected a rule per weekday, got %d", len(rules))
		}
		if rules[6].Weekday != availability.Sunday || rules[6].Open {
			t.Fatalf("sunday must be closed, got %+v", rules[6])
		}
	}
}
