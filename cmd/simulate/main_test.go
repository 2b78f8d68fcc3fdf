package main

import (
	"testing"
	"time"
)

func TestOperationMetrics_Stats(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 100; i++ {
		om.Record(time.Duration(i)*time.Millisecond, i%10 != 0, i%10 == 0)
	}

	avg, min, max, p50, p95 := om.Stats()
	if min != time.Millisecond || max != 100*time.Millisecond {
		t.Fatalf("unexpected bounds: min=%s max=%s", min, max)
	}
	if p50 != 51*time.Millisecond || p95 != 96*time.Millisecond {
		t.Fatalf("unexpected percentiles: p50=%s p95=%s", p50, p95)
	}
	if avg != 50500*time.Microsecond {
		t.Fatalf("unexpected average %s", avg)
	}
	if om.Success != 90 || om.Conflict != 10 || om.Error != 0 {
		t.Fatalf("unexpected counts: %d/%d/%d", om.Success, om.Conflict, om.Error)
	}
}

func TestOperationMetrics_StatsEmpty(t *testing.T) {
	var om OperationMetrics
	if avg, _, _, _, _ := om.Stats(); avg != 0 {
		t.Fatalf("expected zero stats, got avg=%s", avg)
	}
}
