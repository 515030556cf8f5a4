package workflow

import (
	"testing"
	"time"
)

func waitStep(cfg StepConfig) Step {
	return Step{ID: "w", Type: StepWait, Config: cfg}
}

func TestNextActionAt_NonWaitIsSixtySeconds(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for _, typ := range []StepType{StepCall, StepSMS, "email"} {
		got := NextActionAt(Step{Type: typ, Config: StepConfig{DelayDays: 3}}, now, time.UTC)
		if !got.Equal(now.Add(60 * time.Second)) {
			t.Fatalf("%s: got %v", typ, got)
		}
	}
}

func TestNextActionAt_WaitDelaySumsUnits(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	got := NextActionAt(waitStep(StepConfig{DelayMinutes: 5, DelayHours: 2, DelayDays: 1}), now, time.UTC)
	want := now.Add(24*time.Hour + 2*time.Hour + 5*time.Minute)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextActionAt_TimeOfDaySnapsSameDay(t *testing.T) {
	now := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC) // +90m = 07:30, before 09:00
	got := NextActionAt(waitStep(StepConfig{DelayMinutes: 90, TimeOfDay: "09:00"}), now, time.UTC)
	want := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextActionAt_TimeOfDayRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC) // +90m = 09:30, after 09:00
	got := NextActionAt(waitStep(StepConfig{DelayMinutes: 90, TimeOfDay: "09:00"}), now, time.UTC)
	want := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextActionAt_TimeOfDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC) // 07:00 EST
	got := NextActionAt(waitStep(StepConfig{DelayMinutes: 30, TimeOfDay: "09:00"}), now, loc)
	want := time.Date(2026, 1, 10, 9, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestNextActionAt_InvalidTimeOfDayIgnored(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	for _, tod := range []string{"9am", "25:00", "09:61", "x:y"} {
		got := NextActionAt(waitStep(StepConfig{DelayMinutes: 10, TimeOfDay: tod}), now, time.UTC)
		if !got.Equal(now.Add(10 * time.Minute)) {
			t.Fatalf("%q: got %v", tod, got)
		}
	}
}
