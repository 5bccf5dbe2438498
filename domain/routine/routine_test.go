package routine

import (
	"testing"
	"time"
)

func TestRun_Budgets(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	r := NewRun("r1", "triage", 2, 1, start)

	if r.TimeExceeded(start.Add(59 * time.Second)) {
		t.Errorf("TimeExceeded(59s) = true, want false")
	}
	if !r.TimeExceeded(start.Add(time.Minute)) {
		t.Errorf("TimeExceeded(1m) = false, want true")
	}

	r.RecordCall()
	r.Record(Entry{Prompt: "go", Reply: "step one", Marker: MarkerNext})
	if r.StepsExceeded() {
		t.Errorf("StepsExceeded() after 1 step = true, want false")
	}
	r.RecordCall()
	r.Record(Entry{Prompt: "continue", Reply: "step two", Marker: MarkerNone})
	if !r.StepsExceeded() {
		t.Errorf("StepsExceeded() after 2 steps = false, want true")
	}

	if got := r.Calls(); got != 2 {
		t.Errorf("Calls() = %d, want 2", got)
	}
	if got := len(r.Transcript()); got != 2 {
		t.Errorf("len(Transcript()) = %d, want 2", got)
	}
}

func TestRun_DoneDoesNotCountAsStep(t *testing.T) {
	t.Parallel()

	r := NewRun("r2", "", 5, 0, time.Now())
	r.Record(Entry{Reply: "finished", Marker: MarkerDone})

	if got := r.StepCount(); got != 0 {
		t.Errorf("StepCount() = %d, want 0", got)
	}
	if r.TimeExceeded(time.Now().Add(24 * time.Hour)) {
		t.Errorf("TimeExceeded with no minute budget = true, want false")
	}
}
