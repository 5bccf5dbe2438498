// Package storagetest provides a behavioral suite shared by history.Store implementations.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) history.Store

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// TestHistoryStore runs the shared history.Store behavior against newStore.
func TestHistoryStore(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("transitions keep order", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		want := []history.Transition{
			{ID: "t1", At: base, From: assistant.StateIdle, To: assistant.StateListening, Trigger: "wake_detected"},
			{ID: "t2", At: base.Add(time.Second), From: assistant.StateListening, To: assistant.StateProcessing, Trigger: "utterance_transcribed"},
			{ID: "t3", At: base.Add(2 * time.Second), From: assistant.StateProcessing, To: assistant.StateListening, Trigger: "playback_finished"},
		}
		for _, tr := range want {
			if err := store.AppendTransition(ctx, tr); err != nil {
				t.Fatalf("AppendTransition() error = %v", err)
			}
		}

		got, err := store.Transitions(ctx, history.ListFilter{})
		if err != nil {
			t.Fatalf("Transitions() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("len(Transitions()) = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID || got[i].From != want[i].From || got[i].To != want[i].To || got[i].Trigger != want[i].Trigger {
				t.Errorf("Transitions()[%d] = %+v, want %+v", i, got[i], want[i])
			}
			if !got[i].At.Equal(want[i].At) {
				t.Errorf("Transitions()[%d].At = %v, want %v", i, got[i].At, want[i].At)
			}
		}
	})

	t.Run("transitions filter", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			tr := history.Transition{
				ID:      string(rune('a' + i)),
				At:      base.Add(time.Duration(i) * time.Minute),
				From:    assistant.StateIdle,
				To:      assistant.StateListening,
				Trigger: "wake_detected",
			}
			if err := store.AppendTransition(ctx, tr); err != nil {
				t.Fatalf("AppendTransition() error = %v", err)
			}
		}

		got, err := store.Transitions(ctx, history.ListFilter{Since: base.Add(2 * time.Minute)})
		if err != nil {
			t.Fatalf("Transitions() error = %v", err)
		}
		if len(got) != 3 || got[0].ID != "c" {
			t.Errorf("Transitions(since) = %d records starting %q, want 3 starting c", len(got), firstID(got))
		}

		got, err = store.Transitions(ctx, history.ListFilter{Limit: 2})
		if err != nil {
			t.Fatalf("Transitions() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != "d" || got[1].ID != "e" {
			t.Errorf("Transitions(limit 2) = %v, want [d e]", ids(got))
		}
	})

	t.Run("routines round trip", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		rec := history.RoutineRecord{
			ID:        "run-1",
			Name:      "triage",
			Outcome:   routine.OutcomeBudgetExceeded,
			Budget:    routine.BudgetSteps,
			Steps:     3,
			Calls:     3,
			StartedAt: base,
			Duration:  90 * time.Second,
		}
		if err := store.AppendRoutine(ctx, rec); err != nil {
			t.Fatalf("AppendRoutine() error = %v", err)
		}
		failed := history.RoutineRecord{
			ID:        "run-2",
			Name:      "deploy",
			Outcome:   routine.OutcomeFailed,
			StartedAt: base.Add(time.Hour),
			Error:     "agent unavailable",
		}
		if err := store.AppendRoutine(ctx, failed); err != nil {
			t.Fatalf("AppendRoutine() error = %v", err)
		}

		got, err := store.Routines(ctx, history.ListFilter{})
		if err != nil {
			t.Fatalf("Routines() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(Routines()) = %d, want 2", len(got))
		}
		first := got[0]
		if first.ID != "run-1" || first.Outcome != routine.OutcomeBudgetExceeded || first.Budget != routine.BudgetSteps {
			t.Errorf("Routines()[0] = %+v, want run-1 budget_exceeded/steps", first)
		}
		if first.Steps != 3 || first.Calls != 3 || first.Duration != 90*time.Second {
			t.Errorf("Routines()[0] counters = %d/%d/%v, want 3/3/1m30s", first.Steps, first.Calls, first.Duration)
		}
		if got[1].Error != "agent unavailable" {
			t.Errorf("Routines()[1].Error = %q, want %q", got[1].Error, "agent unavailable")
		}

		got, err = store.Routines(ctx, history.ListFilter{Since: base.Add(time.Minute)})
		if err != nil {
			t.Fatalf("Routines() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "run-2" {
			t.Errorf("Routines(since) = %d records, want run-2 only", len(got))
		}
	})

	t.Run("rejects invalid records", func(t *testing.T) {
		store := open(t, newStore)
		ctx := context.Background()

		if err := store.AppendTransition(ctx, history.Transition{At: base}); !errors.Is(err, history.ErrInvalidRecord) {
			t.Errorf("AppendTransition() error = %v, want ErrInvalidRecord", err)
		}
		if err := store.AppendRoutine(ctx, history.RoutineRecord{ID: "x"}); !errors.Is(err, history.ErrInvalidRecord) {
			t.Errorf("AppendRoutine() error = %v, want ErrInvalidRecord", err)
		}
	})

	t.Run("honors cancelled context", func(t *testing.T) {
		store := open(t, newStore)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tr := history.Transition{ID: "t", At: base, From: assistant.StateIdle, To: assistant.StateListening}
		if err := store.AppendTransition(ctx, tr); !errors.Is(err, context.Canceled) {
			t.Errorf("AppendTransition() error = %v, want context.Canceled", err)
		}
	})
}

func open(t *testing.T, newStore Factory) history.Store {
	t.Helper()
	store := newStore(t)
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return store
}

func ids(ts []history.Transition) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func firstID(ts []history.Transition) string {
	if len(ts) == 0 {
		return ""
	}
	return ts[0].ID
}
