package history

import (
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/routine"
)

func TestTransition_Validate(t *testing.T) {
	t.Parallel()

	ok := Transition{ID: "t1", At: time.Now(), From: assistant.StateIdle, To: assistant.StateListening}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if err := (Transition{At: time.Now()}).Validate(); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("Validate() without ID = %v, want %v", err, ErrInvalidRecord)
	}
}

func TestNewRoutineRecord(t *testing.T) {
	t.Parallel()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := NewRoutineRecord(routine.Result{
		RunID:   "r1",
		Name:    "standup",
		Outcome: routine.OutcomeFailed,
		Steps:   2,
		Calls:   3,
		Err:     assistant.ErrEmptyReply,
	}, started)

	if rec.ID != "r1" || rec.Steps != 2 || rec.Calls != 3 {
		t.Errorf("record = %+v, want id r1 with 2 steps and 3 calls", rec)
	}
	if rec.Error != assistant.ErrEmptyReply.Error() {
		t.Errorf("Error = %q, want %q", rec.Error, assistant.ErrEmptyReply.Error())
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestListFilter(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f := ListFilter{Since: since}
	if f.Includes(since.Add(-time.Second)) {
		t.Errorf("Includes(before) = true, want false")
	}
	if !f.Includes(since) {
		t.Errorf("Includes(since) = false, want true")
	}

	got := Tail([]int{1, 2, 3, 4}, 2)
	if len(got) != 2 || got[0] != 3 {
		t.Errorf("Tail = %v, want [3 4]", got)
	}
	if got := Tail([]int{1}, 0); len(got) != 1 {
		t.Errorf("Tail with no limit = %v, want [1]", got)
	}
}
