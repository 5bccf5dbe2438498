// Package routine provides the domain model for autonomous multi-step routines.
package routine

import (
	"sync"
	"time"
)

// Definition is a pre-configured routine started by a trigger phrase.
type Definition struct {
	// Name is spoken when the routine starts.
	Name string `json:"name" yaml:"name"`

	// TriggerPhrases start the routine when contained in an utterance.
	TriggerPhrases []string `json:"trigger_phrases" yaml:"trigger_phrases"`

	// Prompt is the routine body handed to the agent.
	Prompt string `json:"prompt" yaml:"prompt"`

	// MaxSteps overrides the global step budget when positive.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
}

// Outcome is the terminal result of a routine run.
type Outcome string

// Routine outcomes.
const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeInterrupted    Outcome = "interrupted"
	OutcomeBudgetExceeded Outcome = "budget_exceeded"
	OutcomeFailed         Outcome = "failed"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// Budget identifies which budget stopped a run.
type Budget string

// Budget kinds.
const (
	BudgetNone  Budget = ""
	BudgetSteps Budget = "steps"
	BudgetTime  Budget = "time"
)

// Run is the ephemeral state of one autonomous invocation.
// It is owned by the routine engine for the run's lifetime.
type Run struct {
	ID         string
	Name       string
	StartTime  time.Time
	MaxSteps   int
	MaxMinutes int

	mu         sync.Mutex
	stepCount  int
	calls      int
	transcript []Entry
}

// Entry is one exchange in a run's accumulated transcript.
type Entry struct {
	Prompt string
	Reply  string
	Marker Marker
}

// NewRun creates a run starting now.
func NewRun(id, name string, maxSteps, maxMinutes int, now time.Time) *Run {
	return &Run{
		ID:         id,
		Name:       name,
		StartTime:  now,
		MaxSteps:   maxSteps,
		MaxMinutes: maxMinutes,
	}
}

// Deadline returns the wall-clock budget end.
func (r *Run) Deadline() time.Time {
	return r.StartTime.Add(time.Duration(r.MaxMinutes) * time.Minute)
}

// TimeExceeded reports whether the elapsed time reached the minute budget.
func (r *Run) TimeExceeded(now time.Time) bool {
	if r.MaxMinutes <= 0 {
		return false
	}
	return !now.Before(r.Deadline())
}

// StepsExceeded reports whether the step count reached the step budget.
func (r *Run) StepsExceeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.MaxSteps > 0 && r.stepCount >= r.MaxSteps
}

// RecordCall counts one agent call.
func (r *Run) RecordCall() {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

// Record appends an exchange and advances the step count on NEXT.
func (r *Run) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = append(r.transcript, e)
	if e.Marker != MarkerDone {
		r.stepCount++
	}
}

// StepCount returns the number of completed NEXT steps.
func (r *Run) StepCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stepCount
}

// Calls returns the number of agent calls issued.
func (r *Run) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Transcript returns a copy of the accumulated transcript.
func (r *Run) Transcript() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.transcript))
	copy(out, r.transcript)
	return out
}

// Result summarizes a finished run.
type Result struct {
	RunID    string
	Name     string
	Outcome  Outcome
	Budget   Budget
	Steps    int
	Calls    int
	Duration time.Duration
	Err      error
}
