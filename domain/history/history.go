// Package history provides the domain model for the orchestrator's audit trail.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// Domain errors for history stores.
var (
	// ErrInvalidRecord is returned when a record is missing its ID or timestamp.
	ErrInvalidRecord = errors.New("invalid history record")

	// ErrConnectionFailed is returned when the store backend cannot be reached.
	ErrConnectionFailed = errors.New("history store connection failed")
)

// Transition records one orchestrator state change.
type Transition struct {
	ID      string          `json:"id"`
	At      time.Time       `json:"at"`
	From    assistant.State `json:"from"`
	To      assistant.State `json:"to"`
	Trigger string          `json:"trigger"`
}

// Validate checks the record's required fields.
func (t Transition) Validate() error {
	if t.ID == "" || t.At.IsZero() {
		return ErrInvalidRecord
	}
	return nil
}

// RoutineRecord records one finished autonomous run.
type RoutineRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Outcome   routine.Outcome `json:"outcome"`
	Budget    routine.Budget  `json:"budget,omitempty"`
	Steps     int             `json:"steps"`
	Calls     int             `json:"calls"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
	Error     string          `json:"error,omitempty"`
}

// Validate checks the record's required fields.
func (r RoutineRecord) Validate() error {
	if r.ID == "" || r.StartedAt.IsZero() {
		return ErrInvalidRecord
	}
	return nil
}

// NewRoutineRecord builds a record from a routine result.
func NewRoutineRecord(res routine.Result, startedAt time.Time) RoutineRecord {
	rec := RoutineRecord{
		ID:        res.RunID,
		Name:      res.Name,
		Outcome:   res.Outcome,
		Budget:    res.Budget,
		Steps:     res.Steps,
		Calls:     res.Calls,
		StartedAt: startedAt,
		Duration:  res.Duration,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	return rec
}

// Store defines the interface for history persistence.
// Implementations may be in-memory, SQLite, Badger or Redis.
type Store interface {
	// AppendTransition persists a state change.
	AppendTransition(ctx context.Context, t Transition) error

	// AppendRoutine persists a finished routine run.
	AppendRoutine(ctx context.Context, r RoutineRecord) error

	// Transitions returns state changes in chronological order.
	Transitions(ctx context.Context, filter ListFilter) ([]Transition, error)

	// Routines returns routine runs in chronological order.
	Routines(ctx context.Context, filter ListFilter) ([]RoutineRecord, error)

	// Close releases the store's resources.
	Close() error
}

// ListFilter specifies criteria for listing records.
type ListFilter struct {
	// Since filters records at or after this time.
	Since time.Time

	// Limit keeps only the most recent records (0 = no limit).
	Limit int
}

// Includes reports whether a record at t passes the time filter.
func (f ListFilter) Includes(t time.Time) bool {
	return f.Since.IsZero() || !t.Before(f.Since)
}

// Tail applies the limit to a chronological slice.
func Tail[T any](items []T, limit int) []T {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[len(items)-limit:]
}
