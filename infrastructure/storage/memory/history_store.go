// Package memory provides in-memory storage for tests and offline runs.
package memory

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/echo-go/domain/history"
)

// HistoryStore is an in-memory implementation of history.Store.
type HistoryStore struct {
	transitions []history.Transition
	routines    []history.RoutineRecord
	mu          sync.RWMutex
}

// NewHistoryStore creates a new in-memory history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// AppendTransition persists a state change.
func (s *HistoryStore) AppendTransition(ctx context.Context, t history.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, t)
	return nil
}

// AppendRoutine persists a finished routine run.
func (s *HistoryStore) AppendRoutine(ctx context.Context, r history.RoutineRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routines = append(s.routines, r)
	return nil
}

// Transitions returns state changes in chronological order.
func (s *HistoryStore) Transitions(ctx context.Context, filter history.ListFilter) ([]history.Transition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]history.Transition, 0, len(s.transitions))
	for _, t := range s.transitions {
		if filter.Includes(t.At) {
			result = append(result, t)
		}
	}
	return history.Tail(result, filter.Limit), nil
}

// Routines returns routine runs in chronological order.
func (s *HistoryStore) Routines(ctx context.Context, filter history.ListFilter) ([]history.RoutineRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]history.RoutineRecord, 0, len(s.routines))
	for _, r := range s.routines {
		if filter.Includes(r.StartedAt) {
			result = append(result, r)
		}
	}
	return history.Tail(result, filter.Limit), nil
}

// Close is a no-op for the in-memory store.
func (s *HistoryStore) Close() error {
	return nil
}

var _ history.Store = (*HistoryStore)(nil)
