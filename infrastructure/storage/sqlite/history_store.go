package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/echo-go/domain/history"
)

// HistoryStore is a SQLite-backed implementation of history.Store.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore creates a new SQLite history store with the given configuration.
func NewHistoryStore(cfg Config, opts ...Option) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &HistoryStore{db: db}
	if cfg.AutoMigrate {
		if err := s.migrate(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewHistoryStoreFromDB creates a history store from an existing database connection.
func NewHistoryStoreFromDB(db *sql.DB) (*HistoryStore, error) {
	s := &HistoryStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// migrate creates the history tables if they don't exist.
func (s *HistoryStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transitions (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			at INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);
		CREATE TABLE IF NOT EXISTS routines (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			outcome TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			data BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_routines_started_at ON routines(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// AppendTransition persists a state change.
func (s *HistoryStore) AppendTransition(ctx context.Context, t history.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transitions (id, at, data) VALUES (?, ?, ?)`,
		t.ID, t.At.UnixNano(), data,
	)
	return err
}

// AppendRoutine persists a finished routine run.
func (s *HistoryStore) AppendRoutine(ctx context.Context, r history.RoutineRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal routine: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO routines (id, name, outcome, started_at, data) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, string(r.Outcome), r.StartedAt.UnixNano(), data,
	)
	return err
}

// Transitions returns state changes in chronological order.
func (s *HistoryStore) Transitions(ctx context.Context, filter history.ListFilter) ([]history.Transition, error) {
	var result []history.Transition
	err := s.query(ctx, "transitions", "at", filter, func(data []byte) error {
		var t history.Transition
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		result = append(result, t)
		return nil
	})
	return result, err
}

// Routines returns routine runs in chronological order.
func (s *HistoryStore) Routines(ctx context.Context, filter history.ListFilter) ([]history.RoutineRecord, error) {
	var result []history.RoutineRecord
	err := s.query(ctx, "routines", "started_at", filter, func(data []byte) error {
		var r history.RoutineRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		result = append(result, r)
		return nil
	})
	return result, err
}

// query scans the most recent rows of table that pass filter, oldest first.
func (s *HistoryStore) query(ctx context.Context, table, timeColumn string, filter history.ListFilter, scan func([]byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var since int64
	if !filter.Since.IsZero() {
		since = filter.Since.UnixNano()
	}
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	// #nosec G201 -- table and column names are constants
	query := fmt.Sprintf(
		`SELECT data FROM (SELECT seq, data FROM %s WHERE %s >= ? ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`,
		table, timeColumn,
	)
	rows, err := s.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return err
		}
		if err := scan(data); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

var _ history.Store = (*HistoryStore)(nil)
