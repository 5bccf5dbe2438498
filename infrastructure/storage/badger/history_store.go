package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/felixgeelhaar/echo-go/domain/history"
)

const sequenceBandwidth = 100

// HistoryStore is a BadgerDB-backed implementation of history.Store.
// Records are keyed by a monotonic sequence so iteration order is append order.
type HistoryStore struct {
	db        *badger.DB
	keyPrefix string
	seq       *badger.Sequence
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
	closeOnce sync.Once
}

// NewHistoryStore creates a new BadgerDB history store with the given configuration.
func NewHistoryStore(cfg Config, opts ...Option) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s, err := NewHistoryStoreFromDB(db, cfg.KeyPrefix)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// NewHistoryStoreFromDB creates a history store from an existing BadgerDB database.
func NewHistoryStoreFromDB(db *badger.DB, keyPrefix string) (*HistoryStore, error) {
	seq, err := db.GetSequence([]byte(keyPrefix+"seq"), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("history sequence: %w", err)
	}
	return &HistoryStore{
		db:        db,
		keyPrefix: keyPrefix,
		seq:       seq,
		gcStop:    make(chan struct{}),
	}, nil
}

// startGC starts the value log garbage collection goroutine.
func (s *HistoryStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

// Key format: prefix:kind:sequence (8 bytes, big-endian)
func (s *HistoryStore) recordKey(kind string, seq uint64) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)
	return append(s.kindPrefix(kind), seqBytes...)
}

func (s *HistoryStore) kindPrefix(kind string) []byte {
	return []byte(s.keyPrefix + kind + ":")
}

// AppendTransition persists a state change.
func (s *HistoryStore) AppendTransition(ctx context.Context, t history.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return s.put("transitions", t)
}

// AppendRoutine persists a finished routine run.
func (s *HistoryStore) AppendRoutine(ctx context.Context, r history.RoutineRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	return s.put("routines", r)
}

func (s *HistoryStore) put(kind string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	seq, err := s.seq.Next()
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.recordKey(kind, seq), data)
	})
}

// Transitions returns state changes in chronological order.
func (s *HistoryStore) Transitions(ctx context.Context, filter history.ListFilter) ([]history.Transition, error) {
	var result []history.Transition
	err := s.scan(ctx, "transitions", func(data []byte) error {
		var t history.Transition
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		if filter.Includes(t.At) {
			result = append(result, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history.Tail(result, filter.Limit), nil
}

// Routines returns routine runs in chronological order.
func (s *HistoryStore) Routines(ctx context.Context, filter history.ListFilter) ([]history.RoutineRecord, error) {
	var result []history.RoutineRecord
	err := s.scan(ctx, "routines", func(data []byte) error {
		var r history.RoutineRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		if filter.Includes(r.StartedAt) {
			result = append(result, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return history.Tail(result, filter.Limit), nil
}

func (s *HistoryStore) scan(ctx context.Context, kind string, fn func([]byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prefix := s.kindPrefix(kind)
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the sequence and closes the database.
func (s *HistoryStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.gcStop)
		s.gcWg.Wait()
		if relErr := s.seq.Release(); relErr != nil {
			err = relErr
		}
		if closeErr := s.db.Close(); closeErr != nil {
			err = closeErr
		}
	})
	return err
}

var _ history.Store = (*HistoryStore)(nil)
