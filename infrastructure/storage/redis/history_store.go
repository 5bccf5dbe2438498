package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/echo-go/domain/history"
)

// HistoryStore is a Redis-backed implementation of history.Store.
// Each record kind is a list appended with RPUSH.
type HistoryStore struct {
	client    *redis.Client
	keyPrefix string
	maxLen    int64
}

// NewHistoryStore creates a new Redis history store with the given configuration.
func NewHistoryStore(cfg Config, opts ...ConfigOption) (*HistoryStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(history.ErrConnectionFailed, err)
	}

	return &HistoryStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		maxLen:    cfg.MaxEntries,
	}, nil
}

// NewHistoryStoreFromClient creates a history store from an existing Redis client.
func NewHistoryStoreFromClient(client *redis.Client, keyPrefix string) *HistoryStore {
	return &HistoryStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// listKey adds the key prefix and history namespace.
func (s *HistoryStore) listKey(kind string) string {
	return s.keyPrefix + "history:" + kind
}

// AppendTransition persists a state change.
func (s *HistoryStore) AppendTransition(ctx context.Context, t history.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	return s.push(ctx, "transitions", t)
}

// AppendRoutine persists a finished routine run.
func (s *HistoryStore) AppendRoutine(ctx context.Context, r history.RoutineRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return err
	}
	return s.push(ctx, "routines", r)
}

func (s *HistoryStore) push(ctx context.Context, kind string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	key := s.listKey(kind)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if s.maxLen > 0 {
		pipe.LTrim(ctx, key, -s.maxLen, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Transitions returns state changes in chronological order.
func (s *HistoryStore) Transitions(ctx context.Context, filter history.ListFilter) ([]history.Transition, error) {
	values, err := s.load(ctx, "transitions")
	if err != nil {
		return nil, err
	}
	result := make([]history.Transition, 0, len(values))
	for _, v := range values {
		var t history.Transition
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("unmarshal transition: %w", err)
		}
		if filter.Includes(t.At) {
			result = append(result, t)
		}
	}
	return history.Tail(result, filter.Limit), nil
}

// Routines returns routine runs in chronological order.
func (s *HistoryStore) Routines(ctx context.Context, filter history.ListFilter) ([]history.RoutineRecord, error) {
	values, err := s.load(ctx, "routines")
	if err != nil {
		return nil, err
	}
	result := make([]history.RoutineRecord, 0, len(values))
	for _, v := range values {
		var r history.RoutineRecord
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			return nil, fmt.Errorf("unmarshal routine: %w", err)
		}
		if filter.Includes(r.StartedAt) {
			result = append(result, r)
		}
	}
	return history.Tail(result, filter.Limit), nil
}

func (s *HistoryStore) load(ctx context.Context, kind string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values, err := s.client.LRange(ctx, s.listKey(kind), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, s.wrapError(err)
	}
	return values, nil
}

// wrapError marks network failures as connection errors.
func (s *HistoryStore) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.Join(history.ErrConnectionFailed, err)
}

// Close closes the Redis client.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}

var _ history.Store = (*HistoryStore)(nil)
