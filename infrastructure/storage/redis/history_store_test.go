package redis_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/redis"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/storagetest"
)

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	storagetest.TestHistoryStore(t, func(t *testing.T) history.Store {
		mr := miniredis.RunT(t)
		store, err := redis.NewHistoryStore(redis.DefaultConfig(), redis.WithAddress(mr.Addr()))
		if err != nil {
			t.Fatalf("NewHistoryStore() error = %v", err)
		}
		return store
	})
}

func TestHistoryStore_MaxEntries(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := redis.NewHistoryStore(redis.DefaultConfig(),
		redis.WithAddress(mr.Addr()),
		redis.WithKeyPrefix("test:"),
		redis.WithMaxEntries(2),
	)
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	defer store.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b", "c"} {
		if err := store.AppendTransition(t.Context(), history.Transition{ID: id, At: at, From: "idle", To: "listening"}); err != nil {
			t.Fatalf("AppendTransition() error = %v", err)
		}
	}

	got, err := store.Transitions(t.Context(), history.ListFilter{})
	if err != nil {
		t.Fatalf("Transitions() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("Transitions() = %+v, want b and c", got)
	}
	if n, _ := mr.List("test:history:transitions"); len(n) != 2 {
		t.Errorf("list length = %d, want 2", len(n))
	}
}

func TestNewHistoryStore_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := redis.NewHistoryStore(redis.DefaultConfig(),
		redis.WithAddress(addr),
		redis.WithTimeouts(200*time.Millisecond, 200*time.Millisecond, 200*time.Millisecond),
	)
	if !errors.Is(err, history.ErrConnectionFailed) {
		t.Errorf("NewHistoryStore() error = %v, want ErrConnectionFailed", err)
	}
}
