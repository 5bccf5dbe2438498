package memory_test

import (
	"testing"

	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/memory"
	"github.com/felixgeelhaar/echo-go/infrastructure/storage/storagetest"
)

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	storagetest.TestHistoryStore(t, func(*testing.T) history.Store {
		return memory.NewHistoryStore()
	})
}
