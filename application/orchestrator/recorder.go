package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/domain/history"
	"github.com/felixgeelhaar/echo-go/domain/routine"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

const (
	recorderBuffer  = 256
	recorderTimeout = 5 * time.Second
)

// recorder writes history records on its own goroutine so the ownership
// lock never waits on storage.
type recorder struct {
	store   history.Store
	records chan any
	wg      sync.WaitGroup
	once    sync.Once
}

func newRecorder(store history.Store) *recorder {
	r := &recorder{store: store}
	if store == nil {
		return r
	}
	r.records = make(chan any, recorderBuffer)
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *recorder) transition(from, to assistant.State, trigger string) {
	r.enqueue(history.Transition{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		From:    from,
		To:      to,
		Trigger: trigger,
	})
}

func (r *recorder) routine(res routine.Result, started time.Time) {
	r.enqueue(history.NewRoutineRecord(res, started.UTC()))
}

func (r *recorder) enqueue(rec any) {
	if r.records == nil {
		return
	}
	select {
	case r.records <- rec:
	default:
		logging.Warn().Add(logging.Component("history")).Msg("history buffer full, record dropped")
	}
}

func (r *recorder) run() {
	defer r.wg.Done()
	for rec := range r.records {
		ctx, cancel := context.WithTimeout(context.Background(), recorderTimeout)
		var err error
		switch v := rec.(type) {
		case history.Transition:
			err = r.store.AppendTransition(ctx, v)
		case history.RoutineRecord:
			err = r.store.AppendRoutine(ctx, v)
		}
		cancel()
		if err != nil {
			logging.Warn().
				Add(logging.Component("history")).
				Add(logging.ErrorField(err)).
				Msg("history write failed")
		}
	}
}

// close flushes pending records and stops the writer.
func (r *recorder) close() {
	r.once.Do(func() {
		if r.records != nil {
			close(r.records)
			r.wg.Wait()
		}
	})
}
