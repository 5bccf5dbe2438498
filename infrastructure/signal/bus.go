// Package signal provides the Signal Bus, its cancellation tokens and the
// producers that fire it.
package signal

import (
	"sync"
	"sync/atomic"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// retainedTokens bounds how many unfired generations the bus can still fire by number.
const retainedTokens = 32

// Firing describes one token that fired.
type Firing struct {
	Generation uint64
	Reason     assistant.Reason
}

// Firer fires the current generation.
type Firer interface {
	Fire(reason assistant.Reason) (uint64, bool)
}

// token is a generation-numbered cancellation handle.
type token struct {
	gen    uint64
	done   chan struct{}
	once   sync.Once
	fired  atomic.Bool
	reason atomic.Value
}

func newToken(gen uint64) *token {
	return &token{gen: gen, done: make(chan struct{})}
}

func (t *token) Generation() uint64    { return t.gen }
func (t *token) Cancelled() bool       { return t.fired.Load() }
func (t *token) Done() <-chan struct{} { return t.done }

func (t *token) Reason() assistant.Reason {
	if r, ok := t.reason.Load().(assistant.Reason); ok {
		return r
	}
	return ""
}

// fire reports whether this call was the one that fired the token.
func (t *token) fire(reason assistant.Reason) bool {
	fired := false
	t.once.Do(func() {
		t.reason.Store(reason)
		t.fired.Store(true)
		close(t.done)
		fired = true
	})
	return fired
}

// Bus issues generation tokens and fires them on behalf of any producer.
// Firing is idempotent per generation; subscribers see each generation at most once.
type Bus struct {
	mu      sync.Mutex
	gen     uint64
	current *token
	tokens  map[uint64]*token
	subs    map[int]func(Firing)
	nextSub int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		tokens: make(map[uint64]*token),
		subs:   make(map[int]func(Firing)),
	}
}

// NewToken issues the next generation and makes it current.
func (b *Bus) NewToken() assistant.Token {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	t := newToken(b.gen)
	b.current = t
	b.tokens[t.gen] = t
	for gen := range b.tokens {
		if gen+retainedTokens <= b.gen {
			delete(b.tokens, gen)
		}
	}
	return t
}

// Current returns the current generation, or zero before the first token.
func (b *Bus) Current() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Fire fires the current generation's token. It returns the generation and
// whether this call fired it.
func (b *Bus) Fire(reason assistant.Reason) (uint64, bool) {
	b.mu.Lock()
	t := b.current
	b.mu.Unlock()
	if t == nil {
		return 0, false
	}
	return t.gen, b.fire(t, reason)
}

// FireGeneration fires a specific generation if the bus still tracks it.
func (b *Bus) FireGeneration(gen uint64, reason assistant.Reason) bool {
	b.mu.Lock()
	t, ok := b.tokens[gen]
	b.mu.Unlock()
	if !ok {
		return false
	}
	return b.fire(t, reason)
}

func (b *Bus) fire(t *token, reason assistant.Reason) bool {
	if !t.fire(reason) {
		return false
	}

	b.mu.Lock()
	delete(b.tokens, t.gen)
	subs := make([]func(Firing), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.Unlock()

	f := Firing{Generation: t.gen, Reason: reason}
	for _, fn := range subs {
		fn(f)
	}
	return true
}

// IsCancelled reports whether tok fired. A nil token is never cancelled.
func (b *Bus) IsCancelled(tok assistant.Token) bool {
	return tok != nil && tok.Cancelled()
}

// Subscribe registers fn for every firing and returns a function that removes it.
// fn runs on the firing goroutine and must not block.
func (b *Bus) Subscribe(fn func(Firing)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
