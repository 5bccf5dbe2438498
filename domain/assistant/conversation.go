package assistant

import "sync"

// Role identifies the author of a conversation turn.
type Role string

// Turn roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role
	Content string
}

// DefaultHistoryTurns bounds the conversation kept for stateless backends.
const DefaultHistoryTurns = 20

// Conversation is a bounded, concurrency-safe list of turns.
type Conversation struct {
	mu    sync.Mutex
	max   int
	turns []Turn
}

// NewConversation creates a conversation keeping at most max turns.
func NewConversation(max int) *Conversation {
	if max <= 0 {
		max = DefaultHistoryTurns
	}
	return &Conversation{max: max}
}

// Append adds a turn, dropping the oldest turns past the bound.
func (c *Conversation) Append(t Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, t)
	if over := len(c.turns) - c.max; over > 0 {
		c.turns = append([]Turn(nil), c.turns[over:]...)
	}
}

// Turns returns a copy of the turns, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns kept.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Reset drops all turns.
func (c *Conversation) Reset() {
	c.mu.Lock()
	c.turns = nil
	c.mu.Unlock()
}
