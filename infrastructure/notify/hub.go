// Package notify fans status text and user notifications out to UI surfaces.
package notify

import (
	"fmt"
	"io"
	"sync"

	evbus "github.com/asaskevich/EventBus"
)

// Topics published on the hub.
const (
	TopicStatus       = "echo:status"
	TopicNotification = "echo:notification"
)

// Hub publishes status changes and notifications. Subscribers run
// asynchronously, one goroutine per subscriber, in publish order.
type Hub struct {
	bus evbus.Bus

	mu   sync.RWMutex
	last string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{bus: evbus.New()}
}

// Status publishes the current status text.
func (h *Hub) Status(text string) {
	h.mu.Lock()
	h.last = text
	h.mu.Unlock()
	h.bus.Publish(TopicStatus, text)
}

// Notify publishes a user notification.
func (h *Hub) Notify(message string) {
	h.bus.Publish(TopicNotification, message)
}

// LastStatus returns the most recently published status text.
func (h *Hub) LastStatus() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// OnStatus subscribes fn to status changes.
func (h *Hub) OnStatus(fn func(text string)) error {
	return h.subscribe(TopicStatus, fn)
}

// OnNotify subscribes fn to notifications.
func (h *Hub) OnNotify(fn func(message string)) error {
	return h.subscribe(TopicNotification, fn)
}

func (h *Hub) subscribe(topic string, fn func(string)) error {
	if err := h.bus.SubscribeAsync(topic, fn, true); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Wait blocks until every published message has been handled.
func (h *Hub) Wait() {
	h.bus.WaitAsync()
}

// PrintTo subscribes a sink that writes status and notification lines to w.
func (h *Hub) PrintTo(w io.Writer) error {
	var mu sync.Mutex
	write := func(format, s string) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(w, format, s)
	}
	if err := h.OnStatus(func(text string) { write("[%s]\n", text) }); err != nil {
		return err
	}
	return h.OnNotify(func(message string) { write("! %s\n", message) })
}
