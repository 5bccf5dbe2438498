package control

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
)

// Message types exchanged with WebSocket clients.
const (
	TypeStatus = "status"
	TypeAction = "action"
	TypeAck    = "ack"
	TypeError  = "error"
)

// Message is a WebSocket frame.
type Message struct {
	Type   string  `json:"type"`
	Action string  `json:"action,omitempty"`
	Status *Report `json:"status,omitempty"`
	Error  string  `json:"error,omitempty"`
}

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local UI clients only; the listener binds to a configured address.
		return true
	},
}

// Bridge pushes status changes to WebSocket clients and accepts actions.
type Bridge struct {
	dispatcher *Dispatcher

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	id   string
	mu   sync.Mutex
}

func (c *client) write(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

// NewBridge creates a bridge over the dispatcher.
func NewBridge(dispatcher *Dispatcher) *Bridge {
	return &Bridge{
		dispatcher: dispatcher,
		clients:    make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients.
func (b *Bridge) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Broadcast sends the current status to every client. The text argument
// matches the notify hub subscriber signature.
func (b *Bridge) Broadcast(_ string) {
	report := b.dispatcher.Report()
	msg := Message{Type: TypeStatus, Status: &report}

	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, c := range clients {
		if err := c.write(msg); err != nil {
			logging.Debug().
				Add(logging.Component("control")).
				Add(logging.Str("client", c.id)).
				Add(logging.ErrorField(err)).
				Msg("status push failed")
			b.drop(c)
		}
	}
}

func (b *Bridge) drop(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	delete(b.clients, c)
	b.mu.Unlock()
	if ok {
		_ = c.conn.Close()
	}
}

// ServeHTTP upgrades the request and serves one client until it disconnects.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().
			Add(logging.Component("control")).
			Add(logging.ErrorField(err)).
			Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, id: r.RemoteAddr}
	b.mu.Lock()
	b.clients[c] = struct{}{}
	b.mu.Unlock()
	defer b.drop(c)

	report := b.dispatcher.Report()
	if err := c.write(Message{Type: TypeStatus, Status: &report}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		reply := b.handle(r.Context(), c.id, data)
		if err := c.write(reply); err != nil {
			return
		}
	}
}

func (b *Bridge) handle(ctx context.Context, clientID string, data []byte) Message {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{Type: TypeError, Error: "invalid message"}
	}
	if msg.Type != TypeAction {
		return Message{Type: TypeError, Error: "unsupported message type"}
	}
	action, err := ParseAction(msg.Action)
	if err != nil {
		return Message{Type: TypeError, Action: msg.Action, Error: err.Error()}
	}
	if _, err := b.dispatcher.Do(ctx, clientID, action); err != nil {
		return Message{Type: TypeError, Action: msg.Action, Error: err.Error()}
	}
	report := b.dispatcher.Report()
	return Message{Type: TypeAck, Action: string(action), Status: &report}
}

// ListenAndServe serves the bridge on addr until ctx is done.
func (b *Bridge) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", b)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logging.Info().
		Add(logging.Component("control")).
		Add(logging.Str("addr", addr)).
		Msg("websocket bridge listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		b.mu.Lock()
		for c := range b.clients {
			_ = c.conn.Close()
		}
		b.mu.Unlock()
		return srv.Shutdown(shutdownCtx)
	}
}
