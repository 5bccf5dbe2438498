package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/resilience"
)

// Webhook errors.
var (
	// ErrInvalidEndpoint is returned for an empty webhook URL.
	ErrInvalidEndpoint = errors.New("invalid webhook endpoint")

	// ErrEndpointRejected is returned for 4xx responses, which are not retried.
	ErrEndpointRejected = errors.New("webhook endpoint rejected request")

	// ErrEndpointUnavailable is returned when the endpoint cannot be reached.
	ErrEndpointUnavailable = errors.New("webhook endpoint unavailable")
)

// Signature headers.
const (
	HeaderSignature = "X-Echo-Signature"
	HeaderTimestamp = "X-Echo-Timestamp"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL        string
	Secret     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// Message is the JSON body posted for each notification.
type Message struct {
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// Webhook posts notifications to an HTTP endpoint, signed with HMAC-SHA256
// when a secret is configured.
type Webhook struct {
	config   WebhookConfig
	client   *http.Client
	executor *resilience.Executor[struct{}]
}

// NewWebhook creates a webhook sink.
func NewWebhook(config WebhookConfig) (*Webhook, error) {
	if config.URL == "" {
		return nil, ErrInvalidEndpoint
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "echo-webhook/1.0"
	}

	return &Webhook{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		executor: resilience.NewExecutor[struct{}](resilience.ExecutorConfig{
			MaxConcurrent:           2,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   30 * time.Second,
			RetryMaxAttempts:        config.MaxRetries,
			RetryInitialDelay:       config.RetryDelay,
			RetryBackoffMultiplier:  2,
			NonRetryable:            []error{ErrEndpointRejected, context.Canceled},
		}),
	}, nil
}

// Sign returns the signature header value for payload.
func Sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(payload []byte, secret, signature string, ts time.Time) bool {
	return hmac.Equal([]byte(Sign(payload, secret, ts)), []byte(signature))
}

// Send posts one message.
func (w *Webhook) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	_, err = w.executor.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, w.post(ctx, payload)
	})
	return err
}

func (w *Webhook) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", w.config.UserAgent)
	if w.config.Secret != "" {
		now := time.Now()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
		req.Header.Set(HeaderSignature, Sign(payload, w.config.Secret, now))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEndpointUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("server error %d: %s", resp.StatusCode, string(body))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrEndpointRejected, resp.StatusCode, string(body))
	}
}

// Attach forwards hub notifications to the webhook.
func (w *Webhook) Attach(ctx context.Context, hub *Hub) error {
	return hub.OnNotify(func(message string) {
		msg := Message{Kind: "notification", Message: message, Status: hub.LastStatus(), At: time.Now().UTC()}
		if err := w.Send(ctx, msg); err != nil {
			logging.Warn().
				Add(logging.Component("notify")).
				Add(logging.ErrorField(err)).
				Msg("webhook delivery failed")
		}
	})
}
