// Package transcript feeds typed or piped text into the assistant in place
// of live speech recognition.
package transcript

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
	"github.com/felixgeelhaar/echo-go/infrastructure/logging"
	"github.com/felixgeelhaar/echo-go/infrastructure/signal"
)

// Line prefixes understood by the console source.
const (
	// PartialPrefix marks a partial transcript, checked only for interrupt phrases.
	PartialPrefix = "~"
	// QuitLine stops the assistant.
	QuitLine = "/quit"
)

// Console reads one transcript per line.
//
// A line of dots taps the hotkey once per dot. A line starting with the wake
// phrase wakes the assistant and the rest of it, if any, is the utterance.
// Other lines are final utterances.
type Console struct {
	in      io.Reader
	wake    string
	taps    *signal.TapDetector
	phrases *signal.PhraseWatcher
	now     func() time.Time
}

// ConsoleConfig configures a Console.
type ConsoleConfig struct {
	WakePhrase string
	Taps       *signal.TapDetector
	Phrases    *signal.PhraseWatcher
	Clock      func() time.Time
}

// NewConsole creates a console source reading from in.
func NewConsole(in io.Reader, config ConsoleConfig) *Console {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &Console{
		in:      in,
		wake:    strings.ToLower(strings.TrimSpace(config.WakePhrase)),
		taps:    config.Taps,
		phrases: config.Phrases,
		now:     now,
	}
}

// Run reads lines until EOF or ctx is done.
func (c *Console) Run(ctx context.Context, emit func(assistant.Event)) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line := <-lines:
			c.Handle(line, emit)
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			logging.Debug().Add(logging.Component("transcript")).Msg("transcript input closed")
			return nil
		}
	}
}

// Handle processes one input line.
func (c *Console) Handle(line string, emit func(assistant.Event)) {
	text := strings.TrimSpace(line)
	switch {
	case text == "":
		return
	case strings.Trim(text, ".") == "":
		if c.taps == nil {
			return
		}
		now := c.now()
		for range text {
			c.taps.Tap(now)
		}
	case strings.HasPrefix(text, PartialPrefix):
		if c.phrases != nil {
			c.phrases.Observe(strings.TrimSpace(strings.TrimPrefix(text, PartialPrefix)))
		}
	case strings.EqualFold(text, QuitLine):
		emit(assistant.QuitRequested{})
	default:
		c.final(text, emit)
	}
}

func (c *Console) final(text string, emit func(assistant.Event)) {
	if c.wake != "" {
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, c.wake) {
			emit(assistant.WakeDetected{})
			rest := strings.TrimLeft(text[len(c.wake):], " ,.!?")
			if rest == "" {
				return
			}
			text = rest
		}
	}
	logging.Debug().
		Add(logging.Component("transcript")).
		Add(logging.Str("text", text)).
		Msg("utterance")
	emit(assistant.UtteranceTranscribed{Text: text})
}
