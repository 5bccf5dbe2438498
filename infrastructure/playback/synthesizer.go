package playback

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Synthesizer renders one sentence as audio. Speak should stop early when ctx ends.
type Synthesizer interface {
	Speak(ctx context.Context, sentence string) error
}

// ConsoleSynthesizer prints sentences instead of speaking them.
type ConsoleSynthesizer struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
}

// NewConsoleSynthesizer creates a synthesizer writing to out.
func NewConsoleSynthesizer(out io.Writer, prefix string) *ConsoleSynthesizer {
	return &ConsoleSynthesizer{out: out, prefix: prefix}
}

// Speak writes the sentence on its own line.
func (c *ConsoleSynthesizer) Speak(ctx context.Context, sentence string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "%s%s\n", c.prefix, sentence)
	return err
}

// CommandSynthesizer runs an external TTS command per sentence, for example
// "espeak" or "say". The sentence is passed as the last argument.
type CommandSynthesizer struct {
	name string
	args []string
}

// NewCommandSynthesizer parses a command line such as "espeak -s 170".
func NewCommandSynthesizer(command string) (*CommandSynthesizer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty playback command")
	}
	if _, err := exec.LookPath(fields[0]); err != nil {
		return nil, fmt.Errorf("playback command %q: %w", fields[0], err)
	}
	return &CommandSynthesizer{name: fields[0], args: fields[1:]}, nil
}

// Speak runs the command and waits for it. Cancelling ctx kills the process.
func (c *CommandSynthesizer) Speak(ctx context.Context, sentence string) error {
	args := append(append([]string(nil), c.args...), sentence)
	cmd := exec.CommandContext(ctx, c.name, args...) // #nosec G204 -- command comes from local configuration
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("playback command: %w", err)
	}
	return nil
}
