// Package callmonitor polls audio sessions and reports debounced call transitions.
package callmonitor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/felixgeelhaar/echo-go/domain/call"
)

// SessionSource lists processes that currently hold audio sessions.
type SessionSource interface {
	Sessions(ctx context.Context) ([]call.Session, error)
}

// PulseSource reads playback and capture streams from PulseAudio or
// PipeWire through pactl. Corked streams are ignored.
type PulseSource struct {
	command string
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewPulseSource creates a source using the pactl binary.
func NewPulseSource() *PulseSource {
	return &PulseSource{command: "pactl", run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output() // #nosec G204 -- fixed binary and arguments
}

// Sessions returns render (sink input) and capture (source output) sessions.
func (p *PulseSource) Sessions(ctx context.Context) ([]call.Session, error) {
	var sessions []call.Session
	for _, kind := range []struct {
		list   string
		render bool
	}{
		{"sink-inputs", true},
		{"source-outputs", false},
	} {
		out, err := p.run(ctx, p.command, "list", kind.list)
		if err != nil {
			return nil, fmt.Errorf("pactl list %s: %w", kind.list, err)
		}
		for _, s := range ParsePactl(string(out), kind.render) {
			if s.Process == "" && s.PID > 0 {
				s.Process = processName(ctx, s.PID)
			}
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// ParsePactl extracts uncorked sessions from `pactl list sink-inputs` or
// `pactl list source-outputs` output.
func ParsePactl(out string, render bool) []call.Session {
	var (
		sessions []call.Session
		current  *call.Session
		corked   bool
	)
	flush := func() {
		if current != nil && !corked && (current.PID > 0 || current.Process != "") {
			sessions = append(sessions, *current)
		}
		current = nil
		corked = false
	}

	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Sink Input #"), strings.HasPrefix(line, "Source Output #"):
			flush()
			current = &call.Session{Render: render}
		case current == nil:
			continue
		case strings.HasPrefix(line, "Corked:"):
			corked = strings.TrimSpace(strings.TrimPrefix(line, "Corked:")) == "yes"
		default:
			key, value, ok := property(line)
			if !ok {
				continue
			}
			switch key {
			case "application.process.id":
				if pid, err := strconv.ParseInt(value, 10, 32); err == nil {
					current.PID = int32(pid)
				}
			case "application.process.binary":
				current.Process = value
			}
		}
	}
	flush()
	return sessions
}

func property(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.Trim(strings.TrimSpace(value), `"`), true
}

func processName(ctx context.Context, pid int32) string {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ""
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ""
	}
	return name
}

// ProcessSource treats a running monitored process as an active session.
// It is a fallback for systems without an audio session API.
type ProcessSource struct{}

// Sessions returns one session per running process.
func (ProcessSource) Sessions(ctx context.Context) ([]call.Session, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	sessions := make([]call.Session, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		sessions = append(sessions, call.Session{PID: p.Pid, Process: name, Render: true})
	}
	return sessions, nil
}
