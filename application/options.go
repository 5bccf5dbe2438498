package application

import (
	"io"

	"github.com/felixgeelhaar/echo-go/infrastructure/agent"
	"github.com/felixgeelhaar/echo-go/infrastructure/callmonitor"
	"github.com/felixgeelhaar/echo-go/infrastructure/playback"
)

// Option configures the app.
type Option func(*options)

type options struct {
	version  string
	input    io.Reader
	output   io.Writer
	status   io.Writer
	backend  agent.Backend
	synth    playback.Synthesizer
	sessions callmonitor.SessionSource
}

// WithVersion sets the version reported by control surfaces.
func WithVersion(v string) Option {
	return func(o *options) {
		o.version = v
	}
}

// WithInput sets the transcript source. Defaults to stdin.
func WithInput(r io.Reader) Option {
	return func(o *options) {
		o.input = r
	}
}

// WithOutput sets where spoken text is printed when no playback command is configured.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// WithStatusOutput sets where status lines and notifications are printed.
func WithStatusOutput(w io.Writer) Option {
	return func(o *options) {
		o.status = w
	}
}

// WithBackend overrides the configured agent backend.
func WithBackend(b agent.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithSynthesizer overrides the configured speech output.
func WithSynthesizer(s playback.Synthesizer) Option {
	return func(o *options) {
		o.synth = s
	}
}

// WithSessionSource overrides the configured call session source.
func WithSessionSource(s callmonitor.SessionSource) Option {
	return func(o *options) {
		o.sessions = s
	}
}
