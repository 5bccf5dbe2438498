// Package command maps transcribed utterances to tagged command variants.
package command

import (
	"regexp"
	"strings"

	"github.com/felixgeelhaar/echo-go/domain/routine"
)

// Kind identifies a command variant.
type Kind string

// Command kinds. KindConversation means the utterance is an ordinary turn.
const (
	KindConversation    Kind = "conversation"
	KindStopListening   Kind = "stop_listening"
	KindResumeListening Kind = "resume_listening"
	KindHold            Kind = "hold"
	KindInterrupt       Kind = "interrupt"
	KindRoutine         Kind = "routine"
	KindAdHocTask       Kind = "ad_hoc_task"
	KindListProjects    Kind = "list_projects"
	KindStartProject    Kind = "start_project"
	KindFinishProject   Kind = "finish_project"
)

// Command is a recognized utterance.
type Command struct {
	Kind Kind

	// Text is the original utterance.
	Text string

	// Argument carries the project name or ad-hoc task.
	Argument string

	// Routine is set for KindRoutine.
	Routine *routine.Definition

	// Phrase is the matched phrase, if any.
	Phrase string
}

// IsConversation reports whether the command should go to the agent as a turn.
func (c Command) IsConversation() bool {
	return c.Kind == KindConversation
}

// Default phrase sets.
var (
	DefaultStopPhrases      = []string{"stop listening"}
	DefaultResumePhrases    = []string{"resume listening"}
	DefaultHoldPhrases      = []string{"hold on a sec", "hold on a second", "give me more time"}
	DefaultInterruptPhrases = []string{"stop", "let me interrupt", "listen up"}
	DefaultListPhrases      = []string{"list my projects", "list projects", "show my projects", "what projects do i have"}
)

var (
	adHocPattern = regexp.MustCompile(`(?i)(?:get to work|start working|work) on (.+)`)

	startProjectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)start a project (?:called |named )?(.+)`),
		regexp.MustCompile(`(?i)create a project (?:called |named )?(.+)`),
		regexp.MustCompile(`(?i)new project (?:called |named )?(.+)`),
	}

	finishProjectPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:finish|close|complete|end) (?:the )?project (?:called |named )?(.+)`),
		regexp.MustCompile(`(?i)archive (?:the )?project (?:called |named )?(.+)`),
	}
)

// Grammar evaluates phrase sets in a fixed precedence before falling through
// to a conversational turn.
type Grammar struct {
	stop      []string
	resume    []string
	hold      []string
	interrupt []string
	list      []string
	routines  []routine.Definition
}

// Option configures a Grammar.
type Option func(*Grammar)

// WithStopPhrases replaces the stop-listening phrases.
func WithStopPhrases(p ...string) Option {
	return func(g *Grammar) { g.stop = normalizeAll(p) }
}

// WithResumePhrases replaces the resume-listening phrases.
func WithResumePhrases(p ...string) Option {
	return func(g *Grammar) { g.resume = normalizeAll(p) }
}

// WithHoldPhrases replaces the hold phrases.
func WithHoldPhrases(p ...string) Option {
	return func(g *Grammar) { g.hold = normalizeAll(p) }
}

// WithInterruptPhrases replaces the interrupt phrases.
func WithInterruptPhrases(p ...string) Option {
	return func(g *Grammar) { g.interrupt = normalizeAll(p) }
}

// WithRoutines sets the routine definitions.
func WithRoutines(defs ...routine.Definition) Option {
	return func(g *Grammar) { g.routines = append([]routine.Definition(nil), defs...) }
}

// NewGrammar creates a grammar with the default phrase sets.
func NewGrammar(opts ...Option) *Grammar {
	g := &Grammar{
		stop:      normalizeAll(DefaultStopPhrases),
		resume:    normalizeAll(DefaultResumePhrases),
		hold:      normalizeAll(DefaultHoldPhrases),
		interrupt: normalizeAll(DefaultInterruptPhrases),
		list:      normalizeAll(DefaultListPhrases),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Parse classifies an utterance.
func (g *Grammar) Parse(text string) Command {
	normalized := Normalize(text)
	cmd := Command{Kind: KindConversation, Text: text}
	if normalized == "" {
		return cmd
	}

	if p, ok := containsAny(normalized, g.stop); ok {
		return Command{Kind: KindStopListening, Text: text, Phrase: p}
	}
	if p, ok := containsAny(normalized, g.resume); ok {
		return Command{Kind: KindResumeListening, Text: text, Phrase: p}
	}
	if p, ok := containsAny(normalized, g.hold); ok {
		return Command{Kind: KindHold, Text: text, Phrase: p}
	}
	for _, p := range g.interrupt {
		if normalized == p || (strings.Contains(p, " ") && containsWords(normalized, p)) {
			return Command{Kind: KindInterrupt, Text: text, Phrase: p}
		}
	}
	if p, ok := containsAny(normalized, g.list); ok {
		return Command{Kind: KindListProjects, Text: text, Phrase: p}
	}
	for _, re := range startProjectPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return Command{Kind: KindStartProject, Text: text, Argument: cleanArgument(m[1])}
		}
	}
	for _, re := range finishProjectPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return Command{Kind: KindFinishProject, Text: text, Argument: cleanArgument(m[1])}
		}
	}
	for i := range g.routines {
		for _, phrase := range g.routines[i].TriggerPhrases {
			if containsWords(normalized, Normalize(phrase)) {
				def := g.routines[i]
				return Command{Kind: KindRoutine, Text: text, Routine: &def, Phrase: phrase}
			}
		}
	}
	if m := adHocPattern.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindAdHocTask, Text: text, Argument: cleanArgument(m[1])}
	}

	return cmd
}

// IsInterrupt reports whether text contains an interrupt phrase as whole words.
// It is evaluated over partial transcriptions while the assistant speaks.
func (g *Grammar) IsInterrupt(text string) bool {
	normalized := Normalize(text)
	for _, p := range g.interrupt {
		if containsWords(normalized, p) {
			return true
		}
	}
	return false
}

// Normalize lower-cases text, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\'':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func normalizeAll(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func containsAny(normalized string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if containsWords(normalized, p) {
			return p, true
		}
	}
	return "", false
}

// containsWords matches phrase on word boundaries within normalized text.
func containsWords(normalized, phrase string) bool {
	if phrase == "" {
		return false
	}
	padded := " " + normalized + " "
	return strings.Contains(padded, " "+phrase+" ")
}

func cleanArgument(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".!?,;: ")
}
