package command

import (
	"testing"

	"github.com/felixgeelhaar/echo-go/domain/routine"
)

func TestGrammar_Parse(t *testing.T) {
	t.Parallel()

	standup := routine.Definition{
		Name:           "standup prep",
		TriggerPhrases: []string{"prepare my standup"},
		Prompt:         "Summarize yesterday's commits.",
		MaxSteps:       4,
	}
	g := NewGrammar(WithRoutines(standup))

	tests := []struct {
		text         string
		wantKind     Kind
		wantArgument string
	}{
		{"Stop listening.", KindStopListening, ""},
		{"please resume listening", KindResumeListening, ""},
		{"Hold on a sec", KindHold, ""},
		{"give me more time please", KindHold, ""},
		{"Stop!", KindInterrupt, ""},
		{"okay let me interrupt you", KindInterrupt, ""},
		{"how do I stop a container", KindConversation, ""},
		{"List my projects", KindListProjects, ""},
		{"Start a project called Billing Revamp.", KindStartProject, "Billing Revamp"},
		{"new project named atlas", KindStartProject, "atlas"},
		{"finish the project called Atlas", KindFinishProject, "Atlas"},
		{"archive project atlas", KindFinishProject, "atlas"},
		{"Could you prepare my standup?", KindRoutine, ""},
		{"Get to work on the flaky login test", KindAdHocTask, "the flaky login test"},
		{"what's the weather", KindConversation, ""},
		{"", KindConversation, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			cmd := g.Parse(tt.text)
			if cmd.Kind != tt.wantKind {
				t.Errorf("Parse(%q).Kind = %s, want %s", tt.text, cmd.Kind, tt.wantKind)
			}
			if cmd.Argument != tt.wantArgument {
				t.Errorf("Parse(%q).Argument = %q, want %q", tt.text, cmd.Argument, tt.wantArgument)
			}
		})
	}
}

func TestGrammar_ParseRoutineCarriesDefinition(t *testing.T) {
	t.Parallel()

	def := routine.Definition{Name: "triage", TriggerPhrases: []string{"triage the inbox"}, Prompt: "Triage."}
	cmd := NewGrammar(WithRoutines(def)).Parse("Triage the inbox now")

	if cmd.Kind != KindRoutine {
		t.Fatalf("Kind = %s, want %s", cmd.Kind, KindRoutine)
	}
	if cmd.Routine == nil || cmd.Routine.Name != "triage" {
		t.Errorf("Routine = %+v, want triage", cmd.Routine)
	}
}

func TestGrammar_IsInterrupt(t *testing.T) {
	t.Parallel()

	g := NewGrammar()
	tests := []struct {
		text string
		want bool
	}{
		{"stop", true},
		{"no no stop", true},
		{"listen up", true},
		{"unstoppable", false},
		{"keep going", false},
	}

	for _, tt := range tests {
		if got := g.IsInterrupt(tt.text); got != tt.want {
			t.Errorf("IsInterrupt(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Hello,   World! ", "hello world"},
		{"What's up?", "what's up"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
