package assistant

import "testing"

func TestState_IsValid(t *testing.T) {
	t.Parallel()

	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("%s.IsValid() = false, want true", s)
		}
	}
	if State("sleeping").IsValid() {
		t.Errorf("sleeping.IsValid() = true, want false")
	}
}

func TestState_Label(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StatePausedManual, "Paused"},
		{StatePausedCall, "Paused (Call)"},
		{StateError, "Error"},
	}
	for _, tt := range tests {
		if got := tt.state.Label(); got != tt.want {
			t.Errorf("%s.Label() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateListening, true},
		{StateIdle, StateProcessing, false},
		{StateListening, StateAutonomous, true},
		{StateProcessing, StateIdle, false},
		{StatePausedCall, StateAutonomous, true},
		{StatePausedCall, StateProcessing, false},
		{StateError, StateIdle, true},
		{StateError, StateListening, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestState_OwnsResource(t *testing.T) {
	t.Parallel()

	owners := map[State]bool{
		StateListening:  true,
		StateProcessing: true,
		StateAutonomous: true,
	}
	for _, s := range AllStates() {
		if got := s.OwnsResource(); got != owners[s] {
			t.Errorf("%s.OwnsResource() = %v, want %v", s, got, owners[s])
		}
	}
}
