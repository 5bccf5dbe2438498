package call

import (
	"testing"
	"time"
)

func TestDebouncer_Observe(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	at := func(sec int) time.Time { return start.Add(time.Duration(sec) * time.Second) }

	tests := []struct {
		name    string
		window  time.Duration
		samples []bool
		want    []int // sample indexes that report a transition
	}{
		{"no change", 4 * time.Second, []bool{false, false, false}, nil},
		{"stable start after window", 4 * time.Second, []bool{true, true, true, true}, []int{2}},
		{"flap suppressed", 4 * time.Second, []bool{true, false, true, false, true, false}, nil},
		{"start then end", 2 * time.Second, []bool{true, true, true, false, false, false}, []int{1, 4}},
		{"zero window", 0, []bool{true, false}, []int{0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDebouncer(tt.window)
			var got []int
			for i, s := range tt.samples {
				// samples every 2 seconds
				if _, ok := d.Observe(at(i*2), s); ok {
					got = append(got, i)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("transitions at %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("transitions at %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestAnyActive(t *testing.T) {
	t.Parallel()

	sessions := []Session{
		{PID: 10, Process: "firefox"},
		{PID: 20, Process: "Teams.exe", Render: true},
	}

	if !AnyActive(sessions, []string{"teams"}) {
		t.Errorf("AnyActive(teams) = false, want true")
	}
	if AnyActive(sessions, []string{"zoom"}) {
		t.Errorf("AnyActive(zoom) = true, want false")
	}
	if AnyActive(nil, []string{"teams"}) {
		t.Errorf("AnyActive(nil) = true, want false")
	}
}
