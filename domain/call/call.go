// Package call provides the domain model for call detection.
package call

import (
	"strings"
	"time"
)

// Session is a process holding an active audio session.
type Session struct {
	PID     int32
	Process string

	// Render is true for playback sessions, false for capture sessions.
	Render bool
}

// State is the debounced call state of one monitored application. Since is
// the time of the last stable change and is zero before the first one.
type State struct {
	App    string    `json:"app"`
	Active bool      `json:"active"`
	Since  time.Time `json:"since"`
}

// Transition is a stable change of the aggregate call state.
type Transition struct {
	Active bool
	At     time.Time
}

// MatchesApp reports whether a process name belongs to a monitored app.
// Comparison is case-insensitive and ignores an ".exe" suffix.
func MatchesApp(process, app string) bool {
	p := strings.TrimSuffix(strings.ToLower(process), ".exe")
	a := strings.TrimSuffix(strings.ToLower(app), ".exe")
	return p != "" && p == a
}

// AppActive reports whether sessions include app, on either endpoint.
func AppActive(sessions []Session, app string) bool {
	for _, s := range sessions {
		if MatchesApp(s.Process, app) {
			return true
		}
	}
	return false
}

// AnyActive reports whether sessions include any of apps, on either endpoint.
func AnyActive(sessions []Session, apps []string) bool {
	for _, app := range apps {
		if AppActive(sessions, app) {
			return true
		}
	}
	return false
}
