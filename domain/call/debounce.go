package call

import "time"

// Debouncer turns raw poll samples into stable transitions. A change is
// reported only after the raw value has differed from the stable value for
// the whole window, and exactly once per stable change.
type Debouncer struct {
	window  time.Duration
	stable  bool
	pending bool
	since   time.Time
}

// NewDebouncer creates a debouncer whose stable value starts inactive.
func NewDebouncer(window time.Duration) *Debouncer {
	if window < 0 {
		window = 0
	}
	return &Debouncer{window: window}
}

// Stable returns the current stable value.
func (d *Debouncer) Stable() bool {
	return d.stable
}

// Observe feeds one sample taken at now. It returns a transition when the
// stable value flips.
func (d *Debouncer) Observe(now time.Time, active bool) (Transition, bool) {
	if active == d.stable {
		d.pending = false
		return Transition{}, false
	}
	if !d.pending {
		d.pending = true
		d.since = now
	}
	if now.Sub(d.since) < d.window {
		return Transition{}, false
	}
	d.stable = active
	d.pending = false
	return Transition{Active: active, At: now}, true
}
