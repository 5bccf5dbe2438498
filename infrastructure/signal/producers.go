package signal

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/echo-go/domain/assistant"
)

// InterruptMatcher recognizes interrupt phrases in transcribed text.
type InterruptMatcher interface {
	IsInterrupt(text string) bool
}

// PhraseWatcher fires the bus when an interrupt phrase shows up in partial
// transcription, before the utterance is final.
type PhraseWatcher struct {
	matcher InterruptMatcher
	firer   Firer
}

// NewPhraseWatcher creates a watcher.
func NewPhraseWatcher(matcher InterruptMatcher, firer Firer) *PhraseWatcher {
	return &PhraseWatcher{matcher: matcher, firer: firer}
}

// Observe checks one transcription update and reports whether it fired the bus.
func (w *PhraseWatcher) Observe(text string) bool {
	if !w.matcher.IsInterrupt(text) {
		return false
	}
	_, fired := w.firer.Fire(assistant.ReasonVoicePhrase)
	return fired
}

// TapDetector fires the bus when a key is tapped Taps times within Window.
type TapDetector struct {
	mu     sync.Mutex
	firer  Firer
	taps   int
	window time.Duration
	seen   []time.Time
}

// NewTapDetector creates a detector. Non-positive settings fall back to
// three taps within 600ms.
func NewTapDetector(firer Firer, taps int, window time.Duration) *TapDetector {
	if taps <= 0 {
		taps = 3
	}
	if window <= 0 {
		window = 600 * time.Millisecond
	}
	return &TapDetector{firer: firer, taps: taps, window: window}
}

// Tap records a key press at now and reports whether it completed a sequence.
func (d *TapDetector) Tap(now time.Time) bool {
	d.mu.Lock()
	kept := d.seen[:0]
	for _, t := range d.seen {
		if now.Sub(t) <= d.window {
			kept = append(kept, t)
		}
	}
	d.seen = append(kept, now)
	complete := len(d.seen) >= d.taps
	if complete {
		d.seen = d.seen[:0]
	}
	d.mu.Unlock()

	if complete {
		d.firer.Fire(assistant.ReasonHotkey)
	}
	return complete
}
