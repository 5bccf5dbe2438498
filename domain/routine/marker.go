package routine

import "strings"

// Marker is the continuation tag ending an agent reply in autonomous mode.
type Marker string

// Continuation markers.
const (
	MarkerNone Marker = ""
	MarkerNext Marker = "NEXT"
	MarkerDone Marker = "DONE"
)

// ParseMarker strips a trailing NEXT or DONE from reply.
// The marker is recognized on its own final line or as the trailing word.
// A reply without a marker is treated as NEXT by callers.
func ParseMarker(reply string) (string, Marker) {
	text := strings.TrimRight(reply, " \t\r\n")
	found := MarkerNone

	for _, m := range []Marker{MarkerDone, MarkerNext} {
		stripped, ok := stripTrailing(text, string(m))
		if !ok {
			continue
		}
		text = stripped
		if found == MarkerNone {
			found = m
		}
	}

	return text, found
}

func stripTrailing(text, marker string) (string, bool) {
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		last := strings.TrimSpace(text[idx+1:])
		if strings.EqualFold(strings.Trim(last, ".*_ "), marker) {
			return strings.TrimRight(text[:idx], " \t\r\n"), true
		}
	}

	trimmed := strings.TrimRight(text, ".*_ ")
	if len(trimmed) < len(marker) {
		return text, false
	}
	// Inline markers must be upper case so a sentence ending in "done" is kept.
	tail := trimmed[len(trimmed)-len(marker):]
	if tail != marker {
		return text, false
	}
	head := trimmed[:len(trimmed)-len(marker)]
	if head != "" {
		r := head[len(head)-1]
		if isWordByte(r) {
			return text, false
		}
	}
	return strings.TrimRight(head, " \t\r\n"), true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
