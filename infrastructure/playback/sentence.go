// Package playback speaks text sentence by sentence with cooperative cancellation.
package playback

import (
	"strings"
	"unicode"
)

// SplitSentences splits text after '.', '!', '?', ';' or ':' followed by whitespace.
// Empty units are dropped.
func SplitSentences(text string) []string {
	var (
		out   []string
		start int
	)
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isBoundary(runes[i]) {
			continue
		}
		j := i + 1
		if j >= len(runes) || !unicode.IsSpace(runes[j]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start:j])); s != "" {
			out = append(out, s)
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isBoundary(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':':
		return true
	default:
		return false
	}
}
