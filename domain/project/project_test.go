package project

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Billing Revamp", "billing-revamp"},
		{"  Q3 -- Launch! ", "q3-launch"},
		{"???", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	if got := DisplayName("billing-revamp"); got != "Billing Revamp" {
		t.Errorf("DisplayName = %q, want %q", got, "Billing Revamp")
	}
}

func TestAppendToSection(t *testing.T) {
	t.Parallel()

	text := Render("Atlas", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))

	got, err := AppendToSection(text, SectionDecisions, "Use Postgres")
	if err != nil {
		t.Fatalf("AppendToSection() error = %v", err)
	}
	decisions := strings.Index(got, "## Key Decisions")
	progress := strings.Index(got, "## Progress Log")
	entry := strings.Index(got, "- Use Postgres")
	if entry < decisions || entry > progress {
		t.Errorf("entry at %d, want between %d and %d", entry, decisions, progress)
	}

	got, err = AppendToSection(got, SectionLessons, "Ship smaller")
	if err != nil {
		t.Fatalf("AppendToSection() error = %v", err)
	}
	if !strings.HasSuffix(got, "- Ship smaller\n") {
		t.Errorf("last section entry missing, got tail %q", got[len(got)-30:])
	}
}

func TestReplaceSectionBody(t *testing.T) {
	t.Parallel()

	text := Render("Atlas", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC))
	text, _ = AppendToSection(text, SectionProgress, "one")
	text, _ = AppendToSection(text, SectionProgress, "two")

	got, err := ReplaceSectionBody(text, SectionProgress, "- one and two done")
	if err != nil {
		t.Fatalf("ReplaceSectionBody() error = %v", err)
	}
	if strings.Contains(got, "- two\n") {
		t.Errorf("old entries kept after replace")
	}
	if !strings.Contains(got, "## Progress Log\n- one and two done\n\n## Blockers & Issues") {
		t.Errorf("replaced section malformed:\n%s", got)
	}
}

func TestParseSection(t *testing.T) {
	t.Parallel()

	if _, err := ParseSection("Key Decisions"); err != nil {
		t.Errorf("ParseSection(Key Decisions) error = %v", err)
	}
	if _, err := ParseSection("Random"); !errors.Is(err, ErrInvalidSection) {
		t.Errorf("ParseSection(Random) error = %v, want %v", err, ErrInvalidSection)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	got := Truncate(strings.Repeat("x", 20), 5)
	if !strings.HasPrefix(got, "xxxxx\n\n[TRUNCATED") {
		t.Errorf("Truncate = %q, want prefix with notice", got)
	}
}
