package routine

import "testing"

func TestParseMarker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		reply      string
		wantText   string
		wantMarker Marker
	}{
		{"next on own line", "Checked the builds.\nNEXT", "Checked the builds.", MarkerNext},
		{"done on own line", "Merged the branch.\nDONE\n", "Merged the branch.", MarkerDone},
		{"lower case own line", "Step complete.\n\ndone", "Step complete.", MarkerDone},
		{"trailing word", "All finished. DONE", "All finished.", MarkerDone},
		{"trailing word with period", "Moving on. NEXT.", "Moving on.", MarkerNext},
		{"no marker", "No marker here.", "No marker here.", MarkerNone},
		{"sentence ending in done", "Let me know when you're done.", "Let me know when you're done.", MarkerNone},
		{"marker inside word", "Reviewed CONDONE", "Reviewed CONDONE", MarkerNone},
		{"marker only", "NEXT", "", MarkerNext},
		{"empty", "", "", MarkerNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			text, marker := ParseMarker(tt.reply)
			if text != tt.wantText {
				t.Errorf("ParseMarker(%q) text = %q, want %q", tt.reply, text, tt.wantText)
			}
			if marker != tt.wantMarker {
				t.Errorf("ParseMarker(%q) marker = %q, want %q", tt.reply, marker, tt.wantMarker)
			}
		})
	}
}
