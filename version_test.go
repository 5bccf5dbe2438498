package echogo

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	t.Parallel()

	v := GetVersion()
	if v != Version {
		t.Errorf("GetVersion() = %s, want %s", v, Version)
	}
	if strings.Count(v, ".") != 2 {
		t.Errorf("Version = %s, want major.minor.patch", v)
	}
}
