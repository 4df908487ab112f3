package version

import (
	"strings"
	"testing"
)

func TestString_ContainsVersionAndBuildTime(t *testing.T) {
	t.Parallel()

	s := String()
	if !strings.Contains(s, Version) {
		t.Errorf("expected %q to contain version %q", s, Version)
	}
	if !strings.Contains(s, BuildTime) {
		t.Errorf("expected %q to contain build time %q", s, BuildTime)
	}
	if !strings.HasPrefix(s, "clario version ") {
		t.Errorf("unexpected prefix: %q", s)
	}
}
