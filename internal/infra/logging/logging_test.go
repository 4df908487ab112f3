package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithOutput_WritesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOutput("info", &buf)
	log.Info().Str("key", "value").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"key":"value"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"service":"clario"`) {
		t.Errorf("expected service field in output, got %q", out)
	}
}

func TestNewWithOutput_LevelFilters(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithOutput("error", &buf)
	log.Info().Msg("dropped")

	if buf.Len() != 0 {
		t.Errorf("expected info message filtered at error level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "info", want: zerolog.InfoLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "verbose", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
