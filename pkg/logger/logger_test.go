package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogger_RespectsLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: WARN, Output: &buf})

	l.Info("should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected INFO to be filtered out at WARN level, got %q", buf.String())
	}

	l.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Errorf("expected WARN line to be written, got %q", buf.String())
	}
}

func TestLogger_WithFieldsIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithConfig(Config{Level: DEBUG, Output: &buf})

	derived := base.WithField("worker", "w1")
	derived.Info("hello")
	base.Info("world")

	out := buf.String()
	if !strings.Contains(out, "worker=w1") {
		t.Errorf("expected derived logger's line to carry worker=w1, got %q", out)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), out)
	}
	if strings.Contains(lines[1], "worker=w1") {
		t.Error("expected the base logger to remain unaffected by WithField")
	}
}

func TestLogger_WithModeTagsLines(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithConfig(Config{Level: INFO, Output: &buf}).WithMode("worker")

	l.Info("starting")
	if !strings.Contains(buf.String(), "[worker]") {
		t.Errorf("expected mode tag in output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DEBUG,
		"INFO":  INFO,
		"warn":  WARN,
		"ERROR": ERROR,
	}
	for input, want := range cases {
		got, err := ParseLevel(input)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}

	got, err := ParseLevel("bogus")
	if err == nil {
		t.Error("expected an error for an unrecognized level")
	}
	if got != INFO {
		t.Errorf("expected fallback to INFO, got %v", got)
	}
}
