package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: WARN, Output: &buf})

	l.Info("hidden %d", 1)
	l.Warn("shown %d", 2)
	l.Error("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO line should be filtered at WARN level: %q", out)
	}
	if !strings.Contains(out, "WARN shown 2") {
		t.Errorf("Expected WARN line, got %q", out)
	}
	if !strings.Contains(out, "ERROR also shown") {
		t.Errorf("Expected ERROR line, got %q", out)
	}
}

func TestWithFieldsSortedPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: DEBUG, Output: &buf}).WithFields(map[string]interface{}{
		"order_id": "order_1",
		"attempt":  3,
	})

	l.Info("captured")

	if !strings.Contains(buf.String(), "INFO attempt=3 order_id=order_1 captured") {
		t.Errorf("unexpected line %q", buf.String())
	}
}

func TestFatalCallsExit(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: INFO, Output: &buf})
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal("boom")

	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"WARNING": WARN,
		" error ": ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
