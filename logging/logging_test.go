package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: "warn", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "info", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	if got := LevelFromEnv(); got != slog.LevelWarn {
		t.Errorf("Got level %v, want warn", got)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "text")

	logger.Debug("hidden")
	logger.Info("Photo ingested", "id", "a.png")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug line logged at info level: %s", out)
	}
	if !strings.Contains(out, "msg=\"Photo ingested\"") || !strings.Contains(out, "id=a.png") {
		t.Errorf("Unexpected log line: %s", out)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelDebug, "json").Debug("Request received", "path", "/health")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Could not decode log line %q: %v", buf.String(), err)
	}
	if line["msg"] != "Request received" || line["path"] != "/health" {
		t.Errorf("Got %v", line)
	}
	ts, _ := line["time"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("Got time %q, want RFC3339: %v", ts, err)
	}
}
