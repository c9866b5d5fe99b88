package logger

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Fatalf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewJSONOutput(t *testing.T) {
	output := captureStdout(t, func() {
		log := New(Config{Format: "json", Level: "info"})
		log.Info().Msg("payout run started")
	})

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(output)), &entry); err != nil {
		t.Fatalf("expected JSON log entry, got %q: %v", output, err)
	}
	if entry["service"] != "payouts" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["message"] != "payout run started" {
		t.Fatalf("expected message field, got %v", entry["message"])
	}
}

func TestNewLevelFilters(t *testing.T) {
	output := captureStdout(t, func() {
		log := New(Config{Format: "json", Level: "error"})
		log.Info().Msg("suppressed")
	})

	if strings.TrimSpace(output) != "" {
		t.Fatalf("expected info log to be suppressed at error level, got %q", output)
	}
}

func TestNewConsoleOutput(t *testing.T) {
	output := captureStdout(t, func() {
		log := New(Config{Format: "console", Level: "info"})
		log.Info().Msg("hello")
	})

	if !strings.Contains(output, "hello") {
		t.Fatalf("expected console output to contain message, got %q", output)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = oldStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("failed to read stdout: %v", err)
	}

	return buf.String()
}
