package internal

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	// WHY: Verifies all documented log level strings map to the correct slog.Level,
	// including the "warn"/"warning" alias and the default fallback for unknown input.
	// "uppercase_not_recognized" documents that the function is case-sensitive.
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warning", input: "warning", want: slog.LevelWarn},
		{name: "warn_alias", input: "warn", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "unknown_defaults_info", input: "trace", want: slog.LevelInfo},
		{name: "uppercase_not_recognized", input: "DEBUG", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	// WHY: JSON logs are consumed by machines when provisioning runs in CI;
	// each record must be one parseable object carrying the attributes.
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("hidden")
	logger.Info("issued WebID certificate", "webid", "https://example.org/ted#me")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1 (debug filtered): %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["webid"] != "https://example.org/ted#me" {
		t.Errorf("webid attribute = %v", rec["webid"])
	}

	buf.Reset()
	text, err := NewLogger(&buf, "debug", "text")
	if err != nil {
		t.Fatal(err)
	}
	text.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("text output = %q", buf.String())
	}

	if _, err := NewLogger(&buf, "info", "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
