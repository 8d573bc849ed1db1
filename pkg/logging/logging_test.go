package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"DEBUG", LevelDebug},
		{"Warning", LevelWarn},
		{" error ", LevelError},
		{"", LevelInfo},
		{"trace", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLookupLevel_RejectsUnknown(t *testing.T) {
	if _, err := LookupLevel("verbose"); err == nil {
		t.Error("LookupLevel(verbose) error = nil, want error")
	}
	if _, err := LookupLevel(""); err != nil {
		t.Errorf("LookupLevel(\"\") error = %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.expected {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_JSONFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	log.Info("dropped")
	log.Warn("kept", "reason", "test")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["reason"] != "test" {
		t.Errorf("record = %v", rec)
	}
}

func TestMultiHandler_FansOut(t *testing.T) {
	var text, js bytes.Buffer
	h := NewMultiHandler(
		NewHandler(Config{Level: LevelInfo, Format: FormatText, Output: &text}),
		nil,
		NewHandler(Config{Level: LevelError, Format: FormatJSON, Output: &js}),
	)
	logger := slog.New(h).With("component", "cache")
	logger.Info("reloaded")
	logger.Error("failed")

	if !strings.Contains(text.String(), "reloaded") || !strings.Contains(text.String(), "failed") {
		t.Errorf("text handler output = %q", text.String())
	}
	if strings.Contains(js.String(), "reloaded") || !strings.Contains(js.String(), `"component":"cache"`) {
		t.Errorf("json handler output = %q", js.String())
	}
}
