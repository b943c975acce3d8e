package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config LoggingConfig
	}{
		{"json stdout", LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{"text stderr", LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{"defaults", LoggingConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if NewLogger(tt.config) == nil {
				t.Fatal("NewLogger returned nil")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := parseLevel(tt.level); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestNewHandler_EnvironmentDefaults(t *testing.T) {
	tests := []struct {
		name      string
		config    LoggingConfig
		wantDebug bool
		wantJSON  bool
	}{
		{"dev defaults to text debug", LoggingConfig{Environment: "dev"}, true, false},
		{"pre defaults to json info", LoggingConfig{Environment: "pre"}, false, true},
		{"pro defaults to json info", LoggingConfig{Environment: "pro"}, false, true},
		{"explicit settings win in dev", LoggingConfig{Environment: "dev", Level: "warn", Format: "json"}, false, true},
		{"explicit debug in pro", LoggingConfig{Environment: "pro", Level: "debug"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := newHandler(&buf, tt.config)

			if got := handler.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}

			slog.New(handler).Warn("record rejected", "field", "visits")
			line := strings.TrimSpace(buf.String())
			isJSON := json.Valid([]byte(line))
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %s", isJSON, tt.wantJSON, line)
			}
			if !strings.Contains(line, "visits") {
				t.Errorf("output should carry attributes, got %s", line)
			}
		})
	}
}

func TestLoggerWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, LoggingConfig{Format: "text"}))

	logger = logger.With("component", "pipeline")
	logger.Info("flushed batch", "records", 10)

	output := buf.String()
	for _, want := range []string{"component=pipeline", "records=10", "flushed batch"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q, got: %s", want, output)
		}
	}
}
