// Mapasync - Shared Map Markers with Real-Time Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mapasync

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestInit(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{
		Level:     "debug",
		Format:    "json",
		Timestamp: true,
		Output:    &buf,
	})
	defer Init(DefaultConfig())

	Info().Str("id", "a").Msg("marker added")

	output := buf.String()
	if !strings.Contains(output, "marker added") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, `"id":"a"`) {
		t.Errorf("expected output to contain id field, got: %s", output)
	}
	if !strings.Contains(output, `"level":"info"`) {
		t.Errorf("expected output to contain level, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "info", Format: "console", Output: &buf})
	defer Init(DefaultConfig())

	Warn().Msg("console output")

	if !strings.Contains(buf.String(), "console output") {
		t.Errorf("expected console output, got: %s", buf.String())
	}
	if strings.Contains(buf.String(), `"message"`) {
		t.Errorf("console output should not be JSON: %s", buf.String())
	}
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	original := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(original)

	l := With().Str("component", "hub").Logger()
	l.Info().Msg("client registered")

	if !strings.Contains(buf.String(), `"component":"hub"`) {
		t.Errorf("expected component field from replaced logger, got: %s", buf.String())
	}
}

func TestInit_Caller(t *testing.T) {
	var buf bytes.Buffer

	Init(Config{Level: "info", Format: "json", Caller: true, Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("with caller")

	if !strings.Contains(buf.String(), `"caller"`) {
		t.Errorf("expected caller field, got: %s", buf.String())
	}
	if strings.Contains(buf.String(), `"time"`) {
		t.Errorf("timestamp disabled but present: %s", buf.String())
	}
}
