// log/log_test.go
// Copyright(c) 2025 gl3d contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNilLoggerDiscardsInfo(t *testing.T) {
	var l *Logger
	// None of these may panic.
	l.Debug("debug")
	l.Debugf("debug %d", 1)
	l.Info("info")
	l.Infof("info %d", 2)
	if l.With("k", "v") != nil {
		t.Errorf("With on nil logger should return nil")
	}
}

func TestLoggerAddsCallstack(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	l.Infof("frame %d", 7)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unable to decode log record %q: %v", buf.String(), err)
	}
	if rec["msg"] != "frame 7" {
		t.Errorf("expected message \"frame 7\", got %v", rec["msg"])
	}
	cs, ok := rec["callstack"].([]any)
	if !ok || len(cs) == 0 {
		t.Fatalf("expected a callstack attribute, got %v", rec["callstack"])
	}
	top := cs[0].(map[string]any)
	if top["file"] != "log_test.go" {
		t.Errorf("expected top frame in log_test.go, got %v", top["file"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: ParseLevel("warn")}))

	l.Info("dropped")
	l.Debug("dropped")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info/debug records should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		s    string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	} {
		if got := ParseLevel(tc.s); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.s, got, tc.want)
		}
	}
}
