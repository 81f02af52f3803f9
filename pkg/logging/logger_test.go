// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatAuto, "auto": FormatAuto, "TEXT": FormatText, "json": FormatJSON} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Errorf("ParseFormat(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) expected error")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_JSONWriterIncludesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, Service: "mocksre", Writer: &buf})

	logger.Slog().Info("mode changed", "failure_mode", "slow_query")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0]["service"] != "mocksre" {
		t.Errorf("service = %v, want mocksre", lines[0]["service"])
	}
	if lines[0]["failure_mode"] != "slow_query" {
		t.Errorf("failure_mode = %v, want slow_query", lines[0]["failure_mode"])
	}
}

func TestNew_AutoFormatOffTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Writer: &buf})
	logger.Slog().Info("hello")

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output for non-terminal writer, got %q", buf.String())
	}
}

func TestNew_TextFormatWithoutColour(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: FormatText, Writer: &buf})
	logger.Slog().Info("hello", "k", "v")

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no ANSI colour codes off-terminal, got %q", out)
	}
	if !strings.Contains(out, "hello") || !strings.Contains(out, "k=v") {
		t.Errorf("unexpected text output %q", out)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatJSON, Writer: &buf})

	logger.Slog().Debug("d")
	logger.Slog().Info("i")
	logger.Slog().Warn("w")
	logger.Slog().Error("e")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (warn, error)", len(lines))
	}
}

func TestNew_WithLogDirFansOut(t *testing.T) {
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	logger := New(Config{Format: FormatJSON, LogDir: tmpDir, Service: "test", Writer: &buf})
	logger.Slog().Info("both")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	files, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(files) != 1 || !strings.HasPrefix(files[0].Name(), "test_") {
		t.Fatalf("unexpected log files: %v", files)
	}
	data, err := os.ReadFile(filepath.Join(tmpDir, files[0].Name()))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"both"`) {
		t.Errorf("file missing record: %s", data)
	}
	if !strings.Contains(buf.String(), `"msg":"both"`) {
		t.Errorf("console missing record: %s", buf.String())
	}
}

func TestNew_QuietWithoutLogDirDiscards(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Quiet: true, Writer: &buf})
	logger.Slog().Error("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected no output in quiet mode, got %q", buf.String())
	}
}

func TestLogger_CloseTwice(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	child := New(Config{Format: FormatJSON, Writer: &buf}).With("request_id", "abc")
	child.Slog().Info("scoped")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["request_id"] != "abc" {
		t.Errorf("child logger missing request_id: %v", lines)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	var buf safeBuffer
	logger := New(Config{Format: FormatJSON, Writer: &buf})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.Slog().Info("concurrent", "n", n)
		}(i)
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "\n"); got != 20 {
		t.Errorf("got %d lines, want 20", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if got := expandPath("/var/log"); got != "/var/log" {
		t.Errorf("expandPath(/var/log) = %q", got)
	}
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
