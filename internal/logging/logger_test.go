package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sift/internal/config"
	"sift/internal/services"
)

func newTestConsole(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(level)
	return slog.New(newConsoleHandler(buf, lvl, false))
}

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLogger(newTestConsole(&buf, slog.LevelInfo), "executor")

	logger.Info("action executed",
		String(FieldPath, "/tmp/a file.txt"),
		Int(FieldActionID, 7),
		Group("counts", Int("executed", 2)),
	)

	line := buf.String()
	if !strings.Contains(line, " INFO executor: action executed") {
		t.Fatalf("missing level/component/message: %q", line)
	}
	if !strings.Contains(line, `path="/tmp/a file.txt"`) {
		t.Fatalf("expected quoted path: %q", line)
	}
	if !strings.Contains(line, "action_id=7") || !strings.Contains(line, "counts.executed=2") {
		t.Fatalf("missing fields: %q", line)
	}
	if !strings.Contains(line, `action executed action_id=7 path="/tmp/a file.txt" counts.executed=2`) {
		t.Fatalf("action fields should lead: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as a prefix: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "WARN shown") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestConsoleHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo).WithGroup("remote")

	logger.Info("connecting", String("bucket", "archive"), String("secret_key", "hunter2"))

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked: %q", out)
	}
	if !strings.Contains(out, "remote.secret_key=[redacted]") || !strings.Contains(out, "remote.bucket=archive") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelDebug)

	WarnWithContext(logger, "remote slow", "remote_slow", String(FieldErrorHint, "raise timeout_seconds"))

	out := buf.String()
	for _, want := range []string{"event_type=remote_slow", "error_hint=\"raise timeout_seconds\"", "impact="} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Count(out, "error_hint=") != 1 {
		t.Fatalf("caller hint should not be duplicated: %q", out)
	}

	WarnWithContext(nil, "ignored", "x")
	ErrorWithContext(nil, "ignored", "x")
}

func TestWithContextAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestConsole(&buf, slog.LevelInfo)

	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithActionID(ctx, 3)
	WithContext(ctx, base).Info("routed")

	out := buf.String()
	if !strings.Contains(out, "routed run_id=run-1 action_id=3") {
		t.Fatalf("missing context fields: %q", out)
	}

	if WithContext(context.Background(), base) != base {
		t.Fatal("logger without context fields should be returned unchanged")
	}
}

func TestJSONHandlerShape(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Error("failed", Error(errors.New("boom")), Alert("partial_run"), String("access_key", "AKIA"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, buf.String())
	}
	if record["level"] != "error" {
		t.Fatalf("expected lowercase level, got %v", record["level"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
	if record["error"] != "boom" || record[FieldAlert] != "partial_run" {
		t.Fatalf("unexpected fields: %v", record)
	}
	if record["access_key"] != "[redacted]" {
		t.Fatalf("access key not redacted: %v", record["access_key"])
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "info"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello", String(FieldEventType, "test"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "sift.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing entry: %q", data)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestDecisionAttrs(t *testing.T) {
	attrs := DecisionAttrs("gate", "skipped", "below review threshold")
	if !HasAttrKey(attrs, FieldDecisionType) || !HasAttrKey(attrs, "decision_reason") {
		t.Fatalf("unexpected attrs: %v", attrs)
	}
	if HasAttrKey(attrs, FieldPath) {
		t.Fatal("path should not be present")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
	NewComponentLogger(nil, "x").Info("dropped")
}
