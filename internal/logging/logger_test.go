package logging_test

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trapsort/internal/config"
	"trapsort/internal/fault"
	"trapsort/internal/logging"
)

func TestNewFromConfigWritesRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, path, err := logging.NewFromConfig(&cfg, "0f8c2a4e-1111-2222-3333-444455556666")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "trapsort-") || !strings.Contains(path, "0f8c2a4e") {
		t.Fatalf("unexpected log path %q", path)
	}
	logger.Info("table written", logging.Int("rows", 12))

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "table written rows=12") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Console: io.Discard, File: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := logging.WithSite(logging.WithStage(context.Background(), "update"), "rg_s2_c3")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "reconcile")).
		Info("rows moved", logging.Int("moved", 4))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, "INFO reconcile: [update rg_s2_c3] rows moved moved=4") {
		t.Fatalf("unexpected console line %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONLoggerUsesShortKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: io.Discard, File: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := logging.WithRunID(context.Background(), "run-1")
	logging.WithContext(ctx, logger).Info("stage completed")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload["msg"] != "stage completed" || payload["level"] != "info" || payload["run_id"] != "run-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: io.Discard, File: logPath})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "exif missing", "metadata_missing", logging.String("file", "a.jpg"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, key := range []string{`"event_type":"metadata_missing"`, `"error_hint"`, `"impact"`} {
		if !strings.Contains(string(content), key) {
			t.Fatalf("expected %s in %s", key, content)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestCleanupOldLogsKeepsCurrentRun(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "trapsort-20200101T000000-aaaa.log")
	current := filepath.Join(dir, "trapsort-20200102T000000-bbbb.log")
	other := filepath.Join(dir, "notes.txt")
	stale := time.Now().AddDate(0, 0, -90)
	for _, p := range []string{old, current, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: logging.RunLogPattern,
		Exclude: []string{current},
	})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old run log removed, err=%v", err)
	}
	for _, keep := range []string{current, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
}

func TestFailureExpandsDiagnostics(t *testing.T) {
	err := fault.Integrity("rg_s1_c1", "known-species", "folder not in class map").WithFile("I1.JPG").WithClassID(7)

	got := make(map[string]string)
	for _, attr := range logging.Failure(err) {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		"scope":       "site",
		"camera_site": "rg_s1_c1",
		"file":        "I1.JPG",
		"class_id":    "7",
		"invariant":   "known-species",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s = %q, want %q (all: %v)", key, got[key], value, got)
		}
	}

	plain := logging.Failure(os.ErrPermission)
	if len(plain) != 2 {
		t.Fatalf("expected error and scope only, got %v", plain)
	}
}
