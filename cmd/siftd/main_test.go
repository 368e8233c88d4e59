package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"sift/internal/testsupport"
)

func writeConfig(t *testing.T, roots ...string) string {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDryRunDaemon(true, roots...))
	cfg.Logging.Level = "error"
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunRejectsMissingRoots(t *testing.T) {
	path := writeConfig(t)

	err := run(context.Background(), path)
	if err == nil {
		t.Fatal("expected error without roots")
	}
	if !strings.Contains(err.Error(), "no roots configured") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[thresholds]\nauto_execute = 2.0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("HOME", t.TempDir())

	if err := run(context.Background(), path); err == nil {
		t.Fatal("expected validation error")
	}
}
