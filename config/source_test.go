package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const sourceYAML = `
title: %s
sites:
  - name: Test
    endpoints:
      - url: https://example.com
`

func writeConfig(t *testing.T, path, title string) {
	t.Helper()
	data := []byte(fmt.Sprintf(sourceYAML, title))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestStaticSource(t *testing.T) {
	cfg := &Config{Title: "static"}
	src := NewStaticSource(cfg)

	if src.Current() != cfg {
		t.Error("Current() returned a different config")
	}
	if src.Changes() != nil {
		t.Error("Changes() should be nil for a static source")
	}
}

func TestFileSource_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	writeConfig(t, path, "first")

	src, err := NewFileSource(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	if src.Current().Title != "first" {
		t.Fatalf("Title = %q, want first", src.Current().Title)
	}

	writeConfig(t, path, "second")
	if !src.Reload() {
		t.Fatal("Reload() = false, want true")
	}
	if src.Current().Title != "second" {
		t.Errorf("Title = %q, want second", src.Current().Title)
	}

	select {
	case cfg := <-src.Changes():
		if cfg.Title != "second" {
			t.Errorf("change Title = %q, want second", cfg.Title)
		}
	default:
		t.Error("expected a change notification")
	}
}

func TestFileSource_InvalidReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	writeConfig(t, path, "good")

	src, err := NewFileSource(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("sites: ["), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if src.Reload() {
		t.Fatal("Reload() = true for invalid config")
	}
	if src.Current().Title != "good" {
		t.Errorf("Title = %q, want previous snapshot", src.Current().Title)
	}
}

func TestFileSource_KeepsNewestUndelivered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	writeConfig(t, path, "v1")

	src, err := NewFileSource(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	writeConfig(t, path, "v2")
	src.Reload()
	writeConfig(t, path, "v3")
	src.Reload()

	cfg := <-src.Changes()
	if cfg.Title != "v3" {
		t.Errorf("change Title = %q, want v3", cfg.Title)
	}
}

func TestNewFileSource_InvalidFile(t *testing.T) {
	if _, err := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"), testLogger()); err == nil {
		t.Fatal("NewFileSource() expected error for missing file")
	}
}

func TestFileSource_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulsewatch.yaml")
	writeConfig(t, path, "before")

	src, err := NewFileSource(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// give the watcher time to register before writing
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case cfg := <-src.Changes():
			if cfg.Title == "after" {
				return
			}
		case <-tick.C:
			writeConfig(t, path, "after")
		case <-deadline:
			t.Fatal("timed out waiting for config change")
		}
	}
}
