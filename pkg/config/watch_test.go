package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// replaceFile swaps content in with a rename so the watcher never observes a
// truncated file.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("Failed to replace config file: %v", err)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(level string) {
		replaceFile(t, path, "logging:\n  level: "+level+"\nsnapshots:\n  in_memory: true\n")
	}
	write("INFO")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { reloaded <- cfg })
	}()

	// The watcher registers asynchronously, so keep rewriting until a
	// reload is observed.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case cfg := <-reloaded:
			if cfg.Logging.Level != "DEBUG" {
				t.Errorf("Expected reloaded level 'DEBUG', got %q", cfg.Logging.Level)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch returned error: %v", err)
			}
			return
		case <-ticker.C:
			write("debug")
		case <-deadline:
			t.Fatal("Timed out waiting for config reload")
		}
	}
}

func TestWatch_IgnoresInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: INFO\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	called := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(*Config) { called <- struct{}{} })
	}()

	time.Sleep(100 * time.Millisecond)
	replaceFile(t, path, "logging:\n  level: LOUD\n")

	if err := <-done; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
	select {
	case <-called:
		t.Error("Expected invalid config not to be delivered")
	default:
	}
}

func TestWatch_RequiresPath(t *testing.T) {
	if err := Watch(context.Background(), "", func(*Config) {}); err == nil {
		t.Fatal("Expected error for empty path")
	}
}
