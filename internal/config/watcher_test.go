package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrWong99/boxkeeper/internal/config"
)

func TestWatcher_ReloadsValidChanges(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "boxkeeper.yaml")
	write(t, path, "server:\n  log_level: info\n")

	changes := make(chan config.Diff, 4)
	w, err := config.NewWatcher(path, func(_, _ *config.Config, d config.Diff) { changes <- d },
		config.WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)

	// An invalid edit is ignored.
	touch(t, path, "server:\n  log_level: loud\n", 1)
	select {
	case d := <-changes:
		t.Fatalf("invalid config triggered a reload: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Fatalf("current log level = %q", w.Current().Server.LogLevel)
	}

	touch(t, path, "server:\n  log_level: debug\n", 2)
	select {
	case d := <-changes:
		if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
			t.Errorf("diff = %+v", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after valid change")
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("current log level = %q, want debug", w.Current().Server.LogLevel)
	}
}

func TestNewWatcher_InvalidInitialConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "boxkeeper.yaml")
	write(t, path, "store:\n  backend: mongo\n")
	if _, err := config.NewWatcher(path, nil); err == nil {
		t.Fatal("expected error")
	}
}

// touch rewrites path and moves its mtime forward so that coarse filesystem
// timestamps still register the change.
func touch(t *testing.T, path, content string, step int) {
	t.Helper()
	write(t, path, content)
	mt := time.Now().Add(time.Duration(step) * time.Second)
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatal(err)
	}
}
