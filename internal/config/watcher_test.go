package config_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/mcp-sapling/internal/config"
)

const baseYAML = `
server:
  log_level: info
sapling:
  binary: sl
  timeout: 30s
`

type change struct {
	old, new *config.Config
	diff     config.ConfigDiff
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// startWatcher writes baseYAML, starts a fast-polling watcher on it and
// returns the watcher, the file path and a channel of observed changes.
func startWatcher(t *testing.T) (*config.Watcher, string, <-chan change) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp-sapling.yaml")
	writeFile(t, path, baseYAML)

	changes := make(chan change, 8)
	w, err := config.NewWatcher(path, func(old, new *config.Config, d config.ConfigDiff) {
		changes <- change{old, new, d}
	}, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path, changes
}

func waitChange(t *testing.T, changes <-chan change) change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change observed")
		return change{}
	}
}

func expectNoChange(t *testing.T, changes <-chan change) {
	t.Helper()
	select {
	case c := <-changes:
		t.Fatalf("unexpected change: %+v", c.diff)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t)
	cur := w.Current()
	if cur.Server.LogLevel != config.LogInfo || cur.Sapling.Timeout != 30*time.Second {
		t.Errorf("Current() = %+v", cur)
	}
}

func TestWatcher_LogLevelIsHotReloadable(t *testing.T) {
	t.Parallel()
	w, path, changes := startWatcher(t)

	writeFile(t, path, "server:\n  log_level: debug\nsapling:\n  binary: sl\n  timeout: 30s\n")
	c := waitChange(t, changes)

	if c.old.Server.LogLevel != config.LogInfo || c.new.Server.LogLevel != config.LogDebug {
		t.Errorf("old/new log_level = %q/%q", c.old.Server.LogLevel, c.new.Server.LogLevel)
	}
	if !c.diff.LogLevelChanged || c.diff.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v, want log level change to debug", c.diff)
	}
	if len(c.diff.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", c.diff.RestartRequired)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() not updated")
	}
}

func TestWatcher_RestartRequiredFields(t *testing.T) {
	t.Parallel()
	_, path, changes := startWatcher(t)

	writeFile(t, path, "server:\n  log_level: info\nsapling:\n  binary: /opt/sl\n  timeout: 10s\n")
	c := waitChange(t, changes)

	if c.diff.LogLevelChanged {
		t.Error("LogLevelChanged = true, want false")
	}
	for _, key := range []string{"sapling.binary", "sapling.timeout"} {
		if !slices.Contains(c.diff.RestartRequired, key) {
			t.Errorf("RestartRequired = %v, missing %q", c.diff.RestartRequired, key)
		}
	}
}

func TestWatcher_InvalidEditKeepsLastValid(t *testing.T) {
	t.Parallel()
	w, path, changes := startWatcher(t)

	writeFile(t, path, "server:\n  log_level: bananas\n")
	expectNoChange(t, changes)
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() log_level = %q, want last valid", w.Current().Server.LogLevel)
	}

	// A later valid edit is still picked up.
	writeFile(t, path, "server:\n  log_level: warn\n")
	if c := waitChange(t, changes); c.new.Server.LogLevel != config.LogWarn {
		t.Errorf("new log_level = %q, want warn", c.new.Server.LogLevel)
	}
}

func TestWatcher_TouchWithoutContentChange(t *testing.T) {
	t.Parallel()
	_, path, changes := startWatcher(t)

	later := time.Now().Add(time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	expectNoChange(t, changes)
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	w, _, _ := startWatcher(t)
	w.Stop()
	w.Stop()
}

// lockedBuffer is a bytes.Buffer safe for the watcher goroutine to write
// while the test reads.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Not parallel: it swaps the default logger.
func TestWatcher_InvalidEditWarnsOnce(t *testing.T) {
	var logs lockedBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, path, changes := startWatcher(t)
	writeFile(t, path, "sapling:\n  timeout: -1s\n")

	// Ten polling intervals.
	expectNoChange(t, changes)

	var warnings int
	for _, line := range strings.Split(logs.String(), "\n") {
		if strings.Contains(line, "keeping previous config") && strings.Contains(line, path) {
			warnings++
		}
	}
	if warnings != 1 {
		t.Errorf("logged %d warnings for one invalid edit, want 1:\n%s", warnings, logs.String())
	}
}
