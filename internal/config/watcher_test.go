package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/nmspgate/internal/config"
)

const (
	watchedInfo = `
server:
  log_level: info
recognizer:
  project: rebble-asr
`
	watchedDebug = `
server:
  log_level: debug
recognizer:
  project: rebble-asr
`
	watchedBroken = `
server:
  log_level: loud
`
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %q: %v", path, err)
	}
}

// recorder collects watcher callbacks.
type recorder struct {
	mu    sync.Mutex
	calls [][2]*config.Config
	fired chan struct{}
}

func newRecorder() *recorder { return &recorder{fired: make(chan struct{}, 8)} }

func (r *recorder) onChange(old, new *config.Config) {
	r.mu.Lock()
	r.calls = append(r.calls, [2]*config.Config{old, new})
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func startWatcher(t *testing.T, content string, onChange func(old, new *config.Config)) (*config.Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nmspgate.yaml")
	writeFile(t, path, content)
	w, err := config.NewWatcher(path, onChange, config.WithInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, path
}

func TestWatcher_InitialLoad(t *testing.T) {
	t.Parallel()

	w, _ := startWatcher(t, watchedInfo, nil)
	cfg := w.Current()
	if cfg == nil || cfg.Server.LogLevel != config.LogInfo {
		t.Fatalf("Current() = %+v, want info level", cfg)
	}
	if cfg.Server.ServletPath != config.DefaultServlet {
		t.Errorf("defaults not applied: servlet_path = %q", cfg.Server.ServletPath)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	w, path := startWatcher(t, watchedInfo, rec.onChange)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, watchedDebug)
	// Some filesystems keep second-granularity mtimes.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange not called")
	}

	rec.mu.Lock()
	old, cur := rec.calls[0][0], rec.calls[0][1]
	rec.mu.Unlock()
	if old.Server.LogLevel != config.LogInfo || cur.Server.LogLevel != config.LogDebug {
		t.Errorf("callback levels = %q -> %q, want info -> debug", old.Server.LogLevel, cur.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != config.LogDebug {
		t.Errorf("Current() level = %q, want debug", w.Current().Server.LogLevel)
	}
}

func TestWatcher_KeepsConfigOnInvalidEdit(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	w, path := startWatcher(t, watchedInfo, rec.onChange)

	time.Sleep(50 * time.Millisecond)
	writeFile(t, path, watchedBroken)
	future := time.Now().Add(2 * time.Second)
	_ = os.Chtimes(path, future, future)
	time.Sleep(200 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("onChange called %d times for an invalid file", n)
	}
	if w.Current().Server.LogLevel != config.LogInfo {
		t.Errorf("Current() level = %q, want info", w.Current().Server.LogLevel)
	}
}

func TestWatcher_IgnoresTouch(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	_, path := startWatcher(t, watchedInfo, rec.onChange)

	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := rec.count(); n != 0 {
		t.Errorf("onChange called %d times for a touch", n)
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher on a missing file succeeded")
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()

	w, _ := startWatcher(t, watchedInfo, nil)
	w.Stop()
	w.Stop()
}
