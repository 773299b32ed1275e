package control

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMergesHeartbeatAndLogFileKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "heartbeat_ticks: 8\nlog_file: " + filepath.Join(dir, "out.log") + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cs := NewConfigStore()
	if err := cs.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	snap := cs.GetSnapshot()
	if snap["heartbeat_ticks"] != 8 {
		t.Fatalf("expected heartbeat_ticks=8, got %v", snap["heartbeat_ticks"])
	}
	if snap["log_file"] != filepath.Join(dir, "out.log") {
		t.Fatalf("expected log_file to round-trip, got %v", snap["log_file"])
	}
}

func TestSetConfigDispatchesReloadListeners(t *testing.T) {
	cs := NewConfigStore()
	done := make(chan struct{})
	cs.OnReload(func() { close(done) })

	cs.SetConfig(map[string]any{"host": "example.com"})

	<-done // SetConfig dispatches listeners via `go fn()`; blocks until it runs.
}
