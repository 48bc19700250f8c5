package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileTracker_PersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, true)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if err := tracker.MarkProcessed("hash-a", "a.vmg"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := tracker.MarkProcessed("hash-a", "a-copy.vmg"); err != nil {
		t.Fatalf("MarkProcessed() duplicate error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "processed.jsonl"))
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 1 {
		t.Errorf("expected 1 state line, got %d", lines)
	}

	reopened, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.AlreadyProcessed("hash-a") {
		t.Error("expected hash-a to be known after reopen")
	}
	if reopened.AlreadyProcessed("hash-b") {
		t.Error("did not expect hash-b to be known")
	}
	if got := reopened.Snapshot().Processed; got != 1 {
		t.Errorf("Snapshot().Processed = %d, want 1", got)
	}
}

func TestFileTracker_DryRunDoesNotWrite(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewFileTracker(dir, false)
	if err != nil {
		t.Fatalf("NewFileTracker() error = %v", err)
	}
	if err := tracker.MarkProcessed("hash-a", "a.vmg"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "processed.jsonl")); !os.IsNotExist(err) {
		t.Errorf("expected no state file in dry-run mode, stat err = %v", err)
	}
}

func TestBoltTracker_PersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()

	tracker, err := NewBoltTracker(dir, true)
	if err != nil {
		t.Fatalf("NewBoltTracker() error = %v", err)
	}
	if err := tracker.MarkProcessed("hash-a", "a.vmg"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewBoltTracker(dir, true)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.AlreadyProcessed("hash-a") {
		t.Error("expected hash-a to be known after reopen")
	}
	if got := reopened.Snapshot().Processed; got != 1 {
		t.Errorf("Snapshot().Processed = %d, want 1", got)
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{backend: "", wantErr: false},
		{backend: BackendJSONL, wantErr: false},
		{backend: "BOLT", wantErr: false},
		{backend: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			tracker, err := Open(tt.backend, t.TempDir(), true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open(%q) error = %v, wantErr %v", tt.backend, err, tt.wantErr)
			}
			if closer, ok := tracker.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}

func TestMemoryTracker_EmptyHash(t *testing.T) {
	tracker := NewMemoryTracker()
	if err := tracker.MarkProcessed("", "x.vmg"); err != nil {
		t.Fatalf("MarkProcessed() error = %v", err)
	}
	if tracker.AlreadyProcessed("") {
		t.Error("empty hash must never count as processed")
	}
}
