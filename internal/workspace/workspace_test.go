package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspace_EphemeralMode(t *testing.T) {
	tempBase := t.TempDir()
	ws, err := New(tempBase)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	wsPath := ws.Dir()
	if wsPath == "" {
		t.Fatal("Dir() returned empty string")
	}
	if !strings.Contains(filepath.Base(wsPath), "texbuilder-") {
		t.Errorf("Expected texbuilder-prefixed directory, got: %s", wsPath)
	}
	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		t.Errorf("Workspace directory does not exist: %s", wsPath)
	}

	// Cleanup should remove directory
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Errorf("Workspace directory still exists after cleanup: %s", wsPath)
	}
}

func TestWorkspace_PersistentMode(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "working")
	ws, err := NewPersistent(dir)
	if err != nil {
		t.Fatalf("NewPersistent() failed: %v", err)
	}
	if ws.Dir() != dir {
		t.Errorf("Expected path %s, got: %s", dir, ws.Dir())
	}

	// Create a marker file to verify persistence
	markerFile := filepath.Join(dir, "marker.txt")
	if err := os.WriteFile(markerFile, []byte("persistent"), 0o600); err != nil {
		t.Fatalf("Failed to create marker file: %v", err)
	}

	// Cleanup should NOT remove directory in persistent mode
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(markerFile); os.IsNotExist(err) {
		t.Errorf("Marker file was removed from persistent workspace")
	}
}

func TestWorkspace_WriteSourceAndFile(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = ws.Cleanup() }()

	if err := ws.WriteSource([]byte("\\documentclass{article}")); err != nil {
		t.Fatalf("WriteSource() failed: %v", err)
	}

	data, err := os.ReadFile(ws.File("tex"))
	if err != nil {
		t.Fatalf("source file missing: %v", err)
	}
	if string(data) != "\\documentclass{article}" {
		t.Errorf("unexpected source content: %q", data)
	}

	if got, want := filepath.Base(ws.File("aux")), Basename+".aux"; got != want {
		t.Errorf("File(aux) = %s, want %s", got, want)
	}
}

func TestWorkspace_DeliverToFilePath(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = ws.Cleanup() }()

	if err := os.WriteFile(ws.File("pdf"), []byte("%PDF"), 0o600); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "final.pdf")
	written, err := ws.Deliver("pdf", dest)
	if err != nil {
		t.Fatalf("Deliver() failed: %v", err)
	}
	if written != dest {
		t.Errorf("Deliver() = %s, want %s", written, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "%PDF" {
		t.Errorf("delivered artifact wrong: %q, %v", data, err)
	}
}

func TestWorkspace_DeliverIntoDirectory(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = ws.Cleanup() }()

	if err := os.WriteFile(ws.File("ps"), []byte("%!PS"), 0o600); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}

	destDir := t.TempDir()
	written, err := ws.Deliver("ps", destDir)
	if err != nil {
		t.Fatalf("Deliver() failed: %v", err)
	}
	if want := filepath.Join(destDir, Basename+".ps"); written != want {
		t.Errorf("Deliver() = %s, want %s", written, want)
	}
}

func TestWorkspace_Output(t *testing.T) {
	ws, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer func() { _ = ws.Cleanup() }()

	if err := os.WriteFile(ws.File("dvi"), []byte("dvi-bytes"), 0o600); err != nil {
		t.Fatalf("failed to seed artifact: %v", err)
	}
	data, err := ws.Output("dvi")
	if err != nil {
		t.Fatalf("Output() failed: %v", err)
	}
	if string(data) != "dvi-bytes" {
		t.Errorf("unexpected output: %q", data)
	}
}
