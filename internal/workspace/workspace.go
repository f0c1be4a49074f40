// Package workspace manages the isolated working directory owned by a single
// formatting job: it materializes the source, names every generated artifact
// off one fixed basename, and delivers the final output.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/texbuilder/internal/logfields"
)

// Basename is the fixed stem used for all artifacts generated inside a
// workspace (doc.tex, doc.aux, doc.log, ...).
const Basename = "doc"

// Workspace is an exclusively job-owned working directory (both ephemeral and persistent)
type Workspace struct {
	dir        string
	persistent bool // If true, the directory is caller-supplied and never removed
}

// New creates a uniquely-named temporary workspace with restrictive
// permissions. baseDir may be empty to use the platform temp directory.
func New(baseDir string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, "texbuilder-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Created workspace", logfields.Path(dir))
	return &Workspace{dir: dir}, nil
}

// NewPersistent reuses (creating if needed) a caller-supplied directory.
// Cleanup() leaves it in place.
func NewPersistent(dir string) (*Workspace, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create persistent workspace directory: %w", err)
	}
	slog.Debug("Using persistent workspace", logfields.Path(dir))
	return &Workspace{dir: dir, persistent: true}, nil
}

// Dir returns the path to the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// File returns the path of the workspace artifact with the given extension
// (without the leading dot).
func (w *Workspace) File(ext string) string {
	return filepath.Join(w.dir, Basename+"."+ext)
}

// WriteSource materializes the job's source text as <basename>.tex.
func (w *Workspace) WriteSource(source []byte) error {
	if err := os.WriteFile(w.File("tex"), source, 0o600); err != nil {
		return fmt.Errorf("failed to write source file: %w", err)
	}
	return nil
}

// Output reads the finished artifact with the given extension fully into memory.
func (w *Workspace) Output(ext string) ([]byte, error) {
	data, err := os.ReadFile(w.File(ext))
	if err != nil {
		return nil, fmt.Errorf("failed to read output artifact: %w", err)
	}
	return data, nil
}

// Deliver moves the finished artifact to dest and returns the final path. If
// dest is an existing directory the artifact keeps its workspace filename. A
// rename is attempted first; when that fails (e.g. cross-device) the artifact
// is read fully into memory and written out instead.
func (w *Workspace) Deliver(ext, dest string) (string, error) {
	src := w.File(ext)

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, Basename+"."+ext)
	}

	if err := os.Rename(src, dest); err == nil {
		slog.Debug("Delivered output via rename", logfields.Path(dest))
		return dest, nil
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("failed to read output artifact: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output to destination: %w", err)
	}
	slog.Debug("Delivered output via copy", logfields.Path(dest))
	return dest, nil
}

// Cleanup removes the workspace directory. Persistent (caller-supplied)
// workspaces are left untouched. Safe to call on every exit path.
func (w *Workspace) Cleanup() error {
	if w.dir == "" {
		return nil
	}
	if w.persistent {
		slog.Debug("Skipping cleanup for persistent workspace", logfields.Path(w.dir))
		return nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(w.dir))
	w.dir = ""
	return nil
}
