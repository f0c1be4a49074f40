package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID      = "job_id"
	KeyTool       = "tool"
	KeyRun        = "run"
	KeyFormat     = "format"
	KeyPath       = "path"
	KeyExitCode   = "exit_code"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Tool(name string) slog.Attr      { return slog.String(KeyTool, name) }
func JobID(id string) slog.Attr       { return slog.String(KeyJobID, id) }
func Run(n int) slog.Attr             { return slog.Int(KeyRun, n) }
func Format(f string) slog.Attr       { return slog.String(KeyFormat, f) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func ExitCode(c int) slog.Attr        { return slog.Int(KeyExitCode, c) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
