// Package audit records every destructive OS action before it is taken.
package audit

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// dirName is the per-project state directory the log lives in.
const dirName = ".devserve"

// Logger writes structured JSON audit events. Signals are logged with
// port/PID/rationale before execution so a post-mortem can reconstruct what
// devserve killed and why.
type Logger struct {
	log zerolog.Logger
}

// Open creates (or appends to) the audit log under projectDir. Failure to
// open the file is non-fatal: auditing falls back to stderr.
func Open(projectDir string) *Logger {
	dir := filepath.Join(projectDir, dirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create audit directory: %v\n", err)
		return New(os.Stderr)
	}

	path := filepath.Join(dir, "audit.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to open audit log: %v\n", err)
		return New(os.Stderr)
	}

	return New(file)
}

// New creates an audit logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		log: zerolog.New(w).With().Timestamp().Str("component", "devserve").Logger(),
	}
}

// Signal records an imminent signal delivery.
func (l *Logger) Signal(port, pid int, signal, rationale string) {
	l.log.Info().
		Str("action", "signal").
		Int("port", port).
		Int("pid", pid).
		Str("signal", signal).
		Str("rationale", rationale).
		Msg("sending signal")
}

// Reclaim records the start of an aggressive port reclamation.
func (l *Logger) Reclaim(port int, pids []int, rationale string) {
	l.log.Info().
		Str("action", "reclaim").
		Int("port", port).
		Ints("pids", pids).
		Str("rationale", rationale).
		Msg("reclaiming port")
}

// Spawn records a dev-server launch.
func (l *Logger) Spawn(port, pid int, command string) {
	l.log.Info().
		Str("action", "spawn").
		Int("port", port).
		Int("pid", pid).
		Str("command", command).
		Msg("spawned dev server")
}

// Warning records a non-fatal anomaly, such as a port that still looks busy
// after cleanup.
func (l *Logger) Warning(port int, message string) {
	l.log.Warn().
		Str("action", "warning").
		Int("port", port).
		Msg(message)
}
