// Package testutil provides fake backend scripts for tests.
//
// Scripts are plain /bin/sh files run through the configured interpreter,
// so tests exercise the real process boundary without Python.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/watchpost/config"
	"github.com/stretchr/testify/require"
)

// Shell is the interpreter fake scripts are written for.
const Shell = "/bin/sh"

// RequireShell skips the test if /bin/sh is not available.
func RequireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(Shell); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// Backend is a temporary script directory laid out like the real backend.
type Backend struct {
	t   *testing.T
	Dir string
}

// NewBackend creates an empty script directory.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	RequireShell(t)
	return &Backend{t: t, Dir: t.TempDir()}
}

// Config returns a backend configuration pointing at this directory with
// the default script names and the given timeout (zero means default).
func (b *Backend) Config(timeout time.Duration) config.BackendConfig {
	cfg := config.Config{Backend: config.BackendConfig{
		Interpreter:    Shell,
		ScriptDir:      b.Dir,
		CommandTimeout: timeout,
		StopGrace:      500 * time.Millisecond,
	}}
	cfg.SetDefaults("")
	return cfg.Backend
}

// Script writes a shell script named file with the given body.
func (b *Backend) Script(file, body string) string {
	b.t.Helper()
	path := filepath.Join(b.Dir, file)
	content := "#!/bin/sh\n" + body
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	require.NoError(b.t, os.WriteFile(path, []byte(content), 0755))
	return path
}

// Reply writes a script that prints payload and exits 0.
func (b *Backend) Reply(file, payload string) string {
	return b.Script(file, "cat <<'EOF'\n"+payload+"\nEOF\n")
}

// ArgsFile returns where RecordArgs scripts store their arguments.
func (b *Backend) ArgsFile(file string) string {
	return filepath.Join(b.Dir, file+".args")
}

// RecordArgs writes a script that saves its arguments one per line, runs
// extra, then prints payload.
func (b *Backend) RecordArgs(file, extra, payload string) string {
	body := "printf '%s\\n' \"$@\" > '" + b.ArgsFile(file) + "'\n" +
		extra + "\n" +
		"cat <<'EOF'\n" + payload + "\nEOF\n"
	return b.Script(file, body)
}

// RecordedArgs reads the arguments saved by a RecordArgs script.
func (b *Backend) RecordedArgs(file string) []string {
	b.t.Helper()
	data, err := os.ReadFile(b.ArgsFile(file))
	require.NoError(b.t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// StreamingWorker writes a streaming worker script that appends every stdin
// line to a log file and runs body once per line with the line in $line.
// The log file path is returned.
func (b *Backend) StreamingWorker(file, body string) string {
	logPath := filepath.Join(b.Dir, file+".stdin")
	b.Script(file, "trap 'exit 0' INT TERM\n"+
		"while IFS= read -r line; do\n"+
		"  printf '%s\\n' \"$line\" >> '"+logPath+"'\n"+
		body+"\n"+
		"done\n")
	return logPath
}

// Lines reads a file as lines, returning nil when it does not exist yet.
func Lines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
