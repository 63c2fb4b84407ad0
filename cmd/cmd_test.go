package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/watchpost/internal/server"
	"github.com/grovetools/watchpost/internal/status"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/grovetools/watchpost/recognition"
	"github.com/grovetools/watchpost/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

type env struct {
	t       *testing.T
	backend *testutil.Backend
	config  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	backend := testutil.NewBackend(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "watchpost.yml")
	doc := "backend:\n" +
		"  interpreter: " + testutil.Shell + "\n" +
		"  script_dir: " + backend.Dir + "\n" +
		"settings:\n" +
		"  path: settings.json\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return &env{t: t, backend: backend, config: path}
}

// run executes the command line and returns its stdout.
func (e *env) run(stdin string, args ...string) (string, error) {
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", e.config))
	err := root.Execute()
	return out.String(), err
}

func TestSettingsSetAndGet(t *testing.T) {
	e := newEnv(t)

	out, err := e.run("", "settings", "get", "detect_weapons")
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = e.run("", "settings", "set", "detect_weapons", "false")
	require.NoError(t, err)
	_, err = e.run("", "settings", "set", "zone", "lobby")
	require.NoError(t, err)
	_, err = e.run("", "settings", "set", "sensitivity", "0.7")
	require.NoError(t, err)

	out, err = e.run("", "settings", "get", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"detect_weapons":false,"zone":"lobby","sensitivity":0.7}`, out)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(e.config), "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"detect_weapons"`)
}

func TestSettingsRejectsBadValues(t *testing.T) {
	e := newEnv(t)

	_, err := e.run("", "settings", "set", "detect_weapons", "maybe")
	assert.Error(t, err)

	_, err = e.run("", "settings", "get", "missing")
	assert.Error(t, err)
}

func TestSchemaCommand(t *testing.T) {
	e := newEnv(t)
	for _, name := range []string{"config", "forms", "logging"} {
		out, err := e.run("", "schema", name)
		require.NoError(t, err, name)
		assert.True(t, json.Valid([]byte(out)), name)
	}

	_, err := e.run("", "schema", "nope")
	assert.Error(t, err)
}

func TestBackendCheckReportsMissingScripts(t *testing.T) {
	e := newEnv(t)
	e.backend.Reply("authenticator.py", `{"status":"success"}`)

	out, err := e.run("", "backend", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 backend script(s) missing")
	assert.Contains(t, out, "authenticator.py")

	for _, script := range []string{"register.py", "admin_uploader.py", "incident_manager.py", "main_recognition.py"} {
		e.backend.Reply(script, `{"status":"success"}`)
	}
	_, err = e.run("", "backend", "check")
	assert.NoError(t, err)
}

func TestBackendLogin(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	e := newEnv(t)
	e.backend.RecordArgs("authenticator.py", "", `{"status":"success","role":"admin","mode":"online"}`)

	out, err := e.run("s3cret\n", "backend", "login", "guard")
	require.NoError(t, err)
	assert.Contains(t, out, "role: admin")
	assert.Contains(t, out, "mode: online")
	assert.Equal(t, []string{"guard", "s3cret"}, e.backend.RecordedArgs("authenticator.py"))
}

func TestBackendLoginFailure(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	e := newEnv(t)
	e.backend.Reply("authenticator.py", `{"status":"error","message":"Invalid credentials"}`)

	_, err := e.run("wrong\n", "backend", "login", "guard")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid credentials")
}

func TestStatusWhenStopped(t *testing.T) {
	e := newEnv(t)
	out, err := e.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped")
}

func TestStatusQueriesStation(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(paths.PidFilePath()), 0o755))
	require.NoError(t, os.WriteFile(paths.PidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		json.NewEncoder(w).Encode(server.StatusResponse{
			Station: status.Snapshot{
				StartedAt:     time.Now().Add(-time.Minute),
				Session:       "logged_in",
				Role:          "admin",
				Mode:          "online",
				Views:         map[string]string{"home": "live"},
				DetectWeapons: true,
				CameraPanel:   "cards",
			},
			Worker: recognition.Status{Running: true, PID: 42, Messages: 7},
		})
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	out, err := e.run("", "status", "--addr", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "admin (online)")
	assert.Contains(t, out, "home=live")
	assert.Contains(t, out, "PID 42, 7 messages")
	assert.Contains(t, out, "cards")

	out, err = e.run("", "status", "--addr", addr, "--json")
	require.NoError(t, err)
	var resp server.StatusResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "admin", resp.Station.Role)
}

func TestStatusClientUnix(t *testing.T) {
	client, base := statusClient("unix:///run/watchpost.sock")
	assert.Equal(t, "http://watchpost", base)
	assert.NotNil(t, client.Transport)

	_, base = statusClient("127.0.0.1:7765")
	assert.Equal(t, "http://127.0.0.1:7765", base)
}

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watchpost.log")
	require.NoError(t, os.WriteFile(path, []byte("a\n\nb\nc\n"), 0o644))

	lines, err := lastLines(path, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	lines, err = lastLines(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, lines)

	_, err = lastLines(filepath.Join(t.TempDir(), "none.log"), 1)
	assert.True(t, os.IsNotExist(err))
}

func TestPrintLog(t *testing.T) {
	line := `{"time":"2026-03-01T10:20:30Z","level":"warning","msg":"Refused message","component":"station","channel":"open-dashboard"}`

	var out bytes.Buffer
	printLogText(&out, line)
	text := out.String()
	assert.Contains(t, text, "10:20:30")
	assert.Contains(t, text, "WARNING")
	assert.Contains(t, text, "Refused message")
	assert.Contains(t, text, "open-dashboard")

	out.Reset()
	printLogText(&out, "plain text line")
	assert.Equal(t, "plain text line\n", out.String())

	out.Reset()
	printLogJSON(&out, "plain text line")
	assert.JSONEq(t, `{"raw_line":"plain text line"}`, out.String())
}

func TestLogsCommand(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(t.TempDir(), "station.log")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644))

	out, err := e.run("", "logs", "--file", path, "--tail", "2")
	require.NoError(t, err)
	assert.Equal(t, "two\nthree\n", out)
}
