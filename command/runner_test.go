package command

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(t *testing.T, timeout time.Duration) (*Runner, *testutil.Backend) {
	t.Helper()
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	backend := testutil.NewBackend(t)
	return NewRunner(backend.Config(timeout), nil), backend
}

func TestRunSuccess(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.RecordArgs("authenticator.py", "", `{"status": "success", "role": "admin", "mode": "online"}`)

	result, err := runner.Run(context.Background(), config.CommandAuthenticate, "alice", "s3cret")
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, config.CommandAuthenticate, result.Command)

	var payload struct {
		Role string `json:"role"`
		Mode string `json:"mode"`
	}
	require.NoError(t, result.Decode(&payload))
	assert.Equal(t, "admin", payload.Role)
	assert.Equal(t, "online", payload.Mode)

	assert.Equal(t, []string{"alice", "s3cret"}, backend.RecordedArgs("authenticator.py"))
}

func TestRunUsesLastJSONLine(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Script("incident_manager.py", `
echo "connecting to table storage"
echo '{"status": "progress"}'
echo '{"status": "success", "data": []}'
`)

	result, err := runner.Run(context.Background(), config.CommandIncidents, "list")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	assert.JSONEq(t, `{"status": "success", "data": []}`, string(result.Payload))
}

func TestRunMultiLineJSON(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Script("incident_manager.py", `
echo "loading incidents"
cat <<'EOF'
{
  "status": "success",
  "data": [
    {"id": "a1"},
    {"id": "b2"}
  ]
}
EOF
`)

	result, err := runner.Run(context.Background(), config.CommandIncidents, "list")
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, result.Decode(&payload))
	require.Len(t, payload.Data, 2)
	assert.Equal(t, "b2", payload.Data[1].ID)
}

func TestParseTerminal(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"single line", `{"status":"success"}`, `{"status":"success"}`},
		{"last object wins", "{\"status\":\"progress\"}\n{\"status\":\"error\"}\n", `{"status":"error"}`},
		{"spans lines", "{\n  \"status\": \"success\"\n}\n", `{"status":"success"}`},
		{"text around object", "step 1\n{\"status\":\"success\"}\ndone\n", `{"status":"success"}`},
		{"broken brace line skipped", "{oops\n{\"status\":\"success\"}\n", `{"status":"success"}`},
		{"truncated object", "{\"status\":\"success\",\n", ""},
		{"no object", "hello\n[1,2]\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := parseTerminal("test", []byte(tt.out))
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(result.Payload))
		})
	}
}

func TestRunBooleanSuccessField(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Reply("register.py", `{"success": true, "message": "created"}`)

	result, err := runner.Run(context.Background(), config.CommandRegister, "bob", "pw", "none")
	require.NoError(t, err)
	assert.Equal(t, "created", result.Message)
}

func TestRunClassification(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		body    string
		code    errors.ErrorCode
		message string
	}{
		{
			name:    "backend failure carries payload message",
			script:  "authenticator.py",
			body:    `echo '{"status": "error", "message": "Invalid username or password."}'`,
			code:    errors.ErrCodeBackendFailure,
			message: "Invalid username or password.",
		},
		{
			name:    "no json is malformed",
			script:  "authenticator.py",
			body:    `echo "Traceback: nothing useful"`,
			code:    errors.ErrCodeMalformedResponse,
			message: "malformed response",
		},
		{
			name:    "empty output is malformed",
			script:  "authenticator.py",
			body:    `true`,
			code:    errors.ErrCodeMalformedResponse,
			message: "malformed response",
		},
		{
			name:    "crash without reply is transport failure",
			script:  "authenticator.py",
			body:    "echo 'ModuleNotFoundError' >&2\nexit 3",
			code:    errors.ErrCodeTransportFailure,
			message: "exit status 3",
		},
		{
			name:    "reply wins over exit status",
			script:  "authenticator.py",
			body:    "echo '{\"status\": \"error\", \"message\": \"cache empty\"}'\nexit 1",
			code:    errors.ErrCodeBackendFailure,
			message: "cache empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, backend := newRunner(t, 0)
			backend.Script(tt.script, tt.body)

			result, err := runner.Run(context.Background(), config.CommandAuthenticate, "u", "p")
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.Equal(t, tt.message, errors.Message(err))
		})
	}
}

func TestRunMissingScriptIsTransportFailure(t *testing.T) {
	runner, _ := newRunner(t, 0)

	_, err := runner.Run(context.Background(), config.CommandRegister, "u", "p", "none")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailure))
	assert.Contains(t, errors.Message(err), "register.py")
}

func TestRunMissingInterpreterIsTransportFailure(t *testing.T) {
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	backend := testutil.NewBackend(t)
	backend.Reply("authenticator.py", `{"status": "success"}`)
	cfg := backend.Config(0)
	cfg.Interpreter = "/nonexistent/python3"

	_, err := NewRunner(cfg, nil).Run(context.Background(), config.CommandAuthenticate, "u", "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransportFailure))
	assert.Contains(t, errors.Message(err), "/nonexistent/python3")
}

func TestRunUnknownCommand(t *testing.T) {
	runner, _ := newRunner(t, 0)

	_, err := runner.Run(context.Background(), "format_disk")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestRunTimeout(t *testing.T) {
	runner, backend := newRunner(t, 200*time.Millisecond)
	backend.Script("incident_manager.py", "sleep 5\necho '{\"status\": \"success\"}'")

	start := time.Now()
	_, err := runner.Run(context.Background(), config.CommandIncidents, "list")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCommandTimeout))
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestTimeoutIsClamped(t *testing.T) {
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	cfg := config.BackendConfig{CommandTimeout: time.Hour}
	assert.Equal(t, MaxTimeout, NewRunner(cfg, nil).Timeout())

	cfg.CommandTimeout = 0
	assert.Equal(t, DefaultTimeout, NewRunner(cfg, nil).Timeout())
}

func TestGoCancelledWithCaller(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Script("incident_manager.py", "sleep 5\necho '{\"status\": \"success\"}'")

	ctx, cancel := context.WithCancel(context.Background())
	future := runner.Go(ctx, config.CommandIncidents, "list")
	assert.Equal(t, config.CommandIncidents, future.Command())

	cancel()
	select {
	case <-future.Done():
	case <-time.After(4 * time.Second):
		t.Fatal("future did not resolve after cancellation")
	}
	outcome := future.Outcome()
	assert.Nil(t, outcome.Result)
	assert.True(t, errors.Is(outcome.Err, errors.ErrCodeCommandCanceled))
}

func TestConcurrentCallsAreIndependent(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Script("incident_manager.py", `echo "{\"status\": \"success\", \"message\": \"$1-$2\"}"`)

	futures := make([]*Future, 5)
	for i := range futures {
		futures[i] = runner.Go(context.Background(), config.CommandIncidents, "update", strings.Repeat("x", i+1))
	}
	for i, f := range futures {
		result, err := f.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "update-"+strings.Repeat("x", i+1), result.Message)
	}
}

func TestFutureThen(t *testing.T) {
	runner, backend := newRunner(t, 0)
	backend.Reply("register.py", `{"status": "success", "message": "ok"}`)

	got := make(chan Outcome, 1)
	runner.Go(context.Background(), config.CommandRegister, "a", "b", "none").Then(func(o Outcome) { got <- o })

	select {
	case o := <-got:
		require.NoError(t, o.Err)
		assert.Equal(t, "ok", o.Result.Message)
	case <-time.After(4 * time.Second):
		t.Fatal("Then callback not called")
	}
}

func TestArgvWithoutInterpreter(t *testing.T) {
	t.Setenv("WATCHPOST_HOME", t.TempDir())
	r := NewRunner(config.BackendConfig{ScriptDir: "/opt/backend"}, nil)

	bin, args := r.Argv("main_recognition.py", "--camera", "0")
	assert.Equal(t, "/opt/backend/main_recognition.py", bin)
	assert.Equal(t, []string{"--camera", "0"}, args)

	r = NewRunner(config.BackendConfig{ScriptDir: "/opt/backend", Interpreter: "python3"}, nil)
	bin, args = r.Argv("main_recognition.py")
	assert.Equal(t, "python3", bin)
	assert.Equal(t, []string{"/opt/backend/main_recognition.py"}, args)
}
