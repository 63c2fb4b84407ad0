// Package command runs backend scripts.
//
// A one-shot call spawns one process per invocation and resolves exactly one
// outcome: the terminal JSON object the script printed, or a coded failure.
package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/logging"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = config.DefaultCommandTimeout

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute

	// waitDelay is how long output pipes may stay open after the process
	// is killed (a grandchild can hold them).
	waitDelay = time.Second
)

// Runner invokes one-shot backend commands.
type Runner struct {
	executor    Executor
	interpreter string
	scriptDir   string
	scripts     map[string]string
	timeout     time.Duration
	logger      *logrus.Entry
}

// NewRunner creates a runner for the configured backend. A nil executor
// means BackendExecutor rooted at the script directory.
func NewRunner(cfg config.BackendConfig, executor Executor) *Runner {
	if executor == nil {
		executor = BackendExecutor(cfg.ScriptDir)
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	scripts := make(map[string]string, len(cfg.Scripts))
	for name, script := range cfg.Scripts {
		scripts[name] = script
	}
	return &Runner{
		executor:    executor,
		interpreter: cfg.Interpreter,
		scriptDir:   cfg.ScriptDir,
		scripts:     scripts,
		timeout:     timeout,
		logger:      logging.NewLogger("command"),
	}
}

// Executor returns the executor processes are created with.
func (r *Runner) Executor() Executor {
	return r.executor
}

// Timeout returns the bound applied to every call.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// ScriptPath resolves a script file name inside the script directory.
func (r *Runner) ScriptPath(script string) string {
	if filepath.IsAbs(script) {
		return script
	}
	return filepath.Join(r.scriptDir, script)
}

// Argv returns the program and arguments that run script: the interpreter
// with the script path first, or the script itself when no interpreter is
// configured.
func (r *Runner) Argv(script string, args ...string) (string, []string) {
	path := r.ScriptPath(script)
	if r.interpreter == "" {
		return path, args
	}
	return r.interpreter, append([]string{path}, args...)
}

// Go starts the named command and returns immediately. Cancelling ctx kills
// the process and resolves the future with COMMAND_CANCELED.
func (r *Runner) Go(ctx context.Context, name string, args ...string) *Future {
	future := newFuture(name)
	go func() {
		future.resolve(r.Run(ctx, name, args...))
	}()
	return future
}

// Run executes the named command and waits for its terminal value.
//
// Failures are classified as TRANSPORT_FAILURE (the script could not be
// spawned, or died without printing a reply), BACKEND_FAILURE (a reply
// whose status is not success, carrying its message), MALFORMED_RESPONSE
// (no JSON object on stdout), COMMAND_TIMEOUT, or COMMAND_CANCELED.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	script, ok := r.scripts[name]
	if !ok || script == "" {
		return nil, errors.InvalidInput("command", fmt.Sprintf("unknown backend command %q", name))
	}
	if _, err := os.Stat(r.ScriptPath(script)); err != nil {
		return nil, errors.TransportFailure(name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	bin, argv := r.Argv(script, args...)
	cmd := r.executor.CommandContext(callCtx, bin, argv...)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := r.logger.WithField("command", name)
	logger.Debug("Running backend command")

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		logger.WithField("duration", elapsed).Debug("Backend command canceled")
		return nil, errors.CommandCanceled(name, ctx.Err())
	}
	if stderrors.Is(callCtx.Err(), context.DeadlineExceeded) {
		logger.WithField("timeout", r.timeout).Warn("Backend command timed out")
		return nil, errors.CommandTimeout(name, r.timeout)
	}

	result, ok := parseTerminal(name, stdout.Bytes())
	if !ok {
		tail := lastLines(stderr.String(), 5)
		if runErr != nil {
			logger.WithError(runErr).WithField("stderr", tail).Warn("Backend command failed")
			failure := errors.TransportFailure(name, runErr)
			if tail != "" {
				failure = failure.WithDetail("stderr", tail)
			}
			return nil, failure
		}
		logger.WithField("stderr", tail).Warn("Backend command printed no JSON result")
		return nil, errors.MalformedResponse(name)
	}
	result.Duration = elapsed

	if !result.Succeeded() {
		logger.WithField("status", result.Status).Info("Backend command reported failure")
		return nil, errors.BackendFailure(name, result.Message).WithDetail("status", result.Status)
	}

	logger.WithField("duration", elapsed).Debug("Backend command succeeded")
	return result, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
