package command

import (
	"context"
	"os"
	"os/exec"
)

// Executor creates the exec.Cmd for every process the station spawns:
// backend scripts, the recognition worker, window launchers and confirm
// dialogs.
type Executor interface {
	Command(name string, args ...string) *exec.Cmd
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor spawns processes with os/exec. Env entries are appended to
// the inherited environment; Dir, when set, is the working directory.
type RealExecutor struct {
	Dir string
	Env []string
}

// BackendExecutor runs Python backend scripts from scriptDir with
// unbuffered output, so streamed lines arrive as they are printed.
func BackendExecutor(scriptDir string) *RealExecutor {
	return &RealExecutor{Dir: scriptDir, Env: []string{"PYTHONUNBUFFERED=1"}}
}

func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	return e.prepare(exec.Command(name, args...))
}

func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return e.prepare(exec.CommandContext(ctx, name, args...))
}

func (e *RealExecutor) prepare(cmd *exec.Cmd) *exec.Cmd {
	if e.Dir != "" {
		cmd.Dir = e.Dir
	}
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd
}
