package server

import (
	"context"
	stderrors "errors"
	"os/exec"
	"strings"

	"github.com/grovetools/watchpost/view"
)

var (
	_ view.Host   = (*Server)(nil)
	_ view.Window = (*window)(nil)
)

// Create registers a window for id and starts the configured launcher on
// its URL. Without a launcher the window waits for a view to connect.
func (s *Server) Create(ctx context.Context, name view.Name, id string) (view.Window, error) {
	win := newWindow(name, id, s.logger, func() { s.forget(id) })
	s.mu.Lock()
	s.windows[id] = win
	s.mu.Unlock()

	if len(s.ui.Launcher) == 0 {
		win.logger.Info("Window waiting for a view to connect")
		return win, nil
	}

	url := s.URL() + "/views/" + id
	argv := substitute(s.ui.Launcher, map[string]string{"{url}": url, "{view}": string(name)})
	cmd := s.executor.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		s.forget(id)
		return nil, err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			win.logger.WithError(err).Debug("Window launcher exited")
		}
	}()
	win.logger.WithField("url", url).Debug("Window launched")
	return win, nil
}

// Confirm runs the configured confirm command; exit status 0 means yes.
// With no command configured every question is declined.
func (s *Server) Confirm(ctx context.Context, parent view.Window, detail string) (bool, error) {
	if len(s.ui.ConfirmCommand) == 0 {
		s.logger.WithField("message", detail).Warn("No confirm command configured, declining")
		return false, nil
	}
	argv := substitute(s.ui.ConfirmCommand, map[string]string{"{message}": detail})
	err := s.executor.CommandContext(ctx, argv[0], argv[1:]...).Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

func substitute(argv []string, vars map[string]string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		for k, v := range vars {
			arg = strings.ReplaceAll(arg, k, v)
		}
		out[i] = arg
	}
	return out
}
