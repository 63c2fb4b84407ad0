package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/watchpost/cli"
	"github.com/grovetools/watchpost/internal/alerts"
	"github.com/grovetools/watchpost/internal/media"
	"github.com/grovetools/watchpost/internal/pidfile"
	"github.com/grovetools/watchpost/internal/server"
	"github.com/grovetools/watchpost/internal/station"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// NewRunCmd runs the station in the foreground.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the station",
		Long:  "Opens the login view and runs until every window is closed or a stop signal arrives.",
		Example: `# Run with the nearest watchpost.yml
watchpost run

# Serve views on a private socket
watchpost run --addr unix:///run/user/1000/watchpost.sock`,
		Args: cobra.NoArgs,
		RunE: runStation,
	}
	cmd.Flags().String("addr", "", "Override server.addr")
	return cmd
}

func runStation(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "watchpost")

	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil {
			logger.WithError(err).Error("Failed to release pidfile")
		}
	}()

	var deps station.Deps
	if cfg.Alerts.Enabled() {
		pub, err := alerts.Connect(cfg.Alerts)
		if err != nil {
			logger.WithError(err).Warn("Alert broker unavailable, continuing without alerts")
		} else {
			defer pub.Close()
			deps.Alerts = pub
		}
	}
	if cfg.Media.Enabled() {
		presigner, err := media.NewPresigner(cfg.Media)
		if err != nil {
			logger.WithError(err).Warn("Media store unavailable, incident links are passed through")
		} else {
			deps.Media = presigner
		}
	}

	srv := server.New(cfg, nil)
	st := station.New(cfg, srv, deps)
	srv.SetHandler(st)

	if err := srv.Listen(); err != nil {
		return err
	}
	go func() {
		if err := srv.Serve(); err != nil {
			logger.WithError(err).Error("Server stopped")
			st.Quit()
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"pid":    os.Getpid(),
		"url":    srv.URL(),
		"config": cfg.Path(),
	}).Info("Starting station")
	runErr := st.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	return runErr
}
