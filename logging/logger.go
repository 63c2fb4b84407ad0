package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := newFromConfig(component, logCfg)
	loggers[component] = entry
	return entry
}

func newFromConfig(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("WATCHPOST_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("WATCHPOST_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	if !logCfg.File.Disabled {
		logFilePath := FilePath(time.Now())
		if logCfg.File.Path != "" {
			logFilePath = ExpandPath(logCfg.File.Path)
		}
		if file, err := openLogFile(logFilePath); err == nil {
			writers = append(writers, file)
		} else if logCfg.File.Path != "" {
			// Only warn if explicitly configured
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		}
	}

	stderrMode := logCfg.Format.Stderr
	if stderrMode == "" {
		stderrMode = "auto"
	}
	switch stderrMode {
	case "always":
		writers = append(writers, os.Stderr)
	case "auto":
		// Interactive terminals only see logs in debug mode; pipes and
		// service managers always get them.
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		if level >= logrus.DebugLevel || !isInteractive {
			writers = append(writers, os.Stderr)
		}
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

// FilePath returns the default daily log file for the given day.
func FilePath(day time.Time) string {
	return filepath.Join(paths.LogDir(), fmt.Sprintf("watchpost-%s.log", day.Format("2006-01-02")))
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// ExpandPath expands a leading tilde to the home directory.
func ExpandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
