// Package recognition supervises the long-lived face and weapon recognition
// worker.
//
// The worker reads newline-delimited JSON commands on stdin and writes one
// JSON message per line on stdout. At most one worker runs at a time.
package recognition

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/pkg/process"
	"github.com/grovetools/watchpost/settings"
	"github.com/sirupsen/logrus"
)

const (
	// CommandSetWeaponDetection toggles weapon detection in the worker.
	CommandSetWeaponDetection = "set_weapon_detection"

	maxLineBytes = 16 << 20

	// stopCeiling bounds how long Stop waits past the grace period for
	// the output pipes to drain.
	stopCeiling = 5 * time.Second
)

// Message is one line the worker printed.
type Message struct {
	// Raw is the line exactly as the worker wrote it.
	Raw json.RawMessage
	// Event is Raw decoded; it is zero when Parsed is false.
	Event  Event
	Parsed bool
}

// Subscriber receives worker messages in the order they were printed. It is
// called from the reader goroutine. ctx is done once the worker is being
// stopped; a subscriber that blocks must return when it is.
type Subscriber func(ctx context.Context, msg Message)

// SettingsSource supplies the settings sent to a freshly started worker.
type SettingsSource interface {
	Load() (settings.Settings, error)
}

// Command is the wire form of a worker command.
type Command struct {
	Command string      `json:"command"`
	Value   interface{} `json:"value"`
}

// Status describes the current worker.
type Status struct {
	Running    bool      `json:"running"`
	PID        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Messages   uint64    `json:"messages"`
	CPUPercent float64   `json:"cpu_percent,omitempty"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
}

type worker struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	messages  atomic.Uint64
	stopping  atomic.Bool
	writeMu   sync.Mutex
}

// Supervisor owns the recognition worker.
type Supervisor struct {
	runner   *command.Runner
	script   string
	grace    time.Duration
	settings SettingsSource
	logger   *logrus.Entry

	mu     sync.Mutex
	worker *worker
	onExit func(error)
}

// NewSupervisor creates a supervisor that spawns cfg.StreamingScript through
// runner's interpreter and executor.
func NewSupervisor(runner *command.Runner, cfg config.BackendConfig, source SettingsSource) *Supervisor {
	grace := cfg.StopGrace
	if grace <= 0 {
		grace = config.DefaultStopGrace
	}
	return &Supervisor{
		runner:   runner,
		script:   cfg.StreamingScript,
		grace:    grace,
		settings: source,
		logger:   logging.NewLogger("recognition"),
	}
}

// OnExit sets a callback for workers that exit without being stopped.
func (s *Supervisor) OnExit(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExit = fn
}

// Running reports whether a worker is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker != nil
}

// Start spawns the worker if none is running and sends it the current
// weapon detection setting before anything else. Calling Start while a
// worker runs does nothing. Every stdout line is passed to sub.
func (s *Supervisor) Start(ctx context.Context, sub Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.worker != nil {
		s.logger.Debug("Recognition worker already running")
		return nil
	}

	current, err := s.settings.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load settings, starting worker with defaults")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	bin, argv := s.runner.Argv(s.script)
	cmd := s.runner.Executor().CommandContext(workerCtx, bin, argv...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = s.grace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return errors.TransportFailure(s.script, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return errors.TransportFailure(s.script, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return errors.TransportFailure(s.script, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return errors.TransportFailure(s.script, err)
	}

	w := &worker{
		cmd:       cmd,
		stdin:     stdin,
		ctx:       workerCtx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.worker = w

	logger := s.logger.WithField("pid", cmd.Process.Pid)
	logger.Info("Recognition worker started")

	// Written under the lock so no other command can overtake it.
	if err := w.write(Command{Command: CommandSetWeaponDetection, Value: current.DetectWeapons}); err != nil {
		logger.WithError(err).Warn("Failed to send initial settings to worker")
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		s.readMessages(w, stdout, sub, logger)
	}()
	go func() {
		defer readers.Done()
		s.logStderr(stderr, logger)
	}()
	go s.wait(w, &readers, logger)

	return nil
}

// SendCommand writes one command to the worker. With no worker running the
// command is dropped and WORKER_NOT_RUNNING returned.
func (s *Supervisor) SendCommand(name string, value interface{}) error {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()

	if w == nil {
		err := errors.WorkerNotRunning(name)
		s.logger.WithField("command", name).Warn("Dropped command, recognition worker is not running")
		return err
	}
	if err := w.write(Command{Command: name, Value: value}); err != nil {
		s.logger.WithError(err).WithField("command", name).Warn("Failed to write command to worker")
		return errors.TransportFailure(s.script, err)
	}
	return nil
}

// Stop shuts the worker down: stdin is closed, the process is interrupted
// and, after the grace period, killed. Stop returns once it has exited.
// Stopping with no worker does nothing.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	w := s.worker
	s.worker = nil
	s.mu.Unlock()

	if w == nil {
		return
	}

	w.stopping.Store(true)
	w.writeMu.Lock()
	_ = w.stdin.Close()
	w.writeMu.Unlock()
	w.cancel()

	select {
	case <-w.done:
		s.logger.Info("Recognition worker stopped")
	case <-time.After(s.grace + stopCeiling):
		s.logger.Warn("Recognition worker did not exit in time")
	}
}

// Status reports on the current worker.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()

	if w == nil {
		return Status{}
	}
	st := Status{
		Running:   true,
		PID:       w.cmd.Process.Pid,
		StartedAt: w.startedAt,
		Messages:  w.messages.Load(),
	}
	if sample, err := process.Sample(st.PID); err == nil {
		st.CPUPercent = sample.CPUPercent
		st.RSSBytes = sample.RSSBytes
	}
	return st
}

func (s *Supervisor) readMessages(w *worker, stdout io.Reader, sub Subscriber, logger *logrus.Entry) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			logger.WithField("line", string(line)).Debug("Ignoring non-JSON worker output")
			continue
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)

		msg := Message{Raw: raw}
		if ev, err := ParseEvent(raw); err == nil {
			msg.Event = ev
			msg.Parsed = true
		}
		w.messages.Add(1)
		// Output printed while stopping is drained but not delivered.
		if sub != nil && !w.stopping.Load() {
			sub(w.ctx, msg)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).Warn("Stopped reading worker output")
	}
}

// logStderr maps the worker's log prefixes onto log levels.
func (s *Supervisor) logStderr(stderr io.Reader, logger *logrus.Entry) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry := logger.WithField("source", "worker")
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"), strings.HasPrefix(line, "Traceback"):
			entry.Error(line)
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			entry.Warn(line)
		case strings.Contains(line, "[INFO]"):
			entry.Info(line)
		default:
			entry.Debug(line)
		}
	}
}

// wait reaps the process once its output is drained. Only the worker that
// is still current is cleared, so a late exit never clears a newer worker.
func (s *Supervisor) wait(w *worker, readers *sync.WaitGroup, logger *logrus.Entry) {
	readers.Wait()
	err := w.cmd.Wait()
	w.cancel()

	s.mu.Lock()
	if s.worker == w {
		s.worker = nil
	}
	onExit := s.onExit
	s.mu.Unlock()

	if !w.stopping.Load() {
		crash := errors.WorkerCrashed(err)
		logger.WithError(crash).WithField("messages", w.messages.Load()).Error("Recognition worker exited unexpectedly")
		if onExit != nil {
			onExit(crash)
		}
	} else {
		logger.Debug("Recognition worker exited")
	}
	close(w.done)
}

func (w *worker) write(c Command) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	_, err = w.stdin.Write(data)
	return err
}
