// Package station is the orchestration core: one event loop that owns the
// session machine and the view registry and routes view messages to the
// backend.
package station

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/internal/alerts"
	"github.com/grovetools/watchpost/internal/media"
	"github.com/grovetools/watchpost/internal/status"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/recognition"
	"github.com/grovetools/watchpost/session"
	"github.com/grovetools/watchpost/settings"
	"github.com/grovetools/watchpost/view"
	"github.com/sirupsen/logrus"
)

// Deps are the station's collaborators. Nil fields are built from the
// configuration.
type Deps struct {
	Runner     *command.Runner
	Supervisor *recognition.Supervisor
	Settings   *settings.Store
	Alerts     alerts.Sink
	// Media presigns incident videos. Nil leaves links as the backend sent them.
	Media  media.Linker
	Status *status.Store
	// TempDir receives uploaded images while the backend reads them.
	TempDir string
}

// Station is the orchestration context. Create one with New and drive it
// with Run; it is torn down when Run returns.
type Station struct {
	cfg        *config.Config
	views      *view.Registry
	machine    *session.Machine
	runner     *command.Runner
	supervisor *recognition.Supervisor
	settings   *settings.Store
	alerts     alerts.Sink
	media      media.Linker
	status     *status.Store
	tempDir    string
	logger     *logrus.Entry

	posts     chan func()
	done      chan struct{}
	quit      chan struct{}
	quitOnce  sync.Once
	runCtx    context.Context
	startedAt time.Time

	// detectWeapons mirrors the persisted setting for status snapshots.
	detectWeapons bool
	// cameraPanel follows the last frame relayed to the camera view.
	cameraPanel string
}

// New wires a station around host.
func New(cfg *config.Config, host view.Host, deps Deps) *Station {
	if deps.Runner == nil {
		deps.Runner = command.NewRunner(cfg.Backend, nil)
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewStore(cfg.Settings.Path)
	}
	if deps.Supervisor == nil {
		deps.Supervisor = recognition.NewSupervisor(deps.Runner, cfg.Backend, deps.Settings)
	}
	if deps.Alerts == nil {
		deps.Alerts = alerts.Nop{}
	}
	if deps.Status == nil {
		deps.Status = status.New()
	}
	if deps.TempDir == "" {
		deps.TempDir = os.TempDir()
	}

	s := &Station{
		cfg:        cfg,
		views:      view.NewRegistry(host),
		machine:    session.NewMachine(),
		runner:     deps.Runner,
		supervisor: deps.Supervisor,
		settings:   deps.Settings,
		alerts:     deps.Alerts,
		media:      deps.Media,
		status:     deps.Status,
		tempDir:    deps.TempDir,
		logger:     logging.NewLogger("station"),
		posts:      make(chan func(), 256),
		done:       make(chan struct{}),
		quit:       make(chan struct{}),
		runCtx:     context.Background(),
	}
	s.installHooks()
	s.supervisor.OnExit(func(err error) {
		s.post(func() { s.alerts.WorkerExited(err) })
	})
	return s
}

// Run opens the login view and processes events until Quit is called or ctx
// is done. Failing to open the login view is the only fatal error.
func (s *Station) Run(ctx context.Context) error {
	defer close(s.done)
	s.runCtx = ctx
	s.startedAt = time.Now()
	if st, err := s.settings.Load(); err == nil {
		s.detectWeapons = st.DetectWeapons
	}

	if err := s.views.Open(ctx, view.Login); err != nil {
		s.logger.WithError(err).Error("Failed to open login view")
		return err
	}
	s.publishStatus()

	if s.cfg.Settings.Watch {
		go func() {
			err := s.settings.Watch(ctx, settings.DefaultDebounce, func(st settings.Settings) {
				s.post(func() { s.settingsChanged(st) })
			})
			if err != nil {
				s.logger.WithError(err).Warn("Settings watcher stopped")
			}
		}()
	}

	s.logger.Info("Station running")
	for {
		select {
		case fn := <-s.posts:
			fn()
			s.publishStatus()
		case <-s.quit:
			s.shutdown()
			return nil
		case <-ctx.Done():
			s.shutdown()
			return nil
		}
	}
}

// Quit ends Run. It may be called from any goroutine.
func (s *Station) Quit() {
	s.quitOnce.Do(func() {
		s.logger.Info("Quitting")
		close(s.quit)
	})
}

// Done is closed when Run has returned.
func (s *Station) Done() <-chan struct{} {
	return s.done
}

// Status returns the latest published snapshot.
func (s *Station) Status() status.Snapshot {
	return s.status.Get()
}

// StatusStore returns the store snapshots are published to.
func (s *Station) StatusStore() *status.Store {
	return s.status
}

// Worker reports on the recognition worker.
func (s *Station) Worker() recognition.Status {
	return s.supervisor.Status()
}

// Loaded reports that window id finished loading.
func (s *Station) Loaded(id string) {
	s.post(func() {
		if err := s.views.Loaded(id); err != nil {
			s.logger.WithError(err).Warn("Ignored load event")
		}
	})
}

// Closed reports that the operator closed window id.
func (s *Station) Closed(id string) {
	s.post(func() { s.views.Closed(id) })
}

// Dispatch delivers an inbound message from window id.
func (s *Station) Dispatch(id, channel string, payload json.RawMessage) {
	s.post(func() { s.handle(id, channel, payload) })
}

type invokeResult struct {
	value interface{}
	err   error
}

// Invoke runs a request/response call from window id and waits for its
// answer.
func (s *Station) Invoke(ctx context.Context, id, channel string, payload json.RawMessage) (interface{}, error) {
	result := make(chan invokeResult, 1)
	if !s.post(func() { s.invoke(ctx, id, channel, payload, result) }) {
		return nil, errors.New(errors.ErrCodeInternal, "station is not running")
	}
	select {
	case r := <-result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// post queues fn on the event loop. It reports false once Run has returned.
func (s *Station) post(fn func()) bool {
	select {
	case s.posts <- fn:
		return true
	case <-s.done:
		return false
	}
}

// await posts fn with the outcome of f once it resolves.
func (s *Station) await(f *command.Future, fn func(command.Outcome)) {
	f.Then(func(o command.Outcome) {
		s.post(func() { fn(o) })
	})
}

func (s *Station) installHooks() {
	s.views.SetHooks(view.Home, view.Hooks{
		OnLoad: func(ctx context.Context) {
			sess := s.machine.Session()
			s.send(view.Home, bus.InitHome, bus.InitHomePayload{
				Role:         sess.Role,
				Mode:         sess.Mode,
				IsOffline:    sess.Offline(),
				Capabilities: s.machine.Capabilities(),
			})
		},
		OnClose: func(reason view.CloseReason) {
			if reason == view.CloseUser && s.machine.Active() {
				s.logger.Info("Home closed by operator during a session")
				s.Quit()
			}
		},
	})

	s.views.SetHooks(view.Camera, view.Hooks{
		OnLoad: s.cameraLoaded,
		OnClose: func(view.CloseReason) {
			s.supervisor.Stop()
			s.cameraPanel = ""
			s.views.Show(view.Home)
		},
	})

	// Dismissing the register form returns to login.
	s.views.SetHooks(view.Register, view.Hooks{
		OnClose: func(reason view.CloseReason) {
			if reason == view.CloseUser && !s.machine.Active() {
				_ = s.open(view.Login)
			}
		},
	})

	s.views.OnEmpty(s.Quit)
}

func (s *Station) cameraLoaded(ctx context.Context) {
	if !s.machine.Active() {
		s.logger.Warn("Camera loaded without a session, not starting recognition")
		return
	}

	current, err := s.settings.Load()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load settings")
	}

	// The worker outlives cancellation of the run context so that shutdown
	// can stop it in order.
	workerCtx := context.WithoutCancel(s.runCtx)
	if err := s.supervisor.Start(workerCtx, s.streamTo(ctx)); err != nil {
		s.logger.WithError(err).Error("Failed to start recognition worker")
	}

	s.send(view.Camera, bus.InitCamera, bus.InitCameraPayload{
		Role:     s.machine.Session().Role,
		Settings: current.Snapshot(),
	})
}

// streamTo returns the subscriber that relays worker output to the camera
// view while viewCtx is live. Frames are dropped once the worker is being
// stopped, which may happen on the event loop itself.
func (s *Station) streamTo(viewCtx context.Context) recognition.Subscriber {
	return func(workerCtx context.Context, msg recognition.Message) {
		fn := func() {
			s.send(view.Camera, bus.PythonData, msg.Raw)
			if !msg.Parsed || !s.views.IsOpen(view.Camera) {
				return
			}
			s.cameraPanel = msg.Event.Panel().String()
			s.alerts.Threat(msg.Event)
			s.alerts.Denied(msg.Event)
		}
		select {
		case s.posts <- fn:
		case <-viewCtx.Done():
		case <-workerCtx.Done():
		case <-s.done:
		}
	}
}

func (s *Station) settingsChanged(st settings.Settings) {
	s.logger.WithField("detect_weapons", st.DetectWeapons).Info("Settings changed on disk")
	s.detectWeapons = st.DetectWeapons
	if s.supervisor.Running() {
		_ = s.supervisor.SendCommand(recognition.CommandSetWeaponDetection, st.DetectWeapons)
	}
}

// send delivers an outbound message, logging failures.
func (s *Station) send(name view.Name, channel bus.Channel, payload interface{}) {
	if err := s.views.Send(name, channel, payload); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"view": name, "channel": channel}).Warn("Failed to send message")
	}
}

func (s *Station) open(name view.Name) error {
	if err := s.views.Open(s.runCtx, name); err != nil {
		s.logger.WithError(err).WithField("view", name).Error("Failed to open view")
		return err
	}
	return nil
}

func (s *Station) publishStatus() {
	views := make(map[string]string, s.views.Len())
	for _, name := range s.views.Names() {
		views[string(name)] = s.views.State(name).String()
	}
	snap := status.Snapshot{
		StartedAt:     s.startedAt,
		Session:       s.machine.State().String(),
		Views:         views,
		WorkerRunning: s.supervisor.Running(),
		DetectWeapons: s.detectWeapons,
		CameraPanel:   s.cameraPanel,
	}
	if s.machine.Active() {
		sess := s.machine.Session()
		snap.Role = string(sess.Role)
		snap.Mode = string(sess.Mode)
	}
	s.status.Set(snap)
}

func (s *Station) shutdown() {
	s.logger.Info("Shutting down station")
	s.supervisor.Stop()
	s.views.CloseAll()
	s.publishStatus()
}
