package view

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/errors"
	"github.com/grovetools/watchpost/logging"
	"github.com/sirupsen/logrus"
)

type entry struct {
	name   Name
	id     string
	window Window
	state  Lifecycle
	loaded bool
	ctx    context.Context
	cancel context.CancelFunc
}

// Registry owns the view entries. It is driven by the station event loop
// and is not safe for concurrent use.
type Registry struct {
	host    Host
	entries map[Name]*entry
	byID    map[string]*entry
	hooks   map[Name]Hooks
	onEmpty func()
	logger  *logrus.Entry
}

// NewRegistry creates an empty registry that realizes windows with host.
func NewRegistry(host Host) *Registry {
	return &Registry{
		host:    host,
		entries: make(map[Name]*entry),
		byID:    make(map[string]*entry),
		hooks:   make(map[Name]Hooks),
		logger:  logging.NewLogger("views"),
	}
}

// Host returns the host windows are created with.
func (r *Registry) Host() Host {
	return r.host
}

// SetHooks installs the side effects for a view.
func (r *Registry) SetHooks(name Name, hooks Hooks) {
	r.hooks[name] = hooks
}

// OnEmpty sets the callback run when the operator closes the last view.
func (r *Registry) OnEmpty(fn func()) {
	r.onEmpty = fn
}

// Open focuses the view if it exists, or creates it.
func (r *Registry) Open(ctx context.Context, name Name) error {
	if e, ok := r.entries[name]; ok && e.state != Closing {
		r.logger.WithField("view", name).Debug("View already open, focusing")
		if e.window == nil {
			return nil
		}
		if err := e.window.Focus(); err != nil {
			r.logger.WithError(err).WithField("view", name).Warn("Failed to focus view")
		}
		return nil
	}

	id := uuid.NewString()
	entryCtx, cancel := context.WithCancel(context.Background())
	e := &entry{name: name, id: id, state: Creating, ctx: entryCtx, cancel: cancel}

	// Registered before Create so a host that loads synchronously can
	// report it.
	r.entries[name] = e
	r.byID[id] = e

	window, err := r.host.Create(ctx, name, id)
	if err != nil {
		cancel()
		delete(r.entries, name)
		delete(r.byID, id)
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create view").
			WithDetail("view", string(name))
	}
	e.window = window

	r.logger.WithFields(logrus.Fields{"view": name, "window": id}).Info("View created")
	return nil
}

// Loaded records that a window finished loading its content. The view's
// OnLoad hook runs on the first load after creation only.
func (r *Registry) Loaded(id string) error {
	e, ok := r.byID[id]
	if !ok {
		return errors.StaleView(id)
	}
	if e.loaded {
		r.logger.WithField("view", e.name).Debug("View reloaded, init not re-sent")
		return nil
	}
	e.loaded = true
	e.state = Live
	r.logger.WithField("view", e.name).Debug("View loaded")

	if hook := r.hooks[e.name].OnLoad; hook != nil {
		hook(e.ctx)
	}
	return nil
}

// Close tears the view down and runs its OnClose hook. Closing an absent
// view does nothing.
func (r *Registry) Close(name Name, reason CloseReason) {
	e, ok := r.entries[name]
	if !ok || e.state == Closing {
		return
	}
	r.teardown(e, reason, true)
}

// Closed records that the operator closed a window. Unknown ids are
// ignored: the station may already have closed that window itself.
func (r *Registry) Closed(id string) {
	e, ok := r.byID[id]
	if !ok || e.state == Closing {
		return
	}
	r.teardown(e, CloseUser, false)
}

func (r *Registry) teardown(e *entry, reason CloseReason, closeWindow bool) {
	e.state = Closing
	e.cancel()

	if closeWindow && e.window != nil {
		if err := e.window.Close(); err != nil {
			r.logger.WithError(err).WithField("view", e.name).Warn("Failed to close window")
		}
	}
	delete(r.entries, e.name)
	delete(r.byID, e.id)

	r.logger.WithFields(logrus.Fields{"view": e.name, "reason": reason}).Info("View closed")

	if hook := r.hooks[e.name].OnClose; hook != nil {
		hook(reason)
	}

	if reason == CloseUser && len(r.entries) == 0 && r.onEmpty != nil {
		r.logger.Info("Last view closed by operator")
		r.onEmpty()
	}
}

// CloseAll closes every view programmatically.
func (r *Registry) CloseAll() {
	for _, name := range r.Names() {
		r.Close(name, CloseProgrammatic)
	}
}

// Send delivers an outbound message. The channel must be on the outbound
// allow-list. Messages to absent views are dropped.
func (r *Registry) Send(name Name, channel bus.Channel, payload interface{}) error {
	if _, err := bus.Check(bus.Outbound, string(channel)); err != nil {
		r.logger.WithError(err).WithField("view", name).Warn("Refused outbound message")
		return err
	}
	e, ok := r.entries[name]
	if !ok || e.state == Closing || e.window == nil {
		r.logger.WithFields(logrus.Fields{"view": name, "channel": channel}).Debug("Dropped message for absent view")
		return nil
	}
	return e.window.Send(channel, payload)
}

// Resolve maps a window id to its view name. Stale ids are STALE_VIEW.
func (r *Registry) Resolve(id string) (Name, error) {
	e, ok := r.byID[id]
	if !ok || e.state == Closing {
		return "", errors.StaleView(id)
	}
	return e.name, nil
}

// Window returns the live window for name.
func (r *Registry) Window(name Name) (Window, bool) {
	e, ok := r.entries[name]
	if !ok || e.window == nil {
		return nil, false
	}
	return e.window, true
}

// Context returns the context of the view's current instance. It is
// cancelled when the view closes. For an absent view a cancelled context
// is returned.
func (r *Registry) Context(name Name) context.Context {
	if e, ok := r.entries[name]; ok {
		return e.ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// State returns the lifecycle of name.
func (r *Registry) State(name Name) Lifecycle {
	if e, ok := r.entries[name]; ok {
		return e.state
	}
	return Absent
}

// IsOpen reports whether name is creating or live.
func (r *Registry) IsOpen(name Name) bool {
	s := r.State(name)
	return s == Creating || s == Live
}

// Hide hides a view's window, if open.
func (r *Registry) Hide(name Name) {
	if w, ok := r.Window(name); ok {
		if err := w.Hide(); err != nil {
			r.logger.WithError(err).WithField("view", name).Warn("Failed to hide view")
		}
	}
}

// Show shows a view's window, if open.
func (r *Registry) Show(name Name) {
	if w, ok := r.Window(name); ok {
		if err := w.Show(); err != nil {
			r.logger.WithError(err).WithField("view", name).Warn("Failed to show view")
		}
	}
}

// Names returns the open views in name order.
func (r *Registry) Names() []Name {
	out := make([]Name, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns how many views are open.
func (r *Registry) Len() int {
	return len(r.entries)
}
