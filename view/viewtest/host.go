// Package viewtest provides an in-memory view.Host for tests.
package viewtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/view"
)

// Sent is one message delivered to a fake window.
type Sent struct {
	Channel bus.Channel
	Payload json.RawMessage
}

// Window is a fake window that records what it is sent.
type Window struct {
	host *Host
	name view.Name
	id   string

	mu      sync.Mutex
	sent    []Sent
	focused int
	hidden  bool
	closed  bool
}

func (w *Window) ID() string { return w.id }

// Name returns the view this window was created for.
func (w *Window) Name() view.Name { return w.name }

// Send records the message. Payloads are marshalled so tests see exactly
// what a real transport would carry.
func (w *Window) Send(channel bus.Channel, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("window %s is closed", w.id)
	}
	w.sent = append(w.sent, Sent{Channel: channel, Payload: data})
	return nil
}

func (w *Window) Focus() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focused++
	return nil
}

func (w *Window) Hide() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hidden = true
	return nil
}

func (w *Window) Show() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hidden = false
	return nil
}

func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Messages returns everything sent on channel, in order.
func (w *Window) Messages(channel bus.Channel) []json.RawMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []json.RawMessage
	for _, s := range w.sent {
		if s.Channel == channel {
			out = append(out, s.Payload)
		}
	}
	return out
}

// All returns every recorded message.
func (w *Window) All() []Sent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Sent(nil), w.sent...)
}

// Focused returns how many times the window was focused.
func (w *Window) Focused() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Hidden reports whether the window is hidden.
func (w *Window) Hidden() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hidden
}

// Closed reports whether the window was closed.
func (w *Window) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Host is a fake view.Host.
type Host struct {
	mu      sync.Mutex
	windows []*Window
	byName  map[view.Name]*Window
	confirm bool
	fail    map[view.Name]error

	// OnCreate, when set, is called with each new window after Create
	// returns its value, on a new goroutine. Tests use it to simulate
	// the window loading.
	OnCreate func(w *Window)
}

// NewHost returns a host whose confirm dialogs answer yes.
func NewHost() *Host {
	return &Host{
		byName:  make(map[view.Name]*Window),
		confirm: true,
		fail:    make(map[view.Name]error),
	}
}

// Create records a new window.
func (h *Host) Create(ctx context.Context, name view.Name, id string) (view.Window, error) {
	h.mu.Lock()
	if err := h.fail[name]; err != nil {
		h.mu.Unlock()
		return nil, err
	}
	w := &Window{host: h, name: name, id: id}
	h.windows = append(h.windows, w)
	h.byName[name] = w
	onCreate := h.OnCreate
	h.mu.Unlock()

	if onCreate != nil {
		go onCreate(w)
	}
	return w, nil
}

// Confirm answers with the configured response.
func (h *Host) Confirm(ctx context.Context, parent view.Window, detail string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.confirm, nil
}

// SetConfirm sets the answer to confirm dialogs.
func (h *Host) SetConfirm(answer bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.confirm = answer
}

// FailCreate makes Create fail for name.
func (h *Host) FailCreate(name view.Name, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[name] = err
}

// Latest returns the most recent window created for name.
func (h *Host) Latest(name view.Name) *Window {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.byName[name]
}

// Created returns how many windows were created for name.
func (h *Host) Created(name view.Name) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, w := range h.windows {
		if w.name == name {
			n++
		}
	}
	return n
}
