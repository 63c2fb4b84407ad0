package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/watchpost/bus"
	"github.com/grovetools/watchpost/view"
	"github.com/sirupsen/logrus"
)

const (
	// queueSize bounds frames waiting for a slow or not yet connected view.
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// window is a view instance whose content runs behind a websocket.
type window struct {
	id     string
	name   view.Name
	logger *logrus.Entry

	queue chan Envelope
	done  chan struct{}
	// release unregisters the window from its server.
	release func()

	mu        sync.Mutex
	attached  bool
	closed    bool
	closeOnce sync.Once
}

func newWindow(name view.Name, id string, logger *logrus.Entry, release func()) *window {
	return &window{
		id:      id,
		name:    name,
		logger:  logger.WithFields(logrus.Fields{"view": name, "window": id}),
		queue:   make(chan Envelope, queueSize),
		done:    make(chan struct{}),
		release: release,
	}
}

func (w *window) ID() string { return w.id }

func (w *window) Send(channel bus.Channel, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channel, err)
	}
	return w.enqueue(Envelope{Kind: KindMessage, Channel: string(channel), Payload: data})
}

func (w *window) Focus() error { return w.enqueue(Envelope{Kind: KindControl, Channel: ControlFocus}) }
func (w *window) Hide() error  { return w.enqueue(Envelope{Kind: KindControl, Channel: ControlHide}) }
func (w *window) Show() error  { return w.enqueue(Envelope{Kind: KindControl, Channel: ControlShow}) }

// Close asks the view to close and drops the connection once the request
// has been written. The view is not reported as closed by the operator.
func (w *window) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	select {
	case w.queue <- Envelope{Kind: KindControl, Channel: ControlClose}:
	default:
	}
	w.closeOnce.Do(func() { close(w.done) })
	if w.release != nil {
		w.release()
	}
	return nil
}

// isClosed reports whether the station closed the window.
func (w *window) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// attach claims the window for one connection.
func (w *window) attach() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attached || w.closed {
		return false
	}
	w.attached = true
	return true
}

func (w *window) enqueue(env Envelope) error {
	if w.isClosed() {
		return fmt.Errorf("window %s is closed", w.id)
	}
	select {
	case w.queue <- env:
		return nil
	default:
		return fmt.Errorf("window %s is not keeping up, dropped %s", w.id, env.Channel)
	}
}

// writeLoop drains the queue onto conn until the window is closed or a
// write fails. Frames already queued when the window closes are flushed.
func (w *window) writeLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		select {
		case env := <-w.queue:
			if err := w.write(conn, env); err != nil {
				w.logger.WithError(err).Debug("View connection write failed")
				return
			}
		case <-w.done:
			for {
				select {
				case env := <-w.queue:
					if err := w.write(conn, env); err != nil {
						return
					}
				default:
					deadline := time.Now().Add(writeTimeout)
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed"), deadline)
					return
				}
			}
		}
	}
}

func (w *window) write(conn *websocket.Conn, env Envelope) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(env)
}
