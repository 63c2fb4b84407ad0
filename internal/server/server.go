// Package server is the transport between the station and its views. Each
// view connects over a websocket at an unguessable per-window path; the
// same listener serves the status API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/grovetools/watchpost/command"
	"github.com/grovetools/watchpost/config"
	"github.com/grovetools/watchpost/internal/status"
	"github.com/grovetools/watchpost/logging"
	"github.com/grovetools/watchpost/recognition"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const unixScheme = "unix://"

// Handler receives view traffic. The station implements it.
type Handler interface {
	Loaded(id string)
	Closed(id string)
	Dispatch(id, channel string, payload json.RawMessage)
	Invoke(ctx context.Context, id, channel string, payload json.RawMessage) (interface{}, error)
	StatusStore() *status.Store
	Worker() recognition.Status
}

// StatusResponse is the body of /api/status.
type StatusResponse struct {
	Station status.Snapshot    `json:"station"`
	Worker  recognition.Status `json:"worker"`
}

// Server hosts view connections and implements view.Host.
type Server struct {
	addr     string
	ui       config.UIConfig
	executor command.Executor
	logger   *logrus.Entry
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handler  Handler
	windows  map[string]*window
	listener net.Listener
	baseURL  string
	server   *http.Server
}

// New creates a server for cfg. A nil executor means command.RealExecutor.
func New(cfg *config.Config, executor command.Executor) *Server {
	if executor == nil {
		executor = &command.RealExecutor{}
	}
	return &Server{
		addr:     cfg.Server.Addr,
		ui:       cfg.UI,
		executor: executor,
		logger:   logging.NewLogger("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 64 * 1024,
			// The window id in the path is the credential.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		windows: make(map[string]*window),
	}
}

// SetHandler sets where view traffic is delivered.
func (s *Server) SetHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

func (s *Server) getHandler() Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Listen opens the configured address: host:port, or unix:///path for a
// socket readable only by the current user.
func (s *Server) Listen() error {
	var (
		listener net.Listener
		baseURL  string
		err      error
	)
	if strings.HasPrefix(s.addr, unixScheme) {
		socketPath := strings.TrimPrefix(s.addr, unixScheme)
		if _, err := os.Stat(socketPath); err == nil {
			if err := os.Remove(socketPath); err != nil {
				return fmt.Errorf("failed to remove stale socket: %w", err)
			}
		}
		if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
			return fmt.Errorf("failed to create socket directory: %w", err)
		}
		listener, err = net.Listen("unix", socketPath)
		if err != nil {
			return fmt.Errorf("failed to listen on socket: %w", err)
		}
		if err := os.Chmod(socketPath, 0600); err != nil {
			_ = listener.Close()
			return fmt.Errorf("failed to set socket permissions: %w", err)
		}
		baseURL = "http+unix://" + socketPath
	} else {
		listener, err = net.Listen("tcp", s.addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
		}
		baseURL = "http://" + listener.Addr().String()
	}

	s.mu.Lock()
	s.listener = listener
	s.baseURL = baseURL
	s.server = &http.Server{Handler: h2c.NewHandler(s.Routes(), &http2.Server{})}
	s.mu.Unlock()
	return nil
}

// URL is the base URL views are served from. It is empty before Listen.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

// Serve blocks serving the listener opened by Listen.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, listener := s.server, s.listener
	s.mu.Unlock()
	if srv == nil {
		return fmt.Errorf("server is not listening")
	}
	s.logger.WithField("addr", listener.Addr().String()).Info("Listening for views")
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server and drops every view connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	srv := s.server
	windows := make([]*window, 0, len(s.windows))
	for _, w := range s.windows {
		windows = append(windows, w)
	}
	s.mu.Unlock()

	for _, w := range windows {
		_ = w.Close()
	}
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Routes returns the HTTP handler without h2c, for tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /views/{id}", s.handleDescriptor)
	mux.HandleFunc("GET /views/{id}/ws", s.handleConnect)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	return mux
}

func (s *Server) lookup(id string) (*window, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.windows[id]
	return w, ok
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, id)
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	win, ok := s.lookup(id)
	if !ok || win.isClosed() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(Descriptor{
		ID:     id,
		View:   string(win.name),
		Socket: "/views/" + id + "/ws",
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	win, ok := s.lookup(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler := s.getHandler()
	if handler == nil {
		http.Error(w, "station not initialized", http.StatusServiceUnavailable)
		return
	}
	if win.isClosed() {
		http.NotFound(w, r)
		return
	}
	if !win.attach() {
		http.Error(w, "window already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		win.logger.WithError(err).Warn("View upgrade failed")
		s.forget(id)
		if !win.isClosed() {
			handler.Closed(id)
		}
		return
	}
	win.logger.Debug("View connected")

	go win.writeLoop(conn)
	s.readLoop(r.Context(), win, conn, handler)

	s.forget(id)
	if !win.isClosed() {
		win.logger.Info("View disconnected")
		handler.Closed(id)
	}
	_ = win.Close()
}

// readLoop delivers frames from the view until the connection drops.
func (s *Server) readLoop(ctx context.Context, win *window, conn *websocket.Conn, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				win.logger.WithError(err).Debug("View connection lost")
			}
			return
		}

		switch env.Kind {
		case KindLoaded:
			handler.Loaded(win.id)
		case KindMessage:
			handler.Dispatch(win.id, env.Channel, env.Payload)
		case KindInvoke:
			go s.invoke(ctx, win, handler, env)
		default:
			win.logger.WithField("kind", env.Kind).Warn("Ignored unknown frame")
		}
	}
}

func (s *Server) invoke(ctx context.Context, win *window, handler Handler, req Envelope) {
	reply := Envelope{Kind: KindReply, Seq: req.Seq, Channel: req.Channel}
	value, err := handler.Invoke(ctx, win.id, req.Channel, req.Payload)
	if err != nil {
		reply.Error = err.Error()
	} else if data, merr := json.Marshal(value); merr != nil {
		reply.Error = merr.Error()
	} else {
		reply.Payload = data
	}
	if err := win.enqueue(reply); err != nil {
		win.logger.WithError(err).Debug("Dropped invoke reply")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	handler := s.getHandler()
	if handler == nil {
		http.Error(w, "station not initialized", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatusResponse{
		Station: handler.StatusStore().Get(),
		Worker:  handler.Worker(),
	})
}

// handleStream provides Server-Sent Events for station status changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	handler := s.getHandler()
	if handler == nil {
		http.Error(w, "station not initialized", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	store := handler.StatusStore()
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()
	s.logger.Debug("SSE client connected")

	initial := status.Update{Types: []status.UpdateType{"initial"}, Snapshot: store.Get()}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
