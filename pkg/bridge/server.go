// Package bridge exposes a conversation controller to a remote UI over a
// WebSocket. Every controller event is answered with a full snapshot frame,
// so clients never have to reconstruct state from deltas.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bclt-academy/voicequiz/pkg/core"
	"github.com/bclt-academy/voicequiz/pkg/core/conversation"
)

const (
	// WebSocketPath is the conversation endpoint.
	WebSocketPath = "/v1/conversation/ws"

	DefaultPingInterval = 20 * time.Second
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadLimit    = 64 << 10
	defaultClientBuffer = 64
)

// Controller is the part of *conversation.Controller the bridge drives.
type Controller interface {
	Events() <-chan conversation.Event
	Snapshot() conversation.Snapshot
	RecorderSupported() bool
	Begin(ctx context.Context, opts conversation.BeginOptions) error
	MicPress(ctx context.Context) error
	EndConversation(ctx context.Context) error
	NewConversation(ctx context.Context, opts conversation.BeginOptions) error
	Exit()
}

// Config tunes connection handling. Zero values select the defaults.
type Config struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadLimit      int64
	ClientBuffer   int
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.ClientBuffer <= 0 {
		c.ClientBuffer = defaultClientBuffer
	}
	return c
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// Server fans controller events out to every connected client.
type Server struct {
	ctrl    Controller
	cfg     Config
	metrics http.Handler
	origins map[string]struct{}
	anyOrig bool

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New builds a bridge for ctrl.
func New(ctrl Controller, cfg Config, opts ...Option) *Server {
	s := &Server{
		ctrl:    ctrl,
		cfg:     cfg.withDefaults(),
		origins: make(map[string]struct{}),
		clients: make(map[*client]struct{}),
	}
	for _, o := range s.cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			s.anyOrig = true
		default:
			s.origins[o] = struct{}{}
		}
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the bridge routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Run forwards controller events to clients until ctx is done or the event
// stream closes.
func (s *Server) Run(ctx context.Context) error {
	events := s.ctrl.Events()
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				s.closeClients()
				return nil
			}
			s.publish(ev)
		}
	}
}

func (s *Server) publish(ev conversation.Event) {
	s.broadcast(snapshotFrame(ev.EventType(), s.ctrl.RecorderSupported(), s.ctrl.Snapshot()))
	if e, ok := ev.(*conversation.ErrorEvent); ok && e.Err != nil {
		s.broadcast(controllerErrorFrame(e.Err))
	}
}

func (s *Server) broadcast(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Str("component", "bridge").Err(err).Msg("encode frame")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.send(data)
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	log.Info().Str("component", "bridge").Str("remote", c.remote).Int("clients", n).Msg("client connected")
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	n := len(s.clients)
	s.mu.Unlock()
	c.close()
	log.Info().Str("component", "bridge").Str("remote", c.remote).Int("clients", n).Msg("client disconnected")
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || s.anyOrig {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"state":  s.ctrl.Snapshot().State.String(),
	})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeCoreError(w, &core.Error{Type: core.ErrInvalidRequest, Message: "method not allowed", Code: "method_not_allowed"}, http.StatusMethodNotAllowed)
		return
	}
	if !s.originAllowed(r) {
		writeCoreError(w, &core.Error{Type: core.ErrPermission, Message: "origin is not allowed", Param: "Origin"}, http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)

	c := newClient(conn, r.RemoteAddr, s.cfg)
	s.register(c)
	defer s.unregister(c)

	go c.writeLoop()

	hello, _ := json.Marshal(snapshotFrame("", s.ctrl.RecorderSupported(), s.ctrl.Snapshot()))
	c.send(hello)

	readWait := 2 * s.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("component", "bridge").Err(err).Msg("read failed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if messageType != websocket.TextMessage {
			c.sendFrame(ServerError{Type: "error", Scope: "command", Code: "bad_request", Message: "frames must be text"})
			continue
		}
		cmd, err := DecodeClientCommand(data)
		if err != nil {
			c.sendFrame(commandErrorFrame(err))
			continue
		}
		go s.dispatch(c, cmd)
	}
}

// dispatch runs one command. Controller errors are already broadcast as
// error events, so only rejections are answered directly.
func (s *Server) dispatch(c *client, cmd ClientCommand) {
	log.Debug().Str("component", "bridge").Str("command", cmd.Type).Msg("command received")

	ctx := context.Background()
	var err error
	switch cmd.Type {
	case CommandBegin:
		if !s.ctrl.RecorderSupported() {
			err = errors.Wrap(conversation.ErrInvalidTransition, "recorder unavailable")
			break
		}
		err = s.ctrl.Begin(ctx, cmd.BeginOptions())
	case CommandMic:
		err = s.ctrl.MicPress(ctx)
	case CommandEnd:
		err = s.ctrl.EndConversation(ctx)
	case CommandNew:
		err = s.ctrl.NewConversation(ctx, cmd.BeginOptions())
	case CommandExit:
		s.ctrl.Exit()
	}
	if err == nil || errors.Is(err, conversation.ErrSuperseded) {
		return
	}
	var ce *conversation.Error
	if errors.As(err, &ce) {
		return
	}
	c.sendFrame(commandErrorFrame(err))
}

func writeCoreError(w http.ResponseWriter, e *core.Error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": e})
}
