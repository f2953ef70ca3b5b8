// Package api exposes the screening agent over HTTP.
//
// Endpoints: POST /session creates a session and returns the greeting turn,
// POST /chat applies one user message, GET /sessions/{id} reads a session,
// GET /health reports liveness. Every response uses the standard JSON
// envelope from the models package.
package api

import (
	"log/slog"
	"net/http"

	"github.com/GautamArjun/rrc-chat-ui/internal/config"
	"github.com/GautamArjun/rrc-chat-ui/internal/engine"
	"github.com/GautamArjun/rrc-chat-ui/internal/faq"
	"github.com/GautamArjun/rrc-chat-ui/internal/notify"
	"github.com/GautamArjun/rrc-chat-ui/internal/store"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// Opts holds server configuration applied by Option functions.
type Opts struct {
	Addr     string
	FAQ      faq.Responder
	Notifier notify.Notifier
}

// Option configures the Server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithFAQResponder enables the FAQ boundary: messages that look like general
// study questions are answered from the indexed FAQ without advancing the
// screening conversation.
func WithFAQResponder(r faq.Responder) Option {
	return func(o *Opts) { o.FAQ = r }
}

// WithNotifier sets the handoff alert notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Opts) { o.Notifier = n }
}

// Server wires the config loader, engine, and store behind the HTTP API.
type Server struct {
	mux      *http.ServeMux
	addr     string
	store    store.Store
	loader   *config.Loader
	engine   *engine.Engine
	faq      faq.Responder
	notifier notify.Notifier
}

// NewServer creates a Server over the given store and study config loader.
func NewServer(st store.Store, loader *config.Loader, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NoopNotifier{}
	}

	s := &Server{
		mux:      http.NewServeMux(),
		addr:     cfg.Addr,
		store:    st,
		loader:   loader,
		engine:   engine.New(st, st, st),
		faq:      cfg.FAQ,
		notifier: cfg.Notifier,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /session", s.createSessionHandler)
	s.mux.HandleFunc("POST /chat", s.chatHandler)
	s.mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	s.mux.HandleFunc("GET /health", s.healthHandler)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run blocks serving HTTP until the listener fails.
func (s *Server) Run() error {
	slog.Info("API server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}
