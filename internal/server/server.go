// Package server exposes the remote viewer HTTP surface: the session
// negotiation endpoint, the embedded viewer page, and in websocket mode the
// stream endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/simhost/remote-viewer/internal/config"
	"github.com/simhost/remote-viewer/internal/session"
	"github.com/simhost/remote-viewer/internal/stream"
	"github.com/simhost/remote-viewer/internal/web"
)

// SessionPath is the session negotiation endpoint, a compatibility contract
// with the browser client.
const SessionPath = "/v1/streaming/session"

// Server is the main HTTP server bound to the internal HTTP port.
type Server struct {
	cfg  config.Config
	hub  *stream.Hub
	log  zerolog.Logger
	http *http.Server
}

// New builds the server. The hub may be nil when the deployment has no
// publisher (webrtc mode still mounts the publisher endpoint when given one).
func New(cfg config.Config, hub *stream.Hub, log zerolog.Logger) *Server {
	s := &Server{
		cfg: cfg,
		hub: hub,
		log: log.With().Str("component", "http").Logger(),
	}

	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: s.Router(),
	}

	return s
}

// Router assembles the HTTP routes for the configured mode.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Post(SessionPath, s.handleSession)
	r.Get("/health", s.handleHealth)

	if s.hub != nil {
		r.Get("/streaming/publisher", s.hub.ServePublisher)
		if s.cfg.Mode == config.ModeWebSocket {
			r.Get("/streaming/client/", s.hub.ServeViewer)
		}
	}

	r.Handle("/*", web.Handler())

	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.HTTPPort).Str("mode", string(s.cfg.Mode)).Msg("listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleSession computes the connection descriptor for the requesting
// client. No request body is required; the only per-request input is the
// proxy-supplied forwarded host.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	hint := session.Hint{ForwardedHost: forwardedHost(r)}
	desc := session.Resolve(s.cfg, hint)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(desc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// requestLogger logs one line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
