// Package server exposes snippets and editor sessions over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snipx-dev/snipx/internal/sandbox"
	"github.com/snipx-dev/snipx/internal/store"
)

const (
	appName         = "CodeSnippets"
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server serves the snippet API.
type Server struct {
	store    store.Store
	registry *sandbox.Registry
	loader   *sandbox.Loader
	logger   zerolog.Logger
	sessions *sessionTable
	now      func() time.Time

	listener net.Listener
	server   *http.Server
	wg       sync.WaitGroup
}

// New creates a server. loader may be nil when no delegated runtime is
// configured.
func New(st store.Store, registry *sandbox.Registry, loader *sandbox.Loader, logger zerolog.Logger) *Server {
	s := &Server{
		store:    st,
		registry: registry,
		loader:   loader,
		logger:   logger.With().Str("component", "server").Logger(),
		now:      time.Now,
	}
	s.sessions = newSessionTable(func() time.Time { return s.now() })
	return s
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)

	mux.HandleFunc("GET /api/snippets", s.handleListSnippets)
	mux.HandleFunc("POST /api/snippets", s.handleCreateSnippet)
	mux.HandleFunc("GET /api/snippets/{id}", s.handleGetSnippet)
	mux.HandleFunc("PUT /api/snippets/{id}", s.handleUpdateSnippet)
	mux.HandleFunc("DELETE /api/snippets/{id}", s.handleDeleteSnippet)
	mux.HandleFunc("POST /api/snippets/{id}/sessions", s.handleOpenSession)

	mux.HandleFunc("GET /api/sessions/{sid}", s.handleGetSession)
	mux.HandleFunc("PATCH /api/sessions/{sid}", s.handlePatchSession)
	mux.HandleFunc("DELETE /api/sessions/{sid}", s.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{sid}/run", s.handleRunSession)
	mux.HandleFunc("POST /api/sessions/{sid}/save", s.handleSaveSession)
	mux.HandleFunc("GET /api/sessions/{sid}/download", s.handleDownloadSession)

	mux.HandleFunc("GET /api/runtime", s.handleRuntimeStatus)
	mux.HandleFunc("POST /api/runtime", s.handleRuntimeProvision)

	return s.logRequests(mux)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("server stopped")
		}
	}()

	s.logger.Info().Str("addr", s.Addr()).Msg("listening")
	return nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.wg.Wait()

	s.logger.Info().Msg("stopped")
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		level := zerolog.DebugLevel
		if rec.status >= 500 {
			level = zerolog.ErrorLevel
		}
		s.logger.WithLevel(level).
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
