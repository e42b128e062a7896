package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Barresider/FlareSolverr/internal/session"
)

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests before closing connections.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end over the session storage.
type Server struct {
	storage    *session.Storage
	sessionTTL time.Duration
	log        zerolog.Logger
	httpSrv    *http.Server
}

// New creates a Server listening on host:port once Start is called.
// sessionTTL is handed to Get-style session reuse; zero disables
// lifetime-based recreation.
func New(host string, port int, storage *session.Storage, sessionTTL time.Duration, log zerolog.Logger) *Server {
	s := &Server{
		storage:    storage,
		sessionTTL: sessionTTL,
		log:        log,
	}

	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router builds the chi router with the full middleware stack and all
// routes. Exposed separately so tests can drive handlers through
// httptest without binding a socket.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Delete("/{id}", s.handleDestroySession)
	})

	return r
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully. Returns the listener error, or nil on a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()

	s.log.Info().Str("addr", s.httpSrv.Addr).Msg("http server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("graceful shutdown failed, closing")
		_ = s.httpSrv.Close()
	}
	<-errCh

	return nil
}

// accessLog emits one structured line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
