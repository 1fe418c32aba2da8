package http

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/config"
	"github.com/sawpanic/contentrun/internal/interfaces/http/handlers"
	"github.com/sawpanic/contentrun/internal/metrics"
)

// Server is the content engine's JSON API plus the schedule feed
type Server struct {
	router   *mux.Router
	server   *http.Server
	handlers *handlers.Handlers
	hub      *Hub
	metrics  *metrics.Registry
	config   config.ServerConfig
}

// NewServer wires handlers, the feed hub and middleware; m may be nil
func NewServer(cfg config.ServerConfig, deps handlers.Deps, m *metrics.Registry) (*Server, error) {
	hub := NewHub(m)
	if deps.Feed == nil {
		deps.Feed = hub
	}
	if deps.MaxBodyBytes == 0 {
		deps.MaxBodyBytes = cfg.MaxBodyBytes
	}
	h, err := handlers.NewHandlers(deps)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   mux.NewRouter(),
		handlers: h,
		hub:      hub,
		metrics:  m,
		config:   cfg,
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/ws/schedule", s.hub.ServeWS).Methods(http.MethodGet)

	// API routes (JSON only)
	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)
	api.Use(s.timeoutMiddleware)

	api.HandleFunc("/health", s.handlers.Health).Methods(http.MethodGet)
	api.HandleFunc("/platforms", s.handlers.Platforms).Methods(http.MethodGet)
	api.HandleFunc("/score", s.handlers.Score).Methods(http.MethodPost)
	api.HandleFunc("/format", s.handlers.Format).Methods(http.MethodPost)
	api.HandleFunc("/schedule", s.handlers.GenerateSchedule).Methods(http.MethodPost)
	api.HandleFunc("/schedule", s.handlers.ListSchedule).Methods(http.MethodGet)
	api.HandleFunc("/schedule/{id}", s.handlers.GetEntry).Methods(http.MethodGet)
	api.HandleFunc("/schedule/{id}", s.handlers.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/schedule/{id}", s.handlers.DeleteEntry).Methods(http.MethodDelete)

	// mux skips middleware for these, so they get their own request ID
	s.router.NotFoundHandler = s.requestIDMiddleware(http.HandlerFunc(s.handlers.NotFound))
	s.router.MethodNotAllowedHandler = s.requestIDMiddleware(http.HandlerFunc(s.handlers.MethodNotAllowed))
}

// Handler exposes the router, mainly for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the schedule feed hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// requestIDMiddleware adds unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(handlers.WithRequestID(r.Context(), requestID)))
	})
}

// requestLoggingMiddleware logs every request and records it by route
// template so path parameters do not explode metric cardinality
func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, wrapper.statusCode, duration)
		}

		log.Info().
			Str("request_id", handlers.RequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Str("remote", r.RemoteAddr).
			Msg("REQ")
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// timeoutMiddleware enforces request timeouts
func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.RequestTimeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// corsMiddleware adds CORS headers for local development
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only allow localhost origins
		origin := r.Header.Get("Origin")
		if origin != "" && localOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonContentTypeMiddleware sets JSON content type for API responses
func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Start checks the port and serves until Shutdown
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("port %d is busy or unavailable: %w", s.config.Port, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Shutdown
func (s *Server) Serve(listener net.Listener) error {
	log.Info().Str("addr", listener.Addr().String()).Msg("Starting HTTP server")

	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown disconnects feed clients and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	s.hub.Close()
	return s.server.Shutdown(ctx)
}

// GetAddress returns the configured server address
func (s *Server) GetAddress() string {
	return (&url.URL{Scheme: "http", Host: s.config.Addr()}).String()
}

// responseWrapper captures HTTP status codes for logging
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return hj.Hijack()
}
