package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/contentrun/internal/application"
	"github.com/sawpanic/contentrun/internal/cache"
	"github.com/sawpanic/contentrun/internal/persistence"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
)

const defaultMaxBodyBytes = 1 << 20

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the request ID used in error bodies and logs
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID stored in ctx, or "unknown"
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// Feed receives schedule events for connected clients
type Feed interface {
	Broadcast(event ScheduleEvent) int
	Clients() int
}

// Deps are the collaborators the handlers need. Scores, Health and Feed are
// optional.
type Deps struct {
	Engine       *application.Engine
	Repo         persistence.ScheduleRepo
	Health       persistence.RepositoryHealth
	Scores       *cache.ScoreCache
	Supplier     scheduler.DraftSupplier
	Feed         Feed
	MaxBodyBytes int64
	Version      string
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	deps Deps

	// scheduleMu serialises read-plan-insert so concurrent POST /schedule
	// calls see each other's slots
	scheduleMu sync.Mutex
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) (*Handlers, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("handlers: engine is required")
	case deps.Repo == nil:
		return nil, errors.New("handlers: schedule repository is required")
	case deps.Supplier == nil:
		return nil, errors.New("handlers: draft supplier is required")
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handlers{deps: deps}, nil
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

// fail maps engine and repository errors onto HTTP statuses and logs them
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", RequestID(r.Context())).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("Request failed")

	h.writeError(w, r, status, code, err.Error())
}

func classify(err error) (int, string) {
	var (
		unknown *platform.UnknownPlatformError
		supply  *scheduler.DraftSupplyError
		maxBody *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxBody):
		return http.StatusRequestEntityTooLarge, "body_too_large"
	case errors.Is(err, errBadRequest), errors.Is(err, scheduler.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &unknown):
		return http.StatusNotFound, "unknown_platform"
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound, "entry_not_found"
	case errors.Is(err, persistence.ErrConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "cancelled"
	case errors.As(err, &supply):
		return http.StatusBadGateway, "draft_supply_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decode reads a single JSON object from the body, rejecting unknown fields
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBody *http.MaxBytesError
		if errors.As(err, &maxBody) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("malformed JSON: %v", err)
	}
	if dec.More() {
		return badRequest("request body must hold a single JSON object")
	}
	return nil
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// MethodNotAllowed handles 405 responses
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed",
		fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path))
}

func (h *Handlers) publish(event ScheduleEvent) {
	if h.deps.Feed == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	delivered := h.deps.Feed.Broadcast(event)
	log.Debug().Str("type", event.Type).Int("clients", delivered).Msg("Feed event published")
}
