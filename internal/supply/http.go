package supply

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sawpanic/contentrun/internal/infrastructure/httpclient"
	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

const draftsPath = "/drafts"

// ErrEmptyDraft is returned when the remote supplier answers with no text
var ErrEmptyDraft = errors.New("supplier returned an empty draft")

// HTTPConfig configures the remote draft supplier
type HTTPConfig struct {
	BaseURL          string        `yaml:"base_url"`
	Timeout          time.Duration `yaml:"timeout"`
	RPS              float64       `yaml:"rps"`
	Burst            int           `yaml:"burst"`
	FailureThreshold uint32        `yaml:"failure_threshold"` // consecutive failures to open
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // open -> half-open
	UserAgent        string        `yaml:"user_agent"`
	MaxRetries       int           `yaml:"max_retries"`     // transient failures retried per call
	BackoffBase      time.Duration `yaml:"backoff_base"`    // first retry delay, doubled per attempt
	MaxConcurrency   int           `yaml:"max_concurrency"` // in-flight requests
}

// DefaultHTTPConfig returns conservative supplier settings
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:          10 * time.Second,
		RPS:              2,
		Burst:            4,
		FailureThreshold: 3,
		OpenTimeout:      60 * time.Second,
		UserAgent:        "contentrun/1.0",
		MaxRetries:       2,
		BackoffBase:      200 * time.Millisecond,
		MaxConcurrency:   4,
	}
}

// draftRequest is the body posted to the remote supplier
type draftRequest struct {
	Platform  platform.ID   `json:"platform"`
	Kind      platform.Kind `json:"kind"`
	MaxLength int           `json:"max_length,omitempty"`
}

// draftResponse is the remote supplier's answer
type draftResponse struct {
	Text     string      `json:"text"`
	Platform platform.ID `json:"platform"`
}

// HTTPSupplier fetches drafts from a remote service. Each platform has its
// own rate limit bucket and circuit breaker.
type HTTPSupplier struct {
	cfg     HTTPConfig
	client  *http.Client
	pool    *httpclient.Pool
	limiter *Limiter
	metrics *metrics.Registry

	mu       sync.Mutex
	breakers map[platform.ID]*gobreaker.CircuitBreaker
}

// HTTPOption configures an HTTPSupplier
type HTTPOption func(*HTTPSupplier)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSupplier) { s.client = c }
}

// WithSupplierMetrics records request outcomes and breaker state
func WithSupplierMetrics(m *metrics.Registry) HTTPOption {
	return func(s *HTTPSupplier) { s.metrics = m }
}

// NewHTTPSupplier validates cfg and builds the supplier
func NewHTTPSupplier(cfg HTTPConfig, opts ...HTTPOption) (*HTTPSupplier, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("supplier base_url is required")
	}
	defaults := DefaultHTTPConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	s := &HTTPSupplier{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  NewLimiter(cfg.RPS, cfg.Burst),
		breakers: make(map[platform.ID]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = httpclient.NewPool(httpclient.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		RequestTimeout: cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		BackoffBase:    cfg.BackoffBase,
		UserAgent:      cfg.UserAgent,
	}, s.client)
	return s, nil
}

// SupplyDraft waits for the platform's rate limit, then fetches a draft
// through the platform's breaker
func (s *HTTPSupplier) SupplyDraft(ctx context.Context, profile platform.Profile) (scoring.Draft, error) {
	if err := s.limiter.Wait(ctx, string(profile.ID)); err != nil {
		s.record(profile.ID, "rate_limited")
		return scoring.Draft{}, fmt.Errorf("rate limit wait for %s: %w", profile.ID, err)
	}

	result, err := s.breaker(profile.ID).Execute(func() (interface{}, error) {
		return s.fetch(ctx, profile)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			s.record(profile.ID, "breaker_open")
		} else {
			s.record(profile.ID, metrics.ResultError)
		}
		return scoring.Draft{}, err
	}

	s.record(profile.ID, metrics.ResultSuccess)
	return result.(scoring.Draft), nil
}

// BreakerState returns the current breaker state for a platform
func (s *HTTPSupplier) BreakerState(id platform.ID) gobreaker.State {
	return s.breaker(id).State()
}

// ClientStats exposes the outbound request counters
func (s *HTTPSupplier) ClientStats() httpclient.Stats {
	return s.pool.Stats()
}

// LimiterStats exposes the per-platform rate limit buckets
func (s *HTTPSupplier) LimiterStats() map[string]LimiterStats {
	return s.limiter.Stats()
}

// Status is a snapshot of the remote supplier's breakers, rate limits and
// outbound client
type Status struct {
	Breakers   map[platform.ID]string  `json:"breakers"`
	RateLimits map[string]LimiterStats `json:"rate_limits"`
	Throttled  []string                `json:"throttled,omitempty"`
	Client     httpclient.Stats        `json:"client"`
}

// Status reports every platform the supplier has been asked for so far
func (s *HTTPSupplier) Status() Status {
	s.mu.Lock()
	ids := make([]platform.ID, 0, len(s.breakers))
	for id := range s.breakers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	st := Status{
		Breakers:   make(map[platform.ID]string, len(ids)),
		RateLimits: s.LimiterStats(),
		Client:     s.ClientStats(),
	}
	for _, id := range ids {
		st.Breakers[id] = s.BreakerState(id).String()
	}
	for key, l := range st.RateLimits {
		if l.Throttled() {
			st.Throttled = append(st.Throttled, key)
		}
	}
	sort.Strings(st.Throttled)
	return st
}

// Inspect returns the status of s when it is, or falls back from, an
// HTTPSupplier
func Inspect(s scheduler.DraftSupplier) (Status, bool) {
	switch v := s.(type) {
	case *HTTPSupplier:
		return v.Status(), true
	case Fallback:
		return Inspect(v.Primary)
	case *Fallback:
		return Inspect(v.Primary)
	}
	return Status{}, false
}

func (s *HTTPSupplier) fetch(ctx context.Context, profile platform.Profile) (scoring.Draft, error) {
	body, err := json.Marshal(draftRequest{
		Platform:  profile.ID,
		Kind:      profile.Kind,
		MaxLength: profile.MaxLength,
	})
	if err != nil {
		return scoring.Draft{}, fmt.Errorf("failed to encode draft request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+draftsPath, bytes.NewReader(body))
	if err != nil {
		return scoring.Draft{}, fmt.Errorf("failed to build draft request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.pool.Do(ctx, req)
	if err != nil {
		return scoring.Draft{}, fmt.Errorf("draft request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return scoring.Draft{}, fmt.Errorf("supplier returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out draftResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return scoring.Draft{}, fmt.Errorf("failed to decode draft response: %w", err)
	}
	if strings.TrimSpace(out.Text) == "" {
		return scoring.Draft{}, ErrEmptyDraft
	}
	if out.Platform == "" {
		out.Platform = profile.ID
	}
	return scoring.Draft{Text: out.Text, Platform: out.Platform}, nil
}

func (s *HTTPSupplier) breaker(id platform.ID) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.breakers[id]; ok {
		return b
	}

	threshold := s.cfg.FailureThreshold
	st := gobreaker.Settings{
		Name:        "supplier-" + string(id),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     s.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Supplier circuit breaker state changed")
			if s.metrics != nil {
				s.metrics.SetBreakerState(name, int(to))
			}
		},
	}
	b := gobreaker.NewCircuitBreaker(st)
	s.breakers[id] = b
	return b
}

func (s *HTTPSupplier) record(id platform.ID, result string) {
	if s.metrics != nil {
		s.metrics.RecordSupplierRequest(string(id), result)
	}
}
