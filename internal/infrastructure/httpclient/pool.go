package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Config bounds concurrency and retries for outbound requests
type Config struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// Pool wraps an http.Client with a concurrency limit and retry/backoff for
// transient failures
type Pool struct {
	config    Config
	semaphore chan struct{}
	client    *http.Client

	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
	retried atomic.Int64
	latency atomic.Int64 // nanoseconds, summed
}

// Stats is a snapshot of pool counters
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	SuccessRequests int64         `json:"success_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	RetriedRequests int64         `json:"retried_requests"`
	AvgLatency      time.Duration `json:"avg_latency"`
}

// NewPool creates a pool; client may be nil
func NewPool(config Config, client *http.Client) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 1
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 100 * time.Millisecond
	}
	if config.BackoffMax < config.BackoffBase {
		config.BackoffMax = 10 * config.BackoffBase
	}
	if client == nil {
		client = &http.Client{Timeout: config.RequestTimeout}
	}
	return &Pool{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrency),
		client:    client,
	}
}

// Do sends req, retrying transient failures up to MaxRetries times. A
// request with a body is replayed through GetBody, so build it with
// http.NewRequest* over a bytes or strings reader.
func (p *Pool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	start := time.Now()
	p.total.Add(1)
	defer func() { p.latency.Add(int64(time.Since(start))) }()

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.retried.Add(1)

			backoff := p.backoff(attempt)
			log.Debug().
				Dur("backoff", backoff).
				Int("attempt", attempt).
				Str("url", req.URL.String()).
				Msg("Retrying HTTP request")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				p.failed.Add(1)
				return nil, ctx.Err()
			}
		}

		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			p.failed.Add(1)
			return nil, err
		}

		resp, err := p.client.Do(attemptReq)
		if err != nil {
			lastErr = err
			if ctx.Err() == nil && retryableError(err) {
				continue
			}
			break
		}

		if retryableStatus(resp.StatusCode) && attempt < p.config.MaxRetries {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			continue
		}

		p.success.Add(1)
		return resp, nil
	}

	p.failed.Add(1)
	return nil, lastErr
}

// rewind returns the request for one attempt with a fresh body
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	out := req.WithContext(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed for retry")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("replay request body: %w", err)
	}
	out.Body = body
	return out, nil
}

func (p *Pool) backoff(attempt int) time.Duration {
	backoff := p.config.BackoffBase * time.Duration(1<<uint(attempt-1))
	if backoff > p.config.BackoffMax {
		backoff = p.config.BackoffMax
	}

	// Add up to 10% jitter to backoff
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	s := Stats{
		TotalRequests:   p.total.Load(),
		SuccessRequests: p.success.Load(),
		FailedRequests:  p.failed.Load(),
		RetriedRequests: p.retried.Load(),
	}
	if s.TotalRequests > 0 {
		s.AvgLatency = time.Duration(p.latency.Load() / s.TotalRequests)
	}
	return s
}

func retryableError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
