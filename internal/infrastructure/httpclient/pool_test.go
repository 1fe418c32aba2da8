package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(retries int) Config {
	return Config{
		MaxConcurrency: 2,
		RequestTimeout: time.Second,
		MaxRetries:     retries,
		BackoffBase:    time.Millisecond,
		BackoffMax:     2 * time.Millisecond,
		UserAgent:      "contentrun-test",
	}
}

func TestPool_RetriesTransientStatusAndReplaysBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"platform":"microblog"}`, string(body))
		assert.Equal(t, "contentrun-test", r.Header.Get("User-Agent"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := NewPool(fastConfig(3), nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"platform":"microblog"}`))
	require.NoError(t, err)

	resp, err := p.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.SuccessRequests)
	assert.Equal(t, int64(2), stats.RetriedRequests)
}

func TestPool_ReturnsLastResponseWhenRetriesRunOut(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPool(fastConfig(2), nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode, "caller sees the final status")
	assert.Equal(t, int32(3), calls.Load())
}

func TestPool_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPool(fastConfig(3), nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := p.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestPool_ConnectionRefusedIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewPool(fastConfig(2), nil)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)

	_, err = p.Do(context.Background(), req)
	require.Error(t, err)

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.RetriedRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
}

func TestPool_CancelledWhileWaitingForSlot(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := fastConfig(0)
	cfg.MaxConcurrency = 1
	p := NewPool(cfg, nil)

	go func() {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if resp, err := p.Do(context.Background(), req); err == nil {
			resp.Body.Close()
		}
	}()
	require.Eventually(t, func() bool { return len(p.semaphore) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = p.Do(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_Backoff(t *testing.T) {
	p := NewPool(Config{BackoffBase: 100 * time.Millisecond, BackoffMax: 300 * time.Millisecond}, nil)

	first := p.backoff(1)
	assert.GreaterOrEqual(t, first, 100*time.Millisecond)
	assert.Less(t, first, 111*time.Millisecond)

	capped := p.backoff(5)
	assert.GreaterOrEqual(t, capped, 300*time.Millisecond)
	assert.Less(t, capped, 331*time.Millisecond)
}
