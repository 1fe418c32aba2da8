package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CacheHitRatio(t *testing.T) {
	m := New(nil)

	m.RecordCacheMiss("score")
	assert.Equal(t, 0.0, m.CurrentCacheHitRatio())

	m.RecordCacheHit("score")
	m.RecordCacheHit("score")
	m.RecordCacheHit("platforms")
	assert.InDelta(t, 0.75, m.CurrentCacheHitRatio(), 1e-9)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("score")))
}

func TestRegistry_StepTimerAndCounters(t *testing.T) {
	m := New(nil)

	timer := m.StartStepTimer(StepSchedule)
	timer.Stop(ResultSuccess)
	m.ObserveScore("microblog", 80)
	m.ObserveFormat("microblog")
	m.ObserveEntry("microblog")
	m.ObserveEntry("microblog")
	m.RecordSupplierRequest("microblog", ResultError)
	m.SetBreakerState("supplier-microblog", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepTotal.WithLabelValues(StepSchedule, ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FormatTotal.WithLabelValues("microblog")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntriesGenerated.WithLabelValues("microblog")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SupplierRequests.WithLabelValues("microblog", ResultError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("supplier-microblog")))
}

func TestRegistry_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveHTTP("GET", "/health", 200, 5*time.Millisecond)
	m.ObserveHTTP("POST", "/format", 404, time.Millisecond)
	m.FeedClientConnected()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `contentrun_http_requests_total{code="2xx",method="GET",route="/health"} 1`)
	assert.Contains(t, string(body), `contentrun_http_requests_total{code="4xx",method="POST",route="/format"} 1`)
	assert.Contains(t, string(body), "contentrun_schedule_feed_clients 1")
}

func TestRegistry_IndependentInstances(t *testing.T) {
	a := New(nil)
	b := New(nil)
	a.ObserveFormat("microblog")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FormatTotal.WithLabelValues("microblog")))
}
