package supply

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/contentrun/internal/format"
	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scheduler"
	"github.com/sawpanic/contentrun/internal/scoring"
)

func profile(t *testing.T, id platform.ID) platform.Profile {
	t.Helper()
	p, err := platform.Default().Lookup(id)
	require.NoError(t, err)
	return p
}

func TestTemplateSupplier_RotatesTopics(t *testing.T) {
	s := NewTemplateSupplier("alpha", " ", "beta")
	p := profile(t, platform.Microblog)

	first, err := s.SupplyDraft(context.Background(), p)
	require.NoError(t, err)
	second, err := s.SupplyDraft(context.Background(), p)
	require.NoError(t, err)
	third, err := s.SupplyDraft(context.Background(), p)
	require.NoError(t, err)

	assert.Contains(t, first.Text, "alpha")
	assert.Contains(t, second.Text, "beta")
	assert.Contains(t, third.Text, "alpha")
	assert.Equal(t, platform.Microblog, first.Platform)
}

func TestTemplateSupplier_PerKind(t *testing.T) {
	s := NewTemplateSupplier()
	for _, id := range platform.Default().IDs() {
		p := profile(t, id)
		draft, err := s.SupplyDraft(context.Background(), p)
		require.NoError(t, err)
		assert.NotEmpty(t, draft.Text)
		assert.Equal(t, id, draft.Platform)
		if p.HasLimit() {
			assert.LessOrEqual(t, platform.Length(draft.Text), p.MaxLength)
		}
	}
}

func TestTemplateSupplier_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTemplateSupplier().SupplyDraft(ctx, profile(t, platform.Microblog))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTemplateSupplier_DrivesScheduler(t *testing.T) {
	r := platform.Default()
	s := scheduler.New(r, scoring.NewScorer(r), format.NewFormatter(r), scheduler.WithSeed(1))
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	entries, err := s.Generate(context.Background(), scheduler.Request{HorizonDays: 7, Now: now}, NewTemplateSupplier())
	require.NoError(t, err)
	require.Len(t, entries, 6)
	for _, e := range entries {
		assert.NotEmpty(t, e.Title)
		assert.NotEmpty(t, e.Content)
	}
}

func newDraftServer(t *testing.T, handler func(w http.ResponseWriter, req draftRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, draftsPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req draftRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSupplier_FetchesDraft(t *testing.T) {
	srv := newDraftServer(t, func(w http.ResponseWriter, req draftRequest) {
		assert.Equal(t, platform.Microblog, req.Platform)
		assert.Equal(t, platform.KindMicroblog, req.Kind)
		assert.Equal(t, 280, req.MaxLength)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(draftResponse{Text: "Fresh from the wire"})
	})

	m := metrics.New(nil)
	s, err := NewHTTPSupplier(HTTPConfig{BaseURL: srv.URL + "/"}, WithSupplierMetrics(m))
	require.NoError(t, err)

	draft, err := s.SupplyDraft(context.Background(), profile(t, platform.Microblog))
	require.NoError(t, err)
	assert.Equal(t, scoring.Draft{Text: "Fresh from the wire", Platform: platform.Microblog}, draft)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SupplierRequests.WithLabelValues("microblog", metrics.ResultSuccess)))
}

func TestHTTPSupplier_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"server_error", http.StatusInternalServerError, "boom", "status 500"},
		{"bad_json", http.StatusOK, "{", "failed to decode"},
		{"empty_text", http.StatusOK, `{"text":"  "}`, ErrEmptyDraft.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newDraftServer(t, func(w http.ResponseWriter, _ draftRequest) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			s, err := NewHTTPSupplier(HTTPConfig{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = s.SupplyDraft(context.Background(), profile(t, platform.ProfessionalNetwork))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHTTPSupplier_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newDraftServer(t, func(w http.ResponseWriter, _ draftRequest) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	m := metrics.New(nil)
	s, err := NewHTTPSupplier(HTTPConfig{BaseURL: srv.URL, FailureThreshold: 3, OpenTimeout: time.Hour}, WithSupplierMetrics(m))
	require.NoError(t, err)
	p := profile(t, platform.LongFormPublisher)

	for i := 0; i < 3; i++ {
		_, err := s.SupplyDraft(context.Background(), p)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, s.BreakerState(p.ID))

	_, err = s.SupplyDraft(context.Background(), p)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), calls.Load(), "open breaker short-circuits")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("supplier-long-form-publisher")))

	assert.Equal(t, gobreaker.StateClosed, s.BreakerState(platform.Microblog), "breakers are per platform")

	st, ok := Inspect(Fallback{Primary: s, Secondary: NewTemplateSupplier()})
	require.True(t, ok)
	assert.Equal(t, "open", st.Breakers[platform.LongFormPublisher])
	assert.Equal(t, "closed", st.Breakers[platform.Microblog])
	assert.Equal(t, int64(3), st.Client.TotalRequests, "the open breaker sends nothing")
}

func TestHTTPSupplier_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := newDraftServer(t, func(w http.ResponseWriter, _ draftRequest) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(draftResponse{Text: "Second time lucky"})
	})

	s, err := NewHTTPSupplier(HTTPConfig{BaseURL: srv.URL, MaxRetries: 2, BackoffBase: time.Millisecond})
	require.NoError(t, err)
	p := profile(t, platform.ProfessionalNetwork)

	draft, err := s.SupplyDraft(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "Second time lucky", draft.Text)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int64(1), s.ClientStats().RetriedRequests)
	assert.Equal(t, gobreaker.StateClosed, s.BreakerState(p.ID), "a retried success is one breaker success")
}

func TestHTTPSupplier_RateLimitHonoursContext(t *testing.T) {
	srv := newDraftServer(t, func(w http.ResponseWriter, _ draftRequest) {
		_ = json.NewEncoder(w).Encode(draftResponse{Text: "ok"})
	})
	s, err := NewHTTPSupplier(HTTPConfig{BaseURL: srv.URL, RPS: 0.001, Burst: 1})
	require.NoError(t, err)
	p := profile(t, platform.Microblog)

	_, err = s.SupplyDraft(context.Background(), p)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.SupplyDraft(ctx, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait for microblog")

	stats := s.LimiterStats()
	require.Contains(t, stats, "microblog")
	assert.True(t, stats["microblog"].Throttled())

	st, ok := Inspect(s)
	require.True(t, ok)
	assert.Equal(t, []string{"microblog"}, st.Throttled)

	_, ok = Inspect(NewTemplateSupplier())
	assert.False(t, ok)
}

func TestNewHTTPSupplier_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPSupplier(HTTPConfig{})
	assert.Error(t, err)
}

func TestFallback(t *testing.T) {
	failing := scheduler.SupplierFunc(func(context.Context, platform.Profile) (scoring.Draft, error) {
		return scoring.Draft{}, errors.New("remote down")
	})
	p := profile(t, platform.Microblog)

	draft, err := Fallback{Primary: failing, Secondary: NewTemplateSupplier("gamma")}.SupplyDraft(context.Background(), p)
	require.NoError(t, err)
	assert.Contains(t, draft.Text, "gamma")

	_, err = Fallback{Primary: failing}.SupplyDraft(context.Background(), p)
	assert.EqualError(t, err, "remote down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Fallback{Primary: failing, Secondary: NewTemplateSupplier()}.SupplyDraft(ctx, p)
	assert.EqualError(t, err, "remote down", "cancellation is not hidden by the fallback")
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "k"))
	}
	st := l.Stats()["k"]
	assert.False(t, st.Throttled())
	assert.Zero(t, st.RPS)
	assert.Equal(t, 1.0, st.TokensAvailable)
	_, err := json.Marshal(st)
	assert.NoError(t, err)
}
