package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/contentrun/internal/metrics"
	"github.com/sawpanic/contentrun/internal/platform"
	"github.com/sawpanic/contentrun/internal/scoring"
)

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0)

	_, ok := c.Get(ctx, "missing")
	assert.False(t, ok)

	val := []byte("value")
	c.Set(ctx, "k", val, 0)
	val[0] = 'X'
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "value", string(got), "stored bytes are copied")

	c.Set(ctx, "short", []byte("v"), time.Nanosecond)
	time.Sleep(2 * time.Millisecond)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok, "expired")
}

func TestMemory_BoundedByMaxEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(2)

	c.Set(ctx, "a", []byte("1"), time.Hour)
	c.Set(ctx, "b", []byte("2"), time.Hour)
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "c", []byte("3"), time.Hour)
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok, "least recently used key is evicted")
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = c.Get(ctx, "c")
	assert.True(t, ok)

	assert.Equal(t, 2, c.(*memory).lru.Len())
}

func TestNew_PicksBackend(t *testing.T) {
	_, isMemory := New(Config{}).(*memory)
	assert.True(t, isMemory)

	_, isRedis := New(Config{RedisAddr: "127.0.0.1:6379"}).(*redisCache)
	assert.True(t, isRedis)
}

func TestRedis_GetSet(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	c := NewRedis(client, time.Second)

	mock.ExpectGet("k").RedisNil()
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	mock.ExpectSet("k", []byte("v"), time.Minute).SetVal("OK")
	c.Set(ctx, "k", []byte("v"), time.Minute)

	mock.ExpectGet("k").SetVal("v")
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	mock.ExpectGet("down").SetErr(errors.New("connection refused"))
	_, ok = c.Get(ctx, "down")
	assert.False(t, ok, "backend errors read as misses")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreCache_RedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	m := metrics.New(nil)
	sc := NewScoreCache(NewRedis(client, time.Second), 10*time.Minute, m)

	draft := scoring.Draft{Text: "Short post #hiring", Platform: platform.ProfessionalNetwork}
	scorer := scoring.NewScorer(platform.Default())
	want := scorer.Score(draft)
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	key := ScoreKey(draft)

	calls := 0
	compute := func(d scoring.Draft) scoring.Report {
		calls++
		return scorer.Score(d)
	}

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, raw, 10*time.Minute).SetVal("OK")
	report, hit := sc.Score(ctx, draft, compute)
	assert.False(t, hit)
	assert.Equal(t, want, report)

	mock.ExpectGet(key).SetVal(string(raw))
	report, hit = sc.Score(ctx, draft, compute)
	assert.True(t, hit)
	assert.Equal(t, want, report)

	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits.WithLabelValues("score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMisses.WithLabelValues("score")))
	assert.InDelta(t, 0.5, m.CurrentCacheHitRatio(), 1e-9)
}

func TestScoreCache_CorruptEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory(0)
	sc := NewScoreCache(mem, time.Minute, nil)
	draft := scoring.Draft{Text: "hello", Platform: platform.Microblog}

	mem.Set(ctx, ScoreKey(draft), []byte("not json"), 0)
	report, hit := sc.Score(ctx, draft, func(scoring.Draft) scoring.Report { return scoring.Fallback() })
	assert.False(t, hit)
	assert.True(t, report.IsFallback())

	_, hit = sc.Score(ctx, draft, func(scoring.Draft) scoring.Report { t.Fatal("should hit"); return scoring.Report{} })
	assert.True(t, hit)
}

func TestScoreKey(t *testing.T) {
	a := ScoreKey(scoring.Draft{Text: "same", Platform: platform.Microblog})
	b := ScoreKey(scoring.Draft{Text: "same", Platform: platform.LongFormPublisher})
	c := ScoreKey(scoring.Draft{Text: "other", Platform: platform.Microblog})

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, a, ScoreKey(scoring.Draft{Text: "same", Platform: platform.Microblog}))
}
