package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// Cache stores opaque values with an optional TTL. Misses and backend
// failures look the same to callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// Config selects and tunes the cache backend
type Config struct {
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	Password  string        `yaml:"password"`
	TTL       time.Duration `yaml:"ttl"`
	Timeout   time.Duration `yaml:"timeout"`
	// MaxEntries bounds the in-memory backend; least recently used keys go first
	MaxEntries int `yaml:"max_entries"`
}

// DefaultMaxEntries bounds the in-memory backend when unset
const DefaultMaxEntries = 10000

// DefaultConfig uses the in-memory backend
func DefaultConfig() Config {
	return Config{
		TTL:        15 * time.Minute,
		Timeout:    500 * time.Millisecond,
		MaxEntries: DefaultMaxEntries,
	}
}

// New returns a Redis cache when an address is configured and an
// in-memory cache otherwise
func New(cfg Config) Cache {
	if cfg.RedisAddr == "" {
		return NewMemory(cfg.MaxEntries)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		DB:       cfg.RedisDB,
		Password: cfg.Password,
	})
	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("Using Redis score cache")
	return NewRedis(client, cfg.Timeout)
}

type memory struct {
	lru *lru.Cache[string, entry]
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory creates a process-local cache holding at most maxEntries keys
// (DefaultMaxEntries when maxEntries <= 0)
func NewMemory(maxEntries int) Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l, err := lru.New[string, entry](maxEntries)
	if err != nil {
		// only reachable with a non-positive size
		panic(err)
	}
	return &memory{lru: l}
}

func (c *memory) Get(_ context.Context, key string) ([]byte, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		c.lru.Remove(key)
		return nil, false
	}
	return append([]byte(nil), e.b...), true
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.lru.Add(key, e)
}

type redisCache struct {
	r       *redis.Client
	timeout time.Duration
}

// NewRedis wraps a go-redis client. Each call is bounded by timeout.
func NewRedis(client *redis.Client, timeout time.Duration) Cache {
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &redisCache{r: client, timeout: timeout}
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("Redis cache get failed")
		}
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.r.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis cache set failed")
	}
}
