// Package idempotency remembers which provider events were already handled.
// It only saves work: every transition is idempotent on its own, so a miss
// or an unavailable Redis is harmless.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const DefaultTTL = 72 * time.Hour

type Store interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient connects to Redis and returns nil when the server does not
// answer, so callers can fall back to Noop.
func NewClient(cfg Config, log *zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, webhook dedup and rate limiting disabled")
		_ = client.Close()
		return nil
	}
	return client
}

type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New returns a Redis-backed store, or Noop when rdb is nil.
func New(rdb *redis.Client, prefix string, ttl time.Duration) Store {
	if rdb == nil {
		return Noop{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(eventID string) string {
	return Key(s.prefix, eventID)
}

func Key(prefix, eventID string) string {
	if prefix == "" {
		return "webhook:" + eventID
	}
	return prefix + ":webhook:" + eventID
}

func (s *RedisStore) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Remember(ctx context.Context, eventID string) error {
	if err := s.rdb.Set(ctx, s.key(eventID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("remember processed event: %w", err)
	}
	return nil
}

// Noop never reports an event as seen.
type Noop struct{}

func (Noop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Noop) Remember(context.Context, string) error     { return nil }
