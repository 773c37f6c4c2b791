// Package collabcache keeps read snapshots of collaborative cart sessions
// in Redis. Snapshots are versioned by revision and a write never replaces
// a newer snapshot, so a slow reader cannot clobber a fresh write.
package collabcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	// ErrCacheMiss is returned when no snapshot is cached (or the breaker is open).
	ErrCacheMiss = errors.New("cache miss")
	// ErrUnavailable is returned by writes the breaker refused; nothing was stored.
	ErrUnavailable = errors.New("cache unavailable")
)

// DefaultTTL is the base snapshot lifetime; up to a minute of jitter is added.
const DefaultTTL = 10 * time.Minute

// setIfNewer stores data under KEYS[1] only when ARGV[1] (revision) is
// greater than the cached revision.
var setIfNewer = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rev')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'rev', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisCache is a revision-monotonic snapshot cache guarded by a circuit
// breaker, so a struggling Redis degrades to store reads instead of adding
// latency to every request.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

// New creates a RedisCache. ttl <= 0 uses DefaultTTL.
func New(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RedisCache{client: client, baseTTL: ttl, log: logger}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "collab-cache",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// Get returns the cached snapshot for sessionID.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (models.CollabSession, error) {
	data, err := c.cb.Execute(func() ([]byte, error) {
		return c.client.HGet(ctx, cacheKey(sessionID), "data").Bytes()
	})
	if errors.Is(err, redis.Nil) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return models.CollabSession{}, ErrCacheMiss
	}
	if err != nil {
		return models.CollabSession{}, fmt.Errorf("redis get failed: %w", err)
	}

	var sess models.CollabSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return models.CollabSession{}, fmt.Errorf("unmarshal session failed: %w", err)
	}
	return sess, nil
}

// Set caches sess unless a snapshot with the same or a newer revision exists.
// A nil error means the cache now holds sess.Revision or newer.
func (c *RedisCache) Set(ctx context.Context, sess models.CollabSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	ttl := c.baseTTL + jitter

	_, err = c.cb.Execute(func() ([]byte, error) {
		return nil, setIfNewer.Run(ctx, c.client,
			[]string{cacheKey(sess.SessionID)},
			sess.Revision, string(data), ttl.Milliseconds(),
		).Err()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete drops the snapshot for sessionID.
func (c *RedisCache) Delete(ctx context.Context, sessionID string) error {
	_, err := c.cb.Execute(func() ([]byte, error) {
		return nil, c.client.Del(ctx, cacheKey(sessionID)).Err()
	})
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return fmt.Sprintf("collab:session:%s", sessionID)
}
