package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CachedGenerator memoizes raw oracle responses in Redis, keyed by prompt
// hash. Identical patient/trial pairs hit the cache instead of the oracle.
// Cache failures are logged and bypassed, never surfaced to callers.
type CachedGenerator struct {
	inner  Generator
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedGenerator wraps inner with a Redis response cache. redisURL uses
// the standard redis:// scheme.
func NewCachedGenerator(inner Generator, redisURL string, ttl time.Duration, logger *logrus.Logger) (*CachedGenerator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedGenerator{
		inner:  inner,
		client: redis.NewClient(opts),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Generate returns the cached response for this prompt when present,
// otherwise calls through and stores the result.
func (g *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := cacheKey(prompt)

	cached, err := g.client.Get(ctx, key).Result()
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, redis.Nil) {
		g.logger.WithField("error", err.Error()).Warn("Oracle cache read failed, calling through")
	}

	response, err := g.inner.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	if setErr := g.client.Set(ctx, key, response, g.ttl).Err(); setErr != nil {
		g.logger.WithField("error", setErr.Error()).Warn("Oracle cache write failed")
	}
	return response, nil
}

// Close releases the Redis connection.
func (g *CachedGenerator) Close() error {
	return g.client.Close()
}

func cacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return "oracle:response:" + hex.EncodeToString(sum[:])
}
