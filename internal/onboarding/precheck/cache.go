package precheck

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const takenTTL = 30 * time.Second

// TakenCache remembers recent "taken" verdicts in Redis. Only negative
// verdicts are cached: an identifier can become taken at any moment, but
// once taken it stays taken long enough for a short TTL to be safe.
//
// All methods tolerate a nil receiver and degrade to cache misses, so the
// prechecker works unchanged when Redis is not configured.
type TakenCache struct {
	client *goredis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewTakenCache(client *goredis.Client, logger *slog.Logger) *TakenCache {
	if client == nil {
		return nil
	}
	return &TakenCache{client: client, logger: logger, ttl: takenTTL}
}

func (c *TakenCache) key(field, value string) string {
	return "precheck:taken:" + field + ":" + value
}

// Taken reports whether a recent check found this identifier in use.
func (c *TakenCache) Taken(ctx context.Context, field, value string) bool {
	if c == nil {
		return false
	}
	n, err := c.client.Exists(ctx, c.key(field, value)).Result()
	if err != nil {
		c.logger.DebugContext(ctx, "taken-cache read failed", "error", err)
		return false
	}
	return n > 0
}

// MarkTaken records a "taken" verdict. Best effort.
func (c *TakenCache) MarkTaken(ctx context.Context, field, value string) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, c.key(field, value), "1", c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "taken-cache write failed", "error", err)
	}
}
