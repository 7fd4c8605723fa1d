package api

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// reportCache keeps rendered report JSON in Redis for a short TTL. The
// report query fans out over several aggregate scans, so dashboards polling
// every few seconds should not hit Postgres each time. A nil client
// disables caching entirely.
type reportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newReportCache(client *redis.Client, ttl time.Duration) *reportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reportCache{client: client, ttl: ttl}
}

func (c *reportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[api] report cache get %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (c *reportCache) Set(ctx context.Context, key string, data []byte) {
	if c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("[api] report cache set %s: %v", key, err)
	}
}
