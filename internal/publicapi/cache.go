package publicapi

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyPrograms = "public:programs_lite" // cached JSON payload of /apiProgramsLite
	cacheKeyStats    = "public:stats_lite"    // cached JSON payload of /apiStatsLite
)

// Cache is a small Redis wrapper for public-endpoint payloads. A nil client
// or a Redis outage degrades to a miss; the endpoints then read the store
// directly rather than failing the request.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[cache] get %s: %v", key, err)
		return nil, false
	}
	return payload, true
}

func (c *Cache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Printf("[cache] set %s: %v", key, err)
	}
}
