package lib

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// RedisConfigCache backs the bounded-staleness config reads with redis so
// all instances see a rotated secret or fee change within one TTL.
type RedisConfigCache struct {
	inner *redis.Client
}

func NewRedisConfigCache() *RedisConfigCache {
	return &RedisConfigCache{inner: GetRedisClient()}
}

func (c *RedisConfigCache) Get(ctx context.Context, key string) (string, bool) {
	if c.inner == nil {
		return "", false
	}
	val, err := c.inner.Get(ctx, "config:"+key).Result()
	if err == redis.Nil {
		return "", false
	} else if err != nil {
		log.Printf("[redis] Error retrieving value for %s: %s\n", key, err.Error())
		return "", false
	}
	return val, true
}

func (c *RedisConfigCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c.inner == nil {
		return
	}
	if err := c.inner.Set(ctx, "config:"+key, value, ttl).Err(); err != nil {
		log.Printf("[redis] Failed to set value for key %s: %s\n", key, err.Error())
	}
}
