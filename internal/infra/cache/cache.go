package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"subscription-api/config"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// Init connects to Redis when REDIS_URL is configured. Caching is optional:
// without it every lookup goes straight to the database.
func Init() {
	if config.REDIS_URL == "" {
		log.Println("REDIS_URL not set, plan cache disabled")
		return
	}

	opt, err := redis.ParseURL(config.REDIS_URL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}

	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	client = c
}

func Enabled() bool {
	return client != nil
}

func Get(ctx context.Context, key string) (string, bool) {
	if client == nil {
		return "", false
	}
	v, err := client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func Set(ctx context.Context, key, value string, ttl time.Duration) {
	if client == nil {
		return
	}
	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		fmt.Println("cache set failed:", err)
	}
}

func Del(ctx context.Context, keys ...string) {
	if client == nil {
		return
	}
	client.Del(ctx, keys...)
}
